// Package features turns raw message metadata into a FeatureBundle.
//
// Extraction is a pure function of its inputs: it performs no I/O and never
// fails. Malformed headers and URLs degrade to empty strings, "none" auth
// results and all-false signals.
package features

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/mikey/phish-triage/internal/core"
)

// DangerousExtensions are attachment types commonly used for credential theft or malware
var DangerousExtensions = []string{
	".html", ".htm", ".shtml", ".lnk", ".iso", ".img", ".docm", ".xlsm", ".pptm",
	".js", ".vbs", ".cmd", ".bat", ".scr", ".ps1", ".wsf", ".jar", ".rar", ".7z", ".zip",
}

// Options overrides the fixed deny-lists. Empty slices keep the defaults.
type Options struct {
	SuspiciousTLDs []string
	ShortenerHosts []string
}

// Extractor is read-only after construction and safe for concurrent use
type Extractor struct {
	suspiciousTLDs map[string]bool
	shortenerHosts map[string]bool
	dangerousExt   map[string]bool
}

// NewExtractor creates a new feature extractor
func NewExtractor(opts Options) *Extractor {
	tlds := opts.SuspiciousTLDs
	if len(tlds) == 0 {
		tlds = DefaultSuspiciousTLDs
	}
	shorteners := opts.ShortenerHosts
	if len(shorteners) == 0 {
		shorteners = DefaultShortenerHosts
	}

	return &Extractor{
		suspiciousTLDs: toSet(tlds, func(s string) string { return strings.TrimPrefix(s, ".") }),
		shortenerHosts: toSet(shorteners, nil),
		dangerousExt:   toSet(DangerousExtensions, nil),
	}
}

// Extract builds the feature bundle of a message. With headersOnly set only
// the subject line is scanned for URLs; otherwise the body, or failing that
// the snippet, is scanned as well.
func (e *Extractor) Extract(msg core.RawMessage, headersOnly bool) *core.FeatureBundle {
	headers := msg.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	subject := headers["Subject"]
	content := selectContent(msg, subject, headersOnly)

	addrs := ExtractAddresses(headers)
	urls := ExtractURLs(content)

	refs := make([]core.URLRef, 0, len(urls))
	signals := make([]core.URLSignal, 0, len(urls))
	for _, u := range urls {
		refs = append(refs, core.URLRef{Raw: u})
		signals = append(signals, e.URLHeuristics(u))
	}

	return &core.FeatureBundle{
		Auth:          ParseAuthenticationResults(headers["Authentication-Results"]),
		Addresses:     addrs,
		URLs:          refs,
		URLSignals:    signals,
		SenderSignals: SenderAnomaly(addrs),
		Attachments:   core.AttachmentSignals{DangerousExt: e.dangerousAttachments(msg.Attachments)},
		Flags:         SubjectFlags(subject),
		Indicators:    core.Indicators{Domains: indicatorDomains(addrs, content)},
	}
}

func selectContent(msg core.RawMessage, subject string, headersOnly bool) string {
	if headersOnly {
		return subject
	}
	text := msg.Body
	if text == "" {
		text = msg.Snippet
	}
	if subject == "" {
		return text
	}
	return subject + "\n" + text
}

// IsDangerousExtension reports whether ext (with leading dot) is in the dangerous set
func (e *Extractor) IsDangerousExtension(ext string) bool {
	return e.dangerousExt[strings.ToLower(ext)]
}

func (e *Extractor) dangerousAttachments(names []string) []string {
	var found []string
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if e.dangerousExt[ext] {
			found = append(found, ext)
		}
	}
	return found
}

// indicatorDomains returns the sorted, de-duplicated, non-empty domains seen in
// the sender headers and in the scanned content.
func indicatorDomains(addrs core.Addresses, content string) []string {
	seen := make(map[string]struct{})
	add := func(d string) {
		if d != "" {
			seen[d] = struct{}{}
		}
	}
	add(addrs.From.Domain)
	add(addrs.ReplyTo.Domain)
	add(addrs.ReturnPath.Domain)
	for _, d := range ExtractDomains(content) {
		add(d)
	}

	domains := make([]string, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

func toSet(items []string, norm func(string) string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if norm != nil {
			item = norm(item)
		}
		if item != "" {
			set[item] = true
		}
	}
	return set
}
