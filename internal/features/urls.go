package features

import (
	"regexp"
	"strings"

	"github.com/mikey/phish-triage/internal/core"
	"golang.org/x/net/publicsuffix"
)

// DefaultSuspiciousTLDs are top-level domains commonly abused by phishing campaigns
var DefaultSuspiciousTLDs = []string{
	"zip", "mov", "top", "xyz", "gq", "work", "country", "link", "click", "support", "online", "shop",
}

// DefaultShortenerHosts are hosts whose only purpose is redirection
var DefaultShortenerHosts = []string{
	"bit.ly", "t.co", "lnkd.in", "lnk.bio", "tinyurl.com", "goo.gl",
	"rebrand.ly", "bl.ink", "buff.ly", "shorturl.at", "s.id",
}

var (
	urlPattern        = regexp.MustCompile(`(?i)https?://[^\s)>"]+`)
	hostPattern       = regexp.MustCompile(`(?i)https?://([^/\s]+)`)
	authorityPattern  = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.-]*):(?://([^/?#]*))?`)
	ipLiteralPattern  = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)
	deceptivePattern  = regexp.MustCompile(`(?i)(microsoft|google|amazon|okta|docusign)[^/]{0,20}(support|secure|verify|login|authorize)`)
	oddSchemes        = map[string]bool{"data": true, "file": true, "javascript": true}
	standardPorts     = map[string]bool{"80": true, "443": true}
	punycodeACEPrefix = "xn--"
)

// ExtractURLs finds every http(s) URL in text, duplicates included, in discovery order
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// ExtractDomains returns the lower-cased authority of every http(s) URL in text
func ExtractDomains(text string) []string {
	matches := hostPattern.FindAllStringSubmatch(text, -1)
	domains := make([]string, 0, len(matches))
	for _, m := range matches {
		domains = append(domains, strings.ToLower(m[1]))
	}
	return domains
}

// SplitHost returns the lower-cased host of a URL, or "" if it has none.
// Only the authority is read, so a bad escape in the path does not hide the host.
func SplitHost(raw string) string {
	_, host, _ := splitURL(raw)
	return host
}

// splitURL leniently splits a URL into its scheme, lower-cased host and port.
// Userinfo is dropped and the port is returned verbatim, numeric or not. An
// unterminated IPv6 literal yields an empty host.
func splitURL(raw string) (scheme, host, port string) {
	m := authorityPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", "", ""
	}
	scheme = strings.ToLower(m[1])
	authority := m[2]
	if i := strings.LastIndex(authority, "@"); i >= 0 {
		authority = authority[i+1:]
	}

	if strings.HasPrefix(authority, "[") {
		end := strings.Index(authority, "]")
		if end < 0 {
			return scheme, "", ""
		}
		host = authority[1:end]
		port = strings.TrimPrefix(authority[end+1:], ":")
		return scheme, strings.ToLower(host), port
	}

	host = authority
	if i := strings.Index(authority, ":"); i >= 0 {
		host, port = authority[:i], authority[i+1:]
	}
	return scheme, strings.ToLower(host), port
}

// HasPunycode reports whether the host carries an IDNA ACE label
func HasPunycode(host string) bool {
	return strings.Contains(host, punycodeACEPrefix)
}

// topLevel returns the last label of the host's public suffix, or "" when the
// suffix is not one the public suffix list knows about.
func topLevel(host string) string {
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return ""
	}
	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann && !strings.Contains(suffix, ".") {
		return ""
	}
	if i := strings.LastIndex(suffix, "."); i >= 0 {
		return suffix[i+1:]
	}
	return suffix
}

// URLHeuristics computes the per-URL signals. A URL without a readable host
// yields all-false host signals.
func (e *Extractor) URLHeuristics(raw string) core.URLSignal {
	sig := core.URLSignal{URL: raw}

	scheme, host, port := splitURL(raw)
	sig.OddScheme = oddSchemes[scheme]
	if host == "" {
		return sig
	}

	sig.Host = host
	sig.Punycode = HasPunycode(host)
	sig.SuspiciousTLD = e.suspiciousTLDs[topLevel(host)]
	sig.IPLiteral = ipLiteralPattern.MatchString(host)
	sig.LongSubdomain = strings.Count(host, ".") >= 3
	sig.DeceptiveKeywords = deceptivePattern.MatchString(host)
	sig.Shortener = e.shortenerHosts[host]
	sig.NonStandardPort = port != "" && !standardPorts[port]

	return sig
}

// IsShortener reports whether host is a known URL shortener
func (e *Extractor) IsShortener(host string) bool {
	return e.shortenerHosts[strings.ToLower(host)]
}
