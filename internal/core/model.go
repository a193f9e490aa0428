package core

import (
	"time"
)

// RawMessage is one message's metadata as captured by an acquisition source.
// Header keys are case-sensitive as received.
type RawMessage struct {
	ID          string
	Headers     map[string]string
	Body        string
	Snippet     string
	Attachments []string
}

// Header returns the value of the named header, or "" when absent
func (m RawMessage) Header(name string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[name]
}

// Summary returns the fields used when reporting the message
func (m RawMessage) Summary() MessageSummary {
	return MessageSummary{
		Date:    m.Header("Date"),
		From:    m.Header("From"),
		Subject: m.Header("Subject"),
	}
}

// MessageSummary holds the human-facing header fields of a message
type MessageSummary struct {
	Date    string `json:"date"`
	From    string `json:"from"`
	Subject string `json:"subject"`
}

// AddressInfo is a mailbox parsed out of a single header.
// Domain is always lower-case or empty.
type AddressInfo struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Domain string `json:"domain"`
}

// Addresses groups the mailboxes extracted per message
type Addresses struct {
	From       AddressInfo `json:"from"`
	ReplyTo    AddressInfo `json:"reply_to"`
	ReturnPath AddressInfo `json:"return_path"`
	Sender     AddressInfo `json:"sender"`
	MessageID  string      `json:"message_id"`
}

// AuthOutcome is a categorical SPF/DKIM/DMARC result
type AuthOutcome string

const (
	AuthPass     AuthOutcome = "pass"
	AuthFail     AuthOutcome = "fail"
	AuthSoftFail AuthOutcome = "softfail"
	AuthNeutral  AuthOutcome = "neutral"
	AuthNone     AuthOutcome = "none"
	AuthPolicy   AuthOutcome = "policy"
	// AuthReject is never produced by the header scan but is honoured by the combo rule
	AuthReject AuthOutcome = "reject"
)

// AuthResult holds the sender-authentication outcomes of a message
type AuthResult struct {
	SPF   AuthOutcome `json:"spf"`
	DKIM  AuthOutcome `json:"dkim"`
	DMARC AuthOutcome `json:"dmarc"`
}

// DefaultAuthResult returns the result used when the header is absent or unparsable
func DefaultAuthResult() AuthResult {
	return AuthResult{SPF: AuthNone, DKIM: AuthNone, DMARC: AuthNone}
}

// URLRef is one discovered URL occurrence
type URLRef struct {
	Raw string `json:"raw"`
}

// URLSignal holds the per-URL heuristics
type URLSignal struct {
	URL               string `json:"url"`
	Host              string `json:"host"`
	Punycode          bool   `json:"punycode"`
	SuspiciousTLD     bool   `json:"suspicious_tld"`
	IPLiteral         bool   `json:"ip_literal"`
	LongSubdomain     bool   `json:"long_subdomain"`
	DeceptiveKeywords bool   `json:"deceptive_keywords"`
	Shortener         bool   `json:"shortener"`
	OddScheme         bool   `json:"odd_protocol"`
	NonStandardPort   bool   `json:"non_std_port"`
}

// SenderSignals are the sender identity anomalies of a message
type SenderSignals struct {
	FromReplyMismatch        bool `json:"from_reply_mismatch"`
	ReturnPathMismatch       bool `json:"returnpath_mismatch"`
	MessageIDMismatch        bool `json:"messageid_mismatch"`
	DisplayNameImpersonation bool `json:"display_name_impersonation"`
}

// AttachmentSignals lists attachment extensions found in the dangerous set
type AttachmentSignals struct {
	DangerousExt []string `json:"dangerous_ext"`
}

// Flags are subject-line signals
type Flags struct {
	UrgencyBait  bool `json:"urgency_bait"`
	UnicodeAbuse bool `json:"unicode_abuse"`
}

// Indicators are reporting-only observables
type Indicators struct {
	Domains []string `json:"domains"`
}

// FeatureBundle is the complete, immutable feature set of one message.
// Extra is an open extension point for signals contributed outside the extractor.
type FeatureBundle struct {
	Auth          AuthResult        `json:"auth"`
	Addresses     Addresses         `json:"addresses"`
	URLs          []URLRef          `json:"urls"`
	URLSignals    []URLSignal       `json:"url_signals"`
	SenderSignals SenderSignals     `json:"sender_signals"`
	Attachments   AttachmentSignals `json:"attachments"`
	Flags         Flags             `json:"flags"`
	Indicators    Indicators        `json:"indicators"`
	Extra         map[string]any    `json:"extra,omitempty"`
}

// RawURLs returns the discovered URLs in discovery order
func (b *FeatureBundle) RawURLs() []string {
	urls := make([]string, 0, len(b.URLs))
	for _, u := range b.URLs {
		urls = append(urls, u.Raw)
	}
	return urls
}

// Severity is the verdict tier
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityReview Severity = "Review"
	SeverityPass   Severity = "Pass"
)

// Rank orders severities so that a higher tier compares greater
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityReview:
		return 1
	default:
		return 0
	}
}

// Verdict is the result of scoring one feature bundle
type Verdict struct {
	Score    int      `json:"score"`
	Severity Severity `json:"severity"`
	RuleHits []string `json:"rule_hits"`
	Reasons  []string `json:"reasons"`
}

// TriageResult ties a verdict to the message and features it was produced from
type TriageResult struct {
	MessageID  string
	Summary    MessageSummary
	Verdict    Verdict
	Features   *FeatureBundle
	AnalyzedAt time.Time
}

// ResultRecord is the persisted form of a triage result
type ResultRecord struct {
	MessageID  string    `json:"id"`
	Date       string    `json:"date"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Score      int       `json:"score"`
	Severity   Severity  `json:"severity"`
	RuleHits   []string  `json:"rule_hits"`
	Domains    []string  `json:"domains"`
	URLs       []string  `json:"urls"`
	AnalyzedAt time.Time `json:"analyzed_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// NewResultRecord flattens a triage result for storage
func NewResultRecord(result *TriageResult, ttl time.Duration) *ResultRecord {
	rec := &ResultRecord{
		MessageID:  result.MessageID,
		Date:       result.Summary.Date,
		From:       result.Summary.From,
		Subject:    result.Summary.Subject,
		Score:      result.Verdict.Score,
		Severity:   result.Verdict.Severity,
		RuleHits:   append([]string(nil), result.Verdict.RuleHits...),
		AnalyzedAt: result.AnalyzedAt,
		ExpiresAt:  result.AnalyzedAt.Add(ttl),
	}
	if result.Features != nil {
		rec.Domains = append([]string(nil), result.Features.Indicators.Domains...)
		rec.URLs = result.Features.RawURLs()
	}
	return rec
}
