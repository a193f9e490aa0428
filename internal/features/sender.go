package features

import (
	"regexp"
	"strings"

	"github.com/mikey/phish-triage/internal/core"
	"golang.org/x/text/cases"
)

var (
	urgencyPattern = regexp.MustCompile(`(?i)\b(urgent|verify immediately|password|suspend|expired|reset|action required)\b`)
	// RLO and zero-width space/non-joiner/joiner
	unicodeAbusePattern = regexp.MustCompile(`[\x{202E}\x{200B}\x{200C}\x{200D}]`)
)

// MessageIDDomain returns the domain part of a Message-ID header value
func MessageIDDomain(msgID string) string {
	i := strings.LastIndex(msgID, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(strings.TrimRight(msgID[i+1:], "> \t")))
}

// SenderAnomaly compares the sender identities of a message
func SenderAnomaly(addrs core.Addresses) core.SenderSignals {
	fromDomain := addrs.From.Domain
	replyDomain := addrs.ReplyTo.Domain
	returnPathDomain := addrs.ReturnPath.Domain
	msgIDDomain := MessageIDDomain(addrs.MessageID)

	return core.SenderSignals{
		FromReplyMismatch:  fromDomain != "" && replyDomain != "" && fromDomain != replyDomain,
		ReturnPathMismatch: fromDomain != "" && returnPathDomain != "" && fromDomain != returnPathDomain,
		// Containment, so a Message-ID minted by mail.example.com matches example.com
		MessageIDMismatch:        fromDomain != "" && msgIDDomain != "" && !strings.Contains(msgIDDomain, fromDomain),
		DisplayNameImpersonation: DisplayNameMismatch(addrs.From.Name, fromDomain),
	}
}

// DisplayNameMismatch reports whether a non-empty display name is not
// contained in a non-empty domain, compared with Unicode case folding.
func DisplayNameMismatch(name, domain string) bool {
	if name == "" || domain == "" {
		return false
	}
	return !strings.Contains(cases.Fold().String(domain), cases.Fold().String(name))
}

// SubjectFlags computes the urgency and unicode-obfuscation flags of a subject
func SubjectFlags(subject string) core.Flags {
	return core.Flags{
		UrgencyBait:  urgencyPattern.MatchString(subject),
		UnicodeAbuse: unicodeAbusePattern.MatchString(subject),
	}
}
