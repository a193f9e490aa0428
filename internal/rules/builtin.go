package rules

import (
	"fmt"
	"strings"

	"github.com/mikey/phish-triage/internal/allowlist"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/features"
)

// brandTokens are the brands the display-name rule looks for
var brandTokens = []string{"microsoft", "google", "amazon"}

// shortenerHosts mirrors the extractor's default list so bundles built
// elsewhere are still checked against known shorteners.
var shortenerHosts = func() map[string]bool {
	set := make(map[string]bool, len(features.DefaultShortenerHosts))
	for _, h := range features.DefaultShortenerHosts {
		set[h] = true
	}
	return set
}()

var dangerousExtensions = func() map[string]bool {
	set := make(map[string]bool, len(features.DangerousExtensions))
	for _, ext := range features.DangerousExtensions {
		set[ext] = true
	}
	return set
}()

// Input is what a rule predicate sees
type Input struct {
	Bundle    *core.FeatureBundle
	Allowlist *allowlist.Matcher
}

// Predicate reports whether a rule fires and, if so, the reason to record
type Predicate func(in *Input) (reason string, hit bool)

// Rule is a registered, independently evaluated rule
type Rule struct {
	ID        string
	Predicate Predicate
}

// BuiltinRules returns the built-in rules in evaluation order.
// The combo rule is not part of the registry: it is always evaluated last.
func BuiltinRules() []Rule {
	return []Rule{
		{ID: SPFFail, Predicate: spfFail},
		{ID: DKIMFailOrNoDMARC, Predicate: dkimFailOrNoDMARC},
		{ID: FromReplyToMismatch, Predicate: fromReplyToMismatch},
		{ID: LinkMismatch, Predicate: linkMismatch},
		{ID: IDNOrSuspiciousTLD, Predicate: idnOrSuspiciousTLD},
		{ID: DisplayNameImpersonation, Predicate: displayNameImpersonation},
		{ID: DangerousAttachment, Predicate: dangerousAttachment},
		{ID: UrgencyBait, Predicate: urgencyBait},
		{ID: ReturnPathMismatch, Predicate: returnPathMismatch},
		{ID: MessageIDDomainMismatch, Predicate: messageIDDomainMismatch},
		{ID: ShortenerOrRedirect, Predicate: shortenerOrRedirect},
		{ID: OAuthConsentPhish, Predicate: oauthConsentPhish},
		{ID: PortProtocolOddity, Predicate: portProtocolOddity},
		{ID: UnicodeRLOOrZW, Predicate: unicodeRLOOrZW},
	}
}

func spfFail(in *Input) (string, bool) {
	return "SPF authentication failed.", in.Bundle.Auth.SPF == core.AuthFail
}

func dkimFailOrNoDMARC(in *Input) (string, bool) {
	auth := in.Bundle.Auth
	dkimWeak := auth.DKIM == core.AuthFail || auth.DKIM == core.AuthNone
	dmarcWeak := auth.DMARC == core.AuthNone || auth.DMARC == core.AuthNeutral
	return "DKIM failed or missing and DMARC not enforced.", dkimWeak && dmarcWeak
}

func fromReplyToMismatch(in *Input) (string, bool) {
	fd := in.Bundle.Addresses.From.Domain
	rd := in.Bundle.Addresses.ReplyTo.Domain
	if fd == "" || rd == "" || fd == rd || in.Allowlist.Contains(rd) {
		return "", false
	}
	return fmt.Sprintf("From domain (%s) differs from Reply-To (%s).", fd, rd), true
}

func linkMismatch(in *Input) (string, bool) {
	for _, s := range in.Bundle.URLSignals {
		if s.DeceptiveKeywords {
			return "Link host contains brand + action keywords (potential deception).", true
		}
	}
	return "", false
}

func idnOrSuspiciousTLD(in *Input) (string, bool) {
	for _, s := range in.Bundle.URLSignals {
		if s.Punycode || s.SuspiciousTLD {
			return "Internationalized domain or suspicious TLD detected.", true
		}
	}
	return "", false
}

func displayNameImpersonation(in *Input) (string, bool) {
	from := in.Bundle.Addresses.From
	if !in.Bundle.SenderSignals.DisplayNameImpersonation || from.Name == "" || from.Domain == "" {
		return "", false
	}
	name := strings.ToLower(from.Name)
	domain := strings.ToLower(from.Domain)

	claimsBrand := false
	for _, b := range brandTokens {
		if strings.Contains(domain, b) {
			return "", false
		}
		if strings.Contains(name, b) {
			claimsBrand = true
		}
	}
	return "Display name references a brand but domain is unrelated.", claimsBrand
}

// dangerousAttachment records at most one hit however many attachments match
func dangerousAttachment(in *Input) (string, bool) {
	for _, ext := range in.Bundle.Attachments.DangerousExt {
		if dangerousExtensions[strings.ToLower(ext)] {
			return "Dangerous attachment type: " + ext, true
		}
	}
	return "", false
}

func urgencyBait(in *Input) (string, bool) {
	return "Subject contains urgency or security-reset phrasing.", in.Bundle.Flags.UrgencyBait
}

func returnPathMismatch(in *Input) (string, bool) {
	rp := in.Bundle.Addresses.ReturnPath.Domain
	fd := in.Bundle.Addresses.From.Domain
	return "Return-Path domain differs from From domain.", rp != "" && fd != "" && rp != fd
}

func messageIDDomainMismatch(in *Input) (string, bool) {
	return "Message-ID domain does not match From domain.", in.Bundle.SenderSignals.MessageIDMismatch
}

func shortenerOrRedirect(in *Input) (string, bool) {
	for i, u := range in.Bundle.URLs {
		viaSignal := i < len(in.Bundle.URLSignals) && in.Bundle.URLSignals[i].Shortener
		if viaSignal || shortenerHosts[features.SplitHost(u.Raw)] {
			return "Link uses a URL shortener/redirect service.", true
		}
	}
	return "", false
}

func oauthConsentPhish(in *Input) (string, bool) {
	for _, u := range in.Bundle.URLs {
		if strings.Contains(strings.ToLower(u.Raw), "oauth2/authorize") {
			return "OAuth consent/authorize link present (possible app-grant phish).", true
		}
	}
	return "", false
}

func portProtocolOddity(in *Input) (string, bool) {
	for _, s := range in.Bundle.URLSignals {
		if s.OddScheme || s.IPLiteral || s.NonStandardPort {
			return "Odd protocol/IP-literal or non-standard port in link.", true
		}
	}
	return "", false
}

func unicodeRLOOrZW(in *Input) (string, bool) {
	return "Subject contains RLO/zero-width obfuscation characters.", in.Bundle.Flags.UnicodeAbuse
}
