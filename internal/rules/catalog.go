package rules

// Rule identifiers
const (
	SPFFail                  = "SPF_FAIL"
	DKIMFailOrNoDMARC        = "DKIM_FAIL_OR_NODMARC"
	FromReplyToMismatch      = "FROM_REPLYTO_MISMATCH"
	LinkMismatch             = "LINK_MISMATCH"
	IDNOrSuspiciousTLD       = "IDN_OR_SUSPICIOUS_TLD"
	DisplayNameImpersonation = "DISPLAY_NAME_IMPERSONATION"
	DangerousAttachment      = "DANGEROUS_ATTACHMENT"
	UrgencyBait              = "URGENCY_BAIT"
	NewDomainLocal           = "NEW_DOMAIN_LOCAL"
	ReturnPathMismatch       = "RETURN_PATH_MISMATCH"
	MessageIDDomainMismatch  = "MESSAGEID_DOMAIN_MISMATCH"
	ShortenerOrRedirect      = "SHORTENER_OR_REDIRECT"
	OAuthConsentPhish        = "OAUTH_CONSENT_PHISH"
	PortProtocolOddity       = "PORT_PROTOCOL_ODDITY"
	UnicodeRLOOrZW           = "UNICODE_RLO_OR_ZW"
	ComboSenderMismatchAuth  = "COMBO_SENDER_MISMATCH_AUTH"
)

// NoDescription is returned by Describe for unknown rule ids
const NoDescription = "No description available"

var catalog = map[string]string{
	SPFFail:                  "SPF result is 'fail'.",
	DKIMFailOrNoDMARC:        "DKIM failed or missing AND DMARC is not enforced.",
	FromReplyToMismatch:      "From domain differs from Reply-To domain (not on allowlist).",
	LinkMismatch:             "Deceptive link: brand+action keywords in host or anchor/host mismatch.",
	IDNOrSuspiciousTLD:       "Punycode/IDN or TLD frequently abused by phishers.",
	DisplayNameImpersonation: "Display name claims a brand while domain is unrelated.",
	DangerousAttachment:      "Attachment types commonly used for credential theft/malware.",
	UrgencyBait:              "Subject contains urgency/verification/reset bait.",
	NewDomainLocal:           "Domain not seen locally in the last 90d (reserved, never evaluated).",
	ReturnPathMismatch:       "Return-Path domain does not match From domain.",
	MessageIDDomainMismatch:  "Message-ID domain does not match From domain.",
	ShortenerOrRedirect:      "Link uses a URL shortener or redirect service.",
	OAuthConsentPhish:        "Link points at an OAuth consent/authorize endpoint (app-grant phishing).",
	PortProtocolOddity:       "Link uses an odd protocol, an IP-literal host or a non-standard port.",
	UnicodeRLOOrZW:           "Subject contains right-to-left override or zero-width characters.",
	ComboSenderMismatchAuth:  "Sender identity mismatch combined with an authentication failure (fixed +10).",
}

// Describe returns the catalog description of a built-in rule
func Describe(id string) string {
	if d, ok := catalog[id]; ok {
		return d
	}
	return NoDescription
}
