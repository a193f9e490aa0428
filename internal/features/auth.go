package features

import (
	"regexp"
	"strings"

	"github.com/mikey/phish-triage/internal/core"
)

var authPatterns = map[string]*regexp.Regexp{
	"spf":   regexp.MustCompile(`spf=(pass|fail|softfail|neutral|none|policy)`),
	"dkim":  regexp.MustCompile(`dkim=(pass|fail|softfail|neutral|none|policy)`),
	"dmarc": regexp.MustCompile(`dmarc=(pass|fail|softfail|neutral|none|policy)`),
}

// ParseAuthenticationResults scans an Authentication-Results value for the
// first spf=, dkim= and dmarc= results.
//
// This is a substring scan, not an RFC 8601 parser: when several authserv-ids
// report in one header the first match wins for each mechanism.
func ParseAuthenticationResults(value string) core.AuthResult {
	if value == "" {
		return core.DefaultAuthResult()
	}
	v := strings.ToLower(value)

	return core.AuthResult{
		SPF:   pickAuth(v, "spf"),
		DKIM:  pickAuth(v, "dkim"),
		DMARC: pickAuth(v, "dmarc"),
	}
}

func pickAuth(v, token string) core.AuthOutcome {
	m := authPatterns[token].FindStringSubmatch(v)
	if m == nil {
		return core.AuthNone
	}
	return core.AuthOutcome(m[1])
}
