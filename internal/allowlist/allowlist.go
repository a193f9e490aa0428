package allowlist

import (
	"strings"

	"go.uber.org/zap"
)

// Matcher checks domains against a configured allowlist
type Matcher struct {
	domains       map[string]struct{}
	caseSensitive bool
}

// NewMatcher creates a new allowlist matcher.
//
// By default entries are trimmed and lower-cased so they match the lower-cased
// domains produced by feature extraction. With caseSensitive set, entries are
// kept verbatim: an entry containing an upper-case letter then never matches.
func NewMatcher(domains []string, caseSensitive bool, logger *zap.Logger) *Matcher {
	normalized := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		if !caseSensitive {
			domain = strings.ToLower(strings.TrimSpace(domain))
		}
		if domain == "" {
			continue
		}
		normalized[domain] = struct{}{}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized domain allowlist",
			zap.Int("domains", len(normalized)),
			zap.Bool("case_sensitive", caseSensitive))
	}

	return &Matcher{
		domains:       normalized,
		caseSensitive: caseSensitive,
	}
}

// Contains reports whether domain is allowlisted
func (m *Matcher) Contains(domain string) bool {
	if m == nil || len(m.domains) == 0 || domain == "" {
		return false
	}
	if !m.caseSensitive {
		domain = strings.ToLower(domain)
	}
	_, ok := m.domains[domain]
	return ok
}

// ContainsAddress reports whether the domain of an email address is allowlisted
func (m *Matcher) ContainsAddress(addr string) bool {
	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return false
	}
	return m.Contains(strings.ToLower(parts[1]))
}

// Len returns the number of distinct entries
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.domains)
}
