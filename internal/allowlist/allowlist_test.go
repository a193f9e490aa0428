package allowlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMatcher_CaseInsensitiveByDefault(t *testing.T) {
	m := NewMatcher([]string{" Partner.Example ", "mail.vendor.test", ""}, false, zap.NewNop())

	assert.Equal(t, 2, m.Len())
	assert.True(t, m.Contains("partner.example"))
	assert.True(t, m.Contains("PARTNER.example"))
	assert.True(t, m.Contains("mail.vendor.test"))
	assert.False(t, m.Contains("vendor.test"))
	assert.False(t, m.Contains(""))
}

func TestMatcher_CaseSensitive(t *testing.T) {
	m := NewMatcher([]string{"Partner.Example", "vendor.test"}, true, nil)

	// Extracted domains are lower-case, so a mixed-case entry is unreachable
	assert.False(t, m.Contains("partner.example"))
	assert.True(t, m.Contains("Partner.Example"))
	assert.True(t, m.Contains("vendor.test"))
}

func TestMatcher_ContainsAddress(t *testing.T) {
	m := NewMatcher([]string{"example.org"}, false, nil)

	assert.True(t, m.ContainsAddress("alice@Example.org"))
	assert.False(t, m.ContainsAddress("alice@example.com"))
	assert.False(t, m.ContainsAddress("not-an-address"))
}

func TestMatcher_Empty(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Contains("example.org"))
	assert.Equal(t, 0, m.Len())

	assert.False(t, NewMatcher(nil, false, nil).Contains("example.org"))
}
