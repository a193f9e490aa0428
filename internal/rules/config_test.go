package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func parseYAML(t *testing.T, doc string) (*RuleConfig, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return ParseConfig(v)
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseYAML(t, `
weights:
  SPF_FAIL: 20
  urgency_bait: 10
thresholds:
  high: 60
  review: 30
allowlists:
  domains: [partner.example]
  case_sensitive: true
custom_rules:
  - id: many_links
    expression: "size(urls) > 3"
    reason: "Message carries many links."
`)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Weight(SPFFail))
	assert.Equal(t, 10, cfg.Weight(UrgencyBait))
	assert.Equal(t, 0, cfg.Weight(LinkMismatch))
	assert.Equal(t, Thresholds{High: 60, Review: 30}, cfg.Thresholds)
	assert.Equal(t, []string{"partner.example"}, cfg.Allowlists.Domains)
	assert.True(t, cfg.Allowlists.CaseSensitive)
	require.Len(t, cfg.CustomRules, 1)
	assert.Equal(t, "MANY_LINKS", cfg.CustomRules[0].ID)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "missing weights",
			doc:  "thresholds:\n  high: 60\n  review: 30\n",
			want: ErrMissingWeights,
		},
		{
			name: "missing review threshold",
			doc:  "weights:\n  SPF_FAIL: 20\nthresholds:\n  high: 60\n",
			want: ErrMissingThresholds,
		},
		{
			name: "missing thresholds",
			doc:  "weights:\n  SPF_FAIL: 20\n",
			want: ErrMissingThresholds,
		},
		{
			name: "high below review",
			doc:  "weights:\n  SPF_FAIL: 20\nthresholds:\n  high: 10\n  review: 30\n",
			want: ErrInvalidThresholds,
		},
		{
			name: "custom rule without expression",
			doc:  "weights:\n  SPF_FAIL: 20\nthresholds:\n  high: 60\n  review: 30\ncustom_rules:\n  - id: X\n",
			want: ErrInvalidCustomRule,
		},
		{
			name: "custom rule shadows built-in",
			doc:  "weights:\n  SPF_FAIL: 20\nthresholds:\n  high: 60\n  review: 30\ncustom_rules:\n  - id: spf_fail\n    expression: \"true\"\n",
			want: ErrInvalidCustomRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseYAML(t, tt.doc)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_DefaultDocument(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "rules.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Thresholds{High: 60, Review: 30}, cfg.Thresholds)
	assert.Equal(t, 20, cfg.Weight(SPFFail))
	assert.Equal(t, 30, cfg.Weight(DangerousAttachment))
	assert.Equal(t, 0, cfg.Weight(NewDomainLocal))
	assert.False(t, cfg.Allowlists.CaseSensitive)

	_, err = NewEngine(cfg, zap.NewNop())
	assert.NoError(t, err)
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	doc := `{"weights": {"URGENCY_BAIT": 40}, "thresholds": {"high": 40, "review": 20}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	engine, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	v := engine.Score(&core.FeatureBundle{Flags: core.Flags{UrgencyBait: true}})
	assert.Equal(t, 40, v.Score)
	assert.Equal(t, core.SeverityHigh, v.Severity)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestCustomRules(t *testing.T) {
	cfg := &RuleConfig{
		Weights:    map[string]int{UrgencyBait: 10, "MANY_LINKS": 7, "EXTRA_FLAG": 3},
		Thresholds: Thresholds{High: 60, Review: 30},
		CustomRules: []CustomRule{
			{ID: "MANY_LINKS", Expression: "size(urls) > 1", Description: "More than one link."},
			{ID: "EXTRA_FLAG", Expression: `has(extra.tagged) && extra.tagged == true`},
		},
	}
	engine, err := NewEngine(cfg, zap.NewNop())
	require.NoError(t, err)

	v := engine.Score(&core.FeatureBundle{
		URLs:  []core.URLRef{{Raw: "https://a.example/"}, {Raw: "https://b.example/"}},
		Flags: core.Flags{UrgencyBait: true},
		Extra: map[string]any{"tagged": true},
	})
	assert.Equal(t, []string{UrgencyBait, "MANY_LINKS", "EXTRA_FLAG"}, v.RuleHits)
	assert.Equal(t, "Custom rule EXTRA_FLAG matched.", v.Reasons[2])
	assert.Equal(t, 20, v.Score)

	assert.Equal(t, "More than one link.", engine.Describe("MANY_LINKS"))
	assert.Equal(t, NoDescription, engine.Describe("EXTRA_FLAG"))

	// Missing extra key evaluates without error and does not fire
	v = engine.Score(&core.FeatureBundle{})
	assert.Empty(t, v.RuleHits)
}

func TestCustomRules_CompileErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"syntax", "size(urls) >"},
		{"unknown variable", "nope == 1"},
		{"non-bool", "size(urls)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(&RuleConfig{
				Weights:     map[string]int{},
				Thresholds:  Thresholds{High: 60, Review: 30},
				CustomRules: []CustomRule{{ID: "BROKEN", Expression: tt.expr}},
			}, nil)
			assert.ErrorIs(t, err, ErrInvalidCustomRule)
		})
	}
}
