package rules

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingWeights is returned when the rule document has no weights section
	ErrMissingWeights = errors.New("rule config: weights are required")
	// ErrMissingThresholds is returned when thresholds.high or thresholds.review is absent
	ErrMissingThresholds = errors.New("rule config: thresholds.high and thresholds.review are required")
	// ErrInvalidThresholds is returned when thresholds.high is below thresholds.review
	ErrInvalidThresholds = errors.New("rule config: thresholds.high must be >= thresholds.review")
	// ErrInvalidCustomRule is returned for a custom rule without id or expression, or that fails to compile
	ErrInvalidCustomRule = errors.New("rule config: invalid custom rule")
)

// Thresholds are the two severity cut points
type Thresholds struct {
	High   int `mapstructure:"high"`
	Review int `mapstructure:"review"`
}

// Allowlists holds the reply-to domain allowlist
type Allowlists struct {
	Domains []string `mapstructure:"domains"`
	// CaseSensitive compares entries verbatim against the lower-cased domain
	CaseSensitive bool `mapstructure:"case_sensitive"`
}

// CustomRule is an operator-defined rule expressed in CEL
type CustomRule struct {
	ID          string `mapstructure:"id"`
	Expression  string `mapstructure:"expression"`
	Reason      string `mapstructure:"reason"`
	Description string `mapstructure:"description"`
}

// RuleConfig is the external rule configuration document
type RuleConfig struct {
	Weights     map[string]int
	Thresholds  Thresholds
	Allowlists  Allowlists
	CustomRules []CustomRule
}

// Weight returns the configured weight of a rule, 0 when unconfigured
func (c *RuleConfig) Weight(id string) int {
	return c.Weights[id]
}

// clone returns a deep copy of the configuration
func (c *RuleConfig) clone() *RuleConfig {
	out := *c
	out.Weights = maps.Clone(c.Weights)
	out.Allowlists.Domains = slices.Clone(c.Allowlists.Domains)
	out.CustomRules = slices.Clone(c.CustomRules)
	return &out
}

// Validate checks the invariants the engine relies on
func (c *RuleConfig) Validate() error {
	if c.Weights == nil {
		return ErrMissingWeights
	}
	if c.Thresholds.High < c.Thresholds.Review {
		return fmt.Errorf("%w (high=%d, review=%d)", ErrInvalidThresholds, c.Thresholds.High, c.Thresholds.Review)
	}
	seen := make(map[string]bool, len(c.CustomRules))
	for i, r := range c.CustomRules {
		if r.ID == "" || r.Expression == "" {
			return fmt.Errorf("%w: entry %d needs an id and an expression", ErrInvalidCustomRule, i)
		}
		if _, builtin := catalog[r.ID]; builtin || seen[r.ID] {
			return fmt.Errorf("%w: duplicate rule id %s", ErrInvalidCustomRule, r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

// LoadConfig reads and validates a rule configuration file
func LoadConfig(path string) (*RuleConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read rule config %s: %w", path, err)
	}
	return ParseConfig(v)
}

// ParseConfig builds a RuleConfig from a loaded viper instance
func ParseConfig(v *viper.Viper) (*RuleConfig, error) {
	if !v.IsSet("weights") {
		return nil, ErrMissingWeights
	}
	if !v.IsSet("thresholds.high") || !v.IsSet("thresholds.review") {
		return nil, ErrMissingThresholds
	}

	var raw map[string]int
	if err := v.UnmarshalKey("weights", &raw); err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}
	// Viper folds keys to lower case; rule ids are upper case
	weights := make(map[string]int, len(raw))
	for id, w := range raw {
		weights[strings.ToUpper(id)] = w
	}

	cfg := &RuleConfig{Weights: weights}
	if err := v.UnmarshalKey("thresholds", &cfg.Thresholds); err != nil {
		return nil, fmt.Errorf("failed to decode thresholds: %w", err)
	}
	if err := v.UnmarshalKey("allowlists", &cfg.Allowlists); err != nil {
		return nil, fmt.Errorf("failed to decode allowlists: %w", err)
	}
	if err := v.UnmarshalKey("custom_rules", &cfg.CustomRules); err != nil {
		return nil, fmt.Errorf("failed to decode custom rules: %w", err)
	}
	for i := range cfg.CustomRules {
		cfg.CustomRules[i].ID = strings.ToUpper(strings.TrimSpace(cfg.CustomRules[i].ID))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
