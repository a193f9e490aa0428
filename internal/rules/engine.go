// Package rules provides the weighted phishing rule engine.
//
// An Engine is built once from a RuleConfig and is read-only afterwards, so a
// single instance can score bundles from many goroutines. Scoring evaluates
// the built-in rules, then any CEL custom rules, then the combo rule, always
// in that order.
package rules

import (
	"fmt"

	"github.com/mikey/phish-triage/internal/allowlist"
	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

// ComboBonus is added when a sender mismatch coincides with an authentication failure
const ComboBonus = 10

// Engine is the phishing rule engine
type Engine struct {
	config    *RuleConfig
	rules     []Rule
	allowlist *allowlist.Matcher
	custom    map[string]string
}

// NewEngine creates a new rule engine. Configuration problems are fatal and
// reported here, before any message is scored.
func NewEngine(cfg *RuleConfig, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, ErrMissingWeights
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.clone()

	registry := BuiltinRules()
	custom := make(map[string]string, len(cfg.CustomRules))
	if len(cfg.CustomRules) > 0 {
		env, err := newCELEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to create CEL environment: %w", err)
		}
		compiled, err := compileCustomRules(env, cfg.CustomRules)
		if err != nil {
			return nil, err
		}
		for _, c := range compiled {
			registry = append(registry, Rule{ID: c.config.ID, Predicate: c.predicate()})
			custom[c.config.ID] = c.config.Description
		}
	}

	known := make(map[string]bool, len(registry)+1)
	for _, r := range registry {
		known[r.ID] = true
	}
	known[NewDomainLocal] = true
	known[ComboSenderMismatchAuth] = true
	for id := range cfg.Weights {
		if !known[id] {
			logger.Warn("Weight configured for unknown rule", zap.String("rule_id", id))
		}
	}

	logger.Info("Rule engine initialized",
		zap.Int("rules", len(registry)),
		zap.Int("custom_rules", len(custom)),
		zap.Int("threshold_high", cfg.Thresholds.High),
		zap.Int("threshold_review", cfg.Thresholds.Review))

	return &Engine{
		config:    cfg,
		rules:     registry,
		allowlist: allowlist.NewMatcher(cfg.Allowlists.Domains, cfg.Allowlists.CaseSensitive, logger),
		custom:    custom,
	}, nil
}

// Score evaluates every rule against the bundle. It is pure: the same bundle
// always yields the same verdict, and a nil bundle scores as an empty one.
func (e *Engine) Score(b *core.FeatureBundle) core.Verdict {
	if b == nil {
		b = &core.FeatureBundle{}
	}
	in := &Input{Bundle: b, Allowlist: e.allowlist}

	score := 0
	hits := []string{}
	reasons := []string{}
	fired := make(map[string]bool, len(e.rules))

	for _, r := range e.rules {
		reason, hit := r.Predicate(in)
		if !hit {
			continue
		}
		score += e.config.Weight(r.ID)
		hits = append(hits, r.ID)
		reasons = append(reasons, reason)
		fired[r.ID] = true
	}

	if comboFires(fired, b.Auth) {
		score += ComboBonus
		hits = append(hits, ComboSenderMismatchAuth)
		reasons = append(reasons, "Sender mismatch combined with auth failure.")
	}

	return core.Verdict{
		Score:    score,
		Severity: e.Severity(score),
		RuleHits: hits,
		Reasons:  reasons,
	}
}

func comboFires(fired map[string]bool, auth core.AuthResult) bool {
	mismatch := fired[ReturnPathMismatch] || fired[FromReplyToMismatch] || fired[MessageIDDomainMismatch]
	if !mismatch {
		return false
	}
	return auth.SPF == core.AuthFail || auth.SPF == core.AuthSoftFail ||
		auth.DKIM == core.AuthFail ||
		auth.DMARC == core.AuthNone || auth.DMARC == core.AuthReject
}

// Severity maps a score onto the two configured cut points
func (e *Engine) Severity(score int) core.Severity {
	switch {
	case score >= e.config.Thresholds.High:
		return core.SeverityHigh
	case score >= e.config.Thresholds.Review:
		return core.SeverityReview
	default:
		return core.SeverityPass
	}
}

// Describe returns the description of a rule id, including custom rules
func (e *Engine) Describe(id string) string {
	if d, ok := e.custom[id]; ok {
		if d == "" {
			return NoDescription
		}
		return d
	}
	return Describe(id)
}

// Explain renders a rule id with its weight and description
func (e *Engine) Explain(id string) string {
	return fmt.Sprintf("%s (weight %d): %s", id, e.Weight(id), e.Describe(id))
}

// Rules returns the rule ids in evaluation order, combo rule last
func (e *Engine) Rules() []string {
	ids := make([]string, 0, len(e.rules)+1)
	for _, r := range e.rules {
		ids = append(ids, r.ID)
	}
	return append(ids, ComboSenderMismatchAuth)
}

// Weight returns the configured weight of a rule. The combo rule always
// reports its fixed bonus.
func (e *Engine) Weight(id string) int {
	if id == ComboSenderMismatchAuth {
		return ComboBonus
	}
	return e.config.Weight(id)
}

// Thresholds returns the configured cut points
func (e *Engine) Thresholds() Thresholds {
	return e.config.Thresholds
}
