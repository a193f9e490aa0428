package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/mikey/phish-triage/internal/core"
)

// newCELEnv declares the variables a custom rule expression can reference.
//
//	auth        map: spf, dkim, dmarc
//	addresses   map: from, reply_to, return_path, sender (each name/email/domain), message_id
//	urls        list of raw URLs
//	url_signals list of maps keyed like the JSON form of URLSignal
//	sender      map: from_reply_mismatch, returnpath_mismatch, messageid_mismatch, display_name_impersonation
//	flags       map: urgency_bait, unicode_abuse
//	attachments list of dangerous extensions
//	domains     list of indicator domains
//	extra       map of collaborator-supplied signals
func newCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("auth", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("addresses", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("urls", cel.ListType(cel.StringType)),
		cel.Variable("url_signals", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
		cel.Variable("sender", cel.MapType(cel.StringType, cel.BoolType)),
		cel.Variable("flags", cel.MapType(cel.StringType, cel.BoolType)),
		cel.Variable("attachments", cel.ListType(cel.StringType)),
		cel.Variable("domains", cel.ListType(cel.StringType)),
		cel.Variable("extra", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// compiledRule holds a pre-compiled CEL program
type compiledRule struct {
	config  CustomRule
	program cel.Program
}

func compileCustomRules(env *cel.Env, configs []CustomRule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(configs))
	for _, cfg := range configs {
		ast, issues := env.Compile(cfg.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("%w: failed to compile rule %s: %v", ErrInvalidCustomRule, cfg.ID, issues.Err())
		}
		if !ast.OutputType().IsExactType(types.BoolType) {
			return nil, fmt.Errorf("%w: rule %s must evaluate to bool, got %s", ErrInvalidCustomRule, cfg.ID, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to build program for rule %s: %v", ErrInvalidCustomRule, cfg.ID, err)
		}
		compiled = append(compiled, compiledRule{config: cfg, program: prg})
	}
	return compiled, nil
}

// predicate adapts a compiled CEL program to the rule registry. An
// evaluation error counts as "did not fire" so scoring stays total.
func (r compiledRule) predicate() Predicate {
	reason := r.config.Reason
	if reason == "" {
		reason = "Custom rule " + r.config.ID + " matched."
	}
	return func(in *Input) (string, bool) {
		out, _, err := r.program.Eval(activation(in.Bundle))
		if err != nil {
			return "", false
		}
		hit, ok := out.(types.Bool)
		return reason, ok && bool(hit)
	}
}

func activation(b *core.FeatureBundle) map[string]any {
	signals := make([]any, 0, len(b.URLSignals))
	for _, s := range b.URLSignals {
		signals = append(signals, map[string]any{
			"url":                s.URL,
			"host":               s.Host,
			"punycode":           s.Punycode,
			"suspicious_tld":     s.SuspiciousTLD,
			"ip_literal":         s.IPLiteral,
			"long_subdomain":     s.LongSubdomain,
			"deceptive_keywords": s.DeceptiveKeywords,
			"shortener":          s.Shortener,
			"odd_protocol":       s.OddScheme,
			"non_std_port":       s.NonStandardPort,
		})
	}

	attachments := b.Attachments.DangerousExt
	if attachments == nil {
		attachments = []string{}
	}
	domains := b.Indicators.Domains
	if domains == nil {
		domains = []string{}
	}
	extra := b.Extra
	if extra == nil {
		extra = map[string]any{}
	}

	return map[string]any{
		"auth": map[string]string{
			"spf":   string(b.Auth.SPF),
			"dkim":  string(b.Auth.DKIM),
			"dmarc": string(b.Auth.DMARC),
		},
		"addresses": map[string]any{
			"from":        addressMap(b.Addresses.From),
			"reply_to":    addressMap(b.Addresses.ReplyTo),
			"return_path": addressMap(b.Addresses.ReturnPath),
			"sender":      addressMap(b.Addresses.Sender),
			"message_id":  b.Addresses.MessageID,
		},
		"urls":        b.RawURLs(),
		"url_signals": signals,
		"sender": map[string]bool{
			"from_reply_mismatch":        b.SenderSignals.FromReplyMismatch,
			"returnpath_mismatch":        b.SenderSignals.ReturnPathMismatch,
			"messageid_mismatch":         b.SenderSignals.MessageIDMismatch,
			"display_name_impersonation": b.SenderSignals.DisplayNameImpersonation,
		},
		"flags": map[string]bool{
			"urgency_bait":  b.Flags.UrgencyBait,
			"unicode_abuse": b.Flags.UnicodeAbuse,
		},
		"attachments": attachments,
		"domains":     domains,
		"extra":       extra,
	}
}

func addressMap(a core.AddressInfo) map[string]any {
	return map[string]any{
		"name":   a.Name,
		"email":  a.Email,
		"domain": a.Domain,
	}
}
