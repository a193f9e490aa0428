package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

// Describer renders a rule id for display
type Describer interface {
	Explain(id string) string
}

// CliFilter triages messages and prints their verdicts
type CliFilter struct {
	service    *core.TriageService
	describer  Describer
	logger     *zap.Logger
	out        io.Writer
	verbose    bool
	jsonOutput bool
}

// NewCliFilter creates a new CLI filter writing to stdout
func NewCliFilter(service *core.TriageService, describer Describer, logger *zap.Logger, verbose bool, jsonOutput bool) (*CliFilter, error) {
	return &CliFilter{
		service:    service,
		describer:  describer,
		logger:     logger,
		out:        os.Stdout,
		verbose:    verbose,
		jsonOutput: jsonOutput,
	}, nil
}

// SetOutput redirects verdict output
func (f *CliFilter) SetOutput(w io.Writer) {
	f.out = w
}

// ProcessEmail triages a message and displays the verdict
func (f *CliFilter) ProcessEmail(ctx context.Context, msg *core.RawMessage) (*core.TriageResult, error) {
	f.logger.Debug("Processing message", zap.String("message_id", msg.ID))

	startTime := time.Now()
	result, err := f.service.Triage(ctx, msg)
	if err != nil {
		f.logger.Error("Failed to triage message", zap.Error(err))
		return nil, err
	}
	duration := time.Since(startTime)

	if f.jsonOutput {
		return result, f.printJSON(result)
	}
	f.printText(result, duration)
	return result, nil
}

func (f *CliFilter) printJSON(result *core.TriageResult) error {
	obj := struct {
		ID      string              `json:"id"`
		Summary core.MessageSummary `json:"summary"`
		core.Verdict
	}{
		ID:      result.MessageID,
		Summary: result.Summary,
		Verdict: result.Verdict,
	}
	enc := json.NewEncoder(f.out)
	if err := enc.Encode(obj); err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	return nil
}

func (f *CliFilter) printText(result *core.TriageResult, duration time.Duration) {
	v := result.Verdict

	fmt.Fprintf(f.out, "\n=== %s ===\n", result.MessageID)
	fmt.Fprintf(f.out, "From: %s\n", result.Summary.From)
	fmt.Fprintf(f.out, "Subject: %s\n", result.Summary.Subject)
	fmt.Fprintf(f.out, "Date: %s\n", result.Summary.Date)
	fmt.Fprintf(f.out, "Severity: %s\n", v.Severity)
	fmt.Fprintf(f.out, "Score: %d\n", v.Score)

	if len(v.RuleHits) > 0 {
		fmt.Fprintf(f.out, "Rule hits:\n")
		for i, id := range v.RuleHits {
			fmt.Fprintf(f.out, "  - %s: %s\n", id, v.Reasons[i])
			if f.verbose && f.describer != nil {
				fmt.Fprintf(f.out, "      %s\n", f.describer.Explain(id))
			}
		}
	}

	if f.verbose && result.Features != nil {
		b := result.Features
		fmt.Fprintf(f.out, "Auth: spf=%s dkim=%s dmarc=%s\n", b.Auth.SPF, b.Auth.DKIM, b.Auth.DMARC)
		fmt.Fprintf(f.out, "Domains: %s\n", strings.Join(b.Indicators.Domains, ", "))
		fmt.Fprintf(f.out, "URLs: %s\n", strings.Join(b.RawURLs(), ", "))
		fmt.Fprintf(f.out, "Processing time: %v\n", duration)
	}
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
