package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/ports"
)

// ScanSummary counts the verdicts of a scan by severity
type ScanSummary struct {
	Total  int
	High   int
	Review int
	Pass   int
	Failed int
}

// RunScan triages every message of a source through a filter and records
// the results with the reporter, which may be nil. A message that fails to
// triage is logged and counted; the scan goes on.
func RunScan(
	ctx context.Context,
	src ports.MessageSource,
	emailFilter ports.EmailFilter,
	reporter ports.Reporter,
	logger *zap.Logger,
) (ScanSummary, error) {
	var summary ScanSummary

	msgs, err := src.Messages(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to read messages: %w", err)
	}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Total++

		result, err := emailFilter.ProcessEmail(ctx, msg)
		if err != nil {
			logger.Error("Failed to triage message", zap.String("message_id", msg.ID), zap.Error(err))
			summary.Failed++
			continue
		}

		switch result.Verdict.Severity {
		case core.SeverityHigh:
			summary.High++
		case core.SeverityReview:
			summary.Review++
		default:
			summary.Pass++
		}

		if reporter != nil {
			if err := reporter.Record(result); err != nil {
				return summary, err
			}
		}
	}

	if reporter != nil {
		if err := reporter.Finalize(); err != nil {
			return summary, err
		}
	}

	logger.Info("Scan complete",
		zap.Int("total", summary.Total),
		zap.Int("high", summary.High),
		zap.Int("review", summary.Review),
		zap.Int("pass", summary.Pass),
		zap.Int("failed", summary.Failed))

	return summary, nil
}
