package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mikey/phish-triage/internal/adapters/report"
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/di"
	"github.com/mikey/phish-triage/internal/ports"
	"github.com/mikey/phish-triage/internal/rules"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

func main() {
	flags, err := di.ParseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, container, flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, container *dig.Container, flags *di.CLIFlags) error {
	switch {
	case flags.ListRules:
		return container.Invoke(listRules)
	case flags.Explain != "":
		return container.Invoke(func(engine *rules.Engine) {
			fmt.Println(engine.Explain(flags.Explain))
		})
	case flags.ListResults:
		return container.Invoke(func(results ports.ResultStore, logger *zap.Logger) error {
			return listResults(ctx, results, logger)
		})
	case flags.HTMLReport != "":
		return container.Invoke(func(cfg *config.Config, logger *zap.Logger) error {
			defer logger.Sync()
			if err := report.BuildHTMLReport(cfg.GetReportDir(), flags.HTMLReport, time.Now()); err != nil {
				return err
			}
			logger.Info("Wrote HTML report", zap.String("file", flags.HTMLReport))
			return nil
		})
	default:
		return container.Invoke(func(
			src ports.MessageSource,
			emailFilter ports.EmailFilter,
			reporter ports.Reporter,
			results ports.ResultStore,
			cfg *config.Config,
			logger *zap.Logger,
		) error {
			defer logger.Sync()
			if results != nil {
				defer results.Stop()
			}

			summary, err := di.RunScan(ctx, src, emailFilter, reporter, logger)
			if err != nil {
				return err
			}
			if reporter != nil {
				logger.Info("Wrote reports",
					zap.String("alerts", filepath.Join(cfg.GetReportDir(), "alerts.json")),
					zap.String("notes", filepath.Join(cfg.GetReportDir(), "notes")))
			}
			if summary.Total > 0 && summary.Failed == summary.Total {
				return fmt.Errorf("no message could be triaged")
			}
			return nil
		})
	}
}

func listRules(engine *rules.Engine) {
	t := engine.Thresholds()
	fmt.Printf("thresholds: high >= %d, review >= %d\n", t.High, t.Review)
	for _, id := range engine.Rules() {
		fmt.Println(engine.Explain(id))
	}
}

func listResults(ctx context.Context, results ports.ResultStore, logger *zap.Logger) error {
	defer logger.Sync()
	if results == nil {
		return fmt.Errorf("no result store configured; enable store in the config file")
	}
	defer results.Stop()

	records, err := results.List(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("%s\t%s\t%d\t%s\t%s\n",
			rec.AnalyzedAt.Format(time.RFC3339), rec.Severity, rec.Score, rec.MessageID, rec.Subject)
	}
	logger.Info("Listed stored results", zap.Int("count", len(records)))
	return nil
}
