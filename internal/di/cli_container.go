package di

import (
	"flag"
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/adapters/report"
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/factory"
	"github.com/mikey/phish-triage/internal/logging"
	"github.com/mikey/phish-triage/internal/ports"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Input flags
	EMLDir    string
	InputFile string
	FullBody  bool

	// Rule flags
	RulesFile string
	ListRules bool
	Explain   string

	// Output flags
	OutDir      string
	NoReport    bool
	HTMLReport  string
	ListResults bool
	JSONOutput  bool

	Verbose    bool
	JSONLog    bool
	ConfigFile string

	// Files holds positional .eml paths
	Files []string
}

// ParseFlags parses command line arguments and returns a CLIFlags struct
func ParseFlags(args []string) (*CLIFlags, error) {
	flags := &CLIFlags{}
	fs := flag.NewFlagSet("phish-triage", flag.ContinueOnError)

	// Input flags
	fs.StringVar(&flags.EMLDir, "eml-dir", "", "Scan a folder of .eml files")
	fs.StringVar(&flags.InputFile, "file", "", "Input .eml file (use stdin if neither -file nor -eml-dir is given)")
	fs.BoolVar(&flags.FullBody, "full-body", false, "Scan body text as well as headers")

	// Rule flags
	fs.StringVar(&flags.RulesFile, "rules", "", "Path to the rule configuration (default from config)")
	fs.BoolVar(&flags.ListRules, "list-rules", false, "List rules with their weights and descriptions")
	fs.StringVar(&flags.Explain, "explain", "", "Explain a rule id")

	// Output flags
	fs.StringVar(&flags.OutDir, "out", "", "Report output directory (default from config)")
	fs.BoolVar(&flags.NoReport, "no-report", false, "Do not write alerts.json, alerts.csv or notes")
	fs.StringVar(&flags.HTMLReport, "html-report", "", "Render the HTML report of the last scan in -out to this file")
	fs.BoolVar(&flags.ListResults, "list-results", false, "List stored results (requires a store in -config)")
	fs.BoolVar(&flags.JSONOutput, "json", false, "Print verdicts as JSON lines")

	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	flags.Files = fs.Args()
	if flags.InputFile != "" {
		flags.Files = append([]string{flags.InputFile}, flags.Files...)
	}
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		return loadCLIConfig(flags, logger)
	}); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register message source
	if err := container.Provide(func(f *factory.SourceFactory, flags *CLIFlags) (ports.MessageSource, error) {
		if flags.EMLDir == "" && len(flags.Files) == 0 {
			return f.CreateStreamSource("stdin", os.Stdin), nil
		}
		return f.CreateMessageSource(flags.EMLDir, flags.Files)
	}); err != nil {
		return nil, err
	}

	// Register reporter; nil when reports are disabled
	if err := container.Provide(func(flags *CLIFlags, cfg *config.Config, logger *zap.Logger) (ports.Reporter, error) {
		if flags.NoReport {
			return nil, nil
		}
		return report.NewFileReporter(cfg.GetReportDir(), logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// loadCLIConfig reads the config file when one is given, otherwise starts
// from defaults with storage off. Flags override either.
func loadCLIConfig(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if flags.ConfigFile != "" {
		var err error
		cfg, err = config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = config.NewFromViper(config.NewEmptyViper())
		cfg.Set("store.enabled", false)
	}

	cfg.Set("server.filter_type", "cli")
	cfg.Set("cli.verbose", flags.Verbose)
	cfg.Set("cli.json_output", flags.JSONOutput)
	if flags.FullBody {
		cfg.Set("scan.headers_only", false)
	}
	if flags.RulesFile != "" {
		cfg.Set("rules.path", flags.RulesFile)
	}
	if flags.OutDir != "" {
		cfg.Set("report.out_dir", flags.OutDir)
	}
	return cfg, nil
}
