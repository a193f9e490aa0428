package di

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/ports"
	"github.com/mikey/phish-triage/internal/rules"
)

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags([]string{"-eml-dir", "mail", "-full-body", "-out", "o", "-json", "a.eml", "b.eml"})
	require.NoError(t, err)

	assert.Equal(t, "mail", flags.EMLDir)
	assert.True(t, flags.FullBody)
	assert.True(t, flags.JSONOutput)
	assert.Equal(t, "o", flags.OutDir)
	assert.Equal(t, []string{"a.eml", "b.eml"}, flags.Files)

	flags, err = ParseFlags([]string{"-file", "x.eml", "y.eml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x.eml", "y.eml"}, flags.Files)

	_, err = ParseFlags([]string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestLoadCLIConfig(t *testing.T) {
	cfg, err := loadCLIConfig(&CLIFlags{FullBody: true, RulesFile: "r.yaml", OutDir: "out"}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "cli", cfg.GetServer().FilterType)
	assert.False(t, cfg.GetScan().HeadersOnly)
	assert.Equal(t, "r.yaml", cfg.GetRulesPath())
	assert.Equal(t, "out", cfg.GetReportDir())
	assert.False(t, cfg.GetBool("store.enabled"))

	cfg, err = loadCLIConfig(&CLIFlags{}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, cfg.GetScan().HeadersOnly)
}

func TestBuildCLIContainer_Scan(t *testing.T) {
	out := t.TempDir()
	flags := &CLIFlags{
		EMLDir:    filepath.Join("..", "adapters", "source", "testdata"),
		RulesFile: filepath.Join("..", "..", "configs", "rules.yaml"),
		OutDir:    out,
	}
	container, err := BuildCLIContainer(flags)
	require.NoError(t, err)

	var summary ScanSummary
	err = container.Invoke(func(
		src ports.MessageSource,
		emailFilter ports.EmailFilter,
		reporter ports.Reporter,
		results ports.ResultStore,
		logger *zap.Logger,
	) error {
		assert.Nil(t, results)
		var err error
		summary, err = RunScan(context.Background(), src, emailFilter, reporter, logger)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 2, summary.High+summary.Review+summary.Pass)

	assert.FileExists(t, filepath.Join(out, "alerts.json"))
	assert.FileExists(t, filepath.Join(out, "alerts.csv"))
	notes, err := os.ReadDir(filepath.Join(out, "notes"))
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestBuildCLIContainer_Rules(t *testing.T) {
	container, err := BuildCLIContainer(&CLIFlags{
		RulesFile: filepath.Join("..", "..", "configs", "rules.yaml"),
		NoReport:  true,
	})
	require.NoError(t, err)

	err = container.Invoke(func(engine *rules.Engine, reporter ports.Reporter, cfg *config.Config) {
		assert.Nil(t, reporter)
		assert.Equal(t, rules.ComboSenderMismatchAuth, engine.Rules()[len(engine.Rules())-1])
		assert.Equal(t, "cli", cfg.GetServer().FilterType)
	})
	assert.NoError(t, err)
}

func TestBuildCLIContainer_BadRules(t *testing.T) {
	container, err := BuildCLIContainer(&CLIFlags{RulesFile: filepath.Join(t.TempDir(), "absent.yaml")})
	require.NoError(t, err)

	err = container.Invoke(func(engine *rules.Engine) {})
	assert.Error(t, err)
}

type sliceSource []*core.RawMessage

func (s sliceSource) Messages(ctx context.Context) ([]*core.RawMessage, error) {
	return s, nil
}

type stubFilter struct{}

func (stubFilter) ProcessEmail(ctx context.Context, msg *core.RawMessage) (*core.TriageResult, error) {
	if msg.ID == "bad" {
		return nil, errors.New("broken")
	}
	return &core.TriageResult{MessageID: msg.ID, Verdict: core.Verdict{Severity: core.Severity(msg.Headers["Severity"])}}, nil
}

func (stubFilter) Start() error { return nil }
func (stubFilter) Stop() error  { return nil }

type recordingReporter struct {
	ids       []string
	finalized bool
}

func (r *recordingReporter) Record(result *core.TriageResult) error {
	r.ids = append(r.ids, result.MessageID)
	return nil
}

func (r *recordingReporter) Finalize() error {
	r.finalized = true
	return nil
}

func TestRunScan(t *testing.T) {
	src := sliceSource{
		{ID: "a", Headers: map[string]string{"Severity": "High"}},
		{ID: "bad"},
		{ID: "b", Headers: map[string]string{"Severity": "Review"}},
		{ID: "c", Headers: map[string]string{"Severity": "Pass"}},
	}
	reporter := &recordingReporter{}

	summary, err := RunScan(context.Background(), src, stubFilter{}, reporter, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, ScanSummary{Total: 4, High: 1, Review: 1, Pass: 1, Failed: 1}, summary)
	assert.Equal(t, []string{"a", "b", "c"}, reporter.ids)
	assert.True(t, reporter.finalized)

	summary, err = RunScan(context.Background(), src[:1], stubFilter{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.High)
}

func TestRunScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunScan(ctx, sliceSource{{ID: "a"}}, stubFilter{}, nil, zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
}
