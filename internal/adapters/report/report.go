// Package report writes triage results to an output directory: an
// alerts.json array, an alerts.csv table and one markdown note per message.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

const (
	alertsJSON = "alerts.json"
	alertsCSV  = "alerts.csv"
	notesDir   = "notes"
	topReasons = 3
)

var csvHeader = []string{"id", "date", "from", "subject", "severity", "score", "rule_hits", "domains", "urls"}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Indicators are the reportable artefacts of a message
type Indicators struct {
	Domains []string `json:"domains"`
	URLs    []string `json:"urls"`
}

// Alert is one entry of alerts.json
type Alert struct {
	ID         string        `json:"id"`
	Date       string        `json:"date"`
	From       string        `json:"from"`
	Subject    string        `json:"subject"`
	Score      int           `json:"score"`
	Severity   core.Severity `json:"severity"`
	RuleHits   []string      `json:"rule_hits"`
	Indicators Indicators    `json:"indicators"`
	NoteFile   string        `json:"note_file"`
}

// FileReporter collects the results of a run and writes them under outDir
type FileReporter struct {
	outDir string
	logger *zap.Logger

	mu     sync.Mutex
	alerts []Alert
}

// NewFileReporter creates the output and notes directories
func NewFileReporter(outDir string, logger *zap.Logger) (*FileReporter, error) {
	if err := os.MkdirAll(filepath.Join(outDir, notesDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileReporter{
		outDir: outDir,
		logger: logger,
		alerts: []Alert{},
	}, nil
}

// Record adds a result and writes its note
func (r *FileReporter) Record(result *core.TriageResult) error {
	alert := newAlert(result)

	note := renderNote(alert, result.Verdict.Reasons)
	if err := os.WriteFile(filepath.Join(r.outDir, filepath.FromSlash(alert.NoteFile)), []byte(note), 0644); err != nil {
		return fmt.Errorf("failed to write note for %s: %w", alert.ID, err)
	}

	r.mu.Lock()
	r.alerts = append(r.alerts, alert)
	r.mu.Unlock()
	return nil
}

// Alerts returns the alerts recorded so far
func (r *FileReporter) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

// Finalize writes alerts.json and alerts.csv
func (r *FileReporter) Finalize() error {
	alerts := r.Alerts()

	data, err := json.MarshalIndent(alerts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode alerts: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.outDir, alertsJSON), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", alertsJSON, err)
	}

	if err := writeCSV(filepath.Join(r.outDir, alertsCSV), alerts); err != nil {
		return err
	}

	r.logger.Info("Reports written",
		zap.String("out_dir", r.outDir),
		zap.Int("alerts", len(alerts)))
	return nil
}

func newAlert(result *core.TriageResult) Alert {
	domains := []string{}
	urls := []string{}
	if result.Features != nil {
		domains = append(domains, result.Features.Indicators.Domains...)
		urls = append(urls, result.Features.RawURLs()...)
	}
	hits := append([]string{}, result.Verdict.RuleHits...)

	return Alert{
		ID:         result.MessageID,
		Date:       result.Summary.Date,
		From:       result.Summary.From,
		Subject:    result.Summary.Subject,
		Score:      result.Verdict.Score,
		Severity:   result.Verdict.Severity,
		RuleHits:   hits,
		Indicators: Indicators{Domains: domains, URLs: urls},
		NoteFile:   path.Join(notesDir, NoteFileName(result.MessageID)),
	}
}

// NoteFileName maps a message id onto a safe file name
func NoteFileName(id string) string {
	name := unsafeFileChars.ReplaceAllString(id, "_")
	if name == "" || strings.Trim(name, ".") == "" {
		name = "_"
	}
	return name + ".md"
}

func renderNote(a Alert, reasons []string) string {
	subject := a.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	if len(reasons) > topReasons {
		reasons = reasons[:topReasons]
	}
	bullets := "- No high-confidence rule reasons."
	if len(reasons) > 0 {
		bullets = "- " + strings.Join(reasons, "\n- ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", subject)
	fmt.Fprintf(&b, "**From:** %s  \n", a.From)
	fmt.Fprintf(&b, "**Date:** %s\n\n", a.Date)
	fmt.Fprintf(&b, "**Severity:** %s (%d)  \n", a.Severity, a.Score)
	fmt.Fprintf(&b, "**Top reasons:**  \n%s\n\n", bullets)
	b.WriteString("## Indicators\n")
	fmt.Fprintf(&b, "**Domains:** %s  \n", strings.Join(a.Indicators.Domains, ", "))
	fmt.Fprintf(&b, "**URLs:**  \n%s\n", strings.Join(a.Indicators.URLs, "\n"))
	return b.String()
}

func writeCSV(file string, alerts []Alert) error {
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", alertsCSV, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write %s: %w", alertsCSV, err)
	}
	for _, a := range alerts {
		row := []string{
			a.ID,
			a.Date,
			a.From,
			a.Subject,
			string(a.Severity),
			strconv.Itoa(a.Score),
			strings.Join(a.RuleHits, ","),
			strings.Join(a.Indicators.Domains, ","),
			strings.Join(a.Indicators.URLs, ","),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write %s: %w", alertsCSV, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", alertsCSV, err)
	}
	return f.Close()
}

// LoadAlerts reads a previously written alerts.json
func LoadAlerts(file string) ([]Alert, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}
	var alerts []Alert
	if err := json.Unmarshal(data, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}
	return alerts, nil
}
