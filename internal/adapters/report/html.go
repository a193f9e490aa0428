package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"join": func(items []string) string { return strings.Join(items, ", ") },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>Phish Triage Report</title>
  <style>
    body { font-family: system-ui, sans-serif; margin: 2rem; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ddd; padding: 8px; }
    th { background: #f6f6f6; }
    .High { color: #b30000; font-weight: 600; }
    .Review { color: #b36b00; font-weight: 600; }
    .Pass { color: #2b7a0b; font-weight: 600; }
  </style>
</head>
<body>
  <h1>Phish Triage Report</h1>
  <p>Generated at {{ .Now }}</p>
  <table>
    <thead>
      <tr><th>Severity</th><th>Score</th><th>Date</th><th>From</th><th>Subject</th><th>Rule Hits</th><th>Domains</th></tr>
    </thead>
    <tbody>
    {{- range .Alerts }}
      <tr>
        <td class="{{ .Severity }}">{{ .Severity }}</td>
        <td>{{ .Score }}</td>
        <td>{{ .Date }}</td>
        <td>{{ .From }}</td>
        <td>{{ .Subject }}</td>
        <td>{{ join .RuleHits }}</td>
        <td>{{ join .Indicators.Domains }}</td>
      </tr>
    {{- end }}
    </tbody>
  </table>
</body>
</html>
`))

// BuildHTMLReport renders the alerts.json of outDir into an HTML table at outFile
func BuildHTMLReport(outDir, outFile string, now time.Time) error {
	alerts, err := LoadAlerts(filepath.Join(outDir, alertsJSON))
	if err != nil {
		return fmt.Errorf("%w (run a scan first)", err)
	}

	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	data := struct {
		Now    string
		Alerts []Alert
	}{
		Now:    now.UTC().Format(time.RFC3339),
		Alerts: alerts,
	}
	if err := htmlReport.Execute(f, data); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return f.Close()
}
