package filter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mikey/phish-triage/internal/core"
)

// Annotation controls how a verdict is written into a forwarded message
type Annotation struct {
	SeverityHeader string
	ScoreHeader    string
	RulesHeader    string
	TagSubject     bool
	// Tags maps a severity onto its subject prefix; severities without a tag are left alone
	Tags map[core.Severity]string
}

// annotateMessage returns raw with the verdict headers prepended. Incoming
// copies of the verdict headers are dropped so a sender cannot pre-label a
// message, and the Subject is prefixed when tagging applies. The body is
// passed through untouched.
func annotateMessage(raw []byte, v core.Verdict, a Annotation, analysisErr error) []byte {
	header, body := splitMessage(raw)

	var out bytes.Buffer
	if analysisErr != nil {
		fmt.Fprintf(&out, "X-Phish-Analysis-Error: %s\r\n", sanitizeHeaderValue(analysisErr.Error()))
	} else {
		fmt.Fprintf(&out, "%s: %s\r\n", a.SeverityHeader, v.Severity)
		fmt.Fprintf(&out, "%s: %d\r\n", a.ScoreHeader, v.Score)
		fmt.Fprintf(&out, "%s: %s\r\n", a.RulesHeader, strings.Join(v.RuleHits, ", "))
	}

	tag := ""
	if a.TagSubject && analysisErr == nil {
		tag = a.Tags[v.Severity]
	}

	drop := map[string]bool{
		strings.ToLower(a.SeverityHeader): true,
		strings.ToLower(a.ScoreHeader):    true,
		strings.ToLower(a.RulesHeader):    true,
		"x-phish-analysis-error":          true,
	}

	subjectSeen := false
	for _, field := range headerFields(header) {
		name := strings.ToLower(fieldName(field))
		if drop[name] {
			continue
		}
		if name == "subject" {
			subjectSeen = true
			if tag != "" {
				field = tagSubject(field, tag)
			}
		}
		out.Write(field)
	}
	if !subjectSeen && tag != "" {
		fmt.Fprintf(&out, "Subject: %s\r\n", strings.TrimSpace(tag))
	}

	out.WriteString("\r\n")
	out.Write(body)
	return out.Bytes()
}

// splitMessage separates the header block, including its final line break,
// from the body
func splitMessage(raw []byte) (header, body []byte) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+2], raw[i+4:]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[:i+1], raw[i+2:]
	}
	return raw, nil
}

// headerFields groups header lines with their folded continuation lines
func headerFields(header []byte) [][]byte {
	var fields [][]byte
	for _, line := range bytes.SplitAfter(header, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(fields) > 0 {
			fields[len(fields)-1] = append(fields[len(fields)-1], line...)
			continue
		}
		fields = append(fields, append([]byte(nil), line...))
	}
	// Guarantee a line ending before the verdict-free header block ends
	if n := len(fields); n > 0 && !bytes.HasSuffix(fields[n-1], []byte("\n")) {
		fields[n-1] = append(fields[n-1], '\r', '\n')
	}
	return fields
}

func fieldName(field []byte) string {
	i := bytes.IndexByte(field, ':')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(string(field[:i]))
}

// tagSubject prefixes the value of a Subject field unless it already carries the tag
func tagSubject(field []byte, tag string) []byte {
	i := bytes.IndexByte(field, ':')
	value := bytes.TrimLeft(field[i+1:], " \t")
	if bytes.HasPrefix(value, []byte(tag)) {
		return field
	}
	out := make([]byte, 0, len(field)+len(tag)+1)
	out = append(out, field[:i+1]...)
	out = append(out, ' ')
	out = append(out, tag...)
	return append(out, value...)
}

func sanitizeHeaderValue(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
