// Package store holds the result repositories triage verdicts are recorded in.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mikey/phish-triage/internal/core"
)

var (
	// ErrNotFound is returned when no unexpired result exists for a message
	ErrNotFound = errors.New("result not found")
)

func cloneRecord(rec *core.ResultRecord) *core.ResultRecord {
	c := *rec
	c.RuleHits = append([]string(nil), rec.RuleHits...)
	c.Domains = append([]string(nil), rec.Domains...)
	c.URLs = append([]string(nil), rec.URLs...)
	return &c
}

func sortRecords(recs []*core.ResultRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].AnalyzedAt.Equal(recs[j].AnalyzedAt) {
			return recs[i].MessageID < recs[j].MessageID
		}
		return recs[i].AnalyzedAt.Before(recs[j].AnalyzedAt)
	})
}

// encodeList stores a string list in a single text column
func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return items, nil
}
