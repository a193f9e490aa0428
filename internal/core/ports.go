package core

import (
	"context"
)

// FeatureExtractor turns a raw message into a feature bundle
type FeatureExtractor interface {
	// Extract never fails; malformed input degrades to default values
	Extract(msg RawMessage, headersOnly bool) *FeatureBundle
}

// Scorer turns a feature bundle into a verdict
type Scorer interface {
	Score(bundle *FeatureBundle) Verdict
}

// ResultRepository persists triage results
type ResultRepository interface {
	// Get retrieves the stored result for a message
	Get(ctx context.Context, messageID string) (*ResultRecord, error)

	// Save stores a result, replacing any previous one for the same message
	Save(ctx context.Context, rec *ResultRecord) error

	// Delete removes a stored result
	Delete(ctx context.Context, messageID string) error

	// List returns all unexpired results ordered by analysis time
	List(ctx context.Context) ([]*ResultRecord, error)

	// Cleanup removes expired results
	Cleanup(ctx context.Context) error
}
