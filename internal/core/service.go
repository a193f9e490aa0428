package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TriageService is the core service for phishing triage
type TriageService struct {
	extractor    FeatureExtractor
	scorer       Scorer
	results      ResultRepository
	logger       *zap.Logger
	headersOnly  bool
	storeEnabled bool
	retention    time.Duration
	now          func() time.Time
}

// NewTriageService creates a new triage service
func NewTriageService(
	extractor FeatureExtractor,
	scorer Scorer,
	results ResultRepository,
	logger *zap.Logger,
	headersOnly bool,
	storeEnabled bool,
	retention time.Duration,
) *TriageService {
	return &TriageService{
		extractor:    extractor,
		scorer:       scorer,
		results:      results,
		logger:       logger,
		headersOnly:  headersOnly,
		storeEnabled: storeEnabled && results != nil,
		retention:    retention,
		now:          time.Now,
	}
}

// HeadersOnly reports whether body content is excluded from signal extraction
func (s *TriageService) HeadersOnly() bool {
	return s.headersOnly
}

// Triage extracts features from a message, scores them and records the result
func (s *TriageService) Triage(ctx context.Context, msg *RawMessage) (*TriageResult, error) {
	if msg == nil {
		return nil, fmt.Errorf("message is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}

	features := s.extractor.Extract(*msg, s.headersOnly)
	verdict := s.scorer.Score(features)

	result := &TriageResult{
		MessageID:  id,
		Summary:    msg.Summary(),
		Verdict:    verdict,
		Features:   features,
		AnalyzedAt: s.now(),
	}

	s.logger.Debug("Scored message",
		zap.String("message_id", id),
		zap.Int("score", verdict.Score),
		zap.String("severity", string(verdict.Severity)),
		zap.Strings("rule_hits", verdict.RuleHits))

	// A storage failure is logged, never turned into a scoring failure
	if s.storeEnabled {
		if err := s.results.Save(ctx, NewResultRecord(result, s.retention)); err != nil {
			s.logger.Error("Failed to store result", zap.Error(err), zap.String("message_id", id))
		}
	}

	return result, nil
}
