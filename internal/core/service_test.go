package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExtractor struct {
	headersOnly []bool
}

func (f *fakeExtractor) Extract(msg RawMessage, headersOnly bool) *FeatureBundle {
	f.headersOnly = append(f.headersOnly, headersOnly)
	return &FeatureBundle{
		URLs:       []URLRef{{Raw: "https://a.example/"}},
		Indicators: Indicators{Domains: []string{"a.example", "example.com"}},
	}
}

type fakeScorer struct{}

func (fakeScorer) Score(b *FeatureBundle) Verdict {
	return Verdict{Score: 35, Severity: SeverityReview, RuleHits: []string{"URGENCY_BAIT"}, Reasons: []string{"urgent"}}
}

type fakeRepository struct {
	mu      sync.Mutex
	saved   []*ResultRecord
	saveErr error
}

func (r *fakeRepository) Get(ctx context.Context, id string) (*ResultRecord, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRepository) Save(ctx context.Context, rec *ResultRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, rec)
	return nil
}

func (r *fakeRepository) Delete(ctx context.Context, id string) error { return nil }

func (r *fakeRepository) List(ctx context.Context) ([]*ResultRecord, error) { return r.saved, nil }

func (r *fakeRepository) Cleanup(ctx context.Context) error { return nil }

func TestTriage_StoresRecord(t *testing.T) {
	extractor := &fakeExtractor{}
	repo := &fakeRepository{}
	svc := NewTriageService(extractor, fakeScorer{}, repo, zap.NewNop(), true, true, time.Hour)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	result, err := svc.Triage(context.Background(), &RawMessage{
		ID:      "msg-1",
		Headers: map[string]string{"From": "a@example.com", "Subject": "Hi", "Date": "Wed, 1 May 2024"},
	})
	require.NoError(t, err)

	assert.Equal(t, "msg-1", result.MessageID)
	assert.Equal(t, SeverityReview, result.Verdict.Severity)
	assert.Equal(t, MessageSummary{Date: "Wed, 1 May 2024", From: "a@example.com", Subject: "Hi"}, result.Summary)
	assert.Equal(t, []bool{true}, extractor.headersOnly)

	require.Len(t, repo.saved, 1)
	rec := repo.saved[0]
	assert.Equal(t, "msg-1", rec.MessageID)
	assert.Equal(t, 35, rec.Score)
	assert.Equal(t, []string{"a.example", "example.com"}, rec.Domains)
	assert.Equal(t, []string{"https://a.example/"}, rec.URLs)
	assert.Equal(t, fixed.Add(time.Hour), rec.ExpiresAt)
}

func TestTriage_StoreDisabledOrFailing(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewTriageService(&fakeExtractor{}, fakeScorer{}, repo, zap.NewNop(), false, false, time.Hour)
	_, err := svc.Triage(context.Background(), &RawMessage{ID: "x"})
	require.NoError(t, err)
	assert.Empty(t, repo.saved)

	failing := &fakeRepository{saveErr: errors.New("disk full")}
	svc = NewTriageService(&fakeExtractor{}, fakeScorer{}, failing, zap.NewNop(), false, true, time.Hour)
	result, err := svc.Triage(context.Background(), &RawMessage{ID: "y"})
	require.NoError(t, err)
	assert.Equal(t, 35, result.Verdict.Score)

	svc = NewTriageService(&fakeExtractor{}, fakeScorer{}, nil, zap.NewNop(), false, true, time.Hour)
	_, err = svc.Triage(context.Background(), &RawMessage{ID: "z"})
	assert.NoError(t, err)
}

func TestTriage_AssignsID(t *testing.T) {
	svc := NewTriageService(&fakeExtractor{}, fakeScorer{}, nil, zap.NewNop(), false, false, 0)

	a, err := svc.Triage(context.Background(), &RawMessage{})
	require.NoError(t, err)
	b, err := svc.Triage(context.Background(), &RawMessage{})
	require.NoError(t, err)

	assert.NotEmpty(t, a.MessageID)
	assert.NotEqual(t, a.MessageID, b.MessageID)
}

func TestTriage_Errors(t *testing.T) {
	svc := NewTriageService(&fakeExtractor{}, fakeScorer{}, nil, zap.NewNop(), false, false, 0)

	_, err := svc.Triage(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Triage(ctx, &RawMessage{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityHigh.Rank(), SeverityReview.Rank())
	assert.Greater(t, SeverityReview.Rank(), SeverityPass.Rank())
	assert.Equal(t, 0, Severity("").Rank())
}
