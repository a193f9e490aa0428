package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func record(id string, offset time.Duration, ttl time.Duration) *core.ResultRecord {
	analyzed := baseTime.Add(offset)
	return &core.ResultRecord{
		MessageID:  id,
		Date:       "Wed, 1 May 2024 12:00:00 +0000",
		From:       "IT Desk <it@example.com>",
		Subject:    "Urgent: verify immediately",
		Score:      45,
		Severity:   core.SeverityReview,
		RuleHits:   []string{"SPF_FAIL", "DKIM_FAIL_OR_NODMARC", "URGENCY_BAIT"},
		Domains:    []string{"example.com"},
		URLs:       []string{"https://example.com/reset"},
		AnalyzedAt: analyzed,
		ExpiresAt:  analyzed.Add(ttl),
	}
}

type repository interface {
	core.ResultRepository
	Stop()
}

// exerciseRepository runs the shared contract against a store whose clock
// is controlled by setNow.
func exerciseRepository(t *testing.T, repo repository, setNow func(time.Time)) {
	ctx := context.Background()
	setNow(baseTime)

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Save(ctx, record("b", time.Minute, time.Hour)))
	require.NoError(t, repo.Save(ctx, record("a", 0, time.Hour)))
	require.NoError(t, repo.Save(ctx, record("short", 2*time.Minute, 10*time.Minute)))

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Urgent: verify immediately", got.Subject)
	assert.Equal(t, core.SeverityReview, got.Severity)
	assert.Equal(t, []string{"SPF_FAIL", "DKIM_FAIL_OR_NODMARC", "URGENCY_BAIT"}, got.RuleHits)
	assert.Equal(t, []string{"https://example.com/reset"}, got.URLs)
	assert.True(t, got.AnalyzedAt.Equal(baseTime))

	// Saving again replaces
	updated := record("a", 0, time.Hour)
	updated.Score = 70
	updated.Severity = core.SeverityHigh
	require.NoError(t, repo.Save(ctx, updated))
	got, err = repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 70, got.Score)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].MessageID)
	assert.Equal(t, "b", list[1].MessageID)
	assert.Equal(t, "short", list[2].MessageID)

	// Past the short record's expiry
	setNow(baseTime.Add(30 * time.Minute))
	_, err = repo.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, repo.Cleanup(ctx))
	require.NoError(t, repo.Delete(ctx, "b"))
	_, err = repo.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].MessageID)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(zap.NewNop(), 0)
	defer s.Stop()

	exerciseRepository(t, s, func(now time.Time) { s.now = func() time.Time { return now } })
}

func TestMemoryStore_CopiesRecords(t *testing.T) {
	s := NewMemoryStore(zap.NewNop(), 0)
	defer s.Stop()
	s.now = func() time.Time { return baseTime }

	rec := record("a", 0, time.Hour)
	require.NoError(t, s.Save(context.Background(), rec))
	rec.RuleHits[0] = "MUTATED"

	got, err := s.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "SPF_FAIL", got.RuleHits[0])
}

func TestMemoryStore_StopIsIdempotent(t *testing.T) {
	s := NewMemoryStore(zap.NewNop(), time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := NewSQLiteStore(path, zap.NewNop(), 0)
	require.NoError(t, err)
	defer s.Stop()

	exerciseRepository(t, s, func(now time.Time) { s.now = func() time.Time { return now } })
}

func TestSQLiteStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, zap.NewNop(), 0)
	require.NoError(t, err)
	s.now = func() time.Time { return baseTime }
	empty := record("empty", 0, time.Hour)
	empty.RuleHits, empty.Domains, empty.URLs = nil, nil, nil
	require.NoError(t, s.Save(ctx, empty))
	s.Stop()

	s, err = NewSQLiteStore(path, zap.NewNop(), 0)
	require.NoError(t, err)
	defer s.Stop()
	s.now = func() time.Time { return baseTime }

	got, err := s.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got.RuleHits)
	assert.Empty(t, got.URLs)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("PHISH_TRIAGE_TEST_REDIS")
	if addr == "" {
		t.Skip("PHISH_TRIAGE_TEST_REDIS not set")
	}
	s, err := NewRedisStore(addr, "", 0, zap.NewNop())
	require.NoError(t, err)
	defer s.Stop()

	ctx := context.Background()
	now := time.Now().UTC()
	rec := record("redis-test", 0, time.Minute)
	rec.AnalyzedAt, rec.ExpiresAt = now, now.Add(time.Minute)
	require.NoError(t, s.Save(ctx, rec))
	defer s.Delete(ctx, "redis-test")

	got, err := s.Get(ctx, "redis-test")
	require.NoError(t, err)
	assert.Equal(t, rec.RuleHits, got.RuleHits)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	require.NoError(t, s.Delete(ctx, "redis-test"))
	_, err = s.Get(ctx, "redis-test")
	assert.ErrorIs(t, err, ErrNotFound)
}
