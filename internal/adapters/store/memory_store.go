package store

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the ResultRepository interface
type MemoryStore struct {
	records     map[string]*core.ResultRecord
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewMemoryStore creates a new in-memory result store. A zero cleanup
// frequency disables the background cleanup task.
func NewMemoryStore(logger *zap.Logger, cleanupFreq time.Duration) *MemoryStore {
	s := &MemoryStore{
		records:     make(map[string]*core.ResultRecord),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if cleanupFreq > 0 {
		go startCleanupTask(s.logger, s.cleanupFreq, s.stopCh, s.Cleanup)
	}

	return s
}

// Get retrieves the stored result for a message
func (s *MemoryStore) Get(ctx context.Context, messageID string) (*core.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[messageID]
	if !ok || !s.now().Before(rec.ExpiresAt) {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Save stores a result
func (s *MemoryStore) Save(ctx context.Context, rec *core.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.MessageID] = cloneRecord(rec)
	return nil
}

// Delete removes a stored result
func (s *MemoryStore) Delete(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, messageID)
	return nil
}

// List returns all unexpired results ordered by analysis time
func (s *MemoryStore) List(ctx context.Context) ([]*core.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	recs := make([]*core.ResultRecord, 0, len(s.records))
	for _, rec := range s.records {
		if now.Before(rec.ExpiresAt) {
			recs = append(recs, cloneRecord(rec))
		}
	}
	sortRecords(recs)
	return recs, nil
}

// Cleanup removes expired results
func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expiredCount := 0

	for id, rec := range s.records {
		if !now.Before(rec.ExpiresAt) {
			delete(s.records, id)
			expiredCount++
		}
	}

	s.logger.Debug("Cleaned up expired results", zap.Int("expired_count", expiredCount))
	return nil
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// startCleanupTask runs cleanup on every tick until stopCh is closed
func startCleanupTask(logger *zap.Logger, freq time.Duration, stopCh <-chan struct{}, cleanup func(context.Context) error) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up results", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
