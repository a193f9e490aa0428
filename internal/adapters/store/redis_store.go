package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisKeyPrefix = "phish-triage:result:"
	redisIndexKey  = "phish-triage:results"
)

// RedisStore is a Redis implementation of the ResultRepository interface.
// Records expire natively; a sorted set indexes them by analysis time and is
// pruned of expired members on List and Cleanup.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore creates a new Redis result store
func NewRedisStore(addr, password string, db int, logger *zap.Logger) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisStore(client, logger), nil
}

func newRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// Get retrieves the stored result for a message
func (s *RedisStore) Get(ctx context.Context, messageID string) (*core.ResultRecord, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+messageID).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query result: %w", err)
	}

	var rec core.ResultRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &rec, nil
}

// Save stores a result with a TTL derived from its expiry time
func (s *RedisStore) Save(ctx context.Context, rec *core.ResultRecord) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKeyPrefix+rec.MessageID, data, ttl)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{
			Score:  float64(rec.AnalyzedAt.UnixNano()),
			Member: rec.MessageID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// Delete removes a stored result
func (s *RedisStore) Delete(ctx context.Context, messageID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKeyPrefix+messageID)
		pipe.ZRem(ctx, redisIndexKey, messageID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return nil
}

// List returns all unexpired results ordered by analysis time
func (s *RedisStore) List(ctx context.Context) ([]*core.ResultRecord, error) {
	recs, _, err := s.scan(ctx)
	return recs, err
}

// Cleanup drops index members whose records have expired
func (s *RedisStore) Cleanup(ctx context.Context) error {
	_, expired, err := s.scan(ctx)
	if err != nil {
		return err
	}
	s.logger.Debug("Cleaned up expired results", zap.Int("expired_count", expired))
	return nil
}

func (s *RedisStore) scan(ctx context.Context) ([]*core.ResultRecord, int, error) {
	ids, err := s.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list results: %w", err)
	}
	recs := []*core.ResultRecord{}
	if len(ids) == 0 {
		return recs, 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKeyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load results: %w", err)
	}

	var expired []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var rec core.ResultRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			s.logger.Warn("Skipping undecodable result", zap.String("message_id", ids[i]), zap.Error(err))
			continue
		}
		recs = append(recs, &rec)
	}

	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, redisIndexKey, expired...).Err(); err != nil {
			return nil, 0, fmt.Errorf("failed to prune result index: %w", err)
		}
	}
	sortRecords(recs)
	return recs, len(expired), nil
}

// Stop closes the Redis connection
func (s *RedisStore) Stop() {
	if err := s.client.Close(); err != nil {
		s.logger.Error("Failed to close redis client", zap.Error(err))
	}
}
