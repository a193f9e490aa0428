package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/phish-triage/internal/adapters/store"
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/ports"
	"go.uber.org/zap"
)

// StoreFactory creates result stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateResultStore creates a result store based on the configuration
func (f *StoreFactory) CreateResultStore() (ports.ResultStore, error) {
	storeCfg, err := f.cfg.GetStore()
	if err != nil {
		return nil, err
	}

	switch storeCfg.Type {
	case "memory":
		return store.NewMemoryStore(f.logger, storeCfg.CleanupFrequency), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(storeCfg.SQLitePath, f.logger, storeCfg.CleanupFrequency)
	case "mysql":
		return store.NewMySQLStore(storeCfg.MySQLDSN, f.logger, storeCfg.CleanupFrequency)
	case "redis":
		return store.NewRedisStore(storeCfg.RedisAddr, storeCfg.RedisPassword, storeCfg.RedisDB, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

// GetRetention returns how long results are kept
func (f *StoreFactory) GetRetention() (time.Duration, error) {
	return f.cfg.GetDuration("store.retention")
}

// IsStoreEnabled returns whether results are stored
func (f *StoreFactory) IsStoreEnabled() bool {
	return f.cfg.GetBool("store.enabled")
}
