package factory

import (
	"fmt"

	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/features"
	"github.com/mikey/phish-triage/internal/rules"
	"go.uber.org/zap"
)

// EngineFactory creates the feature extractor and rule engine
type EngineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEngineFactory creates a new engine factory
func NewEngineFactory(cfg *config.Config, logger *zap.Logger) *EngineFactory {
	return &EngineFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRuleEngine loads the rule configuration and builds the engine
func (f *EngineFactory) CreateRuleEngine() (*rules.Engine, error) {
	path := f.cfg.GetRulesPath()
	ruleCfg, err := rules.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	engine, err := rules.NewEngine(ruleCfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("invalid rule config %s: %w", path, err)
	}
	f.logger.Info("Loaded rule configuration", zap.String("path", path))
	return engine, nil
}

// CreateFeatureExtractor creates a feature extractor with the configured deny-lists
func (f *EngineFactory) CreateFeatureExtractor() *features.Extractor {
	fc := f.cfg.GetFeatures()
	return features.NewExtractor(features.Options{
		SuspiciousTLDs: fc.SuspiciousTLDs,
		ShortenerHosts: fc.ShortenerHosts,
	})
}
