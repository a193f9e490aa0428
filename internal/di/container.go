package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/factory"
	"github.com/mikey/phish-triage/internal/features"
	"github.com/mikey/phish-triage/internal/logging"
	"github.com/mikey/phish-triage/internal/ports"
	"github.com/mikey/phish-triage/internal/rules"
	"github.com/mikey/phish-triage/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCommon registers everything below configuration and logging
func provideCommon(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewEngineFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewSourceFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register rule engine and feature extractor
	if err := container.Provide(func(f *factory.EngineFactory) (*rules.Engine, error) {
		return f.CreateRuleEngine()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.EngineFactory) *features.Extractor {
		return f.CreateFeatureExtractor()
	}); err != nil {
		return err
	}

	// Register result store; nil when storage is disabled
	if err := container.Provide(func(f *factory.StoreFactory) (ports.ResultStore, error) {
		if !f.IsStoreEnabled() {
			return nil, nil
		}
		return f.CreateResultStore()
	}); err != nil {
		return err
	}

	// Register triage service
	if err := container.Provide(func(
		extractor *features.Extractor,
		engine *rules.Engine,
		results ports.ResultStore,
		storeFactory *factory.StoreFactory,
		cfg *config.Config,
		logger *zap.Logger,
	) (*core.TriageService, error) {
		retention, err := storeFactory.GetRetention()
		if err != nil {
			return nil, err
		}
		var repo core.ResultRepository
		if results != nil {
			repo = results
		}
		return core.NewTriageService(
			extractor,
			engine,
			repo,
			logger,
			cfg.GetScan().HeadersOnly,
			results != nil,
			retention,
		), nil
	}); err != nil {
		return err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return err
	}

	return nil
}
