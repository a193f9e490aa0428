package factory

import (
	"fmt"

	"github.com/mikey/phish-triage/internal/adapters/filter"
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/ports"
	"github.com/mikey/phish-triage/internal/rules"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	triageService *core.TriageService
	engine        *rules.Engine
	sourceFactory *SourceFactory
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(
	cfg *config.Config,
	logger *zap.Logger,
	triageService *core.TriageService,
	engine *rules.Engine,
	sourceFactory *SourceFactory,
) *FilterFactory {
	return &FilterFactory{
		cfg:           cfg,
		logger:        logger,
		triageService: triageService,
		engine:        engine,
		sourceFactory: sourceFactory,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	server := f.cfg.GetServer()

	switch server.FilterType {
	case "postfix":
		return filter.NewPostfixFilter(
			f.triageService,
			f.sourceFactory.CreateParser(),
			f.logger,
			server.ListenAddress,
			filter.Annotation{
				SeverityHeader: server.SeverityHeader,
				ScoreHeader:    server.ScoreHeader,
				RulesHeader:    server.RulesHeader,
				TagSubject:     server.TagSubject,
				Tags: map[core.Severity]string{
					core.SeverityHigh:   server.HighTag,
					core.SeverityReview: server.ReviewTag,
				},
			},
			server.PostfixAddress,
			server.PostfixPort,
			server.PostfixEnabled,
		), nil
	case "cli":
		return filter.NewCliFilter(
			f.triageService,
			f.engine,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
			f.cfg.GetBool("cli.json_output"),
		)
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", server.FilterType)
	}
}
