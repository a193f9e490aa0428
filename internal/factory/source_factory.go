package factory

import (
	"fmt"
	"io"

	"github.com/mikey/phish-triage/internal/adapters/source"
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/ports"
	"github.com/mikey/phish-triage/internal/utils"
	"go.uber.org/zap"
)

// SourceFactory creates message parsers and sources
type SourceFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *SourceFactory {
	return &SourceFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateParser creates a parser that reads bodies only outside headers-only mode
func (f *SourceFactory) CreateParser() *source.Parser {
	scan := f.cfg.GetScan()
	return source.NewParser(f.textProcessor, scan.MaxBodySize, !scan.HeadersOnly, f.logger)
}

// CreateMessageSource creates a source over a directory or a list of files
func (f *SourceFactory) CreateMessageSource(dir string, files []string) (ports.MessageSource, error) {
	parser := f.CreateParser()
	switch {
	case dir != "" && len(files) > 0:
		return nil, fmt.Errorf("a directory and individual files cannot be combined")
	case dir != "":
		return source.NewDirSource(dir, parser, f.logger), nil
	case len(files) > 0:
		return source.NewFileSource(files, parser, f.logger), nil
	default:
		return nil, fmt.Errorf("no message source given")
	}
}

// CreateStreamSource creates a source over a single message stream
func (f *SourceFactory) CreateStreamSource(id string, r io.Reader) ports.MessageSource {
	return source.NewReaderSource(id, r, f.CreateParser())
}
