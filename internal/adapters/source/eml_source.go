// Package source reads raw messages from RFC 5322 (.eml) files.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/utils"
	"go.uber.org/zap"
)

// DefaultMaxBodySize caps the extracted body text
const DefaultMaxBodySize = 20000

// Parser turns one .eml stream into a RawMessage
type Parser struct {
	textProcessor *utils.TextProcessor
	maxBodySize   int
	includeBody   bool
	logger        *zap.Logger
}

// NewParser creates a new message parser. Body text is only read when
// includeBody is set and is capped at maxBodySize bytes.
func NewParser(textProcessor *utils.TextProcessor, maxBodySize int, includeBody bool, logger *zap.Logger) *Parser {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &Parser{
		textProcessor: textProcessor,
		maxBodySize:   maxBodySize,
		includeBody:   includeBody,
		logger:        logger,
	}
}

// IncludesBody reports whether the parser extracts body text
func (p *Parser) IncludesBody() bool {
	return p.includeBody
}

// Parse reads a message. The snippet is the Subject line.
func (p *Parser) Parse(id string, r io.Reader) (*core.RawMessage, error) {
	parsed, err := parseMessage(r, p.includeBody)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message %s: %w", id, err)
	}

	msg := &core.RawMessage{
		ID:          id,
		Headers:     parsed.headers,
		Snippet:     parsed.headers["Subject"],
		Attachments: parsed.attachments,
	}
	if p.includeBody {
		msg.Body = p.textProcessor.ProcessText(parsed.text, p.maxBodySize)
	}
	return msg, nil
}

// ParseFile reads a message from disk; its id is the file name without extension
func (p *Parser) ParseFile(path string) (*core.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	return p.Parse(strings.TrimSuffix(name, filepath.Ext(name)), f)
}

// DirSource yields every .eml file of a directory in file name order
type DirSource struct {
	dir    string
	parser *Parser
	logger *zap.Logger
}

// NewDirSource creates a new directory source
func NewDirSource(dir string, parser *Parser, logger *zap.Logger) *DirSource {
	return &DirSource{dir: dir, parser: parser, logger: logger}
}

// Messages parses the directory's .eml files. Files that fail to parse are
// logged and skipped.
func (s *DirSource) Messages(ctx context.Context) ([]*core.RawMessage, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", s.dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".eml") {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(paths)

	return parseAll(ctx, s.parser, paths, s.logger)
}

// FileSource yields the given .eml files in the order given
type FileSource struct {
	paths  []string
	parser *Parser
	logger *zap.Logger
}

// NewFileSource creates a new file source
func NewFileSource(paths []string, parser *Parser, logger *zap.Logger) *FileSource {
	return &FileSource{paths: paths, parser: parser, logger: logger}
}

// Messages parses the configured files
func (s *FileSource) Messages(ctx context.Context) ([]*core.RawMessage, error) {
	return parseAll(ctx, s.parser, s.paths, s.logger)
}

func parseAll(ctx context.Context, parser *Parser, paths []string, logger *zap.Logger) ([]*core.RawMessage, error) {
	msgs := make([]*core.RawMessage, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := parser.ParseFile(path)
		if err != nil {
			logger.Warn("Skipping unreadable message", zap.String("path", path), zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}

	logger.Debug("Loaded messages", zap.Int("count", len(msgs)), zap.Int("files", len(paths)))
	return msgs, nil
}

// ReaderSource yields a single message read from a stream such as stdin
type ReaderSource struct {
	id     string
	r      io.Reader
	parser *Parser
}

// NewReaderSource creates a new single-message source
func NewReaderSource(id string, r io.Reader, parser *Parser) *ReaderSource {
	return &ReaderSource{id: id, r: r, parser: parser}
}

// Messages parses the stream. Unlike the file sources a parse failure is an error.
func (s *ReaderSource) Messages(ctx context.Context) ([]*core.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg, err := s.parser.Parse(s.id, s.r)
	if err != nil {
		return nil, err
	}
	return []*core.RawMessage{msg}, nil
}
