package ports

import (
	"context"

	"github.com/mikey/phish-triage/internal/core"
)

// EmailFilter defines the interface for a message filter front end
type EmailFilter interface {
	// ProcessEmail triages a message and returns the result
	ProcessEmail(ctx context.Context, msg *core.RawMessage) (*core.TriageResult, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
