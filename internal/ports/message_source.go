package ports

import (
	"context"

	"github.com/mikey/phish-triage/internal/core"
)

// MessageSource yields raw messages to triage
type MessageSource interface {
	// Messages returns every message the source can read, in a stable order
	Messages(ctx context.Context) ([]*core.RawMessage, error)
}
