package ports

import (
	"github.com/mikey/phish-triage/internal/core"
)

// Reporter collects triage results and writes them out once a run is done
type Reporter interface {
	// Record adds a result to the run
	Record(result *core.TriageResult) error

	// Finalize writes the collected results
	Finalize() error
}

// ResultStore is a result repository with a lifecycle
type ResultStore interface {
	core.ResultRepository

	// Stop releases the store's resources
	Stop()
}
