package pipeline

import (
	"context"

	"segmenter/internal/core"
	"segmenter/internal/store"
)

// CustomerLoader provides the customer records to analyse
type CustomerLoader interface {
	// Load returns all records, fetching them first if necessary
	Load(ctx context.Context) ([]core.Customer, error)
}

// RunRecorder persists completed analyses
type RunRecorder interface {
	// SaveRun stores the run and returns its id
	SaveRun(run *store.Run) (string, error)
}

// StaticLoader serves records that are already in memory.
type StaticLoader []core.Customer

// Load returns the records unchanged.
func (s StaticLoader) Load(context.Context) ([]core.Customer, error) {
	return []core.Customer(s), nil
}
