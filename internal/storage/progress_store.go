package storage

import "context"

// Progress represents the last fully indexed block for a named cursor.
type Progress struct {
	Name      string // cursor name, e.g. "uniswap-v2"
	LastBlock uint64 // last block whose logs were all processed
}

// ProgressStore provides persistence for indexer state.
// This enables resumption after restarts without reprocessing whole ranges.
type ProgressStore interface {
	// GetProgress returns the cursor for name.
	// Returns ErrNotFound if no progress has been saved yet.
	GetProgress(ctx context.Context, name string) (*Progress, error)

	// SetProgress saves the cursor.
	SetProgress(ctx context.Context, progress *Progress) error
}
