package core

import (
	"context"
	"errors"
	"time"
)

// ErrHistoryDisabled is returned when no HistoryStore is configured.
var ErrHistoryDisabled = errors.New("import history is not configured")

// HistoryStore persists finished import summaries.
type HistoryStore interface {
	// RecordImport stores a summary and its per-row failures.
	RecordImport(ctx context.Context, summary ImportSummary) error

	// RecentImports returns up to limit summaries, newest first.
	// An empty kind matches every kind. Failures are not loaded.
	RecentImports(ctx context.Context, kind string, limit int) ([]ImportSummary, error)

	// ImportFailures returns the stored per-row failures of one import.
	ImportFailures(ctx context.Context, importID string) ([]ImportOutcome, error)

	// PruneImports deletes imports started before cutoff and returns the count.
	PruneImports(ctx context.Context, cutoff time.Time) (int64, error)
}
