package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/fleetimport/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

var _ core.HistoryStore = (*HistoryStore)(nil)

// HistoryStore records finished imports in import_runs and their per-row
// failures in import_failures.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a store on pool. Run Migrate first.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// RecordImport stores the run and bulk-copies its failures in one transaction.
func (s *HistoryStore) RecordImport(ctx context.Context, summary core.ImportSummary) error {
	id, err := uuid.Parse(summary.ImportID)
	if err != nil {
		return fmt.Errorf("record import: invalid import id %q: %w", summary.ImportID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Warn("rollback import run", "import_id", summary.ImportID, "error", rbErr)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO import_runs (
			id, kind, file_name, policy, total, succeeded, failed,
			skipped_rows, terminal, cancelled, message, started_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`,
		id, summary.Kind, summary.FileName, string(summary.Policy),
		summary.Total, summary.Succeeded, summary.Failed, summary.SkippedRows,
		summary.Terminal, summary.Cancelled, summary.Message,
		summary.StartedAt, summary.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}

	if rows := failureRows(id, summary.Failures); len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"import_failures"},
			[]string{"import_id", "line", "record_key", "stage", "reason"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy import failures: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import run: %w", err)
	}
	return nil
}

// RecentImports returns up to limit runs, newest first. An empty kind
// matches every kind.
func (s *HistoryStore) RecentImports(ctx context.Context, kind string, limit int) ([]core.ImportSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, file_name, policy, total, succeeded, failed,
		       skipped_rows, terminal, cancelled, message, started_at, duration_ms
		FROM import_runs
		WHERE ($1::text = '' OR kind = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`, kind, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}
	defer rows.Close()

	out := []core.ImportSummary{}
	for rows.Next() {
		var (
			id         uuid.UUID
			policy     string
			durationMS int64
			s          core.ImportSummary
		)
		if err := rows.Scan(
			&id, &s.Kind, &s.FileName, &policy, &s.Total, &s.Succeeded, &s.Failed,
			&s.SkippedRows, &s.Terminal, &s.Cancelled, &s.Message, &s.StartedAt, &durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		s.ImportID = id.String()
		s.Policy = core.FailurePolicy(policy)
		s.Duration = time.Duration(durationMS) * time.Millisecond
		s.StartedAt = s.StartedAt.UTC()
		s.Failures = []core.ImportOutcome{}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import runs: %w", err)
	}
	return out, nil
}

// ImportFailures loads the stored per-row failures of one run.
func (s *HistoryStore) ImportFailures(ctx context.Context, importID string) ([]core.ImportOutcome, error) {
	id, err := uuid.Parse(importID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrImportNotFound, importID)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT line, record_key, stage, reason
		FROM import_failures
		WHERE import_id = $1
		ORDER BY line
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query import failures: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.ImportOutcome, error) {
		var (
			o     core.ImportOutcome
			stage string
		)
		err := row.Scan(&o.Line, &o.Key, &stage, &o.Reason)
		o.Stage = core.Stage(stage)
		return o, err
	})
}

// PruneImports deletes runs started before cutoff. Failures cascade.
func (s *HistoryStore) PruneImports(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM import_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune import runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// failureRows converts outcomes to CopyFrom rows.
func failureRows(id uuid.UUID, failures []core.ImportOutcome) [][]any {
	rows := make([][]any, 0, len(failures))
	for _, f := range failures {
		if f.Success {
			continue
		}
		rows = append(rows, []any{id, int32(f.Line), f.Key, string(f.Stage), f.Reason})
	}
	return rows
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	default:
		return limit
	}
}
