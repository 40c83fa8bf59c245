package core

// scheduler.go prunes old import history in the background.
//
// The pruner runs once on start and then every Interval until the context is
// cancelled. A failed prune is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls history pruning.
type RetentionConfig struct {
	Retention time.Duration // Age after which imports are deleted (default: 30 days)
	Interval  time.Duration // How often to prune (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.Retention <= 0 {
		c.Retention = 30 * 24 * time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = 24 * time.Hour
	}
	return c
}

// StartHistoryPruner blocks, pruning history until ctx is cancelled.
// It returns immediately when no HistoryStore is configured.
func (s *Service) StartHistoryPruner(ctx context.Context, cfg RetentionConfig) {
	if s.history == nil {
		return
	}
	cfg = cfg.withDefaults()

	slog.Info("history pruner started",
		"retention", cfg.Retention.String(),
		"interval", cfg.Interval.String(),
	)

	s.pruneHistory(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			s.pruneHistory(ctx, cfg)
		}
	}
}

// pruneHistory performs one prune cycle.
func (s *Service) pruneHistory(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()
	cutoff := start.Add(-cfg.Retention)

	pruned, err := s.history.PruneImports(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}

	slog.Info("pruned import history",
		"imports_pruned", pruned,
		"cutoff", cutoff.UTC().Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
