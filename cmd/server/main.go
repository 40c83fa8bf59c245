package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/fleetimport/internal/config"
	"github.com/JonMunkholm/fleetimport/internal/core"
	_ "github.com/JonMunkholm/fleetimport/internal/core/schemas" // Register import kinds
	"github.com/JonMunkholm/fleetimport/internal/fleet"
	"github.com/JonMunkholm/fleetimport/internal/logging"
	"github.com/JonMunkholm/fleetimport/internal/metrics"
	"github.com/JonMunkholm/fleetimport/internal/store/postgres"
	"github.com/JonMunkholm/fleetimport/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"fleet_api", cfg.Fleet.BaseURL,
		"history_enabled", cfg.Database.Enabled(),
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"default_policy", cfg.Import.Policy(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	client, err := fleet.NewClient(fleet.ClientConfig{
		BaseURL:      cfg.Fleet.BaseURL,
		Token:        cfg.Fleet.Token,
		Timeout:      cfg.Fleet.Timeout,
		RateLimitRPS: cfg.Fleet.RateLimitRPS,
	})
	if err != nil {
		slog.Error("failed to create fleet client", "error", err)
		os.Exit(1)
	}

	metrics.MustRegister()
	opts := []core.Option{core.WithObserver(metrics.Recorder{})}

	ctx := context.Background()
	if cfg.Database.Enabled() {
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, cfg.Database.URL); err != nil {
				slog.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}

		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		slog.Info("import history enabled", "database", pool.Config().ConnConfig.Database)
		opts = append(opts, core.WithHistory(postgres.NewHistoryStore(pool)))
	} else {
		slog.Warn("DATABASE_URL not set, import history disabled")
	}

	service := core.NewService(client, client.Submit, core.ServiceConfig{
		MaxConcurrent:     cfg.Import.MaxConcurrent,
		MaxWait:           cfg.Import.MaxWaitTime,
		Timeout:           cfg.Import.Timeout,
		ResultRetention:   cfg.Import.ResultRetention,
		DefaultPolicy:     cfg.Import.Policy(),
		SkipMalformedRows: cfg.Import.SkipMalformedRows,
	}, opts...)

	slog.Info("import kinds registered", "kinds", core.Kinds())

	server := web.NewServer(service, client, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go service.StartHistoryPruner(jobCtx, core.RetentionConfig{
		Retention: cfg.History.Retention,
		Interval:  cfg.History.PruneInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running imports finish before closing connections.
		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.Shutdown(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
