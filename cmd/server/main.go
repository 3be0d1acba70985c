// Package main is the entry point for the user segments server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (from env vars)
// 2. Create dependencies (logger, record store)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sakif/user-segments/internal/config"
	"github.com/sakif/user-segments/internal/repository"
	"github.com/sakif/user-segments/internal/repository/memory"
	"github.com/sakif/user-segments/internal/repository/postgres"
	"github.com/sakif/user-segments/internal/repository/sqlite"
	"github.com/sakif/user-segments/internal/seed"
	"github.com/sakif/user-segments/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run holds everything main does, so deferred cleanups run before os.Exit.
func run() error {
	// === 1. READ CONFIGURATION ===
	// Every setting comes from the environment; see internal/config for the
	// full list and defaults.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// === 2. SET UP LOGGING ===
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// === 3. SIGNALS ===
	// ctx is cancelled on Ctrl+C or SIGTERM, which triggers graceful shutdown
	// in server.Start.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === 4. OPEN THE RECORD STORE ===
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// === 5. SEED SAMPLE USERS ===
	// Only touches an empty store, so restarts never duplicate the sample.
	if cfg.SeedSampleData {
		if _, err := seed.Users(ctx, store, logger); err != nil {
			store.Close()
			return err
		}
	}

	// === 6. CREATE AND START THE SERVER ===
	// Start blocks until ctx is cancelled, and closes the store on the way out.
	srv := server.New(server.Config{
		Port:            cfg.Port,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger, store)

	return srv.Start(ctx)
}

// openStore opens the store STORE_DRIVER names.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		logger.Info("record store opened", slog.String("driver", cfg.StoreDriver))
		return db, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil

	default:
		// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
		// 0755 = owner can read/write/execute, others can read/execute.
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dbDir, err)
		}

		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("record store opened",
			slog.String("driver", cfg.StoreDriver),
			slog.String("path", cfg.DBPath),
		)
		return db, nil
	}
}
