package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/cleargate/payline/internal/config"
	"github.com/cleargate/payline/internal/database"
	"github.com/cleargate/payline/internal/export"
	payHttp "github.com/cleargate/payline/internal/http"
	exportHandler "github.com/cleargate/payline/internal/http/export"
	intakeHandler "github.com/cleargate/payline/internal/http/intake"
	itemHandler "github.com/cleargate/payline/internal/http/item"
	txHandler "github.com/cleargate/payline/internal/http/transaction"
	"github.com/cleargate/payline/internal/intake"
	"github.com/cleargate/payline/internal/settlement"
	"github.com/cleargate/payline/internal/settlement/memstore"
	"github.com/cleargate/payline/internal/settlement/sqlitestore"
	"github.com/cleargate/payline/internal/settlement/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	repo, healthCheck, cleanup, err := openRepository(cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var (
		settlementService = settlement.NewService(repo)
		exportService     = export.NewService(settlementService)
		batchParser       = intake.NewParser()
	)

	var (
		itemH   = itemHandler.NewHandler(settlementService)
		txH     = txHandler.NewHandler(settlementService)
		intakeH = intakeHandler.NewHandler(batchParser, settlementService)
		exportH = exportHandler.NewHandler(exportService)
	)

	router := payHttp.New(itemH, txH, intakeH, exportH, healthCheck)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	slog.Info("starting server", "app", cfg.App.Name, "driver", cfg.DB.Driver, "port", port)

	srv := &http.Server{
		Addr:         port,
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// openRepository builds the configured storage backend. It returns the
// repository, a readiness check for /healthz (nil when the backend has
// nothing to probe) and a cleanup function.
func openRepository(cfg *config.Config) (settlement.Repository, func(context.Context) error, func(), error) {
	switch cfg.DB.Driver {
	case "postgres":
		db, err := database.New(cfg.ConnectionString())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
		}

		if err := database.RunMigrations(db, cfg.DB.Name); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}

		return store.New(db), db.PingContext, func() { db.Close() }, nil

	case "sqlite":
		st, err := sqlitestore.Open(cfg.DB.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}

		return st, st.Ping, func() { st.Close() }, nil

	case "memory":
		return memstore.New(), nil, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown database driver %q", cfg.DB.Driver)
	}
}
