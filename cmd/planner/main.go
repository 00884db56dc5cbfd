package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"

	"github.com/decorsur/cortiplan/internal/config"
	"github.com/decorsur/cortiplan/internal/domain/bom"
	"github.com/decorsur/cortiplan/internal/domain/catalog"
	"github.com/decorsur/cortiplan/internal/domain/orders"
	"github.com/decorsur/cortiplan/internal/domain/remnants"
	"github.com/decorsur/cortiplan/internal/domain/stock"
	"github.com/decorsur/cortiplan/internal/infra/db"
	httpx "github.com/decorsur/cortiplan/internal/infra/http"
	"github.com/decorsur/cortiplan/internal/infra/logger"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

func runMigrations(dsn string, log *slog.Logger) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN, log); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	stocks := stock.NewPGRepo(pool)
	orch := orders.New(
		catalog.NewRepo(pool),
		bom.NewCalculator(log),
		stocks,
		remnants.NewManager(remnants.NewPGRepo(pool), log),
		orders.NewPGPlanRepo(pool),
		log,
	)

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, orch, orders.NewPGPlanRepo(pool), stocks, cfg.Planning.DisplayPrecision, log)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
