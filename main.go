package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	bidding "github.com/Olivier33jnspe/bidmenow/internal/biddingService"
	"github.com/Olivier33jnspe/bidmenow/internal/clock"
	"github.com/Olivier33jnspe/bidmenow/internal/config"
	"github.com/Olivier33jnspe/bidmenow/internal/events"
	"github.com/Olivier33jnspe/bidmenow/internal/ledger"
	"github.com/Olivier33jnspe/bidmenow/internal/repository"
	"github.com/Olivier33jnspe/bidmenow/internal/repository/mysql"
	"github.com/Olivier33jnspe/bidmenow/internal/server"
	"github.com/Olivier33jnspe/bidmenow/internal/users"
	"github.com/Olivier33jnspe/bidmenow/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Fatal("failed to load config", map[string]any{"error": err.Error()})
	}
	utils.SetLevel(cfg.Log.Level)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.Info("configuration loaded", map[string]any{"config": cfg.String()})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := repository.NewMemoryAuctionStore()
	bidLedger := ledger.NewLedger()
	directory := users.NewDirectory()

	journal, closeJournal := openJournal(ctx, cfg)
	defer closeJournal()

	if _, err := bidding.Restore(ctx, journal, store, bidLedger, directory); err != nil {
		utils.Fatal("failed to restore from journal", map[string]any{"error": err.Error()})
	}

	publisher, closePublisher := openPublisher(ctx, cfg)
	defer closePublisher()

	clk := clock.NewSystemClock()
	coordinator := bidding.NewCoordinator(store, bidLedger, directory, journal, publisher, clk, bidding.Options{
		AcquireTimeout: cfg.Lane.AcquireTimeout,
		MaxAttempts:    cfg.Lane.MaxAttempts,
		RetryBackoff:   cfg.Lane.RetryBackoff,
		PersistTimeout: cfg.Persistence.Timeout,
		PublishTimeout: cfg.Events.PublishTimeout,
	})
	auctionSvc := bidding.NewAuctionService(coordinator, directory)

	if cfg.Seed.Enabled && len(store.List()) == 0 {
		if err := seedSampleAuction(ctx, auctionSvc, clk); err != nil {
			utils.Error("failed to seed sample auction", map[string]any{"error": err.Error()})
		}
	}

	janitor := bidding.NewJanitor(coordinator, cfg.Janitor.Schedule)
	if err := janitor.Start(ctx); err != nil {
		utils.Fatal("failed to start janitor", map[string]any{"error": err.Error()})
	}
	defer janitor.Stop()

	router := server.SetupRouter(auctionSvc)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Error("server stopped unexpectedly", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	utils.Info("shutting down auction server", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("graceful shutdown failed", map[string]any{"error": err.Error()})
	}
}

// openJournal returns the configured journal and a function releasing it
func openJournal(ctx context.Context, cfg *config.Config) (repository.Journal, func()) {
	if cfg.Persistence.Driver != config.DriverMySQL {
		utils.Info("journal disabled, state is memory only", nil)
		return repository.NopJournal{}, func() {}
	}

	db, err := mysql.Open(cfg.MySQL.DSN, cfg.MySQL.MaxOpenConns, cfg.MySQL.MaxIdleConns, cfg.MySQL.ConnMaxLifetime)
	if err != nil {
		utils.Fatal("failed to open mysql", map[string]any{"error": err.Error()})
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Persistence.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		utils.Fatal("failed to ping mysql", map[string]any{"error": err.Error()})
	}

	journal := mysql.NewJournal(db)
	if err := journal.EnsureSchema(pingCtx); err != nil {
		utils.Fatal("failed to prepare journal schema", map[string]any{"error": err.Error()})
	}

	utils.Info("mysql journal ready", nil)
	return journal, func() { closeDB(db) }
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		utils.Warn("closing mysql", map[string]any{"error": err.Error()})
	}
}

// openPublisher returns the configured event publisher and a function releasing it.
// An unreachable Redis only disables events; bidding keeps working.
func openPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, func()) {
	if !cfg.Redis.Enabled {
		return events.NopPublisher{}, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		utils.Warn("redis unreachable, events disabled", map[string]any{"address": cfg.Redis.Address, "error": err.Error()})
		_ = rdb.Close()
		return events.NopPublisher{}, func() {}
	}

	utils.Info("publishing events to redis", map[string]any{"address": cfg.Redis.Address, "channel": cfg.Redis.Channel})
	return events.NewRedisPublisher(rdb, cfg.Redis.Channel), func() { _ = rdb.Close() }
}
