package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"repair-job-service/internal/config"
	"repair-job-service/internal/repository/memory"
	"repair-job-service/internal/repository/postgresql"
	"repair-job-service/internal/service"
	httptransport "repair-job-service/internal/transport/http"
)

// @title			Repair Job Service API
// @version		1.0
// @description	Repair jobs, part withdrawals and the job activity trail.
// @BasePath		/
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	var store service.Store
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on exit")
		store = memory.NewStore()
	default:
		pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres", zap.Error(err))
		}
		defer pool.Close()
		if cfg.PostgresMigrate {
			if err := postgresql.Migrate(ctx, pool); err != nil {
				log.Fatal("migrate", zap.Error(err))
			}
		}
		store = postgresql.NewStore(pool)
	}

	var queue service.JobQueue
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		queue = service.NewRedisPriorityQueue(
			rdb,
			cfg.RedisProcessingMapKey,
			service.LanesFor(cfg.RedisQueueKey, cfg.RedisProcessingKey),
		)
	} else {
		log.Info("REDIS_ADDR not set, notifications disabled")
	}

	opts := service.Options{
		Logger:               log,
		RestoreStockOnDelete: cfg.RestoreStockOnDelete,
		MaxCreateAttempts:    cfg.JobNumberMaxAttempts,
	}
	jobs := service.NewJobService(store, queue, opts)
	ledger := service.NewPartLedger(store, opts)
	audit := service.NewAuditTrail(store)

	h := httptransport.NewHandler(jobs, ledger, audit, log)
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httptransport.Routes(h, httptransport.RouterConfig{
			JWTSecret:      []byte(cfg.JWTSecret),
			RequestTimeout: cfg.RequestTimeout,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()

	log.Info("api started", cfg.Fields()...)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("listen", zap.Error(err))
	}
	log.Info("api stopped")
}
