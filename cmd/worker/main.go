package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"repair-job-service/internal/config"
	"repair-job-service/internal/repository/postgresql"
	"repair-job-service/internal/service"
	"repair-job-service/internal/worker"
)

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

	// the in-memory store lives inside the API process
	if cfg.Store != config.StorePostgres {
		log.Fatal("worker requires STORE=postgres", zap.String("store", cfg.Store))
	}
	if cfg.RedisAddr == "" {
		log.Fatal("worker requires REDIS_ADDR")
	}

	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	queue := service.NewRedisPriorityQueue(
		rdb,
		cfg.RedisProcessingMapKey,
		service.LanesFor(cfg.RedisQueueKey, cfg.RedisProcessingKey),
	)

	// jobs left in processing by a crashed worker go back to their lane
	go worker.Reap(ctx, queue, cfg.RequeueInterval, log)

	store := postgresql.NewStore(pool)
	jobs := service.NewJobService(store, nil, service.Options{Logger: log})
	audit := service.NewAuditTrail(store)

	processor := worker.NewProcessor(jobs, audit, worker.NewLogSender(log), log)

	log.Info("worker started", cfg.Fields()...)
	worker.NewPool(queue, processor, cfg.Workers, log).Run(ctx)
	log.Info("worker stopped")
}
