package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"repair-job-service/internal/service"
)

type Pool struct {
	queue      service.Queue
	processor  *Processor
	workers    int
	claimDelay time.Duration
	log        *zap.Logger
}

func NewPool(queue service.Queue, processor *Processor, workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
		log:        log,
	}
}

// Run claims queued notices until ctx ends, then waits for in-flight
// notifications to finish.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("worker pool started", zap.Int("workers", p.workers))

	itemCh := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for item := range itemCh {
				if err := p.processor.Process(ctx, item); err != nil {
					p.log.Warn("process notification",
						zap.Int("worker", n),
						zap.String("item", item),
						zap.Error(err),
					)
				}

				// Ack regardless: a failed send is logged and counted, not retried.
				// Items claimed by a worker that died before this point are
				// returned to the queue by RequeueStale.
				if err := p.queue.Ack(context.WithoutCancel(ctx), item); err != nil {
					p.log.Warn("ack notification", zap.Int("worker", n), zap.String("item", item), zap.Error(err))
				}
			}
		}(i + 1)
	}

	defer func() {
		close(itemCh)
		wg.Wait()
		p.log.Info("worker pool stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		item, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
		if err != nil {
			// redis.Nil is a claim timeout with nothing queued
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				p.log.Warn("claim notification", zap.Error(err))
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
			}
			continue
		}
		select {
		case itemCh <- item:
		case <-ctx.Done():
			return
		}
	}
}

// Reap requeues ids stuck in processing every interval until ctx ends.
func Reap(ctx context.Context, queue service.Queue, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := queue.RequeueStale(ctx, 100)
			if err != nil {
				log.Warn("requeue stale notifications", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("requeued stale notifications", zap.Int64("count", n))
			}
		}
	}
}
