package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"repair-job-service/internal/entity"
)

// Queue carries encoded Notices from the API to the notification worker.
type Queue interface {
	JobQueue
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, item string) error
	RequeueStale(ctx context.Context, maxPerLane int64) (int64, error)
}

type Lane struct {
	QueueKey      string
	ProcessingKey string
}

// LanesFor derives one lane per job priority from base key names.
func LanesFor(queueKey, processingKey string) map[entity.Priority]Lane {
	lanes := make(map[entity.Priority]Lane, 3)
	for _, p := range []entity.Priority{entity.PriorityNormal, entity.PriorityUrgent, entity.PriorityCritical} {
		lanes[p] = Lane{
			QueueKey:      fmt.Sprintf("%s:%s", queueKey, p),
			ProcessingKey: fmt.Sprintf("%s:%s", processingKey, p),
		}
	}
	return lanes
}

// RedisPriorityQueue is a reliable queue over Redis lists with one lane per
// job priority. Claim moves an id from lane.queue to lane.processing
// (BRPOPLPUSH) and records the lane in a hash so Ack can LREM it from the
// right list. Delivery is at-least-once.
type RedisPriorityQueue struct {
	rdb              *redis.Client
	processingMapKey string
	// claim order, critical first
	order []Lane
	lanes map[entity.Priority]Lane
}

func NewRedisPriorityQueue(rdb *redis.Client, processingMapKey string, lanes map[entity.Priority]Lane) *RedisPriorityQueue {
	return &RedisPriorityQueue{
		rdb:              rdb,
		processingMapKey: processingMapKey,
		order:            []Lane{lanes[entity.PriorityCritical], lanes[entity.PriorityUrgent], lanes[entity.PriorityNormal]},
		lanes:            lanes,
	}
}

func (q *RedisPriorityQueue) lane(priority int) Lane {
	p := entity.Priority(priority)
	if !p.Valid() {
		p = entity.PriorityNormal
	}
	return q.lanes[p]
}

func (q *RedisPriorityQueue) Enqueue(ctx context.Context, item string, priority int) error {
	return q.rdb.LPush(ctx, q.lane(priority).QueueKey, item).Err()
}

// ClaimBlocking polls the lanes in priority order with short blocking
// slots. A non-positive timeout blocks until ctx ends.
func (q *RedisPriorityQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	slot := time.Second
	if !forever && timeout < slot {
		slot = timeout
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		for _, ln := range q.order {
			wait := slot
			if !forever {
				remain := time.Until(deadline)
				if remain <= 0 {
					return "", redis.Nil
				}
				wait = min(wait, remain)
			}

			id, err := q.rdb.BRPopLPush(ctx, ln.QueueKey, ln.ProcessingKey, wait).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return "", err
			}
			if err := q.rdb.HSet(ctx, q.processingMapKey, id, ln.ProcessingKey).Err(); err != nil {
				return "", fmt.Errorf("remember lane for %s: %w", id, err)
			}
			return id, nil
		}
	}
}

func (q *RedisPriorityQueue) Ack(ctx context.Context, item string) error {
	processingKey, err := q.rdb.HGet(ctx, q.processingMapKey, item).Result()
	if errors.Is(err, redis.Nil) {
		// lane unknown, sweep every processing list
		for _, ln := range q.order {
			_ = q.rdb.LRem(ctx, ln.ProcessingKey, 1, item).Err()
		}
		return nil
	}
	if err != nil {
		return err
	}

	if err := q.rdb.LRem(ctx, processingKey, 1, item).Err(); err != nil {
		return err
	}
	return q.rdb.HDel(ctx, q.processingMapKey, item).Err()
}

// RequeueStale moves up to maxPerLane ids per lane from processing back to
// the queue. Run it periodically to recover from crashed workers.
func (q *RedisPriorityQueue) RequeueStale(ctx context.Context, maxPerLane int64) (int64, error) {
	var moved int64
	for _, ln := range q.order {
		for i := int64(0); i < maxPerLane; i++ {
			id, err := q.rdb.RPopLPush(ctx, ln.ProcessingKey, ln.QueueKey).Result()
			if errors.Is(err, redis.Nil) {
				break
			}
			if err != nil {
				return moved, err
			}
			moved++
			_ = q.rdb.HDel(ctx, q.processingMapKey, id).Err()
		}
	}
	return moved, nil
}
