package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const moverInterval = time.Second

// Handler executes one job. A non-nil return value is stored as the job
// result; a returned error schedules a retry until attempts run out.
// Handlers may run concurrently and must not rely on execution order.
type Handler func(ctx context.Context, job *Job) (interface{}, error)

// Worker consumes one queue with a bounded pool of goroutines. Each job
// runs to completion without preemption; cancellation only stops picking
// up new work.
type Worker struct {
	queue       *Queue
	concurrency int
	handlers    map[string]Handler
}

// NewWorker creates a worker pool over a queue.
func NewWorker(q *Queue, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:       q,
		concurrency: concurrency,
		handlers:    make(map[string]Handler),
	}
}

// Handle registers the handler for a job name. Must be called before Run.
func (w *Worker) Handle(name string, h Handler) {
	w.handlers[name] = h
}

// Run blocks consuming jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.queue.log.Info().Int("concurrency", w.concurrency).Msg("Worker started")

	var wg sync.WaitGroup
	wg.Add(w.concurrency + 1)

	for i := 0; i < w.concurrency; i++ {
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	go func() {
		defer wg.Done()
		w.moveDelayed(ctx)
	}()

	wg.Wait()
	w.queue.log.Info().Msg("Worker stopped")
}

func (w *Worker) consume(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		result, err := w.queue.rdb.BLPop(ctx, pollTimeout, w.queue.listKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // queue empty
			}
			if ctx.Err() != nil {
				return
			}
			w.queue.log.Error().Err(err).Msg("Queue pop error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			// Malformed jobs cannot be retried. Log and discard.
			w.queue.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed job")
			continue
		}

		w.execute(ctx, &job)
	}
}

func (w *Worker) execute(ctx context.Context, job *Job) {
	job.Attempts++

	w.setState(ctx, job, StatusRunning, nil, "", pendingRetention)

	handler, ok := w.handlers[job.Name]
	if !ok {
		w.queue.log.Error().Str("job", job.Name).Str("job_id", job.ID).Msg("No handler registered, failing job")
		w.setState(ctx, job, StatusFailed, nil, "no handler registered", resultRetention)
		return
	}

	result, err := handler(ctx, job)
	if err == nil {
		var raw json.RawMessage
		if result != nil {
			raw, _ = json.Marshal(result)
		}
		w.setState(ctx, job, StatusCompleted, raw, "", resultRetention)
		return
	}

	if job.Attempts >= job.MaxAttempts {
		w.queue.log.Error().
			Err(err).
			Str("job", job.Name).
			Str("job_id", job.ID).
			Int("attempts", job.Attempts).
			Msg("Job exhausted retries")
		w.setState(ctx, job, StatusFailed, nil, err.Error(), resultRetention)
		return
	}

	delay := Backoff(job.Attempts)
	w.queue.log.Warn().
		Err(err).
		Str("job", job.Name).
		Str("job_id", job.ID).
		Int("attempt", job.Attempts).
		Dur("retry_in", delay).
		Msg("Job failed, scheduling retry")

	w.setState(ctx, job, StatusQueued, nil, err.Error(), pendingRetention)

	data, marshalErr := json.Marshal(job)
	if marshalErr != nil {
		w.setState(ctx, job, StatusFailed, nil, marshalErr.Error(), resultRetention)
		return
	}
	if err := w.queue.rdb.ZAdd(ctx, w.queue.delayedKey(), redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: data,
	}).Err(); err != nil {
		w.queue.log.Error().Err(err).Str("job_id", job.ID).Msg("Retry scheduling failed, job lost to the failed set")
		w.setState(ctx, job, StatusFailed, nil, err.Error(), resultRetention)
	}
}

// moveDelayed moves due retries and scheduled jobs from the sorted set back
// onto the ready list. Every worker process runs one mover; ZRem makes the
// move idempotent across racing movers (a member only moves once).
func (w *Worker) moveDelayed(ctx context.Context) {
	ticker := time.NewTicker(moverInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := fmt.Sprintf("%d", time.Now().UnixMilli())
		due, err := w.queue.rdb.ZRangeByScore(ctx, w.queue.delayedKey(), &redis.ZRangeBy{
			Min: "-inf", Max: now, Count: 100,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				w.queue.log.Error().Err(err).Msg("Delayed scan error")
			}
			continue
		}

		for _, member := range due {
			removed, err := w.queue.rdb.ZRem(ctx, w.queue.delayedKey(), member).Result()
			if err != nil || removed == 0 {
				continue // another mover claimed it
			}
			if err := w.queue.rdb.RPush(ctx, w.queue.listKey(), member).Err(); err != nil {
				w.queue.log.Error().Err(err).Msg("Requeue of due job failed, restoring to delayed set")
				w.queue.rdb.ZAdd(ctx, w.queue.delayedKey(), redis.Z{
					Score:  float64(time.Now().UnixMilli()),
					Member: member,
				})
			}
		}
	}
}

func (w *Worker) setState(ctx context.Context, job *Job, status Status, result json.RawMessage, lastError string, ttl time.Duration) {
	state := &JobState{
		ID:        job.ID,
		Name:      job.Name,
		Status:    status,
		Attempts:  job.Attempts,
		Result:    result,
		LastError: lastError,
		UpdatedAt: time.Now(),
	}
	if err := w.queue.writeState(ctx, state, ttl); err != nil && ctx.Err() == nil {
		w.queue.log.Error().Err(err).Str("job_id", job.ID).Msg("Job state write failed")
	}
}
