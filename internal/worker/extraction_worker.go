package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/extraction"
	"github.com/proctorly/proctor-backend/internal/queue"
	"github.com/rs/zerolog"
)

// ExtractionWorker consumes parse-pdf jobs. Concurrency stays low by
// default: every job is a costly external-service call.
type ExtractionWorker struct {
	worker *queue.Worker
	log    zerolog.Logger
}

// NewExtractionWorker wires the extraction handler onto a worker pool.
func NewExtractionWorker(q *queue.Queue, client *extraction.Client, concurrency int, log zerolog.Logger) *ExtractionWorker {
	ew := &ExtractionWorker{
		worker: queue.NewWorker(q, concurrency),
		log:    log.With().Str("component", "extraction_worker").Logger(),
	}

	ew.worker.Handle(config.JobParsePDF, func(ctx context.Context, job *queue.Job) (interface{}, error) {
		var req extraction.Request
		if err := json.Unmarshal(job.Payload, &req); err != nil {
			return nil, fmt.Errorf("decode extraction payload: %w", err)
		}
		result, err := client.Extract(ctx, req)
		if err != nil {
			return nil, err
		}
		return result, nil
	})

	return ew
}

// Start blocks consuming extraction jobs until the context is cancelled.
func (ew *ExtractionWorker) Start(ctx context.Context) {
	ew.log.Info().Msg("ExtractionWorker started")
	ew.worker.Run(ctx)
}
