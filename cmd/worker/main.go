package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/database"
	"github.com/proctorly/proctor-backend/internal/extraction"
	"github.com/proctorly/proctor-backend/internal/kv"
	"github.com/proctorly/proctor-backend/internal/logger"
	"github.com/proctorly/proctor-backend/internal/queue"
	"github.com/proctorly/proctor-backend/internal/repository"
	"github.com/proctorly/proctor-backend/internal/service"
	"github.com/proctorly/proctor-backend/internal/worker"
	"github.com/rs/zerolog"
)

// The worker process drains the grading and extraction queues. It scales
// independently of the API servers; job payloads are self-sufficient so
// any instance can pick up any job.
func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Int("grading_concurrency", cfg.GradingConcurrency).
		Int("extraction_concurrency", cfg.ExtractionConcurrency).
		Msg("Starting Proctorly worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	store := kv.NewRedisStore(rdb)

	testRepo := repository.NewTestRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)

	answerKeyService := service.NewAnswerKeyService(store, testRepo, cfg.AnswerKeyTTL, log)
	gradingService := service.NewGradingService(attemptRepo, answerKeyService, log)
	extractionClient := extraction.NewClient(cfg.ExtractionServiceURL, log)

	gradingQueue := queue.New(rdb, config.QueueKey.GradingQueue, log)
	extractionQueue := queue.New(rdb, config.QueueKey.ExtractionQueue, log)

	gradingWorker := worker.NewGradingWorker(gradingQueue, gradingService, attemptRepo, cfg.GradingConcurrency, log)
	extractionWorker := worker.NewExtractionWorker(extractionQueue, extractionClient, cfg.ExtractionConcurrency, log)

	workerCtx, workerCancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		gradingWorker.Start(workerCtx)
	}()
	go func() {
		defer wg.Done()
		extractionWorker.Start(workerCtx)
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	workerCancel()
	wg.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
