package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/proctorly/proctor-backend/internal/broadcast"
	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/database"
	"github.com/proctorly/proctor-backend/internal/gateway"
	"github.com/proctorly/proctor-backend/internal/handler"
	"github.com/proctorly/proctor-backend/internal/kv"
	"github.com/proctorly/proctor-backend/internal/logger"
	"github.com/proctorly/proctor-backend/internal/router"
	"github.com/proctorly/proctor-backend/internal/service"
	"github.com/rs/zerolog"
)

// The gateway is a horizontally scalable fan-out process: it holds the
// WebSocket connections, subscribes to the session channel and relays
// every state delta into the matching room. It owns no domain state.
func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.GatewayPort).
		Str("mode", cfg.GinMode).
		Msg("Starting Proctorly gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	store := kv.NewRedisStore(rdb)
	hub := gateway.NewHub(log)
	authService := service.NewAuthService(cfg, nil)

	// ─── Relay: session channel → rooms ────────────────────────────────
	subCtx, subCancel := context.WithCancel(context.Background())
	subscriber := broadcast.NewSubscriber(store, log)
	go func() {
		if err := subscriber.Run(subCtx, hub.BroadcastState); err != nil && subCtx.Err() == nil {
			log.Fatal().Err(err).Msg("Session subscription failed")
		}
	}()

	gatewayHandler := handler.NewGatewayHandler(hub, cfg.AllowedOrigins, log)
	r := router.SetupGatewayRouter(authService, gatewayHandler, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.GatewayPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.GatewayPort).Msg("Gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Gateway error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	subCancel()
	time.Sleep(time.Second) // Let the relay drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
