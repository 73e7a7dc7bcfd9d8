package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/proctorly/proctor-backend/internal/config"
	"github.com/proctorly/proctor-backend/internal/handler"
	"github.com/proctorly/proctor-backend/internal/middleware"
	"github.com/proctorly/proctor-backend/internal/response"
	"github.com/proctorly/proctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Session    *handler.SessionHandler
	Play       *handler.PlayHandler
	Extraction *handler.ExtractionHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/admin/login", handlers.Auth.AdminLogin)
	}

	// ─── 2. Admin Group (Admin JWT) ────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.POST("/takers/:taker_id/token", handlers.Auth.IssueTakerToken)

		adminAPI.POST("/tests/:test_id/session", handlers.Session.Create)
		adminAPI.GET("/tests/:test_id/session", handlers.Session.Get)
		adminAPI.POST("/tests/:test_id/session/control", handlers.Session.Control)

		adminAPI.POST("/extraction", handlers.Extraction.Extract)
		adminAPI.GET("/extraction/jobs/:job_id", handlers.Extraction.GetJob)
	}

	// ─── 3. Play Group (Taker JWT) ─────────────────────────────────────
	playAPI := router.Group("/api/v1/play")
	playAPI.Use(middleware.RequireTakerJWT(authService))
	{
		playAPI.POST("/tests/:test_id/attempts", handlers.Play.StartAttempt)
		playAPI.POST("/attempts/:attempt_id/answers", handlers.Play.SaveAnswer)
		playAPI.POST("/attempts/:attempt_id/violations", handlers.Play.RecordViolation)
		playAPI.POST("/attempts/:attempt_id/submit", handlers.Play.Submit)
	}

	return router
}

// SetupGatewayRouter configures the real-time gateway process: the
// WebSocket stream plus a health check. REST traffic never lands here.
func SetupGatewayRouter(
	authService *service.AuthService,
	gatewayHandler *handler.GatewayHandler,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	router.Use(response.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/tests/stream", gatewayHandler.Stream)
	}

	return router
}
