package ginserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"realty/internal/app/commands"
	"realty/internal/app/queries"
	"realty/internal/infra/config"
	"realty/internal/infra/obs"
)

// Deps carries what the HTTP surface dispatches into.
type Deps struct {
	Commands     commands.Bus
	Queries      queries.Bus
	OperatorKeys keyChecker
	Logger       *slog.Logger
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, deps Deps) *http.Server {
	mode := configureGinMode(cfg.Env)
	if deps.Logger != nil {
		deps.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	quotes := QuoteHandler{Queries: deps.Queries, Logger: deps.Logger}
	checkout := CheckoutHandler{Commands: deps.Commands, Logger: deps.Logger}
	webhooks := WebhookHandler{Commands: deps.Commands, Logger: deps.Logger}
	availability := AvailabilityHandler{Queries: deps.Queries, Logger: deps.Logger}
	admin := AdminHandler{Commands: deps.Commands, Queries: deps.Queries, Logger: deps.Logger}

	api := router.Group("/api/v1")
	api.POST("/quotes", quotes.Quote)
	api.POST("/checkout", checkout.Create)
	api.POST("/webhooks/payments", webhooks.Payments)
	api.GET("/properties/:id/availability", availability.Blocked)
	api.GET("/properties/:id/calendar.ics", availability.Calendar)

	ops := api.Group("/admin", OperatorAuth{Keys: deps.OperatorKeys, Logger: deps.Logger}.Handle)
	ops.GET("/properties/:id", admin.GetProperty)
	ops.PUT("/properties/:id", admin.SaveProperty)
	ops.GET("/properties/:id/rates", admin.ListRates)
	ops.POST("/properties/:id/rates", admin.AddRate)
	ops.DELETE("/properties/:id/rates/:rule_id", admin.DeleteRate)
	ops.POST("/properties/:id/sync", admin.Sync)
	ops.POST("/properties/:id/calendar/publish", admin.PublishCalendar)
	ops.POST("/reservations/:session_id/retry", admin.RetryFulfillment)
	ops.POST("/reservations/expire", admin.ExpireStale)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", idempotencyHeader, operatorKeyHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Type", obs.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
