package router

import (
	"time"

	"github.com/cloudbill/backend/internal/infrastructure/logger"
	"github.com/cloudbill/backend/internal/interfaces/http/handler"
	"github.com/cloudbill/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config holds the router dependencies
type Config struct {
	Logger         *zap.Logger
	Health         *handler.HealthHandler
	Admin          *handler.AdminHandler
	RequestTimeout time.Duration
}

// Setup wires middleware and routes onto the engine
func Setup(engine *gin.Engine, cfg Config) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Timeout(timeout))

	engine.GET("/health", cfg.Health.Check)

	admin := engine.Group("/admin")
	{
		admin.POST("/collect", cfg.Admin.TriggerCollect)
		admin.GET("/reports", cfg.Admin.GetReport)
	}
}
