package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudbill/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// HealthHandler reports liveness of the process and its dependencies
type HealthHandler struct {
	dbPing    func() error
	redisPing func(ctx context.Context) error
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler. Either ping function
// may be nil, in which case that dependency is not checked.
func NewHealthHandler(dbPing func() error, redisPing func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{
		dbPing:    dbPing,
		redisPing: redisPing,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// Check handles GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
		Checks: make(map[string]string),
	}

	if h.dbPing != nil {
		if err := h.dbPing(); err != nil {
			resp.Status = "degraded"
			resp.Checks["database"] = err.Error()
		} else {
			resp.Checks["database"] = "ok"
		}
	}
	if h.redisPing != nil {
		if err := h.redisPing(c.Request.Context()); err != nil {
			resp.Status = "degraded"
			resp.Checks["redis"] = err.Error()
		} else {
			resp.Checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.NewSuccessResponse(resp))
}
