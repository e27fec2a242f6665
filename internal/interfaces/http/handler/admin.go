package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/cloudbill/backend/internal/application/report"
	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/infrastructure/scheduler"
	"github.com/cloudbill/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CollectionTrigger starts a collection cycle outside the schedule
type CollectionTrigger interface {
	TriggerImmediateCollection(ctx context.Context) error
}

// ReportBuilder builds aggregated tenant reports
type ReportBuilder interface {
	BuildReport(ctx context.Context, tenantID uuid.UUID, from, to metering.TimeLabel) (*report.TenantReport, error)
}

// AdminHandler exposes the operational endpoints: manual collection
// runs and report queries.
type AdminHandler struct {
	trigger CollectionTrigger
	reports ReportBuilder
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(trigger CollectionTrigger, reports ReportBuilder) *AdminHandler {
	return &AdminHandler{trigger: trigger, reports: reports}
}

// TriggerCollect handles POST /admin/collect
func (h *AdminHandler) TriggerCollect(c *gin.Context) {
	if err := h.trigger.TriggerImmediateCollection(c.Request.Context()); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			c.JSON(http.StatusConflict, dto.NewErrorResponse("SCHEDULER_NOT_RUNNING", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("INTERNAL_ERROR", err.Error()))
		return
	}
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(gin.H{"status": "collection started"}))
}

// ReportQuery represents the report request parameters
type ReportQuery struct {
	TenantID string `form:"tenant_id" binding:"required,uuid"`
	From     string `form:"from" binding:"required"`
	To       string `form:"to" binding:"required"`
}

// GetReport handles GET /admin/reports
func (h *AdminHandler) GetReport(c *gin.Context) {
	var q ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_REQUEST", err.Error()))
		return
	}

	tenantID, err := uuid.Parse(q.TenantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_TENANT_ID", "tenant_id must be a UUID"))
		return
	}
	from, err := metering.LabelFromCanonical(q.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_FROM", "from must be an hour key like 2026083114"))
		return
	}
	to, err := metering.LabelFromCanonical(q.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_TO", "to must be an hour key like 2026083114"))
		return
	}

	rep, err := h.reports.BuildReport(c.Request.Context(), tenantID, from, to)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			c.JSON(http.StatusNotFound, dto.NewErrorResponse("TENANT_NOT_FOUND", "tenant not found"))
		case errors.Is(err, shared.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_REQUEST", err.Error()))
		default:
			var domainErr *shared.DomainError
			if errors.As(err, &domainErr) {
				c.JSON(http.StatusBadRequest, dto.NewErrorResponse(domainErr.Code, domainErr.Message))
				return
			}
			c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("INTERNAL_ERROR", err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(rep))
}
