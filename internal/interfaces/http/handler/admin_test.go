package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudbill/backend/internal/application/collect"
	"github.com/cloudbill/backend/internal/application/report"
	"github.com/cloudbill/backend/internal/domain/identity"
	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/infrastructure/scheduler"
	"github.com/cloudbill/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// cycleCountingTenantRepository reports no active tenants and counts how
// many collection cycles reached it.
type cycleCountingTenantRepository struct {
	cycles atomic.Int64
}

func (r *cycleCountingTenantRepository) FindByID(_ context.Context, _ uuid.UUID) (*identity.Tenant, error) {
	return nil, shared.ErrNotFound
}

func (r *cycleCountingTenantRepository) FindActive(_ context.Context) ([]identity.Tenant, error) {
	r.cycles.Add(1)
	return nil, nil
}

func (r *cycleCountingTenantRepository) Save(_ context.Context, _ *identity.Tenant) error {
	return nil
}

func (r *cycleCountingTenantRepository) AdvanceCursor(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (r *cycleCountingTenantRepository) ChargeBalance(_ context.Context, _ uuid.UUID, _ decimal.Decimal, _ string) error {
	return nil
}

type stubTrigger struct {
	err   error
	calls int
}

func (s *stubTrigger) TriggerImmediateCollection(_ context.Context) error {
	s.calls++
	return s.err
}

type stubReportBuilder struct {
	report *report.TenantReport
	err    error

	gotTenantID uuid.UUID
	gotFrom     metering.TimeLabel
	gotTo       metering.TimeLabel
}

func (s *stubReportBuilder) BuildReport(_ context.Context, tenantID uuid.UUID, from, to metering.TimeLabel) (*report.TenantReport, error) {
	s.gotTenantID = tenantID
	s.gotFrom = from
	s.gotTo = to
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func adminRouter(h *AdminHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/admin/collect", h.TriggerCollect)
	engine.GET("/admin/reports", h.GetReport)
	return engine
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAdminHandler_TriggerCollect(t *testing.T) {
	t.Run("accepts the trigger", func(t *testing.T) {
		trigger := &stubTrigger{}
		engine := adminRouter(NewAdminHandler(trigger, &stubReportBuilder{}))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/collect", nil))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, 1, trigger.calls)
		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
	})

	t.Run("manual cycle survives the request context", func(t *testing.T) {
		repo := &cycleCountingTenantRepository{}
		collector := collect.NewCollector(repo, nil, nil, nil, nil, nil, collect.DefaultConfig(), zap.NewNop())
		sched, err := scheduler.NewCollectionScheduler(collector, zap.NewNop(), scheduler.CollectionSchedulerConfig{
			Enabled:  true,
			Interval: time.Hour,
		})
		require.NoError(t, err)
		require.NoError(t, sched.Start(context.Background()))
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = sched.Stop(stopCtx)
		}()

		engine := adminRouter(NewAdminHandler(sched, &stubReportBuilder{}))
		srv := httptest.NewServer(engine)
		defer srv.Close()

		resp, err := http.Post(srv.URL+"/admin/collect", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		// The server cancels the request context as soon as the 202 is
		// written; the detached cycle must still reach the repository.
		assert.Eventually(t, func() bool {
			return repo.cycles.Load() >= 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("conflicts when the scheduler is stopped", func(t *testing.T) {
		trigger := &stubTrigger{err: scheduler.ErrSchedulerNotRunning}
		engine := adminRouter(NewAdminHandler(trigger, &stubReportBuilder{}))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/collect", nil))

		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "SCHEDULER_NOT_RUNNING", resp.Error.Code)
	})

	t.Run("other failures are internal errors", func(t *testing.T) {
		trigger := &stubTrigger{err: errors.New("boom")}
		engine := adminRouter(NewAdminHandler(trigger, &stubReportBuilder{}))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/collect", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestAdminHandler_GetReport(t *testing.T) {
	tenantID := uuid.New()

	reportURL := func(tenant, from, to string) string {
		q := url.Values{}
		if tenant != "" {
			q.Set("tenant_id", tenant)
		}
		if from != "" {
			q.Set("from", from)
		}
		if to != "" {
			q.Set("to", to)
		}
		return "/admin/reports?" + q.Encode()
	}

	t.Run("returns the built report", func(t *testing.T) {
		builder := &stubReportBuilder{report: &report.TenantReport{
			TenantID:   tenantID,
			TenantName: "acme",
			ScopeID:    "scope-acme",
			From:       "2026031500",
			To:         "2026031523",
			Currency:   "EUR",
			TotalCost:  decimal.RequireFromString("1.5"),
		}}
		engine := adminRouter(NewAdminHandler(&stubTrigger{}, builder))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			reportURL(tenantID.String(), "2026031500", "2026031523"), nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tenantID, builder.gotTenantID)
		assert.Equal(t, "2026031500", builder.gotFrom.Key())
		assert.Equal(t, "2026031523", builder.gotTo.Key())

		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		payload, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		assert.Contains(t, string(payload), `"tenant_name":"acme"`)
		assert.Contains(t, string(payload), `"total_cost":"1.5"`)
	})

	t.Run("requires all query parameters", func(t *testing.T) {
		engine := adminRouter(NewAdminHandler(&stubTrigger{}, &stubReportBuilder{}))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			reportURL(tenantID.String(), "2026031500", ""), nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
	})

	t.Run("rejects a non-UUID tenant id", func(t *testing.T) {
		engine := adminRouter(NewAdminHandler(&stubTrigger{}, &stubReportBuilder{}))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			reportURL("not-a-uuid", "2026031500", "2026031523"), nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed hour keys", func(t *testing.T) {
		engine := adminRouter(NewAdminHandler(&stubTrigger{}, &stubReportBuilder{}))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			reportURL(tenantID.String(), "2026031599", "2026031523"), nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_FROM", resp.Error.Code)
	})

	t.Run("maps unknown tenant to 404", func(t *testing.T) {
		builder := &stubReportBuilder{err: shared.ErrNotFound}
		engine := adminRouter(NewAdminHandler(&stubTrigger{}, builder))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			reportURL(tenantID.String(), "2026031500", "2026031523"), nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "TENANT_NOT_FOUND", resp.Error.Code)
	})

	t.Run("maps domain errors to 400 with their code", func(t *testing.T) {
		builder := &stubReportBuilder{err: shared.NewDomainError("INVALID_PERIOD", "Report end cannot be before report start")}
		engine := adminRouter(NewAdminHandler(&stubTrigger{}, builder))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			reportURL(tenantID.String(), "2026031523", "2026031500"), nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_PERIOD", resp.Error.Code)
	})

	t.Run("maps unexpected errors to 500", func(t *testing.T) {
		builder := &stubReportBuilder{err: errors.New("database down")}
		engine := adminRouter(NewAdminHandler(&stubTrigger{}, builder))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			reportURL(tenantID.String(), "2026031500", "2026031523"), nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
