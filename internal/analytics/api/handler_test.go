package analytics_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-parking/internal/analytics"
	analytics_api "ms-parking/internal/analytics/api"
	"ms-parking/internal/logger"
	"ms-parking/internal/models"
	"ms-parking/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDashboard struct {
	mock.Mock
}

func (m *MockDashboard) Period(startRaw, endRaw string) (time.Time, time.Time, error) {
	args := m.Called(startRaw, endRaw)
	return args.Get(0).(time.Time), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockDashboard) GetDashboard(ctx context.Context, start, end time.Time) (*analytics.Dashboard, error) {
	args := m.Called(start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.Dashboard), args.Error(1)
}

func serve(t *testing.T, svc *MockDashboard, target string) (*httptest.ResponseRecorder, utils.APIResponse) {
	h := analytics_api.NewHandler(svc, logger.NewTestLogger(&bytes.Buffer{}))
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestGetDashboardStatistics(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	svc := new(MockDashboard)
	svc.On("Period", "2026-02-01", "2026-02-10").Return(start, end, nil)
	svc.On("GetDashboard", start, end).Return(&analytics.Dashboard{
		StartDate:          "2026-02-01",
		EndDate:            "2026-02-10",
		TotalVehiclesToday: 12,
		ActiveVehicles:     4,
		TotalRevenuePeriod: decimal.NewFromInt(125000),
	}, nil)

	rec, resp := serve(t, svc, "/dashboard/statistics?start_date=2026-02-01&end_date=2026-02-10")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(12), data["total_vehicles_today"])
	assert.Equal(t, "125000", data["total_revenue_period"])
	svc.AssertExpectations(t)
}

func TestGetDashboardStatisticsInvalidPeriod(t *testing.T) {
	svc := new(MockDashboard)
	svc.On("Period", "2026-02-10", "2026-02-01").
		Return(time.Time{}, time.Time{}, models.InvalidInput("start_date must not be after end_date"))

	rec, resp := serve(t, svc, "/dashboard/statistics?start_date=2026-02-10&end_date=2026-02-01")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "start_date")
	svc.AssertNotCalled(t, "GetDashboard", mock.Anything, mock.Anything)
}

func TestGetDashboardStatisticsStoreDown(t *testing.T) {
	svc := new(MockDashboard)
	svc.On("Period", "", "").Return(time.Time{}, time.Time{}, nil)
	svc.On("GetDashboard", time.Time{}, time.Time{}).
		Return(nil, models.Infrastructure("count active sessions", errors.New("connection refused")))

	rec, resp := serve(t, svc, "/dashboard/statistics")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "internal error", resp.Error)
}
