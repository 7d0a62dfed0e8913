package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/internal/prediction/engine"
	"github.com/medflow/medpredict-backend/internal/prediction/service"
	"github.com/medflow/medpredict-backend/pkg/httputil"
	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/medflow/medpredict-backend/pkg/monitoring"
	"github.com/medflow/medpredict-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

type stubLoader struct {
	mu     sync.Mutex
	tables domain.Tables
	err    error
}

func (l *stubLoader) Load(context.Context) (domain.Tables, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return domain.Tables{}, l.err
	}
	return l.tables, nil
}

func (l *stubLoader) Source() string { return "csv" }

type envelope[T any] struct {
	Success bool                `json:"success"`
	Data    T                   `json:"data"`
	Error   *httputil.ErrorBody `json:"error"`
}

type fixture struct {
	router  http.Handler
	handler *PredictionHandler
	svc     *service.PredictionService
	loader  *stubLoader
}

func newFixture(t *testing.T, loaded bool) *fixture {
	t.Helper()

	loader := &stubLoader{tables: testutil.NewFixtureFactory().SampleTables(asOf)}
	metrics := monitoring.NewMetricsCollector("prediction-service")
	svc := service.NewPredictionService(loader, service.Options{
		Metrics:       metrics,
		EngineOptions: []engine.Option{engine.WithClock(func() time.Time { return asOf })},
		Now:           func() time.Time { return asOf },
	}, logger.Nop())

	if loaded {
		_, err := svc.Reload(context.Background())
		require.NoError(t, err)
	}

	h := NewPredictionHandler(svc, metrics, logger.Nop())
	h.AddHealthCheck("database", func(context.Context) map[string]string {
		return map[string]string{"status": "up"}
	})

	r := chi.NewRouter()
	r.Route("/api/v1/prediction", h.Routes)

	return &fixture{router: r, handler: h, svc: svc, loader: loader}
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	return testutil.ExecuteRequest(f.router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/prediction"+path, nil))
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var body envelope[T]
	testutil.ParseJSONBody(t, rr, &body)
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)

	rr := f.get("/health")

	testutil.AssertStatus(t, rr, http.StatusOK)
	body := decode[map[string]interface{}](t, rr)
	assert.Equal(t, "healthy", body.Data["status"])
	assert.Equal(t, false, body.Data["data_loaded"])
	assert.Equal(t, map[string]interface{}{"status": "up"}, body.Data["database"])
}

func TestNotLoadedReturnsUnavailable(t *testing.T) {
	f := newFixture(t, false)

	for _, path := range []string{"/dashboard/summary", "/expiry-risks", "/alerts", "/items/1/forecast"} {
		t.Run(path, func(t *testing.T) {
			rr := f.get(path)
			testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
			body := decode[any](t, rr)
			require.NotNil(t, body.Error)
			assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
		})
	}
}

func TestReloadAndStatus(t *testing.T) {
	f := newFixture(t, false)

	rr := testutil.ExecuteRequest(f.router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/prediction/reload", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	reloaded := decode[service.ReloadStatus](t, rr)
	assert.True(t, reloaded.Data.Loaded)
	assert.Equal(t, uint64(1), reloaded.Data.Version)
	assert.Equal(t, 3, reloaded.Data.Items)

	rr = f.get("/status")
	testutil.AssertStatus(t, rr, http.StatusOK)
	status := decode[service.ReloadStatus](t, rr)
	assert.Equal(t, uint64(1), status.Data.Version)
	assert.Equal(t, 240, status.Data.ConsumptionRecords)
}

func TestReloadFailure(t *testing.T) {
	f := newFixture(t, true)
	f.loader.mu.Lock()
	f.loader.err = errors.New("data directory unreadable")
	f.loader.mu.Unlock()

	rr := testutil.ExecuteRequest(f.router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/prediction/reload", nil))

	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	body := decode[any](t, rr)
	require.NotNil(t, body.Error)
	assert.Equal(t, "RELOAD_FAILED", body.Error.Code)

	// previous snapshot keeps serving
	testutil.AssertStatus(t, f.get("/expiry-risks"), http.StatusOK)
}

func TestDashboardSummary(t *testing.T) {
	f := newFixture(t, true)

	rr := f.get("/dashboard/summary")

	testutil.AssertStatus(t, rr, http.StatusOK)
	body := decode[domain.DashboardSummary](t, rr)
	assert.Equal(t, 3, body.Data.TotalItems)
	assert.Equal(t, 3, body.Data.TotalBatches)
	assert.Equal(t, 1, body.Data.ExpiryRisk.CriticalCount)
	assert.Equal(t, 1, body.Data.StockoutRisk.CriticalCount)
}

func TestExpiryRisks(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantFirst string
	}{
		{name: "all", query: "", wantCount: 3, wantFirst: "Insulin Glargine"},
		{name: "critical lower case", query: "?risk_level=critical", wantCount: 1, wantFirst: "Insulin Glargine"},
		{name: "high", query: "?risk_level=HIGH", wantCount: 1, wantFirst: "Atropine 1mg"},
		{name: "limited", query: "?limit=2", wantCount: 2, wantFirst: "Insulin Glargine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.get("/expiry-risks" + tt.query)
			testutil.AssertStatus(t, rr, http.StatusOK)
			body := decode[[]domain.ExpiryRisk](t, rr)
			require.Len(t, body.Data, tt.wantCount)
			assert.Equal(t, tt.wantFirst, body.Data[0].ItemName)
		})
	}
}

func TestRiskQueryValidation(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name       string
		path       string
		wantField  string
		wantDetail string
	}{
		{name: "unknown level", path: "/expiry-risks?risk_level=severe", wantField: "risk_level", wantDetail: "invalid value"},
		{name: "zero limit", path: "/stockout-risks?limit=0", wantField: "limit", wantDetail: "must be at least 1"},
		{name: "non numeric limit", path: "/stockout-risks?limit=ten", wantField: "limit", wantDetail: "must be an integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.get(tt.path)
			testutil.AssertStatus(t, rr, http.StatusBadRequest)
			body := decode[any](t, rr)
			require.NotNil(t, body.Error)
			assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
			assert.Equal(t, tt.wantDetail, body.Error.Details[tt.wantField])
		})
	}
}

func TestStockoutRisks(t *testing.T) {
	f := newFixture(t, true)

	rr := f.get("/stockout-risks?risk_level=CRITICAL")

	testutil.AssertStatus(t, rr, http.StatusOK)
	body := decode[[]domain.StockoutRisk](t, rr)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Paracetamol 500mg", body.Data[0].ItemName)
	assert.InDelta(t, 3.0, body.Data[0].DaysUntilStockout, 0.001)
	assert.Equal(t, domain.RiskCritical, body.Data[0].RiskLevel)
}

func TestAlertsAndItems(t *testing.T) {
	f := newFixture(t, true)

	rr := f.get("/alerts")
	testutil.AssertStatus(t, rr, http.StatusOK)
	alerts := decode[domain.AlertFeed](t, rr)
	assert.Equal(t, 2, alerts.Data.CriticalCount)
	require.NotEmpty(t, alerts.Data.Alerts)
	assert.Equal(t, domain.RiskCritical, alerts.Data.Alerts[0].Severity)

	rr = f.get("/items")
	testutil.AssertStatus(t, rr, http.StatusOK)
	items := decode[[]domain.ItemOverview](t, rr)
	assert.Len(t, items.Data, 3)
}

func TestForecast(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{name: "ok", path: "/items/1/forecast", wantStatus: http.StatusOK},
		{name: "custom horizon", path: "/items/1/forecast?days=7&confidence_level=0.8", wantStatus: http.StatusOK},
		{name: "unknown item", path: "/items/99/forecast", wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "no history", path: "/items/3/forecast", wantStatus: http.StatusNotFound, wantCode: "INSUFFICIENT_DATA"},
		{name: "bad id", path: "/items/abc/forecast", wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
		{name: "days out of range", path: "/items/1/forecast?days=0", wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "confidence out of range", path: "/items/1/forecast?confidence_level=1.5", wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.get(tt.path)
			testutil.AssertStatus(t, rr, tt.wantStatus)
			if tt.wantCode != "" {
				body := decode[any](t, rr)
				require.NotNil(t, body.Error)
				assert.Equal(t, tt.wantCode, body.Error.Code)
			}
		})
	}

	rr := f.get("/items/1/forecast")
	body := decode[domain.Forecast](t, rr)
	assert.Equal(t, 600, body.Data.PredictedQuantity)
	assert.Equal(t, 30, body.Data.ForecastDays)
}

func TestTrendAndAnomalies(t *testing.T) {
	f := newFixture(t, true)

	rr := f.get("/items/2/trend")
	testutil.AssertStatus(t, rr, http.StatusOK)
	trend := decode[domain.TrendAnalysis](t, rr)
	assert.Equal(t, domain.TrendStable, trend.Data.Trend)

	rr = f.get("/items/1/anomalies?days=60&threshold=3")
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"data":[]`)

	rr = f.get("/items/1/anomalies?threshold=0")
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr = f.get("/anomalies")
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"data":[]`)

	rr = f.get("/anomalies?min_severity=extreme")
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestForecastSummary(t *testing.T) {
	f := newFixture(t, true)

	rr := f.get("/forecasts/summary?days=14")

	testutil.AssertStatus(t, rr, http.StatusOK)
	body := decode[domain.ForecastSummary](t, rr)
	assert.Equal(t, 14, body.Data.ForecastDays)
	assert.Equal(t, 2, body.Data.ItemsAnalyzed)
}

func TestQueryDefaults(t *testing.T) {
	f := newFixture(t, true)
	f.handler.SetQueryDefaults(QueryDefaults{ForecastDays: 7, ListLimit: 2})

	t.Run("omitted days use the configured horizon", func(t *testing.T) {
		rr := f.get("/items/1/forecast")
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, 7, decode[domain.Forecast](t, rr).Data.ForecastDays)

		rr = f.get("/forecasts/summary")
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, 7, decode[domain.ForecastSummary](t, rr).Data.ForecastDays)
	})

	t.Run("explicit days win", func(t *testing.T) {
		rr := f.get("/items/1/forecast?days=14")
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, 14, decode[domain.Forecast](t, rr).Data.ForecastDays)
	})

	t.Run("omitted limit uses the configured limit", func(t *testing.T) {
		rr := f.get("/expiry-risks")
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Len(t, decode[[]domain.ExpiryRisk](t, rr).Data, 2)

		rr = f.get("/expiry-risks?limit=3")
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Len(t, decode[[]domain.ExpiryRisk](t, rr).Data, 3)
	})

	t.Run("zero fields keep the built-in defaults", func(t *testing.T) {
		assert.Equal(t, engine.DefaultConfidenceLevel, f.handler.defaults.ConfidenceLevel)
		assert.Equal(t, engine.DefaultAnomalyThreshold, f.handler.defaults.AnomalyThreshold)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, true)

	rr := f.get("/metrics")

	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, "prediction_reloads_total")
}
