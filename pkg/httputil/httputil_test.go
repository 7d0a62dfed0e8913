package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medflow/medpredict-backend/pkg/errors"
	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", errors.NotFound("medicine"), http.StatusNotFound, "NOT_FOUND"},
		{"unavailable", errors.Unavailable("snapshot not loaded"), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"wrapped app error", fmt.Errorf("loading: %w", errors.BadRequest("bad days")), http.StatusBadRequest, "BAD_REQUEST"},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			resp := decode(t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestJSONWithMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONWithMeta(rec, http.StatusOK, []int{1, 2}, &Meta{Total: 2})

	resp := decode(t, rec)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?days=14&bad=abc", nil)

	v, err := QueryInt(r, "days", 30)
	require.NoError(t, err)
	assert.Equal(t, 14, v)

	v, err = QueryInt(r, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	_, err = QueryInt(r, "bad", 1)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "must be an integer", appErr.Details["bad"])
}

func TestQueryFloat(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?confidence_level=0.9&threshold=x", nil)

	v, err := QueryFloat(r, "confidence_level", 0.95)
	require.NoError(t, err)
	assert.Equal(t, 0.9, v)

	_, err = QueryFloat(r, "threshold", 2.5)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	type query struct {
		Days  int     `query:"days" validate:"min=1,max=365"`
		Level float64 `query:"confidence_level" validate:"gt=0,lt=1"`
	}

	assert.NoError(t, Validate(query{Days: 30, Level: 0.95}))

	err := Validate(query{Days: 0, Level: 1})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	assert.Equal(t, "must be at least 1", appErr.Details["days"])
	assert.Equal(t, "must be less than 1", appErr.Details["confidence_level"])
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prediction/items", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
}

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   zerolog.Level
	}{
		{"/api/v1/prediction/items", http.StatusOK, zerolog.InfoLevel},
		{"/api/v1/prediction/health", http.StatusOK, zerolog.DebugLevel},
		{"/api/v1/prediction/metrics", http.StatusOK, zerolog.DebugLevel},
		{"/api/v1/prediction/health", http.StatusServiceUnavailable, zerolog.ErrorLevel},
		{"/api/v1/prediction/items/x/forecast", http.StatusBadRequest, zerolog.WarnLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, requestLevel(tt.path, tt.status), "%s %d", tt.path, tt.status)
	}
}
