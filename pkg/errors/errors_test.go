package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("no such file")

	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
		wantIs     error
	}{
		{"not found", NotFound("medicine"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"insufficient data", InsufficientData("not enough history"), "INSUFFICIENT_DATA", http.StatusNotFound, ErrNotFound},
		{"invalid data", InvalidData(cause), "INVALID_DATA", http.StatusUnprocessableEntity, cause},
		{"reload failed", ReloadFailed(cause), "RELOAD_FAILED", http.StatusServiceUnavailable, cause},
		{"unavailable", Unavailable("not loaded"), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrUnavailable},
		{"validation", Validation(map[string]string{"days": "must be at least 1"}), "VALIDATION_ERROR", http.StatusBadRequest, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.True(t, Is(tt.err, tt.wantIs))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "medicine not found: resource not found", NotFound("medicine").Error())
	assert.Equal(t, "failed to reload prediction data: no such file", ReloadFailed(errors.New("no such file")).Error())
}
