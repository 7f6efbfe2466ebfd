package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   HealthResponse
	}{
		{
			name:       "healthy",
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "ok", Version: "1.2.3", Database: "ok"},
		},
		{
			name:       "database down",
			pingErr:    errors.New("disk I/O error"),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   HealthResponse{Status: "degraded", Version: "1.2.3", Database: "unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pinger := &PingerMock{
				PingFunc: func(ctx context.Context) error { return tt.pingErr },
			}
			handler := NewHealthHandler(setupTestLogger(), pinger, "1.2.3")

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			w := httptest.NewRecorder()
			handler.Health(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantBody, decodeBody[HealthResponse](t, w))
			assert.Len(t, pinger.PingCalls(), 1)
		})
	}
}
