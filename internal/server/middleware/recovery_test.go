package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/pkg/api"
)

func TestRecoveryMiddleware_Panics(t *testing.T) {
	tests := []struct {
		name  string
		value any
		leak  string
	}{
		{name: "string", value: "cache map corrupted", leak: "cache map"},
		{name: "error", value: errors.New("nil map write in hub"), leak: "nil map"},
		{name: "custom type", value: struct{ Key string }{"domain:secret.example"}, leak: "secret.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := newCapturingLogger()
			handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic(tt.value)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/entities/domain/example.com", nil))

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp api.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, api.ErrCodeInternal, resp.Error)
			assert.NotContains(t, resp.Message, tt.leak, "детали паники не уходят клиенту")

			records := logs.records(t)
			require.NotEmpty(t, records)
			rec := records[0]
			assert.Equal(t, "Panic recovered", rec["msg"])
			assert.Equal(t, "ERROR", rec["level"])
			assert.Equal(t, http.MethodPut, rec["method"])
			assert.Contains(t, logs.raw(), tt.leak)
			assert.Contains(t, rec["stack"], "goroutine")
		})
	}
}

func TestRecoveryMiddleware_PassThrough(t *testing.T) {
	logger, logs := newCapturingLogger()
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("queued"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entities/proxy", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "queued", w.Body.String())
	assert.Empty(t, logs.raw())
}

func TestRecoveryMiddleware_RepanicsOnAbort(t *testing.T) {
	logger, logs := newCapturingLogger()
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/push", nil))
	})
	assert.Empty(t, logs.raw())
}

// В роутере recovery стоит после RequestID: id запроса попадает в лог паники,
// а logging видит итоговый статус 500.
func TestRecoveryMiddleware_InRouter(t *testing.T) {
	logger, logs := newCapturingLogger()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoveryMiddleware(logger))
	r.Get("/api/v1/entities/{type}/{id}", func(w http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/domain/example.com", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-panic")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	records := logs.records(t)
	require.Len(t, records, 2)
	assert.Equal(t, "Panic recovered", records[0]["msg"])
	assert.Equal(t, "req-panic", records[0]["request_id"])
	assert.Equal(t, "HTTP request", records[1]["msg"])
	assert.EqualValues(t, http.StatusInternalServerError, records[1]["status"])
	assert.Equal(t, "req-panic", records[1]["request_id"])
}
