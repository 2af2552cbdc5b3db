package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportexport/internal/operations"
	"reportexport/internal/services"
)

type stubHub struct{ clients int }

func (s stubHub) ClientCount() int { return s.clients }

type stubQueue struct{ stats operations.QueueStats }

func (s stubQueue) Stats() operations.QueueStats { return s.stats }

func newHealthServer(opts services.HealthOptions) http.Handler {
	h := NewHealthHandler(services.NewHealthService(opts, discardLogger()), discardLogger())
	r := chi.NewRouter()
	r.Mount("/api/health", h.Routes())
	r.Get("/api/version", h.Version)
	return r
}

func TestHealthHandler_Endpoints(t *testing.T) {
	srv := newHealthServer(services.HealthOptions{
		Version: "1.2.3",
		BuildID: "abc",
		Hub:     stubHub{clients: 2},
		Queue:   stubQueue{stats: operations.QueueStats{Workers: 2, Queued: 1, Capacity: 8}},
	})

	tests := []struct {
		name       string
		path       string
		wantStatus string
	}{
		{"health", "/api/health", services.StatusOK},
		{"ready", "/api/health/ready", services.StatusReady},
		{"live", "/api/health/live", services.StatusAlive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusOK, w.Code)
			var status services.HealthStatus
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, "1.2.3", status.Version)
		})
	}
}

func TestHealthHandler_ReadyWithoutPDF(t *testing.T) {
	srv := newHealthServer(services.HealthOptions{
		Hub:   stubHub{},
		Queue: stubQueue{stats: operations.QueueStats{Capacity: 8}},
	})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var status services.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, services.StatusNotReady, status.Services["pdf"].Status)
}

func TestHealthHandler_NotReady(t *testing.T) {
	srv := newHealthServer(services.HealthOptions{
		Hub:   stubHub{},
		Queue: stubQueue{stats: operations.QueueStats{Queued: 8, Capacity: 8}},
	})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var status services.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, services.StatusNotReady, status.Status)
	assert.Equal(t, services.StatusNotReady, status.Services["jobs"].Status)
}

func TestHealthHandler_Version(t *testing.T) {
	srv := newHealthServer(services.HealthOptions{Version: "1.2.3", BuildID: "abc"})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "abc", body["build_id"])
	assert.NotEmpty(t, body["go_version"])
}
