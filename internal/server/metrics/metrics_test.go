package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMiddleware_CountsErrors(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, p := range []string{"/ok", "/bad", "/ok"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, "drive_requests_total 3")
	assert.Contains(t, body, "drive_errors_total 1")
	assert.Contains(t, body, "drive_request_duration_seconds_count 3")
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.IncFilesUploaded()
	m.IncVersionConflicts()
	m.AddPayloadBytes(42)

	body := scrape(t, m)
	assert.Contains(t, body, "drive_files_uploaded_total 1")
	assert.Contains(t, body, "drive_version_conflicts_total 1")
	assert.Contains(t, body, "drive_payload_bytes_served_total 42")
}
