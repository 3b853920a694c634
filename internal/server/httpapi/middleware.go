package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/codec"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
	"github.com/go-chi/chi/v5"
)

// maxRequestBody bounds upload bodies, payloads included.
const maxRequestBody = 64 << 20

// responseWriter wraps http.ResponseWriter to capture status code and size.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// RequestLogger logs each request with method, path, status, duration_ms
// and response size. Query strings are not logged.
func RequestLogger(log logging.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrap, r)
			log.Info(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrap.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"size", wrap.size,
			)
		})
	}
}

// resolveAudience parses the {audience} path segment.
func resolveAudience(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := endpoint.ParseAudience(chi.URLParam(r, "audience"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withAudience(r.Context(), a)))
	})
}

// authenticate turns the bearer token into a principal.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get(common.AuthorizationHeaderName), "Bearer ")
		if !ok || token == "" {
			h.writeError(w, r, common.ErrUnauthorized)
			return
		}

		p, err := h.sessions.Authenticate(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		defer p.Wipe()

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

// openEnvelope restores an enveloped query string or body.
func (h *Handler) openEnvelope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r.Context())

		in := &codec.WireRequest{Method: r.Method, URL: r.URL, Header: r.Header}
		if r.Body != nil && r.Method != http.MethodGet {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
			if err != nil {
				h.writeError(w, r, common.ErrBadRequest)
				return
			}
			in.Body = body
		}

		out, err := codec.DecodeRequest(in, p.Secret)
		if err != nil {
			h.logger.Debug(r.Context(), "envelope rejected", "path", r.URL.Path, "error", err)
			h.writeError(w, r, common.ErrBadRequest)
			return
		}

		r2 := r.Clone(r.Context())
		r2.URL.RawQuery = out.URL.RawQuery
		r2.Body = io.NopCloser(bytes.NewReader(out.Body))
		r2.ContentLength = int64(len(out.Body))
		next.ServeHTTP(w, r2)
	})
}
