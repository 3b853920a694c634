package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/drivekeeper/internal/codec"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/drive"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
	"github.com/dmitrijs2005/drivekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/drivekeeper/internal/server/payloads"
	"github.com/dmitrijs2005/drivekeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler serves the drive API.
type Handler struct {
	sessions *services.SessionService
	drive    *services.DriveService
	metrics  *metrics.Metrics
	logger   logging.Logger
}

// NewHandler wires the services into a Handler. m may be nil.
func NewHandler(sessions *services.SessionService, ds *services.DriveService, m *metrics.Metrics, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{sessions: sessions, drive: ds, metrics: m, logger: logger}
}

// Routes builds the chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestLogger(h.logger))

	if h.metrics != nil {
		r.Use(metrics.RequestMiddleware(h.metrics))
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api/{audience}/v1", func(r chi.Router) {
		r.Use(resolveAudience)
		r.Post("/auth/provision", h.Provision)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate, h.openEnvelope)

			r.Get(drive.PathFileHeader, h.fileHeader(false))
			r.Get(drive.PathFilePayload, h.payload(false))
			r.Get(drive.PathQueryBatch, h.queryBatch(false))
			r.Post(drive.PathUpload, h.Upload)
			r.Post(drive.PathUpdate, h.Update)

			r.Group(func(r chi.Router) {
				r.Use(h.transit)
				r.Get(drive.PathTransitHeader, h.fileHeader(true))
				r.Get(drive.PathTransitPayload, h.payload(true))
				r.Get(drive.PathTransitBatch, h.queryBatch(true))
			})
		})
	})

	return r
}

// transit admits only peer calls naming an identity this host serves.
func (h *Handler) transit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if audienceFrom(r.Context()) != endpoint.Peer {
			http.NotFound(w, r)
			return
		}
		if !h.drive.ServesIdentity(r.URL.Query().Get(drive.ParamOdinID)) {
			h.writeError(w, r, fmt.Errorf("%w: unknown identity", common.ErrNotFound))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Provision opens a session for the audience in the path. It is the only
// unauthenticated route and answers in plaintext.
func (h *Handler) Provision(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Provision(r.Context(), audienceFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

func (h *Handler) fileHeader(peer bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		td, fileID, err := fileParams(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		fh, err := h.drive.Header(r.Context(), principalFrom(r.Context()), td, fileID, peer)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, r, http.StatusOK, fh)
	}
}

func (h *Handler) payload(peer bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		td, fileID, err := fileParams(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		key := r.URL.Query().Get(drive.ParamPayloadKey)
		if key == "" {
			h.writeError(w, r, fmt.Errorf("%w: missing payload key", common.ErrBadRequest))
			return
		}

		obj, err := h.drive.Payload(r.Context(), td, fileID, key, parseRange(r.Header.Get("Range")), peer)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.Body)))
		if obj.Partial {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", obj.Start, obj.End, obj.Size))
			w.WriteHeader(http.StatusPartialContent)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		n, err := w.Write(obj.Body)
		if err != nil {
			h.logger.Warn(r.Context(), "payload write failed", "error", err)
		}
		if h.metrics != nil {
			h.metrics.AddPayloadBytes(n)
		}
	}
}

func (h *Handler) queryBatch(peer bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		td, err := drive.ParseTargetDrive(q)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %v", common.ErrBadRequest, err))
			return
		}
		params, err := drive.ParseQueryParams(q)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %v", common.ErrBadRequest, err))
			return
		}

		res, err := h.drive.Query(r.Context(), principalFrom(r.Context()), td, params, q.Get(drive.ParamCursorState), peer)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, r, http.StatusOK, res)
	}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var ins drive.UploadInstructions
	if err := json.NewDecoder(r.Body).Decode(&ins); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", common.ErrBadRequest, err))
		return
	}

	res, err := h.drive.Upload(r.Context(), principalFrom(r.Context()), &ins)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncFilesUploaded()
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var ins drive.UpdateInstructions
	if err := json.NewDecoder(r.Body).Decode(&ins); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", common.ErrBadRequest, err))
		return
	}

	res, err := h.drive.Update(r.Context(), principalFrom(r.Context()), &ins)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncFilesUpdated()
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

func fileParams(r *http.Request) (drive.TargetDrive, uuid.UUID, error) {
	q := r.URL.Query()
	td, err := drive.ParseTargetDrive(q)
	if err != nil {
		return td, uuid.Nil, fmt.Errorf("%w: %v", common.ErrBadRequest, err)
	}
	id, err := uuid.Parse(q.Get(drive.ParamFileID))
	if err != nil {
		return td, uuid.Nil, fmt.Errorf("%w: fileId: %v", common.ErrBadRequest, err)
	}
	return td, id, nil
}

// parseRange understands a single "bytes=start-" or "bytes=start-end" range.
// Anything else is ignored and the whole payload is served.
func parseRange(v string) *payloads.Range {
	spec, ok := strings.CutPrefix(strings.TrimSpace(v), "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil
	}
	from, to, ok := strings.Cut(spec, "-")
	if !ok || from == "" {
		return nil
	}

	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil || start < 0 {
		return nil
	}
	end := int64(-1)
	if to != "" {
		end, err = strconv.ParseInt(to, 10, 64)
		if err != nil || end < start {
			return nil
		}
	}
	return &payloads.Range{Start: start, End: end}
}

// writeJSON marshals v and seals it with the caller's session secret when
// there is one.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: marshal response: %v", common.ErrInternal, err))
		return
	}

	if p := principalFrom(r.Context()); p != nil {
		body, err = codec.EncodeResponse(body, p.Secret)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: seal response: %v", common.ErrInternal, err))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn(r.Context(), "response write failed", "error", err)
	}
}

// writeError maps service errors to status codes. The body is a plain
// message; internal details stay in the log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, common.ErrBadRequest):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrVersionConflict):
		status, msg = http.StatusConflict, "version conflict"
		if h.metrics != nil {
			h.metrics.IncVersionConflicts()
		}
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, payloads.ErrRangeNotSatisfiable):
		status, msg = http.StatusRequestedRangeNotSatisfiable, "range not satisfiable"
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	http.Error(w, msg, status)
}
