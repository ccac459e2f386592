package api

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"blindtest/internal/bridge"
	"blindtest/internal/exportrun"
	"blindtest/internal/metrics"
	"blindtest/internal/preflight"
	"blindtest/internal/project"
)

const defaultListLimit = 50

type routes struct {
	cfg     ServerConfig
	manager *Manager
	logger  *slog.Logger
}

// NewRouter builds the HTTP bridge router around manager.
func NewRouter(cfg ServerConfig, manager *Manager) *chi.Mux {
	h := &routes{cfg: cfg, manager: manager, logger: manager.logger}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(h.logger))
	r.Use(LoggingMiddleware(h.logger))
	r.Use(MetricsMiddleware())

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/exports", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Post("/", h.startExport)
		r.Get("/{id}", h.getExport)
		r.Delete("/{id}", h.cancelExport)
		r.Get("/{id}/events", h.exportEvents)
	})
	return r
}

func (h *routes) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       "ok",
		UptimeS:      int64(time.Since(h.cfg.StartTime).Seconds()),
		ActiveExport: h.manager.Active(),
		Dependencies: []DependencyStatus{},
	}
	if h.cfg.Config != nil {
		resp.Dependencies = FromDependencies(preflight.CheckSystemDeps(r.Context(), h.cfg.Config))
		for _, dep := range resp.Dependencies {
			if !dep.Available && !dep.Optional {
				resp.Status = "degraded"
			}
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *routes) listExports(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
			return
		}
		limit = parsed
	}
	runs, err := h.manager.List(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}
	WriteJSON(w, http.StatusOK, ExportListResponse{Items: runs})
}

func (h *routes) startExport(w http.ResponseWriter, r *http.Request) {
	var body StartExportRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "BAD_REQUEST")
		return
	}
	if strings.TrimSpace(body.Project) == "" {
		WriteError(w, http.StatusBadRequest, "project is required", "BAD_REQUEST")
		return
	}

	job, err := h.manager.Start(r.Context(), body)
	if err != nil {
		status, code := classifyStartError(err)
		WriteError(w, status, err.Error(), code)
		return
	}
	WriteJSON(w, http.StatusAccepted, StartExportResponse{
		Run:     FromState(job.Session.Tracker().Snapshot(), job.Request, job.Project),
		Skipped: job.Missing,
	})
}

func classifyStartError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBusy), errors.Is(err, bridge.ErrOutputBusy):
		return http.StatusConflict, "BUSY"
	case errors.Is(err, exportrun.ErrPreflight):
		return http.StatusUnprocessableEntity, "PREFLIGHT_FAILED"
	case errors.Is(err, project.ErrNoCountdown), errors.Is(err, project.ErrZeroDuration):
		return http.StatusUnprocessableEntity, "INVALID_PROJECT"
	case errors.Is(err, project.ErrClipExists), isDecodeError(err):
		return http.StatusUnprocessableEntity, "INVALID_PROJECT"
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "PROJECT_NOT_FOUND"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (h *routes) getExport(w http.ResponseWriter, r *http.Request) {
	run, err := h.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

func (h *routes) cancelExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch err := h.manager.Cancel(id); {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, ErrFinished):
		WriteError(w, http.StatusConflict, err.Error(), "FINISHED")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
