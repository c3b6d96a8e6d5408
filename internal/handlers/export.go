package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/tasktrack/apiserver/internal/services"
)

// ExportHandler serves workspace exports of the session user.
type ExportHandler struct {
	exports *services.ExportService
	log     logrus.FieldLogger
}

// NewExportHandler returns the HTTP handlers for /exports.
func NewExportHandler(exports *services.ExportService, log logrus.FieldLogger) *ExportHandler {
	return &ExportHandler{exports: exports, log: log}
}

// ExportRouter mounts the export routes behind session.
func ExportRouter(r chi.Router, h *ExportHandler, session func(http.Handler) http.Handler) {
	r.Use(session)
	r.Post("/", h.CreateExport)
	r.Get("/", h.ListExports)
	r.Get("/{name}", h.DownloadExport)
}

func (h *ExportHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	claims, _ := sessionFromContext(r.Context())
	result, err := h.exports.Export(r.Context(), claims.ID)
	if err != nil {
		writeServiceError(w, h.log, err, "export not found", "failed to export workspace")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ExportHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	claims, _ := sessionFromContext(r.Context())
	objects, err := h.exports.List(r.Context(), claims.ID)
	if err != nil {
		writeServiceError(w, h.log, err, "export not found", "failed to list exports")
		return
	}
	writeJSON(w, http.StatusOK, objects)
}

func (h *ExportHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	claims, _ := sessionFromContext(r.Context())
	body, err := h.exports.Open(r.Context(), claims.ID, chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, h.log, err, "export not found", "failed to read export")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.log.WithError(err).Warn("export download interrupted")
	}
}
