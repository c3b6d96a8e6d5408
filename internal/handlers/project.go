package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/tasktrack/apiserver/internal/services"
	"github.com/tasktrack/apiserver/types"
)

// ProjectHandler provides HTTP handlers for projects.
type ProjectHandler struct {
	projects *services.ProjectService
	log      logrus.FieldLogger
}

// NewProjectHandler returns the HTTP handlers for /projects.
func NewProjectHandler(projects *services.ProjectService, log logrus.FieldLogger) *ProjectHandler {
	return &ProjectHandler{projects: projects, log: log}
}

// ProjectRouter registers project routes. All of them require a session.
func ProjectRouter(r chi.Router, h *ProjectHandler, session func(http.Handler) http.Handler) {
	r.Use(session)
	r.Get("/", h.ListProjects)
	r.Post("/", h.CreateProject)
	r.Patch("/", h.UpdateProject)
	r.Delete("/", h.DeleteProject)
}

// ListProjects handles GET /projects.
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	claims, _ := sessionFromContext(r.Context())
	userID := r.URL.Query().Get("userId")
	if err := services.Authorize(claims.ID, userID); err != nil {
		writeServiceError(w, h.log, err, "project not found", "failed to fetch projects")
		return
	}

	projects, err := h.projects.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err, "project not found", "failed to fetch projects")
		return
	}

	resp := make([]types.ProjectResponse, 0, len(projects))
	for _, project := range projects {
		resp = append(resp, project.Response())
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateProject handles POST /projects.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectCreate
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	claims, _ := sessionFromContext(r.Context())
	if err := services.Authorize(claims.ID, req.UserID); err != nil {
		writeServiceError(w, h.log, err, "project not found", "failed to create project")
		return
	}

	project, err := h.projects.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "project not found", "failed to create project")
		return
	}
	writeJSON(w, http.StatusOK, project.Response())
}

func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectPatch
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	claims, _ := sessionFromContext(r.Context())
	project, err := h.projects.Update(r.Context(), claims.ID, req)
	if err != nil {
		writeServiceError(w, h.log, err, "project not found", "failed to update project")
		return
	}
	writeJSON(w, http.StatusOK, project.Response())
}

func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := deleteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	claims, _ := sessionFromContext(r.Context())
	if err := h.projects.Delete(r.Context(), claims.ID, id); err != nil {
		writeServiceError(w, h.log, err, "project not found", "failed to delete project")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "project deleted successfully"})
}

// deleteID reads the id from the JSON body, falling back to the ?id= query.
func deleteID(r *http.Request) (string, error) {
	var req IDRequest
	if err := decodeJSON(r, &req, true); err != nil {
		return "", err
	}
	if req.ID == "" {
		req.ID = r.URL.Query().Get("id")
	}
	return req.ID, nil
}
