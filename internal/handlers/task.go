package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/tasktrack/apiserver/internal/services"
	"github.com/tasktrack/apiserver/types"
)

// TaskHandler provides HTTP handlers for tasks.
type TaskHandler struct {
	tasks *services.TaskService
	log   logrus.FieldLogger
}

// NewTaskHandler returns the HTTP handlers for /tasks.
func NewTaskHandler(tasks *services.TaskService, log logrus.FieldLogger) *TaskHandler {
	return &TaskHandler{tasks: tasks, log: log}
}

// TaskRouter registers task routes. All of them require a session.
func TaskRouter(r chi.Router, h *TaskHandler, session func(http.Handler) http.Handler) {
	r.Use(session)
	r.Get("/", h.ListTasks)
	r.Post("/", h.CreateTask)
	r.Patch("/", h.UpdateTask)
	r.Delete("/", h.DeleteTask)
}

// ListTasks handles GET /tasks, optionally filtered by project_id.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	claims, _ := sessionFromContext(r.Context())
	query := r.URL.Query()
	filter := types.TaskFilter{UserID: query.Get("userId")}
	if err := services.Authorize(claims.ID, filter.UserID); err != nil {
		writeServiceError(w, h.log, err, "task not found", "failed to fetch tasks")
		return
	}
	if projectID := query.Get("projectId"); projectID != "" {
		filter.ProjectID = &projectID
	}

	tasks, err := h.tasks.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.log, err, "task not found", "failed to fetch tasks")
		return
	}

	resp := make([]types.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, task.Response())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req types.TaskCreate
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	claims, _ := sessionFromContext(r.Context())
	if err := services.Authorize(claims.ID, req.UserID); err != nil {
		writeServiceError(w, h.log, err, "task not found", "failed to create task")
		return
	}

	task, err := h.tasks.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "task not found", "failed to create task")
		return
	}
	writeJSON(w, http.StatusOK, task.Response())
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req types.TaskPatch
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	claims, _ := sessionFromContext(r.Context())
	task, err := h.tasks.Update(r.Context(), claims.ID, req)
	if err != nil {
		writeServiceError(w, h.log, err, "task not found", "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, task.Response())
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := deleteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	claims, _ := sessionFromContext(r.Context())
	if err := h.tasks.Delete(r.Context(), claims.ID, id); err != nil {
		writeServiceError(w, h.log, err, "task not found", "failed to delete task")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "task deleted successfully"})
}
