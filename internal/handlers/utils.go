package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tasktrack/apiserver/internal/services"
	"github.com/tasktrack/apiserver/internal/store"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// IDRequest is the body accepted by DELETE endpoints.
type IDRequest struct {
	ID string `json:"id"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON reads a JSON body. An empty body decodes to the zero value when
// allowEmpty is set.
func decodeJSON(r *http.Request, dest any, allowEmpty bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dest)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}

// writeServiceError maps service and store errors onto status codes.
// Unexpected errors are logged and reported with the generic failure message.
func writeServiceError(w http.ResponseWriter, log logrus.FieldLogger, err error, notFound, failure string) {
	var paramErr *services.ParamError
	switch {
	case errors.As(err, &paramErr):
		writeError(w, http.StatusBadRequest, paramErr.Error())
	case errors.Is(err, services.ErrDuplicateUser):
		writeError(w, http.StatusBadRequest, "user already exists")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, "exports are not configured")
	default:
		log.WithError(err).Error(failure)
		writeError(w, http.StatusInternalServerError, failure)
	}
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
