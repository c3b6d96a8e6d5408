package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/tasktrack/apiserver/internal/services"
	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/types"
)

const (
	actionRegister = "register"
	actionLogin    = "login"
)

// AuthHandler serves registration, login and session endpoints.
type AuthHandler struct {
	auth         *services.AuthService
	log          logrus.FieldLogger
	cookieSecure bool
}

// NewAuthHandler returns the signup and login handlers. cookieSecure sets the Secure flag on the session cookie.
func NewAuthHandler(auth *services.AuthService, log logrus.FieldLogger, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, log: log, cookieSecure: cookieSecure}
}

// AuthRouter registers auth routes on the given router. limit wraps the
// credential endpoint and may be nil.
func AuthRouter(r chi.Router, h *AuthHandler, limit func(http.Handler) http.Handler) {
	if limit != nil {
		r.With(limit).Post("/", h.Authenticate)
	} else {
		r.Post("/", h.Authenticate)
	}
	r.With(RequireSession(h.auth)).Get("/session", h.Session)
	r.Post("/logout", h.Logout)
}

type AuthRequest struct {
	Action   string `json:"action"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Authenticate dispatches on the action field to register or login.
func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Action == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	var (
		result types.AuthResult
		err    error
	)
	switch req.Action {
	case actionRegister:
		result, err = h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	case actionLogin:
		result, err = h.auth.Login(r.Context(), req.Email, req.Password)
	default:
		writeError(w, http.StatusBadRequest, `invalid action, use "register" or "login"`)
		return
	}
	if err != nil {
		writeServiceError(w, h.log, err, "user not found", "failed to authenticate")
		return
	}

	h.setSessionCookie(w, result.Token, h.auth.Tokens().TTL())
	writeJSON(w, http.StatusOK, result)
}

// Session returns the user behind the current session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeServiceError(w, h.log, err, "user not found", "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout expires the session cookie. Tokens stay valid until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.setSessionCookie(w, "", -time.Second)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		cookie.MaxAge = int(ttl.Seconds())
		cookie.Expires = time.Now().Add(ttl)
	} else {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	}
	http.SetCookie(w, cookie)
}
