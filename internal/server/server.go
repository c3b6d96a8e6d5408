package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/tasktrack/apiserver/config"
	"github.com/tasktrack/apiserver/internal/handlers"
	"github.com/tasktrack/apiserver/internal/middleware"
)

const (
	defaultPort     = 8080
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	app        *App
	log        logrus.FieldLogger
	stop       context.CancelFunc
}

// New constructs a Server with its middleware stack and routes.
func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Server, error) {
	app, err := NewApp(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// Background workers owned by the router stop on Shutdown.
	routerCtx, stop := context.WithCancel(context.Background())
	router := NewRouter(routerCtx, app, cfg, log)

	port := cfg.ServerPort
	if port == 0 {
		port = defaultPort
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		app:        app,
		log:        log,
		stop:       stop,
	}, nil
}

// NewRouter mounts the API on a chi router. Cancel ctx to stop the router's
// background workers.
func NewRouter(ctx context.Context, app *App, cfg config.Config, log logrus.FieldLogger) *chi.Mux {
	session := handlers.RequireSession(app.Auth)

	router := chi.NewRouter()
	router.Use(
		chimw.RequestID,
		middleware.SocketAddr,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestLogger(log),
		middleware.Metrics,
		chimw.Timeout(requestTimeout),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", middleware.MetricsHandler())
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r,
				handlers.NewAuthHandler(app.Auth, log, cfg.Auth.CookieSecure),
				middleware.RateLimit(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst),
			)
		})
		r.Route("/projects", func(r chi.Router) {
			handlers.ProjectRouter(r, handlers.NewProjectHandler(app.Projects, log), session)
		})
		r.Route("/tasks", func(r chi.Router) {
			handlers.TaskRouter(r, handlers.NewTaskHandler(app.Tasks, log), session)
		})
		r.Route("/exports", func(r chi.Router) {
			handlers.ExportRouter(r, handlers.NewExportHandler(app.Exports, log), session)
		})
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, then closes the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.stop()
	if closeErr := s.app.Close(); closeErr != nil {
		s.log.WithError(closeErr).Warn("closing backends failed")
	}
	return err
}
