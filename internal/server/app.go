package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tasktrack/apiserver/config"
	"github.com/tasktrack/apiserver/internal/cache"
	"github.com/tasktrack/apiserver/internal/db"
	"github.com/tasktrack/apiserver/internal/mq"
	"github.com/tasktrack/apiserver/internal/services"
	"github.com/tasktrack/apiserver/internal/storage"
	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/internal/store/memory"
)

// App holds the wired services and the infrastructure behind them.
type App struct {
	Auth     *services.AuthService
	Projects *services.ProjectService
	Tasks    *services.TaskService
	Exports  *services.ExportService
	Events   *mq.MQ

	log     logrus.FieldLogger
	closers []func() error
}

// NewApp connects the configured backends and builds the services.
// Optional backends (cache, broker, object storage) are skipped when unset.
func NewApp(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*App, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	app := &App{log: log}
	opts := services.Options{Channel: cfg.MQ.Channel, Logger: log}

	var (
		users    services.UserRepository
		projects services.ProjectRepository
		tasks    services.TaskRepository
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		mem := memory.New()
		users, projects, tasks = mem.Users(), mem.Projects(), mem.Tasks()
	default:
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, conn.Close)
		users = store.NewUserRepository(conn)
		projects = store.NewProjectRepository(conn)
		tasks = store.NewTaskRepository(conn)
	}

	listCache, err := cache.Connect(ctx, cfg.Redis)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if listCache != nil {
		app.closers = append(app.closers, listCache.Close)
		opts.Cache = listCache
		log.WithField("addr", cfg.Redis.Addr).Info("list cache enabled")
	}

	events, err := mq.Connect(ctx, cfg.MQ)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if events != nil {
		app.closers = append(app.closers, events.Close)
		app.Events = events
		opts.Events = events
		log.WithField("backend", cfg.MQ.Backend).Info("change events enabled")
	}

	objects, err := storage.Connect(ctx, cfg.Storage)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if objects != nil {
		app.closers = append(app.closers, objects.Close)
	}

	app.Auth = services.NewAuthService(users, services.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), opts)
	app.Projects = services.NewProjectService(projects, opts)
	app.Tasks = services.NewTaskService(tasks, projects, opts)
	if objects != nil {
		app.Exports = services.NewExportService(app.Projects, app.Tasks, objects, opts)
		log.WithFields(logrus.Fields{"backend": cfg.Storage.Backend, "bucket": objects.Bucket()}).Info("exports enabled")
	} else {
		app.Exports = services.NewExportService(app.Projects, app.Tasks, nil, opts)
	}

	return app, nil
}

// Close releases every connection in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close app: %w", errors.Join(errs...))
	}
	return nil
}
