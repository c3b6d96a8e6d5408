package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tasktrack/apiserver/internal/storage"
	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/types"
)

const exportTimeLayout = "20060102T150405Z"

// ObjectStore is the object storage used for exports.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	Bucket() string
}

// ExportService snapshots a user's projects and tasks into object storage.
type ExportService struct {
	projects *ProjectService
	tasks    *TaskService
	objects  ObjectStore
	opts     Options
}

// NewExportService returns a service whose Export fails with ErrStorageDisabled
// when objects is nil.
func NewExportService(projects *ProjectService, tasks *TaskService, objects ObjectStore, opts Options) *ExportService {
	return &ExportService{projects: projects, tasks: tasks, objects: objects, opts: opts.withDefaults()}
}

// Enabled reports whether an object store is configured.
func (s *ExportService) Enabled() bool {
	return s.objects != nil
}

// Export writes a snapshot of the user's projects and tasks to object storage.
func (s *ExportService) Export(ctx context.Context, userID string) (types.ExportResult, error) {
	if s.objects == nil {
		return types.ExportResult{}, ErrStorageDisabled
	}
	if userID == "" {
		return types.ExportResult{}, missing("userId")
	}

	projects, err := s.projects.List(ctx, userID)
	if err != nil {
		return types.ExportResult{}, err
	}
	tasks, err := s.tasks.List(ctx, types.TaskFilter{UserID: userID})
	if err != nil {
		return types.ExportResult{}, err
	}

	now := s.opts.Now().UTC()
	doc := types.Export{
		UserID:     userID,
		ExportedAt: now,
		Projects:   make([]types.ProjectResponse, 0, len(projects)),
		Tasks:      make([]types.TaskResponse, 0, len(tasks)),
	}
	for _, project := range projects {
		doc.Projects = append(doc.Projects, project.Response())
	}
	for _, task := range tasks {
		doc.Tasks = append(doc.Tasks, task.Response())
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return types.ExportResult{}, fmt.Errorf("encode export: %w", err)
	}

	key := exportPrefix(userID) + now.Format(exportTimeLayout) + ".json"
	if err := s.objects.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return types.ExportResult{}, fmt.Errorf("upload export to %s: %w", s.objects.Bucket(), err)
	}

	s.opts.Logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"key":      key,
		"projects": len(doc.Projects),
		"tasks":    len(doc.Tasks),
	}).Info("workspace exported")

	return types.ExportResult{Key: key, Projects: len(doc.Projects), Tasks: len(doc.Tasks)}, nil
}

// List returns the user's stored exports, newest first.
func (s *ExportService) List(ctx context.Context, userID string) ([]storage.ObjectInfo, error) {
	if s.objects == nil {
		return nil, ErrStorageDisabled
	}
	if userID == "" {
		return nil, missing("userId")
	}

	objects, err := s.objects.List(ctx, exportPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })
	return objects, nil
}

// Open streams one of the user's exports by file name. Names that could
// escape the user's prefix are reported as not found.
func (s *ExportService) Open(ctx context.Context, userID, name string) (io.ReadCloser, error) {
	if s.objects == nil {
		return nil, ErrStorageDisabled
	}
	if userID == "" || name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return nil, store.ErrNotFound
	}

	body, err := s.objects.Get(ctx, exportPrefix(userID)+name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return body, nil
}

func exportPrefix(userID string) string {
	return "exports/" + userID + "/"
}
