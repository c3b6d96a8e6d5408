package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/types"
)

const dateLayout = "2006-01-02"

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	List(ctx context.Context, filter types.TaskFilter) ([]types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, userID, id string, changes types.TaskChanges) (types.Task, error)
	Delete(ctx context.Context, userID, id string) error
}

// ProjectLookup resolves a project within its owner's scope.
type ProjectLookup interface {
	Get(ctx context.Context, userID, id string) (types.Project, error)
}

// TaskService encapsulates task use-cases.
type TaskService struct {
	repo     TaskRepository
	projects ProjectLookup
	opts     Options
}

// NewTaskService returns a TaskService. projects resolves projectId references.
func NewTaskService(repo TaskRepository, projects ProjectLookup, opts Options) *TaskService {
	return &TaskService{repo: repo, projects: projects, opts: opts.withDefaults()}
}

// List returns the user's tasks, optionally narrowed to one project.
func (s *TaskService) List(ctx context.Context, filter types.TaskFilter) ([]types.Task, error) {
	if filter.UserID == "" {
		return nil, missing("userId")
	}
	if filter.ProjectID != nil && *filter.ProjectID == "" {
		filter.ProjectID = nil
	}

	key, cacheable := s.opts.listKey(ctx, tasksScope(filter.UserID), tasksSuffix(filter))
	var tasks []types.Task
	if cacheable && s.opts.cached(ctx, key, &tasks) {
		return tasks, nil
	}

	tasks, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.opts.store(ctx, key, tasks)
	}
	return tasks, nil
}

// Create validates the request, applies defaults and stores the task.
func (s *TaskService) Create(ctx context.Context, req types.TaskCreate) (types.Task, error) {
	if strings.TrimSpace(req.Title) == "" {
		return types.Task{}, missing("title")
	}
	if req.UserID == "" {
		return types.Task{}, missing("userId")
	}

	task := types.Task{
		Title:       req.Title,
		Description: req.Description,
		Priority:    types.PriorityMedium,
		Status:      types.StatusPending,
		UserID:      req.UserID,
	}
	if req.Priority != "" {
		task.Priority = types.Priority(req.Priority)
		if !task.Priority.Valid() {
			return types.Task{}, invalid("priority")
		}
	}
	if req.Status != "" {
		task.Status = types.Status(req.Status)
		if !task.Status.Valid() {
			return types.Task{}, invalid("status")
		}
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			return types.Task{}, err
		}
		task.DueDate = &due
	}
	if req.ProjectID != nil && *req.ProjectID != "" {
		if err := s.checkProject(ctx, req.UserID, *req.ProjectID); err != nil {
			return types.Task{}, err
		}
		task.ProjectID = req.ProjectID
	}

	now := s.opts.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	created, err := s.repo.Create(ctx, task)
	if err != nil {
		return types.Task{}, err
	}

	s.opts.invalidate(ctx, tasksScope(created.UserID))
	s.opts.publish(ctx, types.EventTaskCreated, created.UserID, created.ID, created.Response())
	return created, nil
}

// Update applies a partial change and always refreshes updatedAt.
// Null clears description, dueDate and projectId.
func (s *TaskService) Update(ctx context.Context, userID string, patch types.TaskPatch) (types.Task, error) {
	if patch.ID == "" {
		return types.Task{}, missing("id")
	}

	changes := types.TaskChanges{UpdatedAt: s.opts.Now().UTC()}
	if patch.Title.Set {
		if patch.Title.Null || strings.TrimSpace(patch.Title.Value) == "" {
			return types.Task{}, missing("title")
		}
		changes.Title = patch.Title
	}
	if patch.Description.Set {
		changes.Description = patch.Description
	}
	if patch.Priority.Set {
		priority := types.Priority(patch.Priority.Value)
		if patch.Priority.Null || !priority.Valid() {
			return types.Task{}, invalid("priority")
		}
		changes.Priority = types.Some(priority)
	}
	if patch.Status.Set {
		status := types.Status(patch.Status.Value)
		if patch.Status.Null || !status.Valid() {
			return types.Task{}, invalid("status")
		}
		changes.Status = types.Some(status)
	}
	if patch.DueDate.Set {
		if patch.DueDate.Null || patch.DueDate.Value == "" {
			changes.DueDate = types.Null[time.Time]()
		} else {
			due, err := parseDueDate(patch.DueDate.Value)
			if err != nil {
				return types.Task{}, err
			}
			changes.DueDate = types.Some(due)
		}
	}
	if patch.ProjectID.Set {
		if patch.ProjectID.Null || patch.ProjectID.Value == "" {
			changes.ProjectID = types.Null[string]()
		} else {
			if err := s.checkProject(ctx, userID, patch.ProjectID.Value); err != nil {
				return types.Task{}, err
			}
			changes.ProjectID = patch.ProjectID
		}
	}

	task, err := s.repo.Update(ctx, userID, patch.ID, changes)
	if err != nil {
		return types.Task{}, err
	}

	s.opts.invalidate(ctx, tasksScope(userID))
	s.opts.publish(ctx, types.EventTaskUpdated, userID, task.ID, task.Response())
	return task, nil
}

// Delete removes one of the user's tasks.
func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	if id == "" {
		return missing("id")
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.opts.invalidate(ctx, tasksScope(userID))
	s.opts.publish(ctx, types.EventTaskDeleted, userID, id, nil)
	return nil
}

// checkProject ensures the project exists and belongs to userID.
func (s *TaskService) checkProject(ctx context.Context, userID, projectID string) error {
	if _, err := s.projects.Get(ctx, userID, projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("projectId")
		}
		return err
	}
	return nil
}

func parseDueDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	return time.Time{}, invalid("dueDate")
}
