package services

import (
	"context"
	"strings"

	"github.com/tasktrack/apiserver/types"
)

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	ListByUser(ctx context.Context, userID string) ([]types.Project, error)
	Get(ctx context.Context, userID, id string) (types.Project, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
	Update(ctx context.Context, userID, id string, changes types.ProjectChanges) (types.Project, error)
	Delete(ctx context.Context, userID, id string) error
}

// ProjectService encapsulates project use-cases.
type ProjectService struct {
	repo ProjectRepository
	opts Options
}

// NewProjectService returns a ProjectService backed by repo.
func NewProjectService(repo ProjectRepository, opts Options) *ProjectService {
	return &ProjectService{repo: repo, opts: opts.withDefaults()}
}

// List returns the user's projects, served from the list cache when possible.
func (s *ProjectService) List(ctx context.Context, userID string) ([]types.Project, error) {
	if userID == "" {
		return nil, missing("userId")
	}

	key, cacheable := s.opts.listKey(ctx, projectsScope(userID), "list")
	var projects []types.Project
	if cacheable && s.opts.cached(ctx, key, &projects) {
		return projects, nil
	}

	projects, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.opts.store(ctx, key, projects)
	}
	return projects, nil
}

// Create stores a new project owned by req.UserID.
func (s *ProjectService) Create(ctx context.Context, req types.ProjectCreate) (types.Project, error) {
	if strings.TrimSpace(req.Name) == "" {
		return types.Project{}, missing("name")
	}
	if req.UserID == "" {
		return types.Project{}, missing("userId")
	}

	project, err := s.repo.Create(ctx, types.Project{
		Name:        req.Name,
		Description: req.Description,
		UserID:      req.UserID,
		CreatedAt:   s.opts.Now().UTC(),
	})
	if err != nil {
		return types.Project{}, err
	}

	s.opts.invalidate(ctx, projectsScope(project.UserID))
	s.opts.publish(ctx, types.EventProjectCreated, project.UserID, project.ID, project.Response())
	return project, nil
}

// Update applies a partial change. An empty or null name leaves the name as is;
// a null description clears it.
func (s *ProjectService) Update(ctx context.Context, userID string, patch types.ProjectPatch) (types.Project, error) {
	if patch.ID == "" {
		return types.Project{}, missing("id")
	}

	var changes types.ProjectChanges
	if patch.Name.Set && !patch.Name.Null && strings.TrimSpace(patch.Name.Value) != "" {
		changes.Name = patch.Name
	}
	if patch.Description.Set {
		changes.Description = patch.Description
	}

	project, err := s.repo.Update(ctx, userID, patch.ID, changes)
	if err != nil {
		return types.Project{}, err
	}

	if !changes.Empty() {
		s.opts.invalidate(ctx, projectsScope(userID))
		s.opts.publish(ctx, types.EventProjectUpdated, userID, project.ID, project.Response())
	}
	return project, nil
}

// Delete removes the project together with its tasks.
func (s *ProjectService) Delete(ctx context.Context, userID, id string) error {
	if id == "" {
		return missing("id")
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.opts.invalidate(ctx, projectsScope(userID), tasksScope(userID))
	s.opts.publish(ctx, types.EventProjectDeleted, userID, id, nil)
	return nil
}
