// Package memory provides in-process repositories with the same semantics as
// the postgres store, including email uniqueness and project cascade deletes.
// It backs DB_DRIVER=memory and the service and handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/types"
)

// Store holds all three tables behind a single lock so cascades stay atomic.
type Store struct {
	mu       sync.RWMutex
	users    map[string]types.User
	projects map[string]types.Project
	tasks    map[string]types.Task
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]types.User),
		projects: make(map[string]types.Project),
		tasks:    make(map[string]types.Task),
	}
}

func (s *Store) Users() *UserRepository       { return &UserRepository{s: s} }
func (s *Store) Projects() *ProjectRepository { return &ProjectRepository{s: s} }
func (s *Store) Tasks() *TaskRepository       { return &TaskRepository{s: s} }

type UserRepository struct{ s *Store }

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.s.users[user.ID] = user
	return user, nil
}

type ProjectRepository struct{ s *Store }

func (r *ProjectRepository) ListByUser(_ context.Context, userID string) ([]types.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	projects := make([]types.Project, 0)
	for _, project := range r.s.projects {
		if project.UserID == userID {
			projects = append(projects, project)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		return lessByCreation(projects[i].CreatedAt, projects[i].ID, projects[j].CreatedAt, projects[j].ID)
	})
	return projects, nil
}

func (r *ProjectRepository) Get(_ context.Context, userID, id string) (types.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	project, ok := r.s.projects[id]
	if !ok || project.UserID != userID {
		return types.Project{}, store.ErrNotFound
	}
	return project, nil
}

func (r *ProjectRepository) Create(_ context.Context, project types.Project) (types.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[project.UserID]; !ok {
		return types.Project{}, store.ErrNotFound
	}
	project.ID = uuid.NewString()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	project.Description = cloneString(project.Description)
	r.s.projects[project.ID] = project
	return project, nil
}

func (r *ProjectRepository) Update(_ context.Context, userID, id string, changes types.ProjectChanges) (types.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	project, ok := r.s.projects[id]
	if !ok || project.UserID != userID {
		return types.Project{}, store.ErrNotFound
	}
	if changes.Name.Set {
		project.Name = changes.Name.Value
	}
	if changes.Description.Set {
		project.Description = changes.Description.Ptr()
	}
	r.s.projects[id] = project
	return project, nil
}

func (r *ProjectRepository) Delete(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	project, ok := r.s.projects[id]
	if !ok || project.UserID != userID {
		return store.ErrNotFound
	}
	delete(r.s.projects, id)
	for taskID, task := range r.s.tasks {
		if task.ProjectID != nil && *task.ProjectID == id {
			delete(r.s.tasks, taskID)
		}
	}
	return nil
}

type TaskRepository struct{ s *Store }

func (r *TaskRepository) List(_ context.Context, filter types.TaskFilter) ([]types.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tasks := make([]types.Task, 0)
	for _, task := range r.s.tasks {
		if task.UserID != filter.UserID {
			continue
		}
		if filter.ProjectID != nil && (task.ProjectID == nil || *task.ProjectID != *filter.ProjectID) {
			continue
		}
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return lessByCreation(tasks[i].CreatedAt, tasks[i].ID, tasks[j].CreatedAt, tasks[j].ID)
	})
	return tasks, nil
}

func (r *TaskRepository) Create(_ context.Context, task types.Task) (types.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[task.UserID]; !ok {
		return types.Task{}, store.ErrNotFound
	}
	if task.ProjectID != nil {
		if _, ok := r.s.projects[*task.ProjectID]; !ok {
			return types.Task{}, store.ErrNotFound
		}
	}
	task.ID = uuid.NewString()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	task.Description = cloneString(task.Description)
	task.ProjectID = cloneString(task.ProjectID)
	r.s.tasks[task.ID] = task
	return task, nil
}

func (r *TaskRepository) Update(_ context.Context, userID, id string, changes types.TaskChanges) (types.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task, ok := r.s.tasks[id]
	if !ok || task.UserID != userID {
		return types.Task{}, store.ErrNotFound
	}
	if changes.Title.Set {
		task.Title = changes.Title.Value
	}
	if changes.Description.Set {
		task.Description = changes.Description.Ptr()
	}
	if changes.Priority.Set {
		task.Priority = changes.Priority.Value
	}
	if changes.Status.Set {
		task.Status = changes.Status.Value
	}
	if changes.DueDate.Set {
		task.DueDate = changes.DueDate.Ptr()
	}
	if changes.ProjectID.Set {
		task.ProjectID = changes.ProjectID.Ptr()
	}
	if next := task.UpdatedAt.Add(time.Microsecond); changes.UpdatedAt.Before(next) {
		task.UpdatedAt = next
	} else {
		task.UpdatedAt = changes.UpdatedAt
	}
	r.s.tasks[id] = task
	return task, nil
}

func (r *TaskRepository) Delete(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task, ok := r.s.tasks[id]
	if !ok || task.UserID != userID {
		return store.ErrNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func lessByCreation(a time.Time, aID string, b time.Time, bID string) bool {
	if a.Equal(b) {
		return aID < bID
	}
	return a.Before(b)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
