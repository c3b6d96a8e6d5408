package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/types"
)

func TestUserEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	users := New().Users()

	_, err := users.Create(ctx, types.User{Email: "a@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	_, err = users.Create(ctx, types.User{Email: "a@example.com", PasswordHash: "y"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestProjectDeleteCascadesToTasks(t *testing.T) {
	ctx := context.Background()
	s := New()

	user, err := s.Users().Create(ctx, types.User{Email: "a@example.com"})
	require.NoError(t, err)
	project, err := s.Projects().Create(ctx, types.Project{Name: "P", UserID: user.ID})
	require.NoError(t, err)

	_, err = s.Tasks().Create(ctx, types.Task{Title: "in project", UserID: user.ID, ProjectID: &project.ID})
	require.NoError(t, err)
	loose, err := s.Tasks().Create(ctx, types.Task{Title: "unassigned", UserID: user.ID})
	require.NoError(t, err)

	require.NoError(t, s.Projects().Delete(ctx, user.ID, project.ID))

	tasks, err := s.Tasks().List(ctx, types.TaskFilter{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, loose.ID, tasks[0].ID)
}

func TestOwnershipScoping(t *testing.T) {
	ctx := context.Background()
	s := New()

	owner, err := s.Users().Create(ctx, types.User{Email: "owner@example.com"})
	require.NoError(t, err)
	other, err := s.Users().Create(ctx, types.User{Email: "other@example.com"})
	require.NoError(t, err)

	task, err := s.Tasks().Create(ctx, types.Task{Title: "mine", UserID: owner.ID})
	require.NoError(t, err)

	_, err = s.Tasks().Update(ctx, other.ID, task.ID, types.TaskChanges{UpdatedAt: time.Now()})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Tasks().Delete(ctx, other.ID, task.ID), store.ErrNotFound)

	tasks, err := s.Tasks().List(ctx, types.TaskFilter{UserID: other.ID})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestProjectUpdateNullClearsDescription(t *testing.T) {
	ctx := context.Background()
	s := New()
	desc := "notes"

	user, err := s.Users().Create(ctx, types.User{Email: "a@example.com"})
	require.NoError(t, err)
	project, err := s.Projects().Create(ctx, types.Project{Name: "P", Description: &desc, UserID: user.ID})
	require.NoError(t, err)

	updated, err := s.Projects().Update(ctx, user.ID, project.ID, types.ProjectChanges{Description: types.Null[string]()})
	require.NoError(t, err)
	assert.Equal(t, "P", updated.Name)
	assert.Nil(t, updated.Description)
}
