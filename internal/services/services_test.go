package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasktrack/apiserver/internal/storage"
	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/internal/store/memory"
	"github.com/tasktrack/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

type fakeCache struct {
	mu    sync.Mutex
	items map[string][]byte
	gens  map[string]int64
	fail  bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string][]byte), gens: make(map[string]int64)}
}

func (c *fakeCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false, errors.New("cache down")
	}
	data, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *fakeCache) Set(_ context.Context, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = data
	return nil
}

func (c *fakeCache) Generation(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return 0, errors.New("cache down")
	}
	return c.gens[key], nil
}

func (c *fakeCache) Bump(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return 0, errors.New("cache down")
	}
	c.gens[key]++
	return c.gens[key], nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

func (c *fakeCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.items, key)
		}
	}
	return nil
}

type published struct {
	channel string
	event   types.Event
	attrs   map[string]string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	var event types.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return "", err
	}
	p.events = append(p.events, published{channel: channel, event: event, attrs: attrs})
	return "msg-1", nil
}

func (p *fakePublisher) eventTypes() []types.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.event.Type)
	}
	return out
}

type fakeObjects struct {
	objects map[string][]byte
}

func (o *fakeObjects) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size || contentType != "application/json" {
		return errors.New("unexpected upload")
	}
	o.objects[key] = data
	return nil
}

func (o *fakeObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := o.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o *fakeObjects) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for key, data := range o.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (o *fakeObjects) Bucket() string { return "exports" }

type fixture struct {
	opts     Options
	store    *memory.Store
	cache    *fakeCache
	events   *fakePublisher
	auth     *AuthService
	projects *ProjectService
	tasks    *TaskService
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	f := &fixture{
		store:  memory.New(),
		cache:  newFakeCache(),
		events: &fakePublisher{},
		clock:  time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	opts := Options{
		Cache:  f.cache,
		Events: f.events,
		Logger: logger,
		Now:    func() time.Time { return f.clock },
	}
	f.opts = opts
	f.auth = NewAuthService(f.store.Users(), NewTokenManager("test-secret", time.Hour), opts)
	f.auth.cost = bcrypt.MinCost
	f.projects = NewProjectService(f.store.Projects(), opts)
	f.tasks = NewTaskService(f.store.Tasks(), f.store.Projects(), opts)
	return f
}

func (f *fixture) register(t *testing.T, email string) types.PublicUser {
	t.Helper()
	result, err := f.auth.Register(context.Background(), email, "pw", "Test User")
	require.NoError(t, err)
	return result.User
}

func strPtr(s string) *string { return &s }

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.auth.Register(ctx, "  Ann@Example.com ", "pw", " Ann ")
	require.NoError(t, err)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "ann@example.com", registered.User.Email)
	assert.Equal(t, "Ann", registered.User.Name)

	loggedIn, err := f.auth.Login(ctx, "ann@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	claims, err := f.auth.Verify(loggedIn.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.ID)
	assert.Equal(t, "ann@example.com", claims.Email)

	stored, err := f.store.Users().GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw", stored.PasswordHash)

	assert.Equal(t, []types.EventType{types.EventUserRegistered}, f.events.eventTypes())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ann@example.com")

	_, err := f.auth.Register(context.Background(), "ANN@example.com", "other", "")
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestRegisterRequiresEmailAndPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Register(context.Background(), "", "pw", "")
	assert.ErrorIs(t, err, ErrMissingParameter)
	_, err = f.auth.Register(context.Background(), "a@example.com", "", "")
	assert.ErrorIs(t, err, ErrMissingParameter)
	assert.EqualError(t, err, "password is required")
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ann@example.com")

	_, unknown := f.auth.Login(context.Background(), "nobody@example.com", "pw")
	_, wrong := f.auth.Login(context.Background(), "ann@example.com", "nope")

	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.ErrorIs(t, wrong, ErrInvalidCredentials)
	assert.Equal(t, unknown.Error(), wrong.Error())
}

func TestTokenExpiry(t *testing.T) {
	manager := NewTokenManager("secret", time.Hour)
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return issued }

	token, err := manager.Issue(types.User{ID: "u1", Email: "u@example.com"})
	require.NoError(t, err)

	manager.now = func() time.Time { return issued.Add(59 * time.Minute) }
	_, err = manager.Parse(token)
	require.NoError(t, err)

	manager.now = func() time.Time { return issued.Add(61 * time.Minute) }
	_, err = manager.Parse(token)
	assert.Error(t, err)

	other := NewTokenManager("different", time.Hour)
	other.now = func() time.Time { return issued }
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestProjectCreateRequiresName(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "ann@example.com")

	_, err := f.projects.Create(context.Background(), types.ProjectCreate{UserID: user.ID})
	assert.ErrorIs(t, err, ErrMissingParameter)
	assert.EqualError(t, err, "name is required")
}

func TestProjectUpdateSemantics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")

	project, err := f.projects.Create(ctx, types.ProjectCreate{Name: "Home", Description: strPtr("chores"), UserID: user.ID})
	require.NoError(t, err)

	updated, err := f.projects.Update(ctx, user.ID, types.ProjectPatch{ID: project.ID, Name: types.Some("")})
	require.NoError(t, err)
	assert.Equal(t, "Home", updated.Name)
	require.NotNil(t, updated.Description)

	updated, err = f.projects.Update(ctx, user.ID, types.ProjectPatch{
		ID:          project.ID,
		Name:        types.Some("House"),
		Description: types.Null[string](),
	})
	require.NoError(t, err)
	assert.Equal(t, "House", updated.Name)
	assert.Nil(t, updated.Description)

	_, err = f.projects.Update(ctx, user.ID, types.ProjectPatch{ID: "missing", Name: types.Some("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProjectListIsCachedAndInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")

	_, err := f.projects.Create(ctx, types.ProjectCreate{Name: "A", UserID: user.ID})
	require.NoError(t, err)

	list, err := f.projects.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, f.cache.has("projects:"+user.ID+":v1:list"))

	_, err = f.projects.Create(ctx, types.ProjectCreate{Name: "B", UserID: user.ID})
	require.NoError(t, err)
	assert.False(t, f.cache.has("projects:"+user.ID+":v1:list"))
	assert.Equal(t, int64(2), f.cache.gens["projects:"+user.ID+":gen"])

	list, err = f.projects.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCacheFailureFallsThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")
	f.cache.fail = true

	_, err := f.projects.Create(ctx, types.ProjectCreate{Name: "A", UserID: user.ID})
	require.NoError(t, err)
	list, err := f.projects.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestProjectDeleteCascadesAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")

	project, err := f.projects.Create(ctx, types.ProjectCreate{Name: "P", UserID: user.ID})
	require.NoError(t, err)
	_, err = f.tasks.Create(ctx, types.TaskCreate{Title: "T", ProjectID: &project.ID, UserID: user.ID})
	require.NoError(t, err)

	tasks, err := f.tasks.List(ctx, types.TaskFilter{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, f.projects.Delete(ctx, user.ID, project.ID))

	tasks, err = f.tasks.List(ctx, types.TaskFilter{UserID: user.ID})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	assert.ErrorIs(t, f.projects.Delete(ctx, user.ID, project.ID), store.ErrNotFound)
	assert.Equal(t, []types.EventType{
		types.EventUserRegistered,
		types.EventProjectCreated,
		types.EventTaskCreated,
		types.EventProjectDeleted,
	}, f.events.eventTypes())
}

func TestTaskCreateDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")

	task, err := f.tasks.Create(ctx, types.TaskCreate{Title: "Write", UserID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, types.PriorityMedium, task.Priority)
	assert.Equal(t, types.StatusPending, task.Status)
	assert.Nil(t, task.ProjectID)
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)

	_, err = f.tasks.Create(ctx, types.TaskCreate{UserID: user.ID})
	assert.EqualError(t, err, "title is required")

	_, err = f.tasks.Create(ctx, types.TaskCreate{Title: "x", Priority: "urgent", UserID: user.ID})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.EqualError(t, err, "invalid priority")

	_, err = f.tasks.Create(ctx, types.TaskCreate{Title: "x", Status: "done", UserID: user.ID})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = f.tasks.Create(ctx, types.TaskCreate{Title: "x", DueDate: strPtr("tomorrow"), UserID: user.ID})
	assert.EqualError(t, err, "invalid dueDate")

	dated, err := f.tasks.Create(ctx, types.TaskCreate{Title: "x", DueDate: strPtr("2026-05-01"), UserID: user.ID})
	require.NoError(t, err)
	require.NotNil(t, dated.DueDate)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), *dated.DueDate)
}

func TestTaskProjectMustBelongToUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "owner@example.com")
	other := f.register(t, "other@example.com")

	project, err := f.projects.Create(ctx, types.ProjectCreate{Name: "Owner's", UserID: owner.ID})
	require.NoError(t, err)

	_, err = f.tasks.Create(ctx, types.TaskCreate{Title: "sneaky", ProjectID: &project.ID, UserID: other.ID})
	assert.EqualError(t, err, "invalid projectId")

	task, err := f.tasks.Create(ctx, types.TaskCreate{Title: "mine", UserID: other.ID})
	require.NoError(t, err)
	_, err = f.tasks.Update(ctx, other.ID, types.TaskPatch{ID: task.ID, ProjectID: types.Some(project.ID)})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestTaskUpdateRefreshesUpdatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")

	task, err := f.tasks.Create(ctx, types.TaskCreate{Title: "Write", DueDate: strPtr("2026-06-01T10:00:00Z"), UserID: user.ID})
	require.NoError(t, err)

	// The clock does not move; updatedAt must still advance.
	updated, err := f.tasks.Update(ctx, user.ID, types.TaskPatch{ID: task.ID, Status: types.Some("completed")})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, updated.Status)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))
	assert.Equal(t, "Write", updated.Title)
	assert.NotNil(t, updated.DueDate)

	f.clock = f.clock.Add(time.Hour)
	cleared, err := f.tasks.Update(ctx, user.ID, types.TaskPatch{ID: task.ID, DueDate: types.Null[string]()})
	require.NoError(t, err)
	assert.Nil(t, cleared.DueDate)
	assert.Equal(t, f.clock, cleared.UpdatedAt)
	assert.Equal(t, types.StatusCompleted, cleared.Status)
}

func TestTaskUpdateRejectsEmptyTitleAndBadEnums(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")
	task, err := f.tasks.Create(ctx, types.TaskCreate{Title: "Write", UserID: user.ID})
	require.NoError(t, err)

	_, err = f.tasks.Update(ctx, user.ID, types.TaskPatch{ID: task.ID, Title: types.Null[string]()})
	assert.ErrorIs(t, err, ErrMissingParameter)
	_, err = f.tasks.Update(ctx, user.ID, types.TaskPatch{ID: task.ID, Priority: types.Some("urgent")})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = f.tasks.Update(ctx, user.ID, types.TaskPatch{ID: task.ID, Status: types.Null[string]()})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = f.tasks.Update(ctx, user.ID, types.TaskPatch{Title: types.Some("x")})
	assert.EqualError(t, err, "id is required")
}

func TestTaskListFilterAndCacheKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")

	project, err := f.projects.Create(ctx, types.ProjectCreate{Name: "P", UserID: user.ID})
	require.NoError(t, err)
	_, err = f.tasks.Create(ctx, types.TaskCreate{Title: "in", ProjectID: &project.ID, UserID: user.ID})
	require.NoError(t, err)
	_, err = f.tasks.Create(ctx, types.TaskCreate{Title: "out", UserID: user.ID})
	require.NoError(t, err)

	all, err := f.tasks.List(ctx, types.TaskFilter{UserID: user.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := f.tasks.List(ctx, types.TaskFilter{UserID: user.ID, ProjectID: &project.ID})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "in", scoped[0].Title)

	assert.True(t, f.cache.has("tasks:"+user.ID+":v2:all"))
	assert.True(t, f.cache.has("tasks:"+user.ID+":v2:project:"+project.ID))

	require.NoError(t, f.tasks.Delete(ctx, user.ID, scoped[0].ID))
	assert.Empty(t, f.cache.items)

	all, err = f.tasks.List(ctx, types.TaskFilter{UserID: user.ID})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")
	f.events.err = errors.New("broker down")

	_, err := f.projects.Create(ctx, types.ProjectCreate{Name: "P", UserID: user.ID})
	assert.NoError(t, err)
}

func TestEventAttributes(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "ann@example.com")

	require.Len(t, f.events.events, 1)
	sent := f.events.events[0]
	assert.Equal(t, DefaultEventChannel, sent.channel)
	assert.Equal(t, map[string]string{"type": "user.registered", "user_id": user.ID}, sent.attrs)
	assert.Equal(t, user.ID, sent.event.EntityID)
}

func TestExportWritesSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")

	project, err := f.projects.Create(ctx, types.ProjectCreate{Name: "P", UserID: user.ID})
	require.NoError(t, err)
	_, err = f.tasks.Create(ctx, types.TaskCreate{Title: "T", ProjectID: &project.ID, UserID: user.ID})
	require.NoError(t, err)

	objects := &fakeObjects{objects: make(map[string][]byte)}
	logger, hook := test.NewNullLogger()
	exports := NewExportService(f.projects, f.tasks, objects, Options{Logger: logger, Now: func() time.Time { return f.clock }})

	result, err := exports.Export(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "exports/"+user.ID+"/20260401T090000Z.json", result.Key)
	assert.Equal(t, 1, result.Projects)
	assert.Equal(t, 1, result.Tasks)

	var doc types.Export
	require.NoError(t, json.NewDecoder(bytes.NewReader(objects.objects[result.Key])).Decode(&doc))
	assert.Equal(t, user.ID, doc.UserID)
	require.Len(t, doc.Tasks, 1)
	assert.Equal(t, "T", doc.Tasks[0].Title)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)

	f.clock = f.clock.Add(time.Minute)
	second, err := exports.Export(ctx, user.ID)
	require.NoError(t, err)

	listed, err := exports.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, second.Key, listed[0].Key)

	body, err := exports.Open(ctx, user.ID, "20260401T090000Z.json")
	require.NoError(t, err)
	defer body.Close()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, objects.objects[result.Key], raw)

	_, err = exports.Open(ctx, user.ID, "missing.json")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = exports.Open(ctx, user.ID, "../other/20260401T090000Z.json")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExportWithoutStorage(t *testing.T) {
	f := newFixture(t)
	exports := NewExportService(f.projects, f.tasks, nil, Options{})

	assert.False(t, exports.Enabled())
	_, err := exports.Export(context.Background(), "someone")
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

// blockingProjects pauses the first ListByUser after reading rows so a
// mutation can commit before the stale result is cached.
type blockingProjects struct {
	ProjectRepository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProjects) ListByUser(ctx context.Context, userID string) ([]types.Project, error) {
	projects, err := b.ProjectRepository.ListByUser(ctx, userID)
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return projects, err
}

type blockingTasks struct {
	TaskRepository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingTasks) List(ctx context.Context, filter types.TaskFilter) ([]types.Task, error) {
	tasks, err := b.TaskRepository.List(ctx, filter)
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return tasks, err
}

func TestProjectListRacingUpdateIsNotCachedStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")

	project, err := f.projects.Create(ctx, types.ProjectCreate{Name: "old", UserID: user.ID})
	require.NoError(t, err)

	repo := &blockingProjects{
		ProjectRepository: f.store.Projects(),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	projects := NewProjectService(repo, f.opts)

	done := make(chan []types.Project, 1)
	go func() {
		list, _ := projects.List(ctx, user.ID)
		done <- list
	}()
	<-repo.entered

	_, err = projects.Update(ctx, user.ID, types.ProjectPatch{ID: project.ID, Name: types.Some("new")})
	require.NoError(t, err)
	close(repo.release)

	stale := <-done
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].Name)

	list, err := projects.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].Name)
}

func TestTaskListRacingUpdateIsNotCachedStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann@example.com")

	task, err := f.tasks.Create(ctx, types.TaskCreate{Title: "Write", UserID: user.ID})
	require.NoError(t, err)

	repo := &blockingTasks{
		TaskRepository: f.store.Tasks(),
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	tasks := NewTaskService(repo, f.store.Projects(), f.opts)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = tasks.List(ctx, types.TaskFilter{UserID: user.ID})
	}()
	<-repo.entered

	_, err = tasks.Update(ctx, user.ID, types.TaskPatch{ID: task.ID, Status: types.Some("completed")})
	require.NoError(t, err)
	close(repo.release)
	<-done

	list, err := tasks.List(ctx, types.TaskFilter{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, types.StatusCompleted, list[0].Status)
}
