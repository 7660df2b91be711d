package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskManager/internal/models/task"
	"taskManager/internal/repository"
	"taskManager/internal/repository/task/inmemory"
	"taskManager/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore - мок хранилища
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Begin(ctx context.Context) (repository.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.Session), args.Error(1)
}

func (m *MockStore) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Close() {
	m.Called()
}

// MockSession - мок сессии
type MockSession struct {
	mock.Mock
}

func (m *MockSession) Add(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockSession) Get(ctx context.Context, id int64) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockSession) Save(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockSession) Query(ctx context.Context, q repository.TaskQuery) ([]*task.Task, int, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*task.Task), args.Int(1), args.Error(2)
}

func (m *MockSession) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSession) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSession) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)

func frozenClock() time.Time { return fixedNow }

func newInMemoryService(options ...service.Option) *service.TaskService {
	return service.NewTaskService(inmemory.NewTaskStorage(), options...)
}

func mustCreate(t *testing.T, svc *service.TaskService, in service.CreateTaskInput) *task.Task {
	t.Helper()
	created, err := svc.CreateTask(context.Background(), in)
	require.NoError(t, err)
	return created
}

func TestTaskService_HealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		repoErr error
		wantErr bool
	}{
		{name: "healthy", repoErr: nil},
		{name: "unhealthy", repoErr: errors.New("connection refused"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			store.On("HealthCheck", mock.Anything).Return(tt.repoErr)

			err := service.NewTaskService(store).HealthCheck(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.repoErr)
			} else {
				assert.NoError(t, err)
			}
			store.AssertExpectations(t)
		})
	}
}

func TestTaskService_CreateTask(t *testing.T) {
	ctx := context.Background()
	svc := newInMemoryService(service.WithClock(frozenClock))

	t.Run("trims title and applies defaults", func(t *testing.T) {
		created, err := svc.CreateTask(ctx, service.CreateTaskInput{Title: ptr(" Buy milk ")})
		require.NoError(t, err)

		assert.Equal(t, "Buy milk", created.Title)
		assert.Equal(t, task.StatusPending, created.Status)
		assert.Equal(t, task.PriorityMedium, created.Priority)
		assert.Nil(t, created.Description)
		assert.Equal(t, created.CreatedAt, created.UpdatedAt)
		assert.Equal(t, fixedNow.Truncate(time.Microsecond), created.CreatedAt)

		got, err := svc.GetTaskByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("keeps explicit fields", func(t *testing.T) {
		created, err := svc.CreateTask(ctx, service.CreateTaskInput{
			Title:       ptr("X"),
			Description: ptr(""),
			Status:      ptr(task.StatusInProgress),
			Priority:    ptr(task.PriorityHigh),
		})
		require.NoError(t, err)

		require.NotNil(t, created.Description)
		assert.Equal(t, "", *created.Description)
		assert.Equal(t, task.StatusInProgress, created.Status)
		assert.Equal(t, task.PriorityHigh, created.Priority)
	})

	t.Run("fresh unique ids", func(t *testing.T) {
		seen := map[int64]bool{}
		for i := 0; i < 10; i++ {
			created := mustCreate(t, svc, service.CreateTaskInput{Title: ptr("t")})
			assert.False(t, seen[created.ID])
			seen[created.ID] = true
		}
	})

	t.Run("bogus status is rejected without side effects", func(t *testing.T) {
		before, err := svc.ListTasks(ctx, service.ListTasksInput{})
		require.NoError(t, err)

		_, err = svc.CreateTask(ctx, service.CreateTaskInput{Title: ptr("X"), Status: ptr(task.Status("bogus"))})
		requireValidation(t, err, "status", service.ReasonInvalidValue)

		after, err := svc.ListTasks(ctx, service.ListTasksInput{})
		require.NoError(t, err)
		assert.Equal(t, before.Total, after.Total)
	})

	t.Run("invalid titles", func(t *testing.T) {
		for _, title := range []string{"   ", strings.Repeat("a", 201)} {
			_, err := svc.CreateTask(ctx, service.CreateTaskInput{Title: ptr(title)})
			require.Error(t, err)
			be, ok := service.AsBusinessError(err)
			require.True(t, ok)
			assert.Equal(t, "title", be.Field())
		}
	})
}

func TestTaskService_GetTaskByID(t *testing.T) {
	ctx := context.Background()
	svc := newInMemoryService()

	_, err := svc.GetTaskByID(ctx, 42)
	require.ErrorIs(t, err, service.ErrNotFound)

	be, _ := service.AsBusinessError(err)
	assert.Equal(t, int64(42), be.Details["id"])
}

func TestTaskService_UpdateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("absent fields are unchanged and updated_at strictly increases", func(t *testing.T) {
		svc := newInMemoryService(service.WithClock(frozenClock))
		created := mustCreate(t, svc, service.CreateTaskInput{
			Title:       ptr("Original"),
			Description: ptr("keep me"),
			Priority:    ptr(task.PriorityLow),
		})

		updated, err := svc.UpdateTask(ctx, created.ID, service.UpdateTaskInput{
			Status: task.Value(task.StatusCompleted),
		})
		require.NoError(t, err)

		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "Original", updated.Title)
		require.NotNil(t, updated.Description)
		assert.Equal(t, "keep me", *updated.Description)
		assert.Equal(t, task.PriorityLow, updated.Priority)
		assert.Equal(t, task.StatusCompleted, updated.Status)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
		// часы заморожены, но updated_at всё равно растёт
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	})

	t.Run("empty update refreshes updated_at", func(t *testing.T) {
		svc := newInMemoryService(service.WithClock(frozenClock))
		created := mustCreate(t, svc, service.CreateTaskInput{Title: ptr("x")})

		first, err := svc.UpdateTask(ctx, created.ID, service.UpdateTaskInput{})
		require.NoError(t, err)
		second, err := svc.UpdateTask(ctx, created.ID, service.UpdateTaskInput{})
		require.NoError(t, err)

		assert.True(t, first.UpdatedAt.After(created.UpdatedAt))
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		assert.Equal(t, created.Title, second.Title)
	})

	t.Run("uses the clock when it moves forward", func(t *testing.T) {
		now := fixedNow
		svc := newInMemoryService(service.WithClock(func() time.Time { return now }))
		created := mustCreate(t, svc, service.CreateTaskInput{Title: ptr("x")})

		now = now.Add(time.Hour)
		updated, err := svc.UpdateTask(ctx, created.ID, service.UpdateTaskInput{Title: task.Value("y")})
		require.NoError(t, err)
		assert.Equal(t, now.Truncate(time.Microsecond), updated.UpdatedAt)
	})

	t.Run("explicit null clears description", func(t *testing.T) {
		svc := newInMemoryService()
		created := mustCreate(t, svc, service.CreateTaskInput{Title: ptr("x"), Description: ptr("d")})

		updated, err := svc.UpdateTask(ctx, created.ID, service.UpdateTaskInput{Description: task.Null[string]()})
		require.NoError(t, err)
		assert.Nil(t, updated.Description)
	})

	t.Run("status transitions are unrestricted", func(t *testing.T) {
		svc := newInMemoryService()
		created := mustCreate(t, svc, service.CreateTaskInput{Title: ptr("x"), Status: ptr(task.StatusCompleted)})

		updated, err := svc.UpdateTask(ctx, created.ID, service.UpdateTaskInput{Status: task.Value(task.StatusPending)})
		require.NoError(t, err)
		assert.Equal(t, task.StatusPending, updated.Status)
	})

	t.Run("title is trimmed", func(t *testing.T) {
		svc := newInMemoryService()
		created := mustCreate(t, svc, service.CreateTaskInput{Title: ptr("x")})

		updated, err := svc.UpdateTask(ctx, created.ID, service.UpdateTaskInput{Title: task.Value("  y  ")})
		require.NoError(t, err)
		assert.Equal(t, "y", updated.Title)
	})

	t.Run("invalid title leaves task untouched", func(t *testing.T) {
		svc := newInMemoryService()
		created := mustCreate(t, svc, service.CreateTaskInput{Title: ptr("x")})

		for _, title := range []string{" ", strings.Repeat("a", 201)} {
			_, err := svc.UpdateTask(ctx, created.ID, service.UpdateTaskInput{Title: task.Value(title)})
			require.Error(t, err)
			be, ok := service.AsBusinessError(err)
			require.True(t, ok)
			assert.Equal(t, "title", be.Field())
		}

		got, err := svc.GetTaskByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("nonexistent id", func(t *testing.T) {
		svc := newInMemoryService()

		_, err := svc.UpdateTask(ctx, 7, service.UpdateTaskInput{Title: task.Value("Y")})
		require.ErrorIs(t, err, service.ErrNotFound)
		be, _ := service.AsBusinessError(err)
		assert.Equal(t, int64(7), be.Details["id"])
	})
}

func TestTaskService_DeleteTask(t *testing.T) {
	ctx := context.Background()
	svc := newInMemoryService()
	created := mustCreate(t, svc, service.CreateTaskInput{Title: ptr("x")})

	require.NoError(t, svc.DeleteTask(ctx, created.ID))

	_, err := svc.GetTaskByID(ctx, created.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteTask(ctx, created.ID), service.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteTask(ctx, created.ID), service.ErrNotFound)

	_, err = svc.UpdateTask(ctx, created.ID, service.UpdateTaskInput{})
	assert.ErrorIs(t, err, service.ErrNotFound)

	// новый id не совпадает с удалённым
	next := mustCreate(t, svc, service.CreateTaskInput{Title: ptr("y")})
	assert.NotEqual(t, created.ID, next.ID)
}

func TestTaskService_ListTasks(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		svc := newInMemoryService()
		page, err := svc.ListTasks(ctx, service.ListTasksInput{})
		require.NoError(t, err)

		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
		assert.Equal(t, 0, page.Total)
		assert.Equal(t, 0, page.Skip)
		assert.Equal(t, 100, page.Limit)
	})

	t.Run("pending filter with skip", func(t *testing.T) {
		svc := newInMemoryService()
		for _, s := range []task.Status{
			task.StatusPending, task.StatusCompleted, task.StatusPending,
			task.StatusCompleted, task.StatusPending,
		} {
			mustCreate(t, svc, service.CreateTaskInput{Title: ptr("t"), Status: ptr(s)})
		}

		page, err := svc.ListTasks(ctx, service.ListTasksInput{
			Status: ptr(task.StatusPending),
			Skip:   ptr(1),
			Limit:  ptr(10),
		})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 3, page.Total)
		for _, it := range page.Items {
			assert.Equal(t, task.StatusPending, it.Status)
		}
	})

	t.Run("no filters returns min(limit, total) ordered by id", func(t *testing.T) {
		svc := newInMemoryService()
		for i := 0; i < 7; i++ {
			mustCreate(t, svc, service.CreateTaskInput{Title: ptr("t")})
		}

		for _, limit := range []int{1, 5, 7, 50} {
			page, err := svc.ListTasks(ctx, service.ListTasksInput{Limit: ptr(limit)})
			require.NoError(t, err)
			assert.Len(t, page.Items, min(limit, 7))
			assert.Equal(t, 7, page.Total)
			for i := 1; i < len(page.Items); i++ {
				assert.Less(t, page.Items[i-1].ID, page.Items[i].ID)
			}
		}
	})

	t.Run("status and priority are conjunctive", func(t *testing.T) {
		svc := newInMemoryService()
		mustCreate(t, svc, service.CreateTaskInput{Title: ptr("a"), Priority: ptr(task.PriorityHigh)})
		mustCreate(t, svc, service.CreateTaskInput{Title: ptr("b"), Priority: ptr(task.PriorityLow)})
		mustCreate(t, svc, service.CreateTaskInput{Title: ptr("c"), Priority: ptr(task.PriorityHigh), Status: ptr(task.StatusCompleted)})

		page, err := svc.ListTasks(ctx, service.ListTasksInput{
			Status:   ptr(task.StatusPending),
			Priority: ptr(task.PriorityHigh),
		})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "a", page.Items[0].Title)
		assert.Equal(t, 1, page.Total)
	})

	t.Run("custom pagination", func(t *testing.T) {
		svc := newInMemoryService(service.WithPagination(service.PaginationConfig{DefaultLimit: 2, MaxLimit: 3}))
		for i := 0; i < 4; i++ {
			mustCreate(t, svc, service.CreateTaskInput{Title: ptr("t")})
		}

		page, err := svc.ListTasks(ctx, service.ListTasksInput{})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 2, page.Limit)

		_, err = svc.ListTasks(ctx, service.ListTasksInput{Limit: ptr(4)})
		requireValidation(t, err, "limit", service.ReasonOutOfRange)
	})
}

func TestTaskService_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	storageErr := errors.New("connection reset")

	t.Run("commit on success", func(t *testing.T) {
		sess := new(MockSession)
		sess.On("Add", mock.Anything, mock.AnythingOfType("*task.Task")).Return(nil)
		sess.On("Commit", mock.Anything).Return(nil)
		store := new(MockStore)
		store.On("Begin", mock.Anything).Return(sess, nil)

		_, err := service.NewTaskService(store).CreateTask(ctx, service.CreateTaskInput{Title: ptr("x")})
		require.NoError(t, err)

		sess.AssertExpectations(t)
		sess.AssertNotCalled(t, "Rollback", mock.Anything)
	})

	t.Run("rollback on validation failure", func(t *testing.T) {
		sess := new(MockSession)
		sess.On("Rollback", mock.Anything).Return(nil)
		store := new(MockStore)
		store.On("Begin", mock.Anything).Return(sess, nil)

		_, err := service.NewTaskService(store).CreateTask(ctx, service.CreateTaskInput{})
		assert.ErrorIs(t, err, service.ErrValidation)

		sess.AssertCalled(t, "Rollback", mock.Anything)
		sess.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
		sess.AssertNotCalled(t, "Commit", mock.Anything)
	})

	t.Run("storage fault propagates unmodified", func(t *testing.T) {
		sess := new(MockSession)
		sess.On("Get", mock.Anything, int64(5)).Return(nil, storageErr)
		sess.On("Rollback", mock.Anything).Return(nil)
		store := new(MockStore)
		store.On("Begin", mock.Anything).Return(sess, nil)

		_, err := service.NewTaskService(store).GetTaskByID(ctx, 5)
		assert.Same(t, storageErr, err)

		sess.AssertCalled(t, "Rollback", mock.Anything)
	})

	t.Run("begin failure", func(t *testing.T) {
		store := new(MockStore)
		store.On("Begin", mock.Anything).Return(nil, storageErr)

		err := service.NewTaskService(store).DeleteTask(ctx, 1)
		assert.ErrorIs(t, err, storageErr)
	})

	t.Run("commit failure is returned", func(t *testing.T) {
		sess := new(MockSession)
		sess.On("Delete", mock.Anything, int64(1)).Return(nil)
		sess.On("Commit", mock.Anything).Return(storageErr)
		sess.On("Rollback", mock.Anything).Return(nil)
		store := new(MockStore)
		store.On("Begin", mock.Anything).Return(sess, nil)

		err := service.NewTaskService(store).DeleteTask(ctx, 1)
		assert.ErrorIs(t, err, storageErr)
	})

	t.Run("concurrent delete at commit surfaces not found", func(t *testing.T) {
		existing := task.New("x")
		existing.ID = 3
		existing.CreatedAt = fixedNow
		existing.UpdatedAt = fixedNow

		sess := new(MockSession)
		sess.On("Get", mock.Anything, int64(3)).Return(existing, nil)
		sess.On("Save", mock.Anything, mock.AnythingOfType("*task.Task")).Return(nil)
		sess.On("Commit", mock.Anything).Return(repository.ErrNotFound)
		sess.On("Rollback", mock.Anything).Return(nil)
		store := new(MockStore)
		store.On("Begin", mock.Anything).Return(sess, nil)

		_, err := service.NewTaskService(store).UpdateTask(ctx, 3, service.UpdateTaskInput{Title: task.Value("y")})
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("rollback on panic", func(t *testing.T) {
		sess := new(MockSession)
		sess.On("Query", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			panic("boom")
		})
		sess.On("Rollback", mock.Anything).Return(nil)
		store := new(MockStore)
		store.On("Begin", mock.Anything).Return(sess, nil)

		assert.PanicsWithValue(t, "boom", func() {
			service.NewTaskService(store).ListTasks(ctx, service.ListTasksInput{})
		})
		sess.AssertCalled(t, "Rollback", mock.Anything)
	})
}

func TestTaskCRUD_SessionAsParameter(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewTaskStorage()
	crud := service.NewTaskCRUD(frozenClock, service.DefaultPagination())

	sess, err := store.Begin(ctx)
	require.NoError(t, err)

	created, err := crud.Create(ctx, sess, service.CreateTaskInput{Title: ptr("in session")})
	require.NoError(t, err)

	got, err := crud.Get(ctx, sess, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "in session", got.Title)

	require.NoError(t, sess.Rollback(ctx))

	other, err := store.Begin(ctx)
	require.NoError(t, err)
	defer other.Rollback(ctx)
	_, err = crud.Get(ctx, other, created.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
