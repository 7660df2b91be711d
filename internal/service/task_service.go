package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	"taskManager/internal/repository"

	"go.uber.org/zap"
)

// здесь живёт жизненный цикл сессии: открыть, выполнить одну операцию, зафиксировать или откатить

type TaskService struct {
	store repository.Store
	crud  *TaskCRUD
}

type Option func(*TaskService)

func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		s.crud.now = now
	}
}

func WithPagination(p PaginationConfig) Option {
	return func(s *TaskService) {
		if p.DefaultLimit > 0 && p.MaxLimit >= p.DefaultLimit {
			s.crud.pagination = p
		}
	}
}

func NewTaskService(store repository.Store, options ...Option) *TaskService {
	s := &TaskService{
		store: store,
		crud:  NewTaskCRUD(time.Now, DefaultPagination()),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput) (*task.Task, error) {
	var created *task.Task
	err := s.withSession(ctx, "create", func(sess repository.Session) error {
		t, err := s.crud.Create(ctx, sess, in)
		created = t
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Service: Задача создана", zap.Int64("task_id", created.ID))
	return created, nil
}

func (s *TaskService) GetTaskByID(ctx context.Context, id int64) (*task.Task, error) {
	var found *task.Task
	err := s.withSession(ctx, "get", func(sess repository.Session) error {
		t, err := s.crud.Get(ctx, sess, id)
		found = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *TaskService) ListTasks(ctx context.Context, in ListTasksInput) (*TaskPage, error) {
	var page *TaskPage
	err := s.withSession(ctx, "list", func(sess repository.Session) error {
		p, err := s.crud.List(ctx, sess, in)
		page = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id int64, in UpdateTaskInput) (*task.Task, error) {
	var updated *task.Task
	err := s.withSession(ctx, "update", func(sess repository.Session) error {
		t, err := s.crud.Update(ctx, sess, id, in)
		updated = t
		return err
	})
	if err != nil {
		return nil, notFoundOnRace(err, id)
	}

	logger.Info("Service: Задача обновлена", zap.Int64("task_id", id))
	return updated, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id int64) error {
	err := s.withSession(ctx, "delete", func(sess repository.Session) error {
		return s.crud.Delete(ctx, sess, id)
	})
	if err != nil {
		return notFoundOnRace(err, id)
	}

	logger.Info("Service: Задача удалена", zap.Int64("task_id", id))
	return nil
}

// withSession открывает сессию на одну операцию и закрывает её на любом пути выхода.
// Ошибки операции возвращаются без обёртки.
func (s *TaskService) withSession(ctx context.Context, op string, fn func(repository.Session) error) (err error) {
	sess, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			s.rollback(ctx, sess, op)
			panic(p)
		}
	}()

	if err := fn(sess); err != nil {
		s.rollback(ctx, sess, op)
		if _, ok := AsBusinessError(err); !ok {
			logger.Error("Service: Ошибка хранилища", err, zap.String("operation", op))
		}
		return err
	}

	if err := sess.Commit(ctx); err != nil {
		s.rollback(ctx, sess, op)
		return err
	}
	return nil
}

func (s *TaskService) rollback(ctx context.Context, sess repository.Session, op string) {
	// откат должен пройти даже если контекст запроса уже отменён
	if err := sess.Rollback(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("Service: Ошибка отката сессии", zap.String("operation", op), zap.Error(err))
	}
}

// конкурентное удаление между чтением и фиксацией хранилище сообщает как ErrNotFound
func notFoundOnRace(err error, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		if _, ok := AsBusinessError(err); !ok {
			return NewNotFound(id)
		}
	}
	return err
}
