package repository

import (
	"context"
	"errors"

	"taskManager/internal/models/task"
)

var ErrNotFound = errors.New("задача не найдена")

// Session is a unit of work over the task storage. It is used for exactly one
// logical operation and must end with Commit or Rollback.
type Session interface {
	// Add persists a new task and assigns its ID.
	Add(ctx context.Context, t *task.Task) error
	Get(ctx context.Context, id int64) (*task.Task, error)
	// Save overwrites every mutable column of an existing task.
	Save(ctx context.Context, t *task.Task) error
	// Query returns one page ordered by id and the number of rows matching the filter.
	Query(ctx context.Context, q TaskQuery) ([]*task.Task, int, error)
	Delete(ctx context.Context, id int64) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Store interface {
	Begin(ctx context.Context) (Session, error)
	HealthCheck(ctx context.Context) error
	Close()
}
