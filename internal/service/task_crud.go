package service

import (
	"context"
	"errors"
	"time"

	"taskManager/internal/models/task"
	"taskManager/internal/repository"
)

// TaskPage is one window of a filtered task list.
type TaskPage struct {
	Items []*task.Task
	Total int
	Skip  int
	Limit int
}

// TaskCRUD holds the CRUD operations. It owns no storage: every call gets the
// session it must work in. Storage errors are returned as they are.
type TaskCRUD struct {
	now        func() time.Time
	pagination PaginationConfig
}

func NewTaskCRUD(now func() time.Time, pagination PaginationConfig) *TaskCRUD {
	if now == nil {
		now = time.Now
	}
	if pagination.DefaultLimit <= 0 || pagination.MaxLimit <= 0 {
		pagination = DefaultPagination()
	}
	return &TaskCRUD{now: now, pagination: pagination}
}

// PostgreSQL хранит микросекунды, поэтому время обрезается заранее
func (c *TaskCRUD) timestamp() time.Time {
	return c.now().UTC().Truncate(time.Microsecond)
}

func (c *TaskCRUD) Create(ctx context.Context, sess repository.Session, in CreateTaskInput) (*task.Task, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	t := task.New(*in.Title, in.Options()...)
	now := c.timestamp()
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := sess.Add(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *TaskCRUD) Get(ctx context.Context, sess repository.Session, id int64) (*task.Task, error) {
	t, err := sess.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound(id)
		}
		return nil, err
	}
	return t, nil
}

func (c *TaskCRUD) List(ctx context.Context, sess repository.Session, in ListTasksInput) (*TaskPage, error) {
	q, err := in.Query(c.pagination)
	if err != nil {
		return nil, err
	}

	items, total, err := sess.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*task.Task{}
	}

	return &TaskPage{
		Items: items,
		Total: total,
		Skip:  q.Skip,
		Limit: q.Limit,
	}, nil
}

func (c *TaskCRUD) Update(ctx context.Context, sess repository.Session, id int64, in UpdateTaskInput) (*task.Task, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	t, err := c.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	t.Apply(in.Options()...)

	// updated_at строго растёт, даже если часы не сдвинулись
	now := c.timestamp()
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Microsecond)
	}
	t.UpdatedAt = now

	if err := sess.Save(ctx, t); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound(id)
		}
		return nil, err
	}
	return t, nil
}

func (c *TaskCRUD) Delete(ctx context.Context, sess repository.Session, id int64) error {
	if err := sess.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFound(id)
		}
		return err
	}
	return nil
}
