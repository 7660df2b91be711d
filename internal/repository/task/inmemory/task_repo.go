package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	repo "taskManager/internal/repository"

	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("сессия уже завершена")

// TaskStorage хранит задачи в памяти. Все чтения и записи отдают копии,
// так что изменения вне сессии до Commit не видны другим запросам.
type TaskStorage struct {
	storage map[int64]*task.Task
	mtx     *sync.RWMutex
	nextID  int64
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage: make(map[int64]*task.Task),
		mtx:     &sync.RWMutex{},
		nextID:  1,
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func (s *TaskStorage) Close() {
	logger.Info("Repository: Хранилище в памяти закрыто")
}

func (s *TaskStorage) Begin(ctx context.Context) (repo.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{
		store:   s,
		saved:   make(map[int64]*task.Task),
		deleted: make(map[int64]bool),
	}, nil
}

// id выдаются монотонно и не переиспользуются, даже если сессия откатится
func (s *TaskStorage) allocateID() int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	id := s.nextID
	s.nextID++
	return id
}

func (s *TaskStorage) get(id int64) (*task.Task, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, ok := s.storage[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (s *TaskStorage) query(q repo.TaskQuery) ([]*task.Task, int) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	matched := []*task.Task{}
	for _, t := range s.storage {
		if q.Filter.Match(t) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	page := q.Paginate(matched)
	res := make([]*task.Task, len(page))
	for i, t := range page {
		res[i] = t.Clone()
	}
	return res, len(matched)
}

type change struct {
	id     int64
	task   *task.Task
	insert bool
	remove bool
}

type session struct {
	store   *TaskStorage
	changes []change
	saved   map[int64]*task.Task
	deleted map[int64]bool
	done    bool
}

func (s *session) Add(ctx context.Context, t *task.Task) error {
	if s.done {
		return ErrSessionClosed
	}
	t.ID = s.store.allocateID()
	s.saved[t.ID] = t.Clone()
	delete(s.deleted, t.ID)
	s.changes = append(s.changes, change{id: t.ID, task: t.Clone(), insert: true})
	return nil
}

func (s *session) Get(ctx context.Context, id int64) (*task.Task, error) {
	if s.done {
		return nil, ErrSessionClosed
	}
	if s.deleted[id] {
		return nil, repo.ErrNotFound
	}
	if t, ok := s.saved[id]; ok {
		return t.Clone(), nil
	}
	t, ok := s.store.get(id)
	if !ok {
		return nil, repo.ErrNotFound
	}
	return t, nil
}

func (s *session) Save(ctx context.Context, t *task.Task) error {
	if _, err := s.Get(ctx, t.ID); err != nil {
		return err
	}
	s.saved[t.ID] = t.Clone()
	s.changes = append(s.changes, change{id: t.ID, task: t.Clone()})
	return nil
}

// Query видит только зафиксированное состояние
func (s *session) Query(ctx context.Context, q repo.TaskQuery) ([]*task.Task, int, error) {
	if s.done {
		return nil, 0, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	tasks, total := s.store.query(q)
	return tasks, total, nil
}

func (s *session) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	delete(s.saved, id)
	s.deleted[id] = true
	s.changes = append(s.changes, change{id: id, remove: true})
	return nil
}

// Commit применяет изменения по принципу "последняя запись побеждает".
// Обновление или удаление задачи, которую уже удалил конкурент, даёт ErrNotFound.
func (s *session) Commit(ctx context.Context) error {
	if s.done {
		return ErrSessionClosed
	}
	s.done = true

	st := s.store
	st.mtx.Lock()
	defer st.mtx.Unlock()

	for _, c := range s.changes {
		if c.insert {
			continue
		}
		if _, ok := st.storage[c.id]; !ok && !s.insertedHere(c.id) {
			logger.Warn("Repository: Задача исчезла до фиксации", zap.Int64("task_id", c.id))
			return repo.ErrNotFound
		}
	}

	for _, c := range s.changes {
		switch {
		case c.remove:
			delete(st.storage, c.id)
		default:
			st.storage[c.id] = c.task
		}
	}
	return nil
}

func (s *session) insertedHere(id int64) bool {
	for _, c := range s.changes {
		if c.insert && c.id == id {
			return true
		}
	}
	return false
}

func (s *session) Rollback(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	s.changes = nil
	return nil
}
