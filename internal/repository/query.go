package repository

import (
	"fmt"
	"strings"

	"taskManager/internal/models/task"

	"gorm.io/gorm"
)

// TaskFilter is a conjunction of optional predicates; the zero value matches everything.
type TaskFilter struct {
	Status   *task.Status
	Priority *task.Priority
}

// TaskQuery is a filter plus a window over the id-ordered result.
type TaskQuery struct {
	Filter TaskFilter
	Skip   int
	Limit  int
}

func NewTaskQuery(filter TaskFilter, skip, limit int) TaskQuery {
	return TaskQuery{Filter: filter, Skip: skip, Limit: limit}
}

func (f TaskFilter) Empty() bool {
	return f.Status == nil && f.Priority == nil
}

func (f TaskFilter) Match(t *task.Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	return true
}

// Where строит предикат для PostgreSQL с плейсхолдерами, начиная с $firstArg.
// Для пустого фильтра возвращает "TRUE".
func (f TaskFilter) Where(firstArg int) (string, []any) {
	conds := []string{}
	args := []any{}

	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", firstArg+len(args)-1))
	}
	if f.Priority != nil {
		args = append(args, string(*f.Priority))
		conds = append(conds, fmt.Sprintf("priority = $%d", firstArg+len(args)-1))
	}

	if len(conds) == 0 {
		return "TRUE", args
	}
	return strings.Join(conds, " AND "), args
}

func (f TaskFilter) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Status != nil {
			db = db.Where("status = ?", string(*f.Status))
		}
		if f.Priority != nil {
			db = db.Where("priority = ?", string(*f.Priority))
		}
		return db
	}
}

// Paginate отбирает окно [Skip, Skip+Limit) из уже отфильтрованных и упорядоченных задач.
func (q TaskQuery) Paginate(tasks []*task.Task) []*task.Task {
	if q.Skip >= len(tasks) {
		return []*task.Task{}
	}
	end := q.Skip + q.Limit
	if end > len(tasks) || q.Limit <= 0 {
		end = len(tasks)
	}
	return tasks[q.Skip:end]
}
