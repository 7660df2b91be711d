package task

import (
	"time"
)

type Task struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description *string   `json:"description" db:"description"`
	Status      Status    `json:"status" db:"status"`
	Priority    Priority  `json:"priority" db:"priority"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Status string
type Priority string

const StatusPending Status = "pending"
const StatusInProgress Status = "in_progress"
const StatusCompleted Status = "completed"

const PriorityLow Priority = "low"
const PriorityMedium Priority = "medium"
const PriorityHigh Priority = "high"

const DefaultStatus = StatusPending
const DefaultPriority = PriorityMedium

const MaxTitleLength = 200
const MaxDescriptionLength = 2000

// порядок важен: используется в сообщениях об ошибках
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// New собирает задачу с дефолтными статусом и приоритетом, затем применяет опции.
func New(title string, options ...TaskOption) *Task {
	t := &Task{
		Title:    title,
		Status:   DefaultStatus,
		Priority: DefaultPriority,
	}
	t.Apply(options...)
	return t
}

func (t *Task) Apply(options ...TaskOption) {
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
}

// Clone возвращает глубокую копию, description не разделяется с оригиналом.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	return &c
}
