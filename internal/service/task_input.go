package service

import (
	"strings"
	"unicode/utf8"

	"taskManager/internal/models/task"
	"taskManager/internal/repository"
)

type CreateTaskInput struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Status      *task.Status   `json:"status"`
	Priority    *task.Priority `json:"priority"`
}

// UpdateTaskInput: отсутствующие поля не трогаются, null очищает только description.
type UpdateTaskInput struct {
	Title       task.Field[string]        `json:"title"`
	Description task.Field[string]        `json:"description"`
	Status      task.Field[task.Status]   `json:"status"`
	Priority    task.Field[task.Priority] `json:"priority"`
}

type ListTasksInput struct {
	Status   *task.Status
	Priority *task.Priority
	Skip     *int
	Limit    *int
}

type PaginationConfig struct {
	DefaultLimit int
	MaxLimit     int
}

func DefaultPagination() PaginationConfig {
	return PaginationConfig{DefaultLimit: 100, MaxLimit: 1000}
}

// Validate обрезает пробелы в title и проверяет все поля. Первая найденная ошибка возвращается.
func (in *CreateTaskInput) Validate() error {
	if in.Title == nil {
		return NewValidationError("title", ReasonRequired)
	}
	title, err := normalizeTitle(*in.Title)
	if err != nil {
		return err
	}
	in.Title = &title

	if in.Description != nil {
		if err := validateDescription(*in.Description); err != nil {
			return err
		}
	}
	if in.Status != nil && !in.Status.Valid() {
		return NewValidationError("status", ReasonInvalidValue)
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return NewValidationError("priority", ReasonInvalidValue)
	}
	return nil
}

func (in *CreateTaskInput) Options() []task.TaskOption {
	opts := []task.TaskOption{}
	if in.Description != nil {
		opts = append(opts, task.WithDescription(in.Description))
	}
	if in.Status != nil {
		opts = append(opts, task.WithStatus(*in.Status))
	}
	if in.Priority != nil {
		opts = append(opts, task.WithPriority(*in.Priority))
	}
	return opts
}

func (in *UpdateTaskInput) Validate() error {
	if in.Title.Set {
		if in.Title.Null {
			return NewValidationError("title", ReasonNullNotAllowed)
		}
		title, err := normalizeTitle(in.Title.Value)
		if err != nil {
			return err
		}
		in.Title.Value = title
	}

	if in.Description.Set && !in.Description.Null {
		if err := validateDescription(in.Description.Value); err != nil {
			return err
		}
	}

	if in.Status.Set {
		if in.Status.Null {
			return NewValidationError("status", ReasonNullNotAllowed)
		}
		if !in.Status.Value.Valid() {
			return NewValidationError("status", ReasonInvalidValue)
		}
	}

	if in.Priority.Set {
		if in.Priority.Null {
			return NewValidationError("priority", ReasonNullNotAllowed)
		}
		if !in.Priority.Value.Valid() {
			return NewValidationError("priority", ReasonInvalidValue)
		}
	}
	return nil
}

// Options переводит присутствующие поля в опции обновления.
func (in *UpdateTaskInput) Options() []task.TaskOption {
	opts := []task.TaskOption{}
	if in.Title.Set {
		opts = append(opts, task.WithTitle(in.Title.Value))
	}
	if in.Description.Set {
		opts = append(opts, task.WithDescription(in.Description.Ptr()))
	}
	if in.Status.Set {
		opts = append(opts, task.WithStatus(in.Status.Value))
	}
	if in.Priority.Set {
		opts = append(opts, task.WithPriority(in.Priority.Value))
	}
	return opts
}

// Query проверяет фильтры и границы пагинации и собирает запрос к хранилищу.
func (in ListTasksInput) Query(p PaginationConfig) (repository.TaskQuery, error) {
	filter := repository.TaskFilter{}

	if in.Status != nil {
		if !in.Status.Valid() {
			return repository.TaskQuery{}, NewValidationError("status", ReasonInvalidValue)
		}
		s := *in.Status
		filter.Status = &s
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return repository.TaskQuery{}, NewValidationError("priority", ReasonInvalidValue)
		}
		pr := *in.Priority
		filter.Priority = &pr
	}

	skip := 0
	if in.Skip != nil {
		skip = *in.Skip
	}
	if skip < 0 {
		return repository.TaskQuery{}, NewValidationError("skip", ReasonOutOfRange)
	}

	limit := p.DefaultLimit
	if in.Limit != nil {
		limit = *in.Limit
	}
	if limit < 1 || limit > p.MaxLimit {
		return repository.TaskQuery{}, NewValidationError("limit", ReasonOutOfRange)
	}

	return repository.NewTaskQuery(filter, skip, limit), nil
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", NewValidationError("title", ReasonEmpty)
	}
	if utf8.RuneCountInString(title) > task.MaxTitleLength {
		return "", NewValidationError("title", ReasonTooLong)
	}
	return title, nil
}

func validateDescription(d string) error {
	if utf8.RuneCountInString(d) > task.MaxDescriptionLength {
		return NewValidationError("description", ReasonTooLong)
	}
	return nil
}
