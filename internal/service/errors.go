package service

import (
	"errors"
	"fmt"
)

const (
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION_ERROR"
)

// причины ошибок валидации, стабильные для клиентов
const (
	ReasonRequired       = "required"
	ReasonEmpty          = "empty"
	ReasonTooLong        = "too_long"
	ReasonInvalidValue   = "invalid_value"
	ReasonNullNotAllowed = "null_not_allowed"
	ReasonOutOfRange     = "out_of_range"
	ReasonMalformed      = "malformed"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

// сравнение по коду, чтобы работало errors.Is(err, ErrNotFound)
var (
	ErrNotFound   = &BusinessError{Code: CodeNotFound}
	ErrValidation = &BusinessError{Code: CodeValidation}
)

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func (b *BusinessError) Is(target error) bool {
	t, ok := target.(*BusinessError)
	if !ok {
		return false
	}
	return t.Code == b.Code
}

// Field возвращает имя поля для ошибок валидации.
func (b *BusinessError) Field() string {
	f, _ := b.Details["field"].(string)
	return f
}

func (b *BusinessError) Reason() string {
	r, _ := b.Details["reason"].(string)
	return r
}

func AsBusinessError(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func NewNotFound(id int64) *BusinessError {
	return &BusinessError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("задача %d не найдена", id),
		Details: map[string]any{
			"resource": "task",
			"id":       id,
		},
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}
