package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
	ErrSelfFollow       = errors.New("users cannot follow themselves")
)

// ValidationError сообщает, какое поле отклонено и почему.
// errors.Is сопоставляет ее с ErrValidationFailed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
