package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrInvalidTransition     = errors.New("invalid session transition")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
