package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateEmail       = errors.New("email already exists")
	ErrDuplicateApplication = errors.New("application number already exists")
	ErrDuplicateAttempt     = errors.New("attempt already recorded")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidInput         = errors.New("invalid input")
)
