package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional update matched no row
	// because the guard condition no longer holds. Callers re-read the
	// entity to classify the actual cause.
	ErrConflict = errors.New("conditional update matched no row")
)
