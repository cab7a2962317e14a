// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.
package repository

import "errors"

var (
	// ErrNotFound means no row matched the id. It is a normal outcome, not a failure.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidTransition means a status update would not move the record forward.
	ErrInvalidTransition = errors.New("invalid status transition")
)
