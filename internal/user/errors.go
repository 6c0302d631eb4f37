package user

import (
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailExists   = errors.New("email already exists")
	ErrInvalidStatus = errors.New("invalid status. Must be Active or InActive")
)

// ValidationError lists every violated field constraint, in field order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}
