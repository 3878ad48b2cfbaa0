package domain

import "errors"

var (
	// ErrInvalidArgument marks bad page or cache size parameters. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrValidation marks a structurally invalid post. Never retried.
	ErrValidation = errors.New("validation failure")
)
