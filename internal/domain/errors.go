package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidPrompt       = errors.New("invalid prompt")
	ErrInvalidParams       = errors.New("invalid params")
	ErrInvalidTransition   = errors.New("invalid status transition")
)
