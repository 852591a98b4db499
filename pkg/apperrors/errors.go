package apperrors

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrEmptySignal    = errors.New("signal has no usable text")
	ErrInvalidPatch   = errors.New("invalid entity patch")
	ErrNoVisionTarget = errors.New("vision patch requires a project target")
)
