package analysis

import "errors"

var (
	ErrNotFound      = errors.New("analysis job not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotCancelable = errors.New("job is already finished")
)
