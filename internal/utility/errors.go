package utility

import "errors"

// Error classes shared by the service packages. Handlers map them to status codes.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)
