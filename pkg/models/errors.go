package models

import "errors"

// Error kinds shared by the engines and mapped to HTTP status codes by the api
// package. Engines wrap them with context, e.g. fmt.Errorf("%w: job 3", ErrNotFound).
var (
	ErrNotFound      = errors.New("not found")
	ErrUnprocessable = errors.New("unprocessable")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalid       = errors.New("invalid request")
)
