package ports

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrUpstream = errors.New("history upstream failed")
)
