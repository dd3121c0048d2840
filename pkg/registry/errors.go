package registry

import "errors"

var (
	// ErrNullAPIURL ...
	ErrNullAPIURL = errors.New("registry api url must not be null")
)
