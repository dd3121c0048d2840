package keyring

import "errors"

var (
	// ErrInvalidSeed ...
	ErrInvalidSeed = errors.New("seed must be at least 16 bytes")
	// ErrOutOfRangeAccount ...
	ErrOutOfRangeAccount = errors.New("account index out of the hardened derivation range")
)
