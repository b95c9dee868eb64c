package auth

import "errors"

// ErrUnauthorized represents missing or invalid authentication tokens.
var ErrUnauthorized = errors.New("unauthorized")
