package domain

import "errors"

// ErrSessionNotFound is returned when an operation references a session that
// does not exist.
var ErrSessionNotFound = errors.New("session not found")
