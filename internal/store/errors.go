package store

import "errors"

// ErrNotFound is returned when no record exists for the requested id.
// Callers distinguish "absent" from real failures with errors.Is.
var ErrNotFound = errors.New("record not found")
