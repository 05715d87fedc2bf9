package runhistory

import "errors"

// ErrNotFound is returned when a run record does not exist.
var ErrNotFound = errors.New("run record not found")

// ErrConflict is returned when a run record with the same ID already exists.
var ErrConflict = errors.New("run record already exists")
