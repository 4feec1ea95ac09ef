package store

import "errors"

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidSketch names a mismatched sketch size or range. The
// ReconciliationStore methods return no errors, so none of them
// returns it.
var ErrInvalidSketch = errors.New("store: invalid sketch")
