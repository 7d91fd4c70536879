package model

import "errors"

// ErrNotFound is returned by record stores when an owner or item does not exist
// in the requested scope.
var ErrNotFound = errors.New("treelist: not found")
