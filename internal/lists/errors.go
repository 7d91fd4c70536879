package lists

import (
	"errors"
	"fmt"
	"strings"

	"github.com/baiirun/treelist/internal/model"
)

var (
	// ErrNotFound is returned when the owner, field, parent or item does not exist.
	ErrNotFound = model.ErrNotFound

	// ErrDepthExceeded is returned when an insert or move would nest deeper than the field allows.
	ErrDepthExceeded = errors.New("treelist: maximum depth exceeded")

	// ErrMalformedBatch is returned when an order payload does not have the required shape.
	ErrMalformedBatch = errors.New("treelist: malformed batch")

	// ErrHasChildren is returned when deleting an item with children under the reject policy.
	ErrHasChildren = errors.New("treelist: item has children")

	// ErrCycle is returned when a move would place an item below itself.
	ErrCycle = errors.New("treelist: move would create a cycle")

	// ErrLockTimeout is returned when the scope lock could not be acquired in time.
	ErrLockTimeout = errors.New("treelist: timed out waiting for scope lock")
)

// Violation is one reason a batch was rejected.
type Violation struct {
	ItemID int64
	Err    error
}

// BatchError rejects a whole order batch. It unwraps to every violation, so
// errors.Is(err, ErrNotFound) holds when any entry referenced a missing parent.
type BatchError struct {
	Violations []Violation
}

func (e *BatchError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, fmt.Sprintf("item %d: %v", v.ItemID, v.Err))
	}
	return "order rejected: " + strings.Join(msgs, "; ")
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Violations))
	for _, v := range e.Violations {
		errs = append(errs, v.Err)
	}
	return errs
}
