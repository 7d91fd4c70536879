package lists

import "fmt"

// CheckMaxDepth rejects a candidate depth above maxDepth. Create, Store and
// Order all go through it.
func CheckMaxDepth(candidate, maxDepth int) error {
	if candidate <= maxDepth {
		return nil
	}
	return fmt.Errorf("%w: lists may be nested at most %d levels deep", ErrDepthExceeded, maxDepth)
}
