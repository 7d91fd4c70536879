package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/baiirun/treelist/internal/lists"
	"github.com/baiirun/treelist/internal/schema"
)

// ErrorBody is the JSON body of a failed request.
type ErrorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// StatusOf maps an engine error to a status code. A rejected batch is always
// 405, even when one of its violations is a missing parent.
func StatusOf(err error) int {
	var batchErr *lists.BatchError
	var verr *schema.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &batchErr):
		return http.StatusMethodNotAllowed
	case errors.Is(err, lists.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr),
		errors.Is(err, lists.ErrDepthExceeded),
		errors.Is(err, lists.ErrCycle),
		errors.Is(err, lists.ErrHasChildren),
		errors.Is(err, lists.ErrMalformedBatch):
		return http.StatusMethodNotAllowed
	case errors.Is(err, lists.ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ErrorBodyOf renders err for the client. Validation errors carry every field
// message; batch errors list their violations under "items.<id>".
func ErrorBodyOf(err error) ErrorBody {
	var batchErr *lists.BatchError
	var verr *schema.ValidationError

	switch {
	case errors.As(err, &batchErr):
		body := ErrorBody{Message: "The order could not be applied.", Errors: map[string][]string{}}
		for _, v := range batchErr.Violations {
			key := fmt.Sprintf("items.%d", v.ItemID)
			body.Errors[key] = append(body.Errors[key], v.Err.Error())
		}
		return body
	case errors.As(err, &verr):
		return ErrorBody{Message: "The given data was invalid.", Errors: verr.Fields}
	case StatusOf(err) == http.StatusInternalServerError:
		return ErrorBody{Message: "Internal server error."}
	}
	return ErrorBody{Message: err.Error()}
}
