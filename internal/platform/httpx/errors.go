// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// Rule maps a domain error onto a problem status and title.
type Rule struct {
	Target error
	Status int
	Title  string
}

// RespondError maps domain errors to HTTP responses using RFC7807. Rules are
// checked in order before the package sentinels.
func RespondError(w http.ResponseWriter, err error, rules ...Rule) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			detail := err.Error()
			if rule.Status >= http.StatusInternalServerError {
				detail = ""
			}
			Problem(w, rule.Status, rule.Title, detail)
			return
		}
	}
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsServerError reports whether err would be answered with a 5xx status.
func IsServerError(err error, rules ...Rule) bool {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			return rule.Status >= http.StatusInternalServerError
		}
	}
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDuplicate) &&
		!errors.Is(err, ErrValidation) && !errors.Is(err, ErrConflict)
}
