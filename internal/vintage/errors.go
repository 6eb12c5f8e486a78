package vintage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingField is returned when a required column is absent from the whole input.
	ErrMissingField = errors.New("missing required field")
	// ErrEmptyResult signals that no row survived the filters and threshold. It is an
	// outcome, not a failure: callers show an empty state instead of a zero report.
	ErrEmptyResult = errors.New("no result for the selected filters")

	ErrInvalidThreshold = errors.New("threshold must be a positive number of days")
	ErrUnknownAttribute = errors.New("unknown filter attribute")
	ErrInvalidOption    = errors.New("invalid option")
)

type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}
