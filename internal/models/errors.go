package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownSite = errors.New("unknown site")
	ErrEmptyQuery  = errors.New("search query is empty")

	ErrListingOnlyUnsupported = errors.New("listing-only mode is not supported")
)

// SetupError means the browser session could not be started. Fatal.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("browser setup failed: %v", e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// NavigationError means a page could not be loaded within the retry policy.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ElementNotFoundError is recovered locally: the field gets the sentinel.
type ElementNotFoundError struct {
	Field     string
	Selectors []string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("field %s: no match for [%s]", e.Field, strings.Join(e.Selectors, ", "))
}

// ExportError means an output file could not be written. Fatal.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s failed: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ErrorKind returns a short label for metrics and logs.
func ErrorKind(err error) string {
	var (
		setupErr   *SetupError
		navErr     *NavigationError
		elementErr *ElementNotFoundError
		exportErr  *ExportError
	)

	switch {
	case err == nil:
		return "none"
	case errors.As(err, &setupErr):
		return "setup"
	case errors.As(err, &navErr):
		return "navigation"
	case errors.As(err, &elementErr):
		return "element_not_found"
	case errors.As(err, &exportErr):
		return "export"
	case errors.Is(err, ErrUnknownSite), errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrListingOnlyUnsupported):
		return "invalid_input"
	default:
		return "other"
	}
}

// IsFatal reports whether err must abort a run.
func IsFatal(err error) bool {
	switch ErrorKind(err) {
	case "none", "element_not_found":
		return false
	default:
		return true
	}
}
