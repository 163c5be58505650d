package core

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the core package.
var (
	// ErrUnknownColumn is returned when a column id is not in the registry.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrUnknownTable is returned when a table key is not in the catalog.
	ErrUnknownTable = errors.New("unknown table")

	// ErrViewNotFound is returned when a view session does not exist.
	ErrViewNotFound = errors.New("view not found")

	// ErrNoRowSource is returned when a view is mounted without a source.
	ErrNoRowSource = errors.New("row source is nil")
)

// SchemaError reports a malformed column schema. It is fatal at construction.
type SchemaError struct {
	ColumnID string
	Reason   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: column %q: %s", e.ColumnID, e.Reason)
}

// ValidationError reports caller input rejected before any side effect.
type ValidationError struct {
	Field   string // Offending field or column id
	Value   string // The rejected value
	Message string // Human-readable message
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return "validation error: " + e.Message
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsSchema reports whether err is, or wraps, a *SchemaError.
func IsSchema(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
