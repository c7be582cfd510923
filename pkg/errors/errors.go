// Package errors provides the error types raised by the reconciliation
// pipeline and its collaborators. Each struct error reports a sentinel through
// Is so callers can branch with errors.Is without type assertions.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New is an alias for the standard library errors.New.
var New = errors.New

// Is, As and Unwrap re-export the standard library helpers so callers only need
// one errors import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// Sentinel errors.
var (
	// ErrSchemaDetection indicates the header row of a table could not be located.
	ErrSchemaDetection = errors.New("schema detection failed")

	// ErrMissingRequiredField indicates a required canonical field has no column.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrEmptyResult indicates reconciliation produced zero matched rows.
	ErrEmptyResult = errors.New("empty result")

	// ErrInvalidConfig indicates a configuration value is unusable.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCollaborator indicates a generation collaborator (render, protect, package, fetch) failed.
	ErrCollaborator = errors.New("collaborator failed")
)

// SchemaDetectionError is returned when no row within the scan bounds carries
// every required marker token.
type SchemaDetectionError struct {
	Table          string
	Tokens         []string
	SectionMarkers []string
	Scanned        int
}

// Error implements the error interface
func (e *SchemaDetectionError) Error() string {
	msg := fmt.Sprintf("no header row containing %q after scanning %d rows", e.Tokens, e.Scanned)
	if e.Table != "" {
		msg = e.Table + ": " + msg
	}
	if len(e.SectionMarkers) > 0 {
		msg += fmt.Sprintf(" (section markers %q)", e.SectionMarkers)
	}
	return msg
}

// Is implements errors.Is support
func (e *SchemaDetectionError) Is(target error) bool {
	return target == ErrSchemaDetection
}

// NewSchemaDetectionError creates a new SchemaDetectionError
func NewSchemaDetectionError(tokens, sectionMarkers []string, scanned int) *SchemaDetectionError {
	return &SchemaDetectionError{
		Tokens:         tokens,
		SectionMarkers: sectionMarkers,
		Scanned:        scanned,
	}
}

// MissingRequiredFieldError is returned when column mapping leaves a required
// canonical field without a source column. Detected lists the headers that
// were actually present so the user can fix the alias table or the export.
type MissingRequiredFieldError struct {
	Table    string
	Field    string
	Required []string
	Detected []string
}

// Error implements the error interface
func (e *MissingRequiredFieldError) Error() string {
	var b strings.Builder
	if e.Table != "" {
		b.WriteString(e.Table)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "required field %q not found; required %q, detected columns %q", e.Field, e.Required, e.Detected)
	return b.String()
}

// Is implements errors.Is support
func (e *MissingRequiredFieldError) Is(target error) bool {
	return target == ErrMissingRequiredField
}

// NewMissingRequiredFieldError creates a new MissingRequiredFieldError
func NewMissingRequiredFieldError(table, field string, required, detected []string) *MissingRequiredFieldError {
	return &MissingRequiredFieldError{
		Table:    table,
		Field:    field,
		Required: required,
		Detected: detected,
	}
}

// EmptyResultError marks a reconciliation that matched nobody. It is carried as
// a report warning, never returned as a fatal error by the engine.
type EmptyResultError struct {
	Registrants       int
	EligibleAttendees int
}

// Error implements the error interface
func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no registrant matched an eligible attendee (%d registrants, %d eligible attendees)",
		e.Registrants, e.EligibleAttendees)
}

// Is implements errors.Is support
func (e *EmptyResultError) Is(target error) bool {
	return target == ErrEmptyResult
}

// NewEmptyResultError creates a new EmptyResultError
func NewEmptyResultError(registrants, eligible int) *EmptyResultError {
	return &EmptyResultError{Registrants: registrants, EligibleAttendees: eligible}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Key     string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Key != "" {
		msg += " in " + e.Key
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a new ConfigError
func NewConfigError(key, message string, err error) *ConfigError {
	return &ConfigError{Key: key, Message: message, Err: err}
}

// CollaboratorError wraps a failure from one of the document generation stages.
// Row is the 1-based position of the matched row being processed, or 0 when the
// failure is not tied to a row.
type CollaboratorError struct {
	Stage string
	Row   int
	Err   error
}

// Error implements the error interface
func (e *CollaboratorError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s failed for row %d: %v", e.Stage, e.Row, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaborator
}

// NewCollaboratorError creates a new CollaboratorError
func NewCollaboratorError(stage string, row int, err error) *CollaboratorError {
	return &CollaboratorError{Stage: stage, Row: row, Err: err}
}

// IsSchemaDetection checks if an error is a schema detection error
func IsSchemaDetection(err error) bool {
	return errors.Is(err, ErrSchemaDetection)
}

// IsMissingRequiredField checks if an error is a missing required field error
func IsMissingRequiredField(err error) bool {
	return errors.Is(err, ErrMissingRequiredField)
}

// IsEmptyResult checks if an error is an empty result warning
func IsEmptyResult(err error) bool {
	return errors.Is(err, ErrEmptyResult)
}
