package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyFile is returned when the input has no header line.
	ErrEmptyFile = errors.New("empty file: no header row found")

	// ErrNoRecords is returned when the header is followed by no usable rows.
	ErrNoRecords = errors.New("empty file: no data rows to import")

	// ErrImportNotFound is returned for unknown or expired import IDs.
	ErrImportNotFound = errors.New("import not found")

	// ErrUnknownKind is returned for an import kind with no registered schema.
	ErrUnknownKind = errors.New("unknown import kind")
)

// ParseError reports a structural problem in the input. It is always terminal.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid csv at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid csv: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MissingColumnsError lists schema-required columns absent from the header.
type MissingColumnsError struct {
	Names []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Names, ", ")
}

// IsParseError reports whether err stops an import before any row is processed.
func IsParseError(err error) bool {
	var pe *ParseError
	var mc *MissingColumnsError
	return errors.As(err, &pe) || errors.As(err, &mc) ||
		errors.Is(err, ErrEmptyFile) || errors.Is(err, ErrNoRecords)
}

// Rule identifies which validation stage rejected a row.
type Rule string

const (
	RuleShape     Rule = "shape"
	RulePresence  Rule = "presence"
	RuleReference Rule = "reference"
	RuleFormat    Rule = "format"
	RuleRange     Rule = "range"
	RuleOrdering  Rule = "ordering"
	RuleEnum      Rule = "enum"
)

// RowValidationError describes the first rule a row violated.
type RowValidationError struct {
	Line   int
	Column string
	Value  string
	Rule   Rule
	Reason string
}

func (e *RowValidationError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// SubmissionError wraps a remote failure for one record.
type SubmissionError struct {
	Line int
	Key  string
	Err  error
}

func (e *SubmissionError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("line %d: submit %s: %v", e.Line, e.Key, e.Err)
	}
	return fmt.Sprintf("line %d: submit: %v", e.Line, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// errorLine extracts the source line from a row-level error, or 0.
func errorLine(err error) int {
	var rve *RowValidationError
	if errors.As(err, &rve) {
		return rve.Line
	}
	var se *SubmissionError
	if errors.As(err, &se) {
		return se.Line
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}

// errorReason returns the message for an outcome without the line prefix.
func errorReason(err error) string {
	var rve *RowValidationError
	if errors.As(err, &rve) {
		return rve.Reason
	}
	var se *SubmissionError
	if errors.As(err, &se) {
		return se.Err.Error()
	}
	return err.Error()
}
