// Package core provides the business logic for tabular bulk imports.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FieldType represents the expected data type for an import column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldReference
)

func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "number"
	case FieldReference:
		return "reference"
	default:
		return "unknown"
	}
}

// FieldSpec defines validation rules for a single import column.
type FieldSpec struct {
	Name        string              // Column header name, matched case-insensitively
	Type        FieldType           // Expected data type
	Required    bool                // Value must be non-empty
	EnumValues  []string            // Canonical accepted values for FieldEnum
	RefSet      string              // Reference set name for FieldReference
	NonNegative bool                // Numeric value must be >= 0
	Default     string              // Documented default for optional fields (template/help only)
	Normalizer  func(string) string // Optional transformation applied before validation
}

// key returns the lower-cased lookup key for the column.
func (f FieldSpec) key() string {
	return strings.ToLower(strings.TrimSpace(f.Name))
}

// HeaderMode selects how the header row is interpreted.
type HeaderMode int

const (
	// HeaderByName matches columns by header name in any order.
	HeaderByName HeaderMode = iota
	// HeaderPositional maps columns by position and ignores header names.
	HeaderPositional
)

func (m HeaderMode) String() string {
	if m == HeaderPositional {
		return "positional"
	}
	return "by-name"
}

// OrderedRule requires the Before date column to be strictly earlier than After.
type OrderedRule struct {
	Before string
	After  string
}

// MapFunc converts a validated row into a submission-ready record.
// It must be pure and total.
type MapFunc func(ValidatedRow) Record

// ImportSchema describes one import kind. Schemas are immutable once registered.
type ImportSchema struct {
	Kind       string // Unique identifier: "vehicle", "maintenance"
	Label      string // Plural display noun: "vehicles"
	HeaderMode HeaderMode
	Delimiter  rune        // Defaults to ','
	FieldSpecs []FieldSpec // Ordered; positional schemas map by this order
	Ordering   []OrderedRule
	KeyColumn  string // Column used to label outcomes
	Map        MapFunc
}

// Columns returns the header names in schema order.
func (s ImportSchema) Columns() []string {
	cols := make([]string, len(s.FieldSpecs))
	for i, spec := range s.FieldSpecs {
		cols[i] = spec.Name
	}
	return cols
}

// RequiredColumns returns the names of columns that must be present and non-empty.
func (s ImportSchema) RequiredColumns() []string {
	var cols []string
	for _, spec := range s.FieldSpecs {
		if spec.Required {
			cols = append(cols, spec.Name)
		}
	}
	return cols
}

// Spec returns the field spec for a column name (case-insensitive).
func (s ImportSchema) Spec(name string) (FieldSpec, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, spec := range s.FieldSpecs {
		if spec.key() == key {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

func (s ImportSchema) delimiter() rune {
	if s.Delimiter == 0 {
		return ','
	}
	return s.Delimiter
}

// HeaderIndex maps column names (lowercase) to their position in a row.
type HeaderIndex map[string]int

// RawRow is one data line keyed by lower-cased column name.
type RawRow struct {
	Line   int               // 1-based line in the original input
	Values map[string]string // Cleaned cell values by column
	Fields []string          // Raw record as read, for failed-row export
}

// Value returns the cleaned value for a column (case-insensitive).
func (r RawRow) Value(name string) string {
	return r.Values[strings.ToLower(name)]
}

// Optional holds a value that may be absent from the input.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it was present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsSet reports whether the value was present.
func (o Optional[T]) IsSet() bool {
	return o.ok
}

// OrDefault returns the value if present, otherwise def.
func (o Optional[T]) OrDefault(def T) T {
	if o.ok {
		return o.value
	}
	return def
}

// ValidatedRow is a row that passed every column and cross-field rule.
// Only ValidateRow constructs one.
type ValidatedRow struct {
	Line    int
	text    map[string]string
	numbers map[string]Optional[float64]
	dates   map[string]time.Time
}

// Text returns a text, enum (canonical case) or reference value.
func (r ValidatedRow) Text(name string) string {
	return r.text[strings.ToLower(name)]
}

// Number returns a numeric value, absent if the optional cell was empty.
func (r ValidatedRow) Number(name string) Optional[float64] {
	return r.numbers[strings.ToLower(name)]
}

// Date returns a date value.
func (r ValidatedRow) Date(name string) time.Time {
	return r.dates[strings.ToLower(name)]
}

// Record is a submission-ready domain entity.
type Record interface {
	RecordKey() string
}

// SubmitFunc sends one record to the remote service. It is called at most
// once per record and never concurrently.
type SubmitFunc func(ctx context.Context, rec Record) error

// ProgressFunc receives percent-complete values in [0, 100].
type ProgressFunc func(percent int)

// ReferenceSet holds known-valid identifiers grouped by set name.
type ReferenceSet map[string]map[string]struct{}

// NewReferenceSet creates a reference set with one named group.
func NewReferenceSet(name string, ids ...string) ReferenceSet {
	rs := make(ReferenceSet)
	rs.Add(name, ids...)
	return rs
}

// Add inserts identifiers into the named group.
func (rs ReferenceSet) Add(name string, ids ...string) {
	set, ok := rs[name]
	if !ok {
		set = make(map[string]struct{}, len(ids))
		rs[name] = set
	}
	for _, id := range ids {
		set[strings.TrimSpace(id)] = struct{}{}
	}
}

// Contains reports whether id is in the named group.
func (rs ReferenceSet) Contains(name, id string) bool {
	_, ok := rs[name][id]
	return ok
}

// Len returns the number of identifiers in the named group.
func (rs ReferenceSet) Len(name string) int {
	return len(rs[name])
}

// References lets a fixed ReferenceSet act as its own source.
func (rs ReferenceSet) References(context.Context) (ReferenceSet, error) {
	return rs, nil
}

// ReferenceSource supplies the reference dataset, fetched once per import.
type ReferenceSource interface {
	References(ctx context.Context) (ReferenceSet, error)
}

// FailurePolicy controls how the orchestrator reacts to row failures.
type FailurePolicy string

const (
	// FailFast stops the whole import at the first error.
	FailFast FailurePolicy = "fail-fast"
	// BestEffort attempts every record and collects failures.
	BestEffort FailurePolicy = "best-effort"
)

// ParsePolicy converts a string to a FailurePolicy. Empty maps to def.
func ParsePolicy(s string, def FailurePolicy) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "fail-fast", "failfast", "fail_fast", "strict":
		return FailFast, nil
	case "best-effort", "besteffort", "best_effort", "partial":
		return BestEffort, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (use fail-fast or best-effort)", s)
	}
}

// Stage identifies where in the pipeline an outcome was decided.
type Stage string

const (
	StageParse    Stage = "parse"
	StageValidate Stage = "validate"
	StageSubmit   Stage = "submit"
)

// ImportOutcome is the result for one source row.
type ImportOutcome struct {
	Line    int      `json:"line"`
	Key     string   `json:"key,omitempty"`
	Success bool     `json:"success"`
	Stage   Stage    `json:"stage,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Data    []string `json:"-"`
}

// ImportSummary is the terminal report of an import run.
type ImportSummary struct {
	ImportID    string          `json:"importId,omitempty"`
	Kind        string          `json:"kind"`
	FileName    string          `json:"fileName,omitempty"`
	Policy      FailurePolicy   `json:"policy"`
	Total       int             `json:"total"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	SkippedRows int             `json:"skippedRows"`
	Failures    []ImportOutcome `json:"failures"`
	Header      []string        `json:"-"` // Source header row, for failed-row exports
	Terminal    string          `json:"terminal,omitempty"`
	Cancelled   bool            `json:"cancelled,omitempty"`
	Message     string          `json:"message"`
	StartedAt   time.Time       `json:"startedAt"`
	Duration    time.Duration   `json:"duration"`
}

// ImportPhase indicates the current stage of an asynchronous import.
type ImportPhase string

const (
	PhaseStarting   ImportPhase = "starting"
	PhaseSubmitting ImportPhase = "submitting"
	PhaseComplete   ImportPhase = "complete"
	PhaseFailed     ImportPhase = "failed"
	PhaseCancelled  ImportPhase = "cancelled"
)

// ImportProgress represents the current state of an asynchronous import.
type ImportProgress struct {
	ImportID string      `json:"importId"`
	Kind     string      `json:"kind"`
	FileName string      `json:"fileName,omitempty"`
	Phase    ImportPhase `json:"phase"`
	Percent  int         `json:"percent"`
	Error    string      `json:"error,omitempty"`
}

// Done reports whether the import reached a terminal phase.
func (p ImportProgress) Done() bool {
	switch p.Phase {
	case PhaseComplete, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}
