package core

// validation.go checks RawRows against an ImportSchema.
//
// Rules run in a fixed order and the first violation wins:
//  1. Presence: required values are non-empty
//  2. Reference: identifiers exist in the reference set
//  3. Format: dates and numbers convert, numbers respect their range
//  4. Ordering: start dates fall strictly before end dates
//  5. Enum: categorical values match an accepted value (case-insensitive)
//
// Validation is pure: the same row and reference set always produce the
// same ValidatedRow or the same error.

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidateRow validates raw against schema and refs.
func ValidateRow(raw RawRow, schema ImportSchema, refs ReferenceSet) (ValidatedRow, error) {
	values := normalizedValues(raw, schema)

	// 1. Presence
	for _, spec := range schema.FieldSpecs {
		if spec.Required && values[spec.key()] == "" {
			return ValidatedRow{}, &RowValidationError{
				Line:   raw.Line,
				Column: spec.Name,
				Rule:   RulePresence,
				Reason: fmt.Sprintf("required field %q is empty", spec.Name),
			}
		}
	}

	// 2. Referential integrity
	for _, spec := range schema.FieldSpecs {
		if spec.Type != FieldReference {
			continue
		}
		v := values[spec.key()]
		if v == "" {
			continue
		}
		if !refs.Contains(spec.RefSet, v) {
			return ValidatedRow{}, &RowValidationError{
				Line:   raw.Line,
				Column: spec.Name,
				Value:  v,
				Rule:   RuleReference,
				Reason: fmt.Sprintf("unknown %s %q: not found in reference data", spec.Name, v),
			}
		}
	}

	row := ValidatedRow{
		Line:    raw.Line,
		text:    make(map[string]string),
		numbers: make(map[string]Optional[float64]),
		dates:   make(map[string]time.Time),
	}

	// 3. Conversion
	for _, spec := range schema.FieldSpecs {
		v := values[spec.key()]
		switch spec.Type {
		case FieldDate:
			if v == "" {
				continue
			}
			t, ok := ParseDate(v)
			if !ok {
				return ValidatedRow{}, &RowValidationError{
					Line:   raw.Line,
					Column: spec.Name,
					Value:  v,
					Rule:   RuleFormat,
					Reason: fmt.Sprintf("invalid date %q for %s (use YYYY-MM-DD or an ISO timestamp)", v, spec.Name),
				}
			}
			row.dates[spec.key()] = t
		case FieldNumeric:
			if v == "" {
				row.numbers[spec.key()] = None[float64]()
				continue
			}
			f, err := ParseNumber(v)
			if err != nil {
				return ValidatedRow{}, &RowValidationError{
					Line:   raw.Line,
					Column: spec.Name,
					Value:  v,
					Rule:   RuleFormat,
					Reason: fmt.Sprintf("%v %q for %s", err, v, spec.Name),
				}
			}
			if spec.NonNegative && f < 0 {
				return ValidatedRow{}, &RowValidationError{
					Line:   raw.Line,
					Column: spec.Name,
					Value:  v,
					Rule:   RuleRange,
					Reason: fmt.Sprintf("negative value %s for %s", strconv.FormatFloat(f, 'f', -1, 64), spec.Name),
				}
			}
			row.numbers[spec.key()] = Some(f)
		case FieldText, FieldReference:
			row.text[spec.key()] = v
		}
	}

	// 4. Cross-field ordering
	for _, rule := range schema.Ordering {
		before, okB := row.dates[strings.ToLower(rule.Before)]
		after, okA := row.dates[strings.ToLower(rule.After)]
		if !okB || !okA {
			continue
		}
		if !before.Before(after) {
			return ValidatedRow{}, &RowValidationError{
				Line:   raw.Line,
				Column: rule.After,
				Value:  values[strings.ToLower(rule.After)],
				Rule:   RuleOrdering,
				Reason: fmt.Sprintf("%s must be before %s", rule.Before, rule.After),
			}
		}
	}

	// 5. Enumeration membership
	for _, spec := range schema.FieldSpecs {
		if spec.Type != FieldEnum {
			continue
		}
		v := values[spec.key()]
		if v == "" {
			continue
		}
		canonical, ok := matchEnum(v, spec.EnumValues)
		if !ok {
			return ValidatedRow{}, &RowValidationError{
				Line:   raw.Line,
				Column: spec.Name,
				Value:  v,
				Rule:   RuleEnum,
				Reason: fmt.Sprintf("invalid enum value %q for %s (allowed: %s)", v, spec.Name, strings.Join(spec.EnumValues, ", ")),
			}
		}
		row.text[spec.key()] = canonical
	}

	return row, nil
}

// normalizedValues applies each column's normalizer to non-empty values.
func normalizedValues(raw RawRow, schema ImportSchema) map[string]string {
	values := make(map[string]string, len(schema.FieldSpecs))
	for _, spec := range schema.FieldSpecs {
		v := strings.TrimSpace(raw.Values[spec.key()])
		if v != "" && spec.Normalizer != nil {
			v = spec.Normalizer(v)
		}
		values[spec.key()] = v
	}
	return values
}

// matchEnum returns the canonical accepted value equal to v ignoring case.
func matchEnum(v string, accepted []string) (string, bool) {
	for _, ev := range accepted {
		if strings.EqualFold(ev, v) {
			return ev, true
		}
	}
	return "", false
}
