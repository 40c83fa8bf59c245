package core

// pipeline.go composes parser, validator, mapper and orchestrator.

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// RunOptions configures one pipeline run.
type RunOptions struct {
	Policy   FailurePolicy
	Parse    ParseOptions
	Progress ProgressFunc
}

// Run imports the delimited text in r.
//
// The header is parsed and checked first, then the reference dataset is
// fetched once, then every row is validated and mapped before submission
// starts. The returned summary is always populated; err is the terminating
// error for parse failures, fail-fast aborts and cancellation.
func Run(ctx context.Context, r io.Reader, schema ImportSchema, refs ReferenceSource, submit SubmitFunc, opts RunOptions) (ImportSummary, error) {
	if opts.Policy == "" {
		opts.Policy = FailFast
	}

	items, skipped, header, err := collect(ctx, r, schema, refs, opts.Parse)
	if err != nil {
		rep := NewReporter(schema, opts.Policy, 0)
		rep.SetHeader(header)
		rep.Abort(err)
		return rep.Summary(), err
	}

	rep := NewReporter(schema, opts.Policy, len(items))
	rep.SetSkipped(skipped)
	rep.SetHeader(header)

	if len(items) == 0 {
		rep.Abort(ErrNoRecords)
		return rep.Summary(), ErrNoRecords
	}

	err = submitItems(ctx, rep, items, submit, opts.Policy, opts.Progress)
	return rep.Summary(), err
}

// CheckResult is the outcome of a dry run.
type CheckResult struct {
	Kind        string          `json:"kind"`
	Total       int             `json:"total"`
	Valid       int             `json:"valid"`
	Invalid     int             `json:"invalid"`
	SkippedRows int             `json:"skippedRows"`
	Errors      []ImportOutcome `json:"errors"`
	Records     []Record        `json:"-"`
}

// Check parses and validates r without submitting anything.
// Every row is checked so the caller sees all problems at once.
func Check(ctx context.Context, r io.Reader, schema ImportSchema, refs ReferenceSource, opts ParseOptions) (*CheckResult, error) {
	items, skipped, _, err := collect(ctx, r, schema, refs, opts)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		Kind:        schema.Kind,
		Total:       len(items),
		SkippedRows: skipped,
		Errors:      []ImportOutcome{},
	}
	for _, it := range items {
		if it.Err != nil {
			result.Invalid++
			result.Errors = append(result.Errors, failure(it, StageValidate, it.Err))
			continue
		}
		result.Valid++
		result.Records = append(result.Records, it.Record)
	}
	return result, nil
}

// collect parses, validates and maps every row of r. The header is
// returned whenever it could be read, even alongside an error.
func collect(ctx context.Context, r io.Reader, schema ImportSchema, source ReferenceSource, opts ParseOptions) ([]Item, int, []string, error) {
	rows, err := Parse(r, schema, opts)
	if err != nil {
		return nil, 0, nil, err
	}
	header := rows.Header()

	refs := ReferenceSet{}
	if source != nil {
		refs, err = source.References(ctx)
		if err != nil {
			return nil, 0, header, fmt.Errorf("load reference data: %w", err)
		}
	}

	var items []Item
	for {
		raw, err := rows.Next()
		if err == io.EOF {
			break
		}

		var rve *RowValidationError
		if errors.As(err, &rve) {
			items = append(items, Item{Line: raw.Line, Err: err, Data: raw.Fields})
			continue
		}
		if err != nil {
			return nil, 0, header, err
		}

		items = append(items, buildItem(raw, schema, refs))
	}

	return items, rows.Skipped(), header, nil
}

func buildItem(raw RawRow, schema ImportSchema, refs ReferenceSet) Item {
	it := Item{
		Line: raw.Line,
		Data: raw.Fields,
	}
	if schema.KeyColumn != "" {
		it.Key = raw.Value(schema.KeyColumn)
	}

	row, err := ValidateRow(raw, schema, refs)
	if err != nil {
		it.Err = err
		return it
	}

	it.Record = schema.Map(row)
	if k := it.Record.RecordKey(); k != "" {
		it.Key = k
	}
	return it
}
