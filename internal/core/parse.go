package core

// parse.go splits delimited text into RawRows.
//
// The first non-blank line is the header. By-name schemas are checked for
// missing columns once, before any data row is read. Data rows are produced
// lazily in file order and carry their 1-based line number in the original
// input, so blank lines and skipped rows never shift the numbers reported
// to the user.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseOptions controls parser behavior.
type ParseOptions struct {
	// SkipMalformedRows drops rows whose field count does not fit the header.
	// When false, such rows surface as RowValidationError with RuleShape.
	SkipMalformedRows bool
}

// DefaultParseOptions returns the options used when the caller sets none.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{SkipMalformedRows: true}
}

// RowReader yields RawRows one at a time. It is not restartable.
type RowReader struct {
	schema  ImportSchema
	opts    ParseOptions
	cr      *csv.Reader
	header  []string
	index   HeaderIndex
	skipped int
	done    bool
}

// Parse reads the header and returns a reader positioned at the first data row.
// It fails with ErrEmptyFile when there is no header and with
// *MissingColumnsError when a by-name schema's required columns are absent.
func Parse(r io.Reader, schema ImportSchema, opts ParseOptions) (*RowReader, error) {
	cr := csv.NewReader(cleanInput(r))
	cr.Comma = schema.delimiter()
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rr := &RowReader{schema: schema, opts: opts, cr: cr}

	header, err := rr.readRecord()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, err
	}

	rr.header = header
	rr.index = MakeHeaderIndex(header)

	if schema.HeaderMode == HeaderByName {
		if missing := missingColumns(rr.index, schema.FieldSpecs); len(missing) > 0 {
			return nil, &MissingColumnsError{Names: missing}
		}
	}

	return rr, nil
}

// Header returns the header fields as read.
func (rr *RowReader) Header() []string {
	return rr.header
}

// Skipped returns how many malformed rows were dropped so far.
func (rr *RowReader) Skipped() int {
	return rr.skipped
}

// Next returns the next data row, or io.EOF when the input is exhausted.
// A *ParseError is terminal; a *RowValidationError (malformed row, when
// SkipMalformedRows is false) applies to that row only and Next may be
// called again.
func (rr *RowReader) Next() (RawRow, error) {
	if rr.done {
		return RawRow{}, io.EOF
	}

	for {
		rec, err := rr.readRecord()
		if err != nil {
			rr.done = true
			return RawRow{}, err
		}

		line, _ := rr.cr.FieldPos(0)

		if want, ok := rr.fits(rec); !ok {
			if rr.opts.SkipMalformedRows {
				rr.skipped++
				continue
			}
			return RawRow{Line: line, Fields: rec}, &RowValidationError{
				Line:   line,
				Rule:   RuleShape,
				Reason: fmt.Sprintf("malformed row: expected %s fields, got %d", want, len(rec)),
			}
		}

		return rr.rawRow(line, rec), nil
	}
}

// readRecord returns the next non-blank record.
func (rr *RowReader) readRecord() ([]string, error) {
	for {
		rec, err := rr.cr.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.Line, Err: csvErr.Err}
			}
			return nil, &ParseError{Err: err}
		}
		if isEmptyRow(rec) {
			continue
		}
		return rec, nil
	}
}

// fits checks the field count against the header mode.
func (rr *RowReader) fits(rec []string) (string, bool) {
	if rr.schema.HeaderMode == HeaderPositional {
		n := len(rr.schema.FieldSpecs)
		return fmt.Sprintf("at least %d", n), len(rec) >= n
	}
	return fmt.Sprintf("%d", len(rr.header)), len(rec) == len(rr.header)
}

func (rr *RowReader) rawRow(line int, rec []string) RawRow {
	row := RawRow{
		Line:   line,
		Values: make(map[string]string, len(rr.schema.FieldSpecs)),
		Fields: rec,
	}

	for i, spec := range rr.schema.FieldSpecs {
		pos := i
		if rr.schema.HeaderMode == HeaderByName {
			p, ok := rr.index[spec.key()]
			if !ok {
				continue
			}
			pos = p
		}
		if pos < len(rec) {
			row.Values[spec.key()] = CleanCell(rec[pos])
		}
	}

	return row
}

// missingColumns returns required column names absent from the header index.
func missingColumns(idx HeaderIndex, specs []FieldSpec) []string {
	var missing []string
	for _, spec := range specs {
		if !spec.Required {
			continue
		}
		if _, ok := idx[spec.key()]; !ok {
			missing = append(missing, spec.key())
		}
	}
	return missing
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
