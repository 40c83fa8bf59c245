package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// windowRecord is a minimal record used by the core tests.
type windowRecord struct {
	Unit  string
	Start time.Time
	End   time.Time
	Kind  string
}

func (r windowRecord) RecordKey() string { return r.Unit }

// unitRecord is a positional test record.
type unitRecord struct {
	ID       string
	Class    string
	Capacity float64
	Level    float64
}

func (r unitRecord) RecordKey() string { return r.ID }

// windowSchema is a by-name schema with a reference, an ordering rule and an enum.
func windowSchema() ImportSchema {
	return ImportSchema{
		Kind:       "window",
		Label:      "windows",
		HeaderMode: HeaderByName,
		KeyColumn:  "unit",
		FieldSpecs: []FieldSpec{
			{Name: "unit", Type: FieldReference, Required: true, RefSet: "unit"},
			{Name: "start", Type: FieldDate, Required: true},
			{Name: "end", Type: FieldDate, Required: true},
			{Name: "kind", Type: FieldEnum, Required: true, EnumValues: []string{"PREVENTIVE", "CORRECTIVE"}},
		},
		Ordering: []OrderedRule{{Before: "start", After: "end"}},
		Map: func(row ValidatedRow) Record {
			return windowRecord{
				Unit:  row.Text("unit"),
				Start: row.Date("start"),
				End:   row.Date("end"),
				Kind:  row.Text("kind"),
			}
		},
	}
}

// unitSchema is a positional schema with numeric columns.
func unitSchema() ImportSchema {
	return ImportSchema{
		Kind:       "unit",
		Label:      "units",
		HeaderMode: HeaderPositional,
		KeyColumn:  "id",
		FieldSpecs: []FieldSpec{
			{Name: "id", Type: FieldText, Required: true},
			{Name: "class", Type: FieldEnum, Required: true, EnumValues: []string{"TA", "TB"}, Normalizer: strings.ToUpper},
			{Name: "capacity", Type: FieldNumeric, Required: true, NonNegative: true},
			{Name: "level", Type: FieldNumeric, NonNegative: true, Default: "0"},
		},
		Map: func(row ValidatedRow) Record {
			return unitRecord{
				ID:       row.Text("id"),
				Class:    row.Text("class"),
				Capacity: row.Number("capacity").OrDefault(0),
				Level:    row.Number("level").OrDefault(0),
			}
		},
	}
}

func testRefs(ids ...string) ReferenceSet {
	return NewReferenceSet("unit", ids...)
}

// fakeSubmitter records submissions and fails keys listed in fail.
type fakeSubmitter struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []string
	hook  func(rec Record)
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{fail: make(map[string]error)}
}

func (f *fakeSubmitter) Submit(ctx context.Context, rec Record) error {
	f.mu.Lock()
	f.calls = append(f.calls, rec.RecordKey())
	err := f.fail[rec.RecordKey()]
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(rec)
	}
	return err
}

func (f *fakeSubmitter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// failingSource is a ReferenceSource that always errors.
type failingSource struct{}

func (failingSource) References(context.Context) (ReferenceSet, error) {
	return nil, errors.New("fleet service unavailable")
}

// progressLog collects progress values.
type progressLog struct {
	mu     sync.Mutex
	values []int
}

func (p *progressLog) Record(pct int) {
	p.mu.Lock()
	p.values = append(p.values, pct)
	p.mu.Unlock()
}

func (p *progressLog) Values() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}
