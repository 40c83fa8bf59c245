package core

import (
	"fmt"
	"time"
)

// Reporter aggregates ImportOutcomes into an ImportSummary.
// It is used by a single goroutine.
type Reporter struct {
	summary ImportSummary
	label   string
	started time.Time
}

// NewReporter creates a reporter for an import of total rows.
func NewReporter(schema ImportSchema, policy FailurePolicy, total int) *Reporter {
	label := schema.Label
	if label == "" {
		label = "records"
	}
	now := time.Now()
	return &Reporter{
		summary: ImportSummary{
			Kind:      schema.Kind,
			Policy:    policy,
			Total:     total,
			Failures:  []ImportOutcome{},
			StartedAt: now.UTC(),
		},
		label:   label,
		started: now,
	}
}

// Record adds one outcome.
func (r *Reporter) Record(o ImportOutcome) {
	if o.Success {
		r.summary.Succeeded++
		return
	}
	r.summary.Failed++
	r.summary.Failures = append(r.summary.Failures, o)
}

// Terminate records the failure that stopped the run.
func (r *Reporter) Terminate(o ImportOutcome) {
	r.Record(o)
	r.summary.Terminal = o.Reason
	if o.Line > 0 {
		r.summary.Terminal = fmt.Sprintf("line %d: %s", o.Line, o.Reason)
	}
}

// Abort records a terminal error not tied to a row, such as a parse error.
func (r *Reporter) Abort(err error) {
	r.summary.Terminal = err.Error()
}

// Cancel marks the run as abandoned by the caller.
func (r *Reporter) Cancel() {
	r.summary.Cancelled = true
}

// SetSkipped records how many malformed rows the parser dropped.
func (r *Reporter) SetSkipped(n int) {
	r.summary.SkippedRows = n
}

// SetHeader records the file's header row for failed-row exports.
func (r *Reporter) SetHeader(h []string) {
	r.summary.Header = append([]string(nil), h...)
}

// Summary returns the aggregate with duration and message filled in.
func (r *Reporter) Summary() ImportSummary {
	s := r.summary
	s.Duration = time.Since(r.started)
	s.Failures = append([]ImportOutcome(nil), r.summary.Failures...)
	s.Message = r.message()
	return s
}

func (r *Reporter) message() string {
	s := r.summary
	switch {
	case s.Cancelled:
		return fmt.Sprintf("import cancelled after %d of %d %s", s.Succeeded+s.Failed, s.Total, r.label)
	case s.Terminal != "" && s.Succeeded > 0:
		return fmt.Sprintf("import stopped after %d of %d %s: %s", s.Succeeded, s.Total, r.label, s.Terminal)
	case s.Terminal != "":
		return fmt.Sprintf("import failed: %s", s.Terminal)
	case s.Failed > 0:
		return fmt.Sprintf("processed %d of %d %s, %d failed", s.Succeeded, s.Total, r.label, s.Failed)
	default:
		return fmt.Sprintf("processed %d of %d %s", s.Succeeded, s.Total, r.label)
	}
}
