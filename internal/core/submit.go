package core

// submit.go runs the submission loop.
//
// Records go to the remote service strictly one at a time, in file order.
// Progress is reported after every processed item as round(processed*100/total),
// so the sequence is monotonic and ends at 100 for any run that reaches the
// last record. Cancellation is observed between records only; a submission
// already in flight runs to completion.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// Item is one data row ready for the orchestrator: either a mapped record
// or the error that kept the row from becoming one.
type Item struct {
	Line   int
	Key    string
	Record Record
	Err    error
	Data   []string
}

// Submit sends items through submit under the given policy.
//
// Under FailFast any item carrying an error aborts the run before the first
// submission, and the first submission error aborts the run; the returned
// error is that single terminating error. Under BestEffort every item is
// attempted and failures are recorded in the summary; the returned error is
// nil unless the context was cancelled.
func Submit(ctx context.Context, schema ImportSchema, items []Item, submit SubmitFunc, policy FailurePolicy, onProgress ProgressFunc) (ImportSummary, error) {
	rep := NewReporter(schema, policy, len(items))
	err := submitItems(ctx, rep, items, submit, policy, onProgress)
	return rep.Summary(), err
}

func submitItems(ctx context.Context, rep *Reporter, items []Item, submit SubmitFunc, policy FailurePolicy, onProgress ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(int) {}
	}
	total := len(items)
	if total == 0 {
		onProgress(100)
		return nil
	}

	if policy == FailFast {
		for _, it := range items {
			if it.Err != nil {
				rep.Terminate(failure(it, StageValidate, it.Err))
				return it.Err
			}
		}
	}

	processed := 0
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			rep.Cancel()
			return fmt.Errorf("import cancelled: %w", err)
		}

		if it.Err != nil {
			// Only reachable under BestEffort.
			rep.Record(failure(it, StageValidate, it.Err))
		} else if err := submit(ctx, it.Record); err != nil {
			subErr := &SubmissionError{Line: it.Line, Key: it.Key, Err: err}
			if policy == FailFast {
				rep.Terminate(failure(it, StageSubmit, subErr))
				return subErr
			}
			slog.Debug("record submission failed", "line", it.Line, "key", it.Key, "error", err)
			rep.Record(failure(it, StageSubmit, subErr))
		} else {
			rep.Record(ImportOutcome{Line: it.Line, Key: it.Key, Success: true, Stage: StageSubmit})
		}

		processed++
		onProgress(percent(processed, total))
	}

	return nil
}

// percent returns round(processed*100/total).
func percent(processed, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(processed) * 100 / float64(total)))
}

func failure(it Item, stage Stage, err error) ImportOutcome {
	line := it.Line
	if line == 0 {
		line = errorLine(err)
	}
	return ImportOutcome{
		Line:   line,
		Key:    it.Key,
		Stage:  stage,
		Reason: errorReason(err),
		Data:   it.Data,
	}
}
