package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/fleetimport/internal/logging"
	"github.com/google/uuid"
)

// Observer receives import events, typically to update metrics.
type Observer interface {
	ImportFinished(summary ImportSummary, err error)
	SubmissionObserved(kind string, elapsed time.Duration, err error)
}

// ServiceConfig holds Service limits and defaults.
type ServiceConfig struct {
	MaxConcurrent     int
	MaxWait           time.Duration
	Timeout           time.Duration // Upper bound for one asynchronous import
	ResultRetention   time.Duration // How long finished imports stay queryable
	DefaultPolicy     FailurePolicy
	SkipMalformedRows bool
}

// Service runs imports against one fleet backend.
type Service struct {
	refs     ReferenceSource
	submit   SubmitFunc
	cfg      ServiceConfig
	limiter  *ImportLimiter
	history  HistoryStore
	observer Observer

	mu      sync.RWMutex
	imports map[string]*activeImport
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithHistory persists a summary of every finished import.
func WithHistory(h HistoryStore) Option {
	return func(s *Service) { s.history = h }
}

// WithObserver reports import events to o.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// NewService creates a Service. refs supplies reference data and submit
// sends one record to the fleet service.
func NewService(refs ReferenceSource, submit SubmitFunc, cfg ServiceConfig, opts ...Option) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.ResultRetention <= 0 {
		cfg.ResultRetention = 15 * time.Minute
	}
	if cfg.DefaultPolicy == "" {
		cfg.DefaultPolicy = FailFast
	}

	s := &Service{
		refs:    refs,
		submit:  submit,
		cfg:     cfg,
		limiter: NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		imports: make(map[string]*activeImport),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportRequest describes one import file.
type ImportRequest struct {
	Kind              string
	FileName          string
	Data              []byte
	Policy            FailurePolicy // Empty uses the service default
	SkipMalformedRows *bool         // Nil uses the service default
}

type activeImport struct {
	id       string
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	progress ImportProgress
	result   *ImportSummary
	closed   bool

	listeners []chan ImportProgress
}

// Schemas returns the registered import schemas.
func (s *Service) Schemas() []ImportSchema {
	return All()
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// RunImport runs one import synchronously and blocks until it finishes.
// progress may be nil.
func (s *Service) RunImport(ctx context.Context, req ImportRequest, progress ProgressFunc) (ImportSummary, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return ImportSummary{}, err
	}
	defer s.limiter.Release()

	id := uuid.New().String()
	logger := logging.WithFields(ctx, "import_id", id, "kind", req.Kind, "file", req.FileName)
	return s.runImport(ctx, id, req, progress, logger)
}

// StartImport begins an asynchronous import and returns its ID immediately.
// Use SubscribeProgress and Result to follow it.
func (s *Service) StartImport(ctx context.Context, req ImportRequest) (string, error) {
	if _, ok := Get(req.Kind); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	id := uuid.New().String()
	logger := logging.WithFields(ctx, "import_id", id, "kind", req.Kind, "file", req.FileName)

	importCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	imp := &activeImport{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
		progress: ImportProgress{
			ImportID: id,
			Kind:     req.Kind,
			FileName: req.FileName,
			Phase:    PhaseStarting,
		},
	}

	s.mu.Lock()
	s.imports[id] = imp
	s.mu.Unlock()

	go func() {
		defer s.limiter.Release()
		defer cancel()

		imp.update(func(p *ImportProgress) { p.Phase = PhaseSubmitting })

		summary, err := s.runImport(importCtx, id, req, func(pct int) {
			imp.update(func(p *ImportProgress) { p.Percent = pct })
		}, logger)

		imp.finish(summary, err)
		s.cleanup(id, s.cfg.ResultRetention)
	}()

	return id, nil
}

func (s *Service) runImport(ctx context.Context, id string, req ImportRequest, progress ProgressFunc, logger *slog.Logger) (ImportSummary, error) {
	schema, ok := Get(req.Kind)
	if !ok {
		return ImportSummary{}, fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)
	}

	opts := s.runOptions(req, progress)
	logger.Info("import started", "policy", opts.Policy, "bytes", len(req.Data))

	summary, err := Run(ctx, bytes.NewReader(req.Data), schema, s.refs, s.observedSubmit(schema.Kind), opts)
	summary.ImportID = id
	summary.FileName = req.FileName

	if err != nil {
		logger.Warn("import ended with error",
			"error", err,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"duration_ms", summary.Duration.Milliseconds(),
		)
	} else {
		logger.Info("import completed",
			"total", summary.Total,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"skipped_rows", summary.SkippedRows,
			"duration_ms", summary.Duration.Milliseconds(),
		)
	}

	if s.observer != nil {
		s.observer.ImportFinished(summary, err)
	}
	s.recordHistory(summary, logger)

	return summary, err
}

func (s *Service) runOptions(req ImportRequest, progress ProgressFunc) RunOptions {
	opts := RunOptions{
		Policy:   req.Policy,
		Parse:    ParseOptions{SkipMalformedRows: s.cfg.SkipMalformedRows},
		Progress: progress,
	}
	if opts.Policy == "" {
		opts.Policy = s.cfg.DefaultPolicy
	}
	if req.SkipMalformedRows != nil {
		opts.Parse.SkipMalformedRows = *req.SkipMalformedRows
	}
	return opts
}

// observedSubmit wraps the submit function with timing for the observer.
func (s *Service) observedSubmit(kind string) SubmitFunc {
	if s.observer == nil {
		return s.submit
	}
	return func(ctx context.Context, rec Record) error {
		start := time.Now()
		err := s.submit(ctx, rec)
		s.observer.SubmissionObserved(kind, time.Since(start), err)
		return err
	}
}

func (s *Service) recordHistory(summary ImportSummary, logger *slog.Logger) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.history.RecordImport(ctx, summary); err != nil {
		logger.Error("failed to record import history", "error", err)
	}
}

// Check validates a file without submitting anything.
func (s *Service) Check(ctx context.Context, kind string, r io.Reader, skipMalformed *bool) (*CheckResult, error) {
	schema, ok := Get(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	opts := ParseOptions{SkipMalformedRows: s.cfg.SkipMalformedRows}
	if skipMalformed != nil {
		opts.SkipMalformedRows = *skipMalformed
	}
	return Check(ctx, r, schema, s.refs, opts)
}

// SubscribeProgress returns a channel of progress updates.
// The channel is closed when the import finishes.
func (s *Service) SubscribeProgress(id string) (<-chan ImportProgress, error) {
	imp, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 16)

	imp.mu.Lock()
	defer imp.mu.Unlock()

	ch <- imp.progress
	if imp.closed {
		close(ch)
		return ch, nil
	}
	imp.listeners = append(imp.listeners, ch)
	return ch, nil
}

// Status returns the current progress without blocking.
func (s *Service) Status(id string) (ImportProgress, error) {
	imp, err := s.lookup(id)
	if err != nil {
		return ImportProgress{}, err
	}
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.progress, nil
}

// Result blocks until the import finishes or ctx is done.
// The summary is returned even when the import ended with an error.
func (s *Service) Result(ctx context.Context, id string) (*ImportSummary, error) {
	imp, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	select {
	case <-imp.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.result, nil
}

// Cancel stops an import before its next record.
func (s *Service) Cancel(id string) error {
	imp, err := s.lookup(id)
	if err != nil {
		return err
	}
	imp.cancel()
	return nil
}

// History returns recent finished imports, newest first.
func (s *Service) History(ctx context.Context, kind string, limit int) ([]ImportSummary, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.RecentImports(ctx, kind, limit)
}

// HistoryFailures returns the stored failures of a past import.
func (s *Service) HistoryFailures(ctx context.Context, id string) ([]ImportOutcome, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.ImportFailures(ctx, id)
}

// Shutdown waits for running imports to finish or ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) lookup(id string) (*activeImport, error) {
	s.mu.RLock()
	imp, ok := s.imports[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, id)
	}
	return imp, nil
}

// cleanup removes the import from tracking after a delay.
func (s *Service) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, id)
		s.mu.Unlock()
	})
}

// update applies fn to the progress and notifies listeners.
func (imp *activeImport) update(fn func(*ImportProgress)) {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	fn(&imp.progress)
	imp.notifyLocked()
}

func (imp *activeImport) notifyLocked() {
	for _, ch := range imp.listeners {
		select {
		case ch <- imp.progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

// finish stores the result, publishes the terminal phase and closes listeners.
func (imp *activeImport) finish(summary ImportSummary, err error) {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	imp.result = &summary

	switch {
	case summary.Cancelled:
		imp.progress.Phase = PhaseCancelled
	case err != nil:
		imp.progress.Phase = PhaseFailed
	default:
		imp.progress.Phase = PhaseComplete
		imp.progress.Percent = 100
	}
	if err != nil {
		imp.progress.Error = err.Error()
	}

	for _, ch := range imp.listeners {
		// The terminal update must not be dropped.
		select {
		case ch <- imp.progress:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- imp.progress
		}
		close(ch)
	}
	imp.listeners = nil
	imp.closed = true
	close(imp.done)
}
