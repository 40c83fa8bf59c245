package web

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/fleetimport/internal/core"
	"github.com/JonMunkholm/fleetimport/internal/logging"
	"github.com/go-chi/chi/v5"
)

// progressKeepAlive is how often an idle progress stream sends a comment.
const progressKeepAlive = 15 * time.Second

// startResponse is returned when an asynchronous import is accepted.
type startResponse struct {
	ImportID    string `json:"importId"`
	ProgressURL string `json:"progressUrl"`
	ResultURL   string `json:"resultUrl"`
}

// resultResponse is a finished import with its error mapped for display.
type resultResponse struct {
	*core.ImportSummary
	DurationMs int64             `json:"durationMs"`
	Error      *core.UserMessage `json:"error,omitempty"`
}

// handleStartImport accepts a file and starts an asynchronous import.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if _, ok := core.Get(kind); !ok {
		respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownKind, kind))
		return
	}

	file, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	policy, err := formPolicy(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	skip, err := formBool(r, "skip_malformed")
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := s.service.StartImport(r.Context(), core.ImportRequest{
		Kind:              kind,
		FileName:          file.Name,
		Data:              file.Data,
		Policy:            policy,
		SkipMalformedRows: skip,
	})
	if err != nil {
		if errors.Is(err, core.ErrTooManyImports) {
			w.Header().Set("Retry-After", "30")
		}
		respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusAccepted, startResponse{
		ImportID:    id,
		ProgressURL: "/api/imports/" + id + "/progress",
		ResultURL:   "/api/imports/" + id,
	})
}

// handleCheckImport validates a file without submitting anything.
func (s *Server) handleCheckImport(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if _, ok := core.Get(kind); !ok {
		respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownKind, kind))
		return
	}

	file, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	skip, err := formBool(r, "skip_malformed")
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.Check(r.Context(), kind, bytes.NewReader(file.Data), skip)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleImportProgress streams import progress via Server-Sent Events.
// The event ID is the percentage, so a reconnecting client that sends
// Last-Event-ID (or ?lastEventId=) skips updates it already has.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lastEventID := -1
	last := r.Header.Get("Last-Event-ID")
	if last == "" {
		last = r.URL.Query().Get("lastEventId")
	}
	if n, err := strconv.Atoi(last); err == nil {
		lastEventID = n
	}

	progressCh, err := s.service.SubscribeProgress(id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	keepAlive := time.NewTicker(progressKeepAlive)
	defer keepAlive.Stop()

	var final core.ImportProgress
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				data, _ := json.Marshal(final)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				_ = rc.Flush()
				return
			}
			final = progress
			if progress.Done() {
				// Sent as the complete event once the channel closes.
				continue
			}
			if progress.Percent <= lastEventID {
				continue
			}
			lastEventID = progress.Percent

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Percent, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult returns the summary of an import. It blocks until the
// import finishes unless ?wait=false, which returns the current progress.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("wait") == "false" {
		progress, err := s.service.Status(id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, progress)
		return
	}

	summary, err := s.service.Result(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := resultResponse{ImportSummary: summary, DurationMs: summary.Duration.Milliseconds()}
	if progress, err := s.service.Status(id); err == nil && progress.Error != "" {
		msg := core.MapError(errors.New(progress.Error))
		resp.Error = &msg
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleCancelImport asks a running import to stop before its next record.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.Cancel(id); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// handleExportFailures writes the failed rows of a finished import as CSV:
// _line and _error first, then the row as it appeared in the file.
func (s *Server) handleExportFailures(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	progress, err := s.service.Status(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !progress.Done() {
		respondError(w, r, errStillRunning)
		return
	}
	summary, err := s.service.Result(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	header := summary.Header
	if len(header) == 0 {
		if schema, ok := core.Get(summary.Kind); ok {
			header = schema.Columns()
		}
	}

	filename := fmt.Sprintf("%s_failures_%s.csv", summary.Kind, shortID(id))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	_ = cw.Write(append([]string{"_line", "_error"}, header...))
	for _, f := range summary.Failures {
		_ = cw.Write(append([]string{strconv.Itoa(f.Line), f.Reason}, f.Data...))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Error("failed rows export", "import_id", id, "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
