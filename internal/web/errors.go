package web

// errors.go renders every API error the same way: the technical error is
// logged with the request ID and the client receives the coded message from
// core.MapError.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/fleetimport/internal/core"
	"github.com/JonMunkholm/fleetimport/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
)

var (
	errRateLimited  = errors.New("rate limit exceeded")
	errFileTooLarge = errors.New("file too large")
	errNoFile       = errors.New("no file provided")
	errStillRunning = errors.New("import is still running")
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// respondError picks a status for err and writes it.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusFor(err), err)
}

// writeError logs err and writes its user-facing form with status.
func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := core.MapError(err)
	reqID := middleware.GetReqID(r.Context())

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "path", r.URL.Path, "status", status, "error", err, "code", msg.Code)
	} else {
		logger.Debug("request error", "path", r.URL.Path, "status", status, "error", err, "code", msg.Code)
	}

	body := ErrorResponse{
		Error:     err.Error(),
		Message:   msg.Message,
		Action:    msg.Action,
		Code:      msg.Code,
		RequestID: reqID,
	}
	// Technical text is only shown for errors we recognize.
	if !core.IsUserFacing(err) {
		body.Error = msg.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownKind), errors.Is(err, core.ErrImportNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrHistoryDisabled):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile), errors.Is(err, errInvalidOption):
		return http.StatusBadRequest
	case errors.Is(err, errStillRunning):
		return http.StatusConflict
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case core.IsParseError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v with status. Encoding errors are logged since the
// header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
