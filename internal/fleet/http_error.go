package fleet

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// errorEnvelope is the JSON error body returned by the fleet service.
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HTTPError is a sanitized summary of a non-2xx fleet service response.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "fleet api error"
	}
	msg := fmt.Sprintf("fleet api error: op=%s status=%d", e.Op, e.StatusCode)
	if m := strings.TrimSpace(e.Message); m != "" {
		msg += " message=" + m
	}
	return msg
}

// Temporary reports whether retrying later could succeed.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newHTTPError(op string, resp *http.Response, body []byte) error {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}

	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		if m := strings.TrimSpace(env.Message); m != "" {
			h.Message = m
			return h
		}
		if m := strings.TrimSpace(env.Error); m != "" {
			h.Message = m
			return h
		}
	}

	h.Message = truncate(body)
	return h
}

// truncate keeps a short single-line hint of a non-JSON body.
func truncate(body []byte) string {
	const maxLen = 200
	s := string(body)
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}
