package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/fleetimport/internal/config"
	"github.com/JonMunkholm/fleetimport/internal/core"
	_ "github.com/JonMunkholm/fleetimport/internal/core/schemas"
	"github.com/JonMunkholm/fleetimport/internal/fleet"
)

const maintenanceCSV = "vehicle_id,start_date,end_date,type\n" +
	"V1,2024-01-10,2024-01-15,PREVENTIVE\n" +
	"V9,2024-02-01,2024-02-03,CORRECTIVE\n" +
	"V1,2024-03-01,2024-03-02,corrective\n"

type fakeFleet struct {
	mu        sync.Mutex
	submitted []core.Record
	healthErr error
}

func (f *fakeFleet) Submit(_ context.Context, rec core.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, rec)
	return nil
}

func (f *fakeFleet) Health(context.Context) error { return f.healthErr }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{MaxFileSize: 1 << 20},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, ff *fakeFleet) *Server {
	t.Helper()
	refs := core.NewReferenceSet(fleet.RefVehicleIDs, "V1", "V2")
	svc := core.NewService(refs, ff.Submit, core.ServiceConfig{
		MaxConcurrent:     2,
		MaxWait:           100 * time.Millisecond,
		DefaultPolicy:     core.FailFast,
		SkipMalformedRows: true,
	})
	return NewServer(svc, ff, cfg)
}

func multipartBody(t *testing.T, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if content != "" {
		fw, err := mw.CreateFormFile("file", "windows.csv")
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, content)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func postFile(t *testing.T, s *Server, path, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ctype := multipartBody(t, content, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ctype)
	return do(t, s, req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// startImport posts a file and returns the import ID.
func startImport(t *testing.T, s *Server, content string, fields map[string]string) string {
	t.Helper()
	rec := postFile(t, s, "/api/imports/maintenance", content, fields)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decode[startResponse](t, rec).ImportID
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		healthErr  error
		wantStatus int
		wantFleet  string
	}{
		{"fleet reachable", nil, http.StatusOK, "ok"},
		{"fleet down", errors.New("connection refused"), http.StatusServiceUnavailable, "unreachable: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), &fakeFleet{healthErr: tt.healthErr})
			rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decode[healthResponse](t, rec)
			if resp.Fleet != tt.wantFleet {
				t.Errorf("Fleet = %q, want %q", resp.Fleet, tt.wantFleet)
			}
			if resp.Imports.MaxConcurrent != 2 {
				t.Errorf("Imports.MaxConcurrent = %d, want 2", resp.Imports.MaxConcurrent)
			}
		})
	}
}

func TestListSchemas(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFleet{})
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/schemas", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	schemas := decode[[]schemaResponse](t, rec)
	byKind := map[string]schemaResponse{}
	for _, sc := range schemas {
		byKind[sc.Kind] = sc
	}
	m, ok := byKind["maintenance"]
	if !ok {
		t.Fatalf("maintenance schema missing from %v", schemas)
	}
	if m.HeaderMode != "by-name" {
		t.Errorf("HeaderMode = %q, want by-name", m.HeaderMode)
	}
	if len(m.Columns) == 0 || m.Columns[0].Reference != fleet.RefVehicleIDs {
		t.Errorf("first column = %+v, want vehicle reference", m.Columns)
	}
	if v := byKind["vehicle"]; v.HeaderMode != "positional" {
		t.Errorf("vehicle HeaderMode = %q, want positional", v.HeaderMode)
	}
}

func TestDownloadTemplate(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFleet{})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/schemas/maintenance/template", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "vehicle_id,start_date,end_date,type\n" {
		t.Errorf("template = %q", got)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "maintenance_template.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/schemas/trucks/template", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown kind status = %d, want 404", rec.Code)
	}
}

func TestImport_FailFast(t *testing.T) {
	ff := &fakeFleet{}
	s := newTestServer(t, testConfig(), ff)

	id := startImport(t, s, maintenanceCSV, nil)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Succeeded int               `json:"succeeded"`
		Failed    int               `json:"failed"`
		Terminal  string            `json:"terminal"`
		Error     *core.UserMessage `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	// V9 is unknown, so validation aborts before anything is submitted.
	if resp.Succeeded != 0 || len(ff.submitted) != 0 {
		t.Errorf("Succeeded = %d, submitted = %d, want nothing", resp.Succeeded, len(ff.submitted))
	}
	if !strings.HasPrefix(resp.Terminal, "line 3: ") {
		t.Errorf("Terminal = %q, want line 3", resp.Terminal)
	}
	if resp.Error == nil || resp.Error.Code != "REF001" {
		t.Errorf("Error = %+v, want REF001", resp.Error)
	}
}

func TestImport_BestEffortAndFailuresExport(t *testing.T) {
	ff := &fakeFleet{}
	s := newTestServer(t, testConfig(), ff)

	id := startImport(t, s, maintenanceCSV, map[string]string{"policy": "best-effort"})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/"+id, nil))
	resp := decode[resultResponse](t, rec)
	if resp.Succeeded != 2 || resp.Failed != 1 {
		t.Fatalf("Succeeded/Failed = %d/%d, want 2/1", resp.Succeeded, resp.Failed)
	}
	if resp.Error != nil {
		t.Errorf("Error = %+v, want none for best-effort", resp.Error)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/"+id+"/failures.csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("failures status = %d, body = %s", rec.Code, rec.Body.String())
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("failures csv = %q, want header and one row", rec.Body.String())
	}
	if lines[0] != "_line,_error,vehicle_id,start_date,end_date,type" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "3,") || !strings.HasSuffix(lines[1], ",V9,2024-02-01,2024-02-03,CORRECTIVE") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestImport_Status(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFleet{})
	id := startImport(t, s, maintenanceCSV, map[string]string{"policy": "best-effort"})

	// Wait for completion, then read the non-blocking status.
	do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/"+id, nil))
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/"+id+"?wait=false", nil))
	progress := decode[core.ImportProgress](t, rec)
	if progress.Phase != core.PhaseComplete || progress.Percent != 100 {
		t.Errorf("progress = %+v, want complete at 100", progress)
	}
}

func TestImport_ProgressStream(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFleet{})
	id := startImport(t, s, maintenanceCSV, map[string]string{"policy": "best-effort"})
	do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/"+id, nil))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/"+id+"/progress", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: complete") || !strings.Contains(body, `"phase":"complete"`) {
		t.Errorf("stream = %q, want complete event", body)
	}
}

func TestImport_RequestErrors(t *testing.T) {
	small := testConfig()
	small.Import.MaxFileSize = 16

	tests := []struct {
		name     string
		cfg      *config.Config
		path     string
		content  string
		fields   map[string]string
		want     int
		wantCode string
	}{
		{"unknown kind", testConfig(), "/api/imports/trucks", maintenanceCSV, nil, http.StatusNotFound, "IMP004"},
		{"no file", testConfig(), "/api/imports/maintenance", "", map[string]string{"policy": "fail-fast"}, http.StatusBadRequest, "FILE005"},
		{"too large", small, "/api/imports/maintenance", maintenanceCSV, nil, http.StatusRequestEntityTooLarge, "FILE001"},
		{"bad policy", testConfig(), "/api/imports/maintenance", maintenanceCSV, map[string]string{"policy": "retry"}, http.StatusBadRequest, "IMP006"},
		{"bad skip flag", testConfig(), "/api/imports/maintenance", maintenanceCSV, map[string]string{"skip_malformed": "sometimes"}, http.StatusBadRequest, "IMP006"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.cfg, &fakeFleet{})
			rec := postFile(t, s, tt.path, tt.content, tt.fields)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
			if resp := decode[ErrorResponse](t, rec); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestCheckImport(t *testing.T) {
	ff := &fakeFleet{}
	s := newTestServer(t, testConfig(), ff)

	rec := postFile(t, s, "/api/imports/maintenance/check", maintenanceCSV, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	result := decode[core.CheckResult](t, rec)
	if result.Total != 3 || result.Valid != 2 || result.Invalid != 1 {
		t.Errorf("result = %+v, want 3 total, 2 valid, 1 invalid", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].Line != 3 {
		t.Errorf("Errors = %+v, want line 3", result.Errors)
	}
	if len(ff.submitted) != 0 {
		t.Errorf("check submitted %d records", len(ff.submitted))
	}

	rec = postFile(t, s, "/api/imports/maintenance/check", "vehicle_id,start_date\nV1,2024-01-01\n", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing columns status = %d, want 422", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "FILE002" {
		t.Errorf("code = %q, want FILE002", resp.Code)
	}
}

func TestImport_UnknownIDs(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFleet{})
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/imports/missing", nil),
		httptest.NewRequest(http.MethodGet, "/api/imports/missing?wait=false", nil),
		httptest.NewRequest(http.MethodPost, "/api/imports/missing/cancel", nil),
		httptest.NewRequest(http.MethodGet, "/api/imports/missing/failures.csv", nil),
		httptest.NewRequest(http.MethodGet, "/api/imports/missing/progress", nil),
	} {
		rec := do(t, s, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", req.Method, req.URL, rec.Code)
		}
	}
}

func TestHistory_Disabled(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFleet{})
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "IMP005" {
		t.Errorf("code = %q, want IMP005", resp.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := newTestServer(t, cfg, &fakeFleet{})

	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/schemas", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/schemas", nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := do(t, s, req); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}

	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200 without key", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	cfg := testConfig()
	cfg.Security.EnableCSP = true
	s := newTestServer(t, cfg, &fakeFleet{})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("4th request allowed, want denied")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other IP denied, want allowed")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, ImportLimit: 1}
	s := newTestServer(t, cfg, &fakeFleet{})

	do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", resp.Code)
	}
}
