package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/fleetimport/internal/core"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// maxResponseBody bounds how much of a response body is read.
const maxResponseBody = 4 << 20

// ClientConfig configures a fleet service client.
type ClientConfig struct {
	BaseURL      string        // e.g. http://localhost:8080
	Token        string        // Optional bearer token
	Timeout      time.Duration // Per-request timeout (default: 15s)
	RateLimitRPS float64       // Max requests per second, 0 disables pacing
}

// Client talks to the fleet service REST API.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient validates cfg and builds a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		http:    &http.Client{Timeout: timeout},
	}
	if cfg.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}
	return c, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("fleet api base URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse fleet api base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("fleet api base URL must include a host (got %q)", raw)
	}
	// Trailing slash so ResolveReference treats the path as a directory.
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.baseURL.String(), "/")
}

// ListVehicles returns every vehicle known to the fleet service.
func (c *Client) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	var out []Vehicle
	if err := c.do(ctx, "listVehicles", http.MethodGet, "vehicles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateVehicle registers one vehicle.
func (c *Client) CreateVehicle(ctx context.Context, v Vehicle) error {
	return c.do(ctx, "createVehicle", http.MethodPost, "vehicles", v, nil)
}

// CreateMaintenance registers one maintenance window.
func (c *Client) CreateMaintenance(ctx context.Context, m Maintenance) error {
	return c.do(ctx, "createMaintenance", http.MethodPost, "maintenance", m, nil)
}

// Health checks that the fleet service answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "health", nil, nil)
}

// References fetches the current vehicle IDs as a reference set.
func (c *Client) References(ctx context.Context) (core.ReferenceSet, error) {
	vehicles, err := c.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}
	refs := core.NewReferenceSet(RefVehicleIDs)
	for _, v := range vehicles {
		refs.Add(RefVehicleIDs, v.ID)
	}
	return refs, nil
}

// Submit sends one import record to the matching endpoint.
func (c *Client) Submit(ctx context.Context, rec core.Record) error {
	switch r := rec.(type) {
	case Vehicle:
		return c.CreateVehicle(ctx, r)
	case Maintenance:
		return c.CreateMaintenance(ctx, r)
	default:
		return fmt.Errorf("unsupported record type %T", rec)
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit wait: %w", op, err)
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-ID", requestID(ctx))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode/100 != 2 {
		return newHTTPError(op, resp, b)
	}

	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s: parse response: %w", op, err)
	}
	return nil
}

// requestID reuses the inbound request ID when there is one.
func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}
