// Package api provides typed HTTP clients for the knowledge-graph backend
// services: the loader API (schema + CSV import), the annotation API
// (annotation jobs + history), and the integration API (graph generation +
// pattern mining).
//
// All clients share a small request core: one http.Client, a base URL, an
// optional outbound rate limiter, and uniform JSON/multipart handling.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single backend request end to end.
const DefaultTimeout = 30 * time.Second

// maxErrorBodyBytes limits how much of an error response body is retained
// for diagnostics.
const maxErrorBodyBytes = 2048

// APIError is a non-2xx response from a backend service.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %s", e.Status)
	}
	return fmt.Sprintf("backend returned %s: %s", e.Status, e.Body)
}

// Options configures the shared client core.
type Options struct {
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the maximum outbound requests per second.
	// Zero or negative disables rate limiting.
	RateLimit float64

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Logger receives request-level debug logging. Nil means no logging.
	Logger *zap.Logger
}

// Client is the shared request core embedded by the service clients.
type Client struct {
	http    *http.Client
	base    *url.URL
	limiter *rate.Limiter
	log     *zap.Logger
}

func newClient(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in base URL", u.Scheme)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{http: hc, base: u, limiter: limiter, log: log}, nil
}

// endpoint resolves path elements against the base URL. Elements are raw:
// JoinPath escapes them, so ids must not be pre-escaped by callers.
func (c *Client) endpoint(parts ...string) string {
	return c.base.JoinPath(parts...).String()
}

// do executes the request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	// Correlates client logs with backend request logs.
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	c.log.Debug("backend request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.String("request_id", requestID))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, req, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, req, out)
}

// postMultipart builds a multipart form via fill and POSTs it.
//
// The body is buffered in memory; import files for this product are small
// CSVs, so streaming is not worth the complexity yet.
func (c *Client) postMultipart(ctx context.Context, path string, fill func(*multipart.Writer) error, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, req, out)
}

// attachFiles adds each local file to the form under the given field name.
func attachFiles(w *multipart.Writer, field string, paths []string) error {
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open %s: %w", p, err)
		}
		part, err := w.CreateFormFile(field, filepath.Base(p))
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("create form file for %s: %w", p, err)
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = f.Close()
			return fmt.Errorf("copy %s into form: %w", p, err)
		}
		_ = f.Close()
	}
	return nil
}
