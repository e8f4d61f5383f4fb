// Package datasource talks to the civic data service: the search, county,
// state and comparison endpoints, plus the county polygon file, which can
// come from the service or from local disk.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/vanderheijden86/civicmap/pkg/logging"
	"github.com/vanderheijden86/civicmap/pkg/metrics"
	"github.com/vanderheijden86/civicmap/pkg/model"
)

// ErrNotFound is returned when the service answers 404.
var ErrNotFound = errors.New("not found")

// RequestError describes a failed call to the data service.
type RequestError struct {
	Endpoint string
	Status   int // 0 when the request never got a response
	Err      error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Client is an HTTP client for the civic data service.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout bounds each request. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{base: u, http: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger).Named("api")
	return c, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string { return c.base.String() }

// Resolve turns a service-relative path into an absolute URL. Absolute
// URLs are returned unchanged; relative paths keep any base path prefix.
func (c *Client) Resolve(path string) string {
	if ref, err := url.Parse(path); err == nil && ref.IsAbs() {
		return path
	}
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

// Search returns entity candidates for a free-text query.
func (c *Client) Search(ctx context.Context, q string) ([]model.EntitySummary, error) {
	defer metrics.Timer(metrics.Search)()
	var hits []model.EntitySummary
	if err := c.getJSON(ctx, "/api/search?q="+url.QueryEscape(q), &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// County fetches the full record of one county.
func (c *Client) County(ctx context.Context, fips string) (*model.Entity, error) {
	var e model.Entity
	if err := c.getJSON(ctx, "/api/county/"+url.PathEscape(fips), &e); err != nil {
		return nil, err
	}
	e.Kind = model.KindCounty
	e.ID = model.NormalizeID(e.ID)
	if e.ID == "" {
		e.ID = model.NormalizeID(fips)
	}
	return &e, nil
}

// State fetches the aggregate summary of one state.
func (c *Client) State(ctx context.Context, code string) (*model.StateSummary, error) {
	var resp struct {
		Summary *model.StateSummary `json:"summary"`
	}
	if err := c.getJSON(ctx, "/api/state/"+url.PathEscape(code), &resp); err != nil {
		return nil, err
	}
	if resp.Summary == nil {
		return nil, &RequestError{Endpoint: "/api/state/" + code, Err: errors.New("response has no summary")}
	}
	return resp.Summary, nil
}

// States lists the state codes known to the service.
func (c *Client) States(ctx context.Context) ([]string, error) {
	var resp struct {
		States []string `json:"states"`
	}
	if err := c.getJSON(ctx, "/api/states", &resp); err != nil {
		return nil, err
	}
	return resp.States, nil
}

// CompareStates returns the score gaps of state a over state b.
func (c *Client) CompareStates(ctx context.Context, a, b string) (*model.StateGaps, error) {
	var resp struct {
		Gaps *model.StateGaps `json:"gaps"`
	}
	q := url.Values{"state_a": {a}, "state_b": {b}}
	if err := c.getJSON(ctx, "/api/compare/state?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Gaps == nil {
		return nil, &RequestError{Endpoint: "/api/compare/state", Err: errors.New("response has no gaps")}
	}
	return resp.Gaps, nil
}

// Fetch GETs a service-relative path or absolute URL and returns the body.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &RequestError{Endpoint: path, Err: err}
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return &RequestError{Endpoint: endpoint(path), Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) (io.ReadCloser, error) {
	defer metrics.Timer(metrics.APIRequest)()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		body, err := c.do(ctx, path)
		if err != nil {
			cancel()
			return nil, err
		}
		return &cancelOnClose{ReadCloser: body, cancel: cancel}, nil
	}
	return c.do(ctx, path)
}

func (c *Client) do(ctx context.Context, path string) (io.ReadCloser, error) {
	ep := endpoint(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Resolve(path), nil)
	if err != nil {
		return nil, &RequestError{Endpoint: ep, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("endpoint", ep), zap.Error(err))
		return nil, &RequestError{Endpoint: ep, Err: err}
	}
	c.logger.Debug("request",
		zap.String("endpoint", ep),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, &RequestError{Endpoint: ep, Status: resp.StatusCode, Err: ErrNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &RequestError{Endpoint: ep, Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(msg)))}
	}
	return resp.Body, nil
}

// endpoint strips the query so logs and errors don't carry user input.
func endpoint(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
