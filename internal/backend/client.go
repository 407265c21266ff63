// Package backend is the REST client for a dataset's remote store.
//
// GET lists rows, POST creates a batch, PUT updates a batch and DELETE
// removes rows by identity. Request and response bodies are shaped by the
// dataset's wire format. Failures surface as fault.Error values; nothing is
// retried.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/gridsync/internal/dataset"
	"github.com/roach88/gridsync/internal/fault"
	"github.com/roach88/gridsync/internal/record"
)

// DefaultTimeout bounds a single request when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// maxReasonLen caps how much of a non-JSON error body is quoted.
const maxReasonLen = 200

// Endpoints are the absolute URLs a dataset is served from. Update and
// Delete default to Create's URL; Audit is optional.
type Endpoints struct {
	List   string
	Create string
	Update string
	Delete string
	Audit  string
}

// Client talks to one dataset's backend.
type Client struct {
	dataset   *dataset.Dataset
	endpoints Endpoints
	http      *http.Client
	headers   http.Header
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for d served at ep.
func New(d *dataset.Dataset, ep Endpoints, opts ...Option) *Client {
	if ep.Update == "" {
		ep.Update = ep.Create
	}
	if ep.Delete == "" {
		ep.Delete = ep.Create
	}
	c := &Client{
		dataset:   d,
		endpoints: ep,
		http:      &http.Client{Timeout: DefaultTimeout},
		headers:   make(http.Header),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dataset returns the dataset the client serves.
func (c *Client) Dataset() *dataset.Dataset {
	return c.dataset
}

// Fetch lists every row, sorted by identity ascending. An empty response
// is a NoData error.
func (c *Client) Fetch(ctx context.Context) ([]record.Record, error) {
	rows, err := c.list(ctx, "fetch", c.endpoints.List)
	if err != nil {
		return nil, err
	}
	snap := record.Snapshot{Rows: rows}
	snap.SortByIdentity(c.dataset.Identity)
	return snap.Rows, nil
}

// FetchAudit lists the version history of the row with identity id.
func (c *Client) FetchAudit(ctx context.Context, id record.Value) ([]record.Record, error) {
	if c.endpoints.Audit == "" {
		return nil, fault.Configuration(fmt.Sprintf("dataset %q has no audit endpoint", c.dataset.Name), nil)
	}
	u := strings.TrimSuffix(c.endpoints.Audit, "/") + "/" + url.PathEscape(record.Text(id))
	return c.list(ctx, "audit", u)
}

// Create posts rows as one batch.
func (c *Client) Create(ctx context.Context, rows []record.Record) error {
	body, err := c.dataset.Wire.EncodeBatch(rows)
	if err != nil {
		return fault.Backend(c.dataset.Name, "create", 0, err.Error(), err)
	}
	_, err = c.do(ctx, "create", http.MethodPost, c.endpoints.Create, body)
	return err
}

// Update puts rows as one batch. Rows keep their identity.
func (c *Client) Update(ctx context.Context, rows []record.Record) error {
	body, err := c.dataset.Wire.EncodeBatch(rows)
	if err != nil {
		return fault.Backend(c.dataset.Name, "update", 0, err.Error(), err)
	}
	_, err = c.do(ctx, "update", http.MethodPut, c.endpoints.Update, body)
	return err
}

// Delete removes rows by identity. The body is a JSON array of ids.
func (c *Client) Delete(ctx context.Context, ids []record.Value) error {
	plain := make([]any, len(ids))
	for i, id := range ids {
		plain[i] = record.ToAny(id)
	}
	body, err := json.Marshal(plain)
	if err != nil {
		return fault.Backend(c.dataset.Name, "delete", 0, err.Error(), err)
	}
	_, err = c.do(ctx, "delete", http.MethodDelete, c.endpoints.Delete, body)
	return err
}

func (c *Client) list(ctx context.Context, op, u string) ([]record.Record, error) {
	body, err := c.do(ctx, op, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fault.NoData(c.dataset.Name)
	}
	rows, err := c.dataset.Wire.DecodeList(body)
	if err != nil {
		return nil, fault.Backend(c.dataset.Name, op, http.StatusOK, "malformed response", err)
	}
	if len(rows) == 0 {
		return nil, fault.NoData(c.dataset.Name)
	}
	return rows, nil
}

// do sends one request and returns the response body of a 2xx reply.
func (c *Client) do(ctx context.Context, op, method, u string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fault.Backend(c.dataset.Name, op, 0, fmt.Sprintf("failed to create HTTP request for url: %s", u), err)
	}
	for k, vs := range c.headers {
		req.Header[k] = vs
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.DebugContext(ctx, "backend request",
		"dataset", c.dataset.Name,
		"operation", op,
		"method", method,
		"url", u,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fault.Backend(c.dataset.Name, op, 0, fmt.Sprintf("request failed for url: %s", u), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Backend(c.dataset.Name, op, resp.StatusCode, fmt.Sprintf("failed to read response for url: %s", u), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("%d %s: %s for url: %s", resp.StatusCode, statusClass(resp.StatusCode), reason(resp, data), u)
		c.logger.WarnContext(ctx, "backend rejected request",
			"dataset", c.dataset.Name,
			"operation", op,
			"status", resp.StatusCode,
		)
		return nil, fault.Backend(c.dataset.Name, op, resp.StatusCode, msg, nil)
	}
	return data, nil
}

func statusClass(code int) string {
	if code >= 500 {
		return "Server Error"
	}
	return "Client Error"
}

// reason extracts a human message from an error reply: a JSON "message"
// or "error" field, else the body text, else the status text.
func reason(resp *http.Response, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" || strings.HasPrefix(text, "{") {
		return http.StatusText(resp.StatusCode)
	}
	if len(text) > maxReasonLen {
		text = text[:maxReasonLen]
	}
	return text
}
