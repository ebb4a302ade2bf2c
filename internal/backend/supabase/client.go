// Package supabase implements the remote backend contract over a Supabase project's
// REST surface: PostgREST tables and procedures, and GoTrue auth.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dtroode/flavourmarket/internal/model"
)

// Client is a Supabase REST API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	ctxManager model.ContextManager
}

// Config holds client configuration.
type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// New creates a client. Requests carry the caller's access token from ctxManager when present,
// the anon key otherwise.
func New(cfg Config, ctxManager model.ContextManager) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("APIKey is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		ctxManager: ctxManager,
	}, nil
}

// From starts a query builder for a table in the public schema.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client: c,
		table:  table,
	}
}

// QueryBuilder builds PostgREST queries.
type QueryBuilder struct {
	client  *Client
	schema  string
	table   string
	columns string
	filters url.Values
	orders  []string
	limit   int
	single  bool
}

// Schema selects a non-public schema.
func (q *QueryBuilder) Schema(schema string) *QueryBuilder {
	q.schema = schema
	return q
}

// Select specifies columns to select.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add(column, fmt.Sprintf("eq.%v", value))
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, fmt.Sprintf("%s.%s", column, dir))
	return q
}

// Limit sets the LIMIT.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// Single expects exactly one row; zero rows yield model.ErrNotFound.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

func (q *QueryBuilder) url(withSelect bool) string {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, q.table)

	params := url.Values{}
	if withSelect && q.columns != "" {
		params.Set("select", q.columns)
	}
	for k, vs := range q.filters {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", q.limit))
	}

	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return reqURL
}

func (q *QueryBuilder) prepare(req *http.Request) {
	q.client.setHeaders(req)
	if q.single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	}
	if q.schema != "" {
		if req.Method == http.MethodGet {
			req.Header.Set("Accept-Profile", q.schema)
		} else {
			req.Header.Set("Content-Profile", q.schema)
		}
	}
}

// Execute executes a SELECT query and decodes the result into dst.
func (q *QueryBuilder) Execute(ctx context.Context, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url(true), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	q.prepare(req)

	return q.client.doJSON(req, dst)
}

// ExecuteInsert inserts data and decodes the inserted representation into dst.
func (q *QueryBuilder) ExecuteInsert(ctx context.Context, data any, dst any) error {
	return q.write(ctx, http.MethodPost, data, dst)
}

// ExecuteUpdate updates the filtered rows and decodes the new representation into dst.
func (q *QueryBuilder) ExecuteUpdate(ctx context.Context, data any, dst any) error {
	return q.write(ctx, http.MethodPatch, data, dst)
}

func (q *QueryBuilder) write(ctx context.Context, method string, data any, dst any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.url(false), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	q.prepare(req)
	req.Header.Set("Content-Type", "application/json")
	if dst != nil {
		req.Header.Set("Prefer", "return=representation")
	} else {
		req.Header.Set("Prefer", "return=minimal")
	}

	return q.client.doJSON(req, dst)
}

// RPC calls a procedure in schema and decodes its result into dst. A nil dst discards the result.
func (c *Client) RPC(ctx context.Context, schema, fn string, params any, dst any) error {
	reqURL := fmt.Sprintf("%s/rest/v1/rpc/%s", c.baseURL, fn)

	if params == nil {
		params = struct{}{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	if schema != "" {
		req.Header.Set("Content-Profile", schema)
	}

	return c.doJSON(req, dst)
}

// Response is a raw API response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("supabase error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("supabase error: status %d", e.StatusCode)
}

// Unwrap maps well-known failures to model sentinels.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == "PGRST116", e.StatusCode == http.StatusNotFound:
		return model.ErrNotFound
	case e.StatusCode == http.StatusUnauthorized, e.Code == "PGRST301":
		return model.ErrUnauthenticated
	case e.Code == "invalid_grant", e.Code == "invalid_credentials":
		return model.ErrInvalidCredentials
	default:
		return nil
	}
}

// Err returns the response as an *APIError if it indicates failure.
func (r *Response) Err() error {
	if r.StatusCode < 400 {
		return nil
	}

	var errResp struct {
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	apiErr := &APIError{StatusCode: r.StatusCode}
	if err := json.Unmarshal(r.Body, &errResp); err == nil {
		code, _ := errResp.Code.(string)
		apiErr.Code = firstNonEmpty(errResp.ErrorCode, code, errResp.Error)
		apiErr.Message = firstNonEmpty(errResp.Message, errResp.Msg, errResp.ErrorDescription, errResp.Error)
	}
	return apiErr
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)

	bearer := c.apiKey
	if c.ctxManager != nil {
		if token, ok := c.ctxManager.GetAccessTokenFromContext(req.Context()); ok && token != "" {
			bearer = token
		}
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
	}, nil
}

func (c *Client) doJSON(req *http.Request, dst any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if dst == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// timestamp decodes the timestamp and date formats PostgREST emits.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02",
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("failed to decode timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return errors.Join(fmt.Errorf("unsupported timestamp %q", s), lastErr)
}
