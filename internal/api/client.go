// Package api is the REST client for the tally backend. It makes exactly one
// HTTP call per operation and never retries; every failure is an *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
)

// Doer is the part of *http.Client the client needs
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the tally REST API. The bearer token is passed per call.
type Client struct {
	baseURL   string
	http      Doer
	timeout   time.Duration
	userAgent string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the transport, mainly for tests
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithTimeout bounds each request, including reading the body
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		timeout:   constants.DefaultHTTPTimeout,
		userAgent: constants.DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends one request and decodes a 2xx body into out (nil to discard)
func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindParse, Message: "failed to encode request body", Cause: err}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &Error{Kind: KindUnknown, Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debug("API request failed", "method", method, "path", path, "error", err)
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseBytes+1))
	if err != nil {
		return classifyTransport(err)
	}
	logger.Debug("API request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if len(raw) > constants.MaxResponseBytes {
		return &Error{Kind: KindParse, Status: resp.StatusCode, Message: "response body exceeds 1 MiB"}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp, raw)
	}

	if out == nil {
		return nil
	}
	if err := decodeBody(raw, out); err != nil {
		return &Error{Kind: KindParse, Status: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetwork, Message: "request timed out", Cause: err}
	}
	return &Error{Kind: KindNetwork, Cause: err}
}

// decodeBody accepts both bare payloads and {"data": ...} envelopes.
// Unknown fields are ignored.
func decodeBody(raw []byte, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return errors.New("empty response body")
	}
	if trimmed[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &env); err == nil {
			if data, ok := env["data"]; ok {
				trimmed = data
			}
		}
	}
	return json.Unmarshal(trimmed, out)
}

type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Errors  json.RawMessage `json:"errors"`
	Fields  json.RawMessage `json:"fields"`
}

func statusError(resp *http.Response, raw []byte) *Error {
	e := &Error{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = stringOrMessage(body.Error)
		}
		e.Fields = parseFields(body.Errors)
		if e.Fields == nil {
			e.Fields = parseFields(body.Fields)
		}
	} else if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 200 {
		e.Message = text
	}

	if e.Kind == KindRateLimited {
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return e
}

// stringOrMessage reads "error" as either a string or {"message": "..."}
func stringOrMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message
	}
	return ""
}

// parseFields reads {"field": "msg"} or {"field": ["msg", ...]}
func parseFields(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil || len(generic) == 0 {
		return nil
	}
	fields := make(map[string]string, len(generic))
	for k, v := range generic {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			fields[k] = s
			continue
		}
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			fields[k] = strings.Join(list, ", ")
		}
	}
	return fields
}

// parseRetryAfter reads delta-seconds or an HTTP date
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func pathID(prefix, id string) string {
	return fmt.Sprintf("%s/%s", prefix, url.PathEscape(id))
}
