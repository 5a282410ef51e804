package api

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

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/mmcdole/folio/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
	baseRetryDelay = 500 * time.Millisecond
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64 // 0 disables client-side rate limiting
	Burst             int
	HTTPClient        *http.Client
}

// Client talks to the content backend's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultRetries
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		maxRetries: opts.MaxRetries,
		retryDelay: baseRetryDelay,
		logger:     logger,
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// request is one call to the backend.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	token       string
}

// idempotent reports whether a request with method can be sent again without
// changing the outcome. POST creates and PATCH transitions are sent once.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// doRequest performs a request against the backend and returns the body of a
// 2xx response. For idempotent methods 5xx responses and transport failures
// are retried with exponential backoff; other non-2xx responses become
// *domain.APIError.
func (c *Client) doRequest(ctx context.Context, r request) ([]byte, error) {
	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL = reqURL + "?" + r.query.Encode()
	}
	requestID := uuid.NewString()

	maxRetries := c.maxRetries
	if !idempotent(r.method) {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		var body io.Reader
		if r.body != nil {
			body = bytes.NewReader(r.body)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		if r.contentType != "" {
			req.Header.Set("Content-Type", r.contentType)
		}
		if r.token != "" {
			req.Header.Set("Authorization", "Bearer "+r.token)
		}

		c.logger.Debug("api request", "method", r.method, "url", reqURL, "attempt", attempt, "requestID", requestID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = &domain.NetworkError{Op: r.method, URL: reqURL, Err: err}
			c.logger.Warn("api request failed", "error", err, "attempt", attempt, "path", r.path)
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &domain.NetworkError{Op: r.method, URL: reqURL, Err: err}
			continue
		}

		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			lastErr = apiError(resp.StatusCode, data)
			c.logger.Warn("api server error",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", maxRetries,
				"path", r.path,
			)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := apiError(resp.StatusCode, data)
			c.logger.Error("api request error", "error", err, "status", resp.StatusCode, "path", r.path)
			return nil, err
		}

		return data, nil
	}

	c.logger.Error("api request failed", "error", lastErr, "url", reqURL, "attempts", maxRetries+1, "requestID", requestID)
	return nil, lastErr
}

// apiError builds an *domain.APIError from an error response body. The
// backend sends {"message": "...", "code": "..."}; some proxies send
// {"error": "..."} or plain text.
func apiError(status int, body []byte) *domain.APIError {
	e := &domain.APIError{Status: status}
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		e.Message = res.Get("message").String()
		if e.Message == "" {
			e.Message = res.Get("error").String()
		}
		e.Code = res.Get("code").String()
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		e.Message = text
	}
	return e
}

// getJSON decodes a GET response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.doRequest(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// sendJSON encodes in as the request body and decodes the response into out
// when out is non-nil.
func (c *Client) sendJSON(ctx context.Context, method, path string, query url.Values, in any, token string, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = b
	}
	data, err := c.doRequest(ctx, request{
		method:      method,
		path:        path,
		query:       query,
		body:        body,
		contentType: "application/json",
		token:       token,
	})
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
