// Package client provides an HTTP implementation of the doc.Transport and
// doc.SchemaSource contracts against a resource-style JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	doc "github.com/goliatone/go-document"
)

// TokenProvider supplies a bearer token per request. Optional.
type TokenProvider func(ctx context.Context) (string, error)

// Options configures the HTTP client.
type Options struct {
	BaseURL       string
	HTTPClient    *http.Client
	TokenProvider TokenProvider
	UserAgent     string
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
}

// Client talks to a resource-style document API. It retries transient
// failures (429 and 5xx) with capped exponential backoff and honors
// Retry-After.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokenProvider TokenProvider
	userAgent     string
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
}

// New constructs a Client, applying defaults for any zero-valued option.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Client{
		baseURL:       baseURL,
		httpClient:    httpClient,
		tokenProvider: opts.TokenProvider,
		userAgent:     strings.TrimSpace(opts.UserAgent),
		maxRetries:    maxRetries,
		baseDelay:     baseDelay,
		maxDelay:      maxDelay,
	}
}

var _ doc.Transport = (*Client)(nil)
var _ doc.SchemaSource = (*Client)(nil)

// Fetch retrieves a document by name.
func (c *Client) Fetch(ctx context.Context, doctype, name string) (doc.Document, error) {
	var out doc.Document
	err := c.do(ctx, http.MethodGet, c.resourcePath(doctype, name), nil, &out)
	return out, err
}

// Create persists a new document. The server assigns the name.
func (c *Client) Create(ctx context.Context, doctype string, document doc.Document) (doc.Document, error) {
	var out doc.Document
	err := c.do(ctx, http.MethodPost, c.resourcePath(doctype, ""), docEnvelope{Doc: document}, &out)
	return out, err
}

// Update persists changes to an existing document.
func (c *Client) Update(ctx context.Context, doctype, name string, document doc.Document) (doc.Document, error) {
	var out doc.Document
	err := c.do(ctx, http.MethodPut, c.resourcePath(doctype, name), docEnvelope{Doc: document}, &out)
	return out, err
}

// Delete removes a document by name.
func (c *Client) Delete(ctx context.Context, doctype, name string) error {
	return c.do(ctx, http.MethodDelete, c.resourcePath(doctype, name), nil, nil)
}

// Submit finalizes a draft, returning the server copy with docstatus 1.
func (c *Client) Submit(ctx context.Context, doctype, name string) (doc.Document, error) {
	var out doc.Document
	err := c.do(ctx, http.MethodPost, c.resourcePath(doctype, name)+"/submit", nil, &out)
	return out, err
}

// Cancel revokes a submitted document, returning the server copy with
// docstatus 2.
func (c *Client) Cancel(ctx context.Context, doctype, name string) (doc.Document, error) {
	var out doc.Document
	err := c.do(ctx, http.MethodPost, c.resourcePath(doctype, name)+"/cancel", nil, &out)
	return out, err
}

// Schema fetches the field catalog for a document type.
func (c *Client) Schema(ctx context.Context, doctype string) (*doc.Schema, error) {
	var out doc.Schema
	if err := c.do(ctx, http.MethodGet, c.resourcePath("DocType", doctype), nil, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Doctype) == "" {
		out.Doctype = doctype
	}
	return &out, nil
}

type docEnvelope struct {
	Doc doc.Document `json:"doc"`
}

type errorEnvelope struct {
	Error struct {
		Message          string            `json:"message"`
		ValidationErrors map[string]string `json:"validation_errors"`
	} `json:"error"`
}

func (c *Client) resourcePath(doctype, name string) string {
	path := "/api/resource/" + url.PathEscape(Slug(doctype))
	if name != "" {
		path += "/" + url.PathEscape(name)
	}
	return path
}

// Slug case-normalizes a document type for use as a path segment.
func Slug(doctype string) string {
	slug := strings.ToLower(strings.TrimSpace(doctype))
	return strings.ReplaceAll(slug, " ", "_")
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if c.baseURL == "" {
		return fmt.Errorf("client base URL is required")
	}

	var bodyBytes []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		bodyBytes = encoded
	}

	token := ""
	if c.tokenProvider != nil {
		provided, err := c.tokenProvider(ctx)
		if err != nil {
			return err
		}
		token = strings.TrimSpace(provided)
	}

	endpoint := c.baseURL + path
	for attempt := 0; ; attempt++ {
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return decodeData(respBody, out)
		}

		if retryable(resp.StatusCode) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		return requestError(resp.StatusCode, respBody)
	}
}

func decodeData(body []byte, out any) error {
	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func requestError(status int, body []byte) error {
	reqErr := &doc.RequestError{StatusCode: status}
	var envelope errorEnvelope
	if json.Unmarshal(body, &envelope) == nil {
		reqErr.Message = strings.TrimSpace(envelope.Error.Message)
		if len(envelope.Error.ValidationErrors) > 0 {
			reqErr.Fields = envelope.Error.ValidationErrors
		}
	}
	if reqErr.Message == "" {
		reqErr.Message = strings.TrimSpace(string(body))
	}
	return reqErr
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
