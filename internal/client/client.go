// Package client talks to the remote brand studio service: feedback
// storage, similarity grouping and image generation.
package client

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

	"go.uber.org/zap"

	"brandviz.io/studio/internal/domain"
	"brandviz.io/studio/internal/logging"
)

var (
	// ErrTransport wraps failures where no HTTP response was received.
	ErrTransport = errors.New("transport failure")
	// ErrInvalidResponse is returned when a 2xx body does not match the schema.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrGenerationNotFound is returned by GetGeneration on 404.
	ErrGenerationNotFound = errors.New("generation not found")
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Status     string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

type Config struct {
	BaseURL string
	// BypassHeader is sent as "<name>: true" on every request so tunnelling
	// proxies skip their interstitial page.
	BypassHeader string
	// Timeout of zero means no client-side timeout.
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL      string
	bypassHeader string
	httpClient   *http.Client
	logger       *zap.Logger
}

// New validates the base URL and returns a client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL for studio service: %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		bypassHeader: cfg.BypassHeader,
		httpClient:   httpClient,
		logger:       logging.OrNop(logger).Named("client"),
	}, nil
}

// HTTPClient exposes the underlying transport for helpers such as the downloader.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do performs one JSON request and decodes a 2xx body into out (which may be nil).
func (c *Client) do(ctx context.Context, operation, method, target string, body, out any) (err error) {
	start := time.Now()
	defer func() { observe(operation, start, err) }()

	log := c.logger.With(zap.String("operation", operation), zap.String("url", target))

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("internal error marshaling %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("internal error creating %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.bypassHeader != "" {
		req.Header.Set(c.bypassHeader, "true")
	}

	log.Debug("Sending request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("Request failed", zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrTransport, operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %w", ErrTransport, operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Detail:     extractDetail(data),
		}
		log.Warn("Received non-2xx status", zap.Int("status", resp.StatusCode), zap.String("detail", apiErr.Detail))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Error("Failed to decode response", zap.Error(err))
		return fmt.Errorf("%w: decoding %s response: %w", ErrInvalidResponse, operation, err)
	}
	if v, ok := out.(validator); ok {
		if err := v.validate(); err != nil {
			log.Error("Response failed validation", zap.Error(err))
			return fmt.Errorf("%w: %s: %w", ErrInvalidResponse, operation, err)
		}
	}
	return nil
}

// validator is implemented by responses that normalise and check
// themselves after decoding. Failures count as invalid responses.
type validator interface {
	validate() error
}

// logUnparsed notes created_at values that no layout matched.
func (c *Client) logUnparsed(operation string, values ...domain.Timestamp) {
	for _, ts := range values {
		if ts.Unparsed() {
			c.logger.Debug("Ignoring unrecognised timestamp", zap.String("operation", operation), zap.String("created_at", ts.Raw))
		}
	}
}

// extractDetail reads the "detail" field of an error body. FastAPI-style
// validation errors carry a structured detail, which is returned compacted.
func extractDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	if bytes.Equal(envelope.Detail, []byte("null")) {
		return ""
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, envelope.Detail); err != nil {
		return string(envelope.Detail)
	}
	return compact.String()
}
