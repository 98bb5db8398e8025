// Package source fetches the remote domain list.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	maxBodySize    = 10 << 20
	previewSize    = 200
	defaultTimeout = 10 * time.Second
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrInvalidJSON      = errors.New("response is not valid JSON")
	ErrUnexpectedShape  = errors.New("response has an unexpected shape")
)

// Fetcher returns the current remote domain list.
type Fetcher interface {
	Fetch(ctx context.Context) ([]string, error)
}

// Options configures a Client.
type Options struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// ListKey names the object field holding the list when the body is not a bare array.
	ListKey string
}

// Client fetches the domain list over HTTP.
type Client struct {
	opts   Options
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a Client for the given options.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ListKey == "" {
		opts.ListKey = "domains"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		opts:   opts,
		http:   &http.Client{Timeout: opts.Timeout},
		logger: logger.Named("source"),
	}
}

// Fetch implements the Fetcher interface.
func (c *Client) Fetch(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	domains, err := Decode(body, c.opts.ListKey)
	if errors.Is(err, ErrInvalidJSON) {
		c.logger.Warn("response preview", zap.ByteString("body", preview(body)))
	}
	return domains, err
}

// Decode accepts either a JSON array of strings or an object whose listKey
// field is such an array.
func Decode(body []byte, listKey string) ([]string, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after value", ErrInvalidJSON)
	}

	switch v := raw.(type) {
	case []any:
		return stringList(v)
	case map[string]any:
		list, ok := v[listKey].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: object has no %q list", ErrUnexpectedShape, listKey)
		}
		return stringList(list)
	default:
		return nil, fmt.Errorf("%w: top-level %T", ErrUnexpectedShape, raw)
	}
}

func stringList(items []any) ([]string, error) {
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %T, not a string", ErrUnexpectedShape, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}

func preview(body []byte) []byte {
	if len(body) > previewSize {
		return body[:previewSize]
	}
	return body
}
