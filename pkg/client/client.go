// Package client provides an HTTP client for the FileSurf server with retry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/filesurf/pkg/models"
	"github.com/fruitsalade/filesurf/pkg/protocol"
	"github.com/fruitsalade/filesurf/pkg/retry"
	"github.com/fruitsalade/filesurf/pkg/tree"
)

// Client talks to the index and content endpoints.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config
	log         *zap.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config
	Logger      *zap.Logger
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
		log:         cfg.Logger,
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status    int
	Kind      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the server.
func IsConflict(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusConflict
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "GET", "/health", nil, nil)
}

// Tree fetches the nested tree.
func (c *Client) Tree(ctx context.Context) (*protocol.TreeResponse, error) {
	var resp protocol.TreeResponse
	if err := c.do(ctx, "GET", "/api/v1/tree", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Index fetches the flat index in insertion order.
func (c *Client) Index(ctx context.Context) (*protocol.IndexResponse, error) {
	var resp protocol.IndexResponse
	if err := c.do(ctx, "GET", "/api/v1/index", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Content fetches a file's content.
func (c *Client) Content(ctx context.Context, path string) (*protocol.ContentResponse, error) {
	var resp protocol.ContentResponse
	if err := c.do(ctx, "GET", "/api/v1/content/"+escapePath(path), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Update replaces a file's content.
func (c *Client) Update(ctx context.Context, path, content string) (*protocol.MutationResponse, error) {
	var resp protocol.MutationResponse
	err := c.do(ctx, "PUT", "/api/v1/content/"+escapePath(path), protocol.UpdateRequest{Content: content}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Add creates node under parent.
func (c *Client) Add(ctx context.Context, parent string, node *models.FileNode) (*protocol.MutationResponse, error) {
	var resp protocol.MutationResponse
	if err := c.do(ctx, "POST", "/api/v1/tree/"+escapePath(parent), node, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a file or folder.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, "DELETE", "/api/v1/tree/"+escapePath(path), nil, nil)
}

// escapePath escapes each segment of an index path for use in a URL.
func escapePath(path string) string {
	segs := strings.Split(path, tree.Separator)
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, tree.Separator)
}

// do sends a JSON request, retrying transport errors and 5xx responses.
// Requests are idempotent except Add; 409 on a retried Add is returned as is.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	return retry.Do(ctx, c.retryConfig, func() error {
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
			return retry.Retryable(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode}
			var errResp protocol.ErrorResponse
			if json.NewDecoder(resp.Body).Decode(&errResp) == nil {
				apiErr.Kind = errResp.Kind
				apiErr.Message = errResp.Error
				apiErr.RequestID = errResp.RequestID
			}
			if resp.StatusCode >= 500 {
				return retry.Retryable(apiErr)
			}
			return apiErr
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}
