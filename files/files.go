// Package files downloads recordings and snapshots over HTTP using the
// download URLs returned by the RPC API. The RPC channel carries only
// metadata; file bytes travel over a plain HTTP GET with the same bearer
// credential.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/lensbridge/camlink/logx"
	"github.com/lensbridge/camlink/types"
)

var (
	// ErrUnauthorized indicates the server rejected the bearer credential.
	ErrUnauthorized = errors.New("download unauthorized")

	// ErrNotFound indicates the requested file no longer exists.
	ErrNotFound = errors.New("file not found")
)

// TokenSource supplies the bearer token for download requests. It returns
// false when no credential is available, in which case the request is sent
// without an Authorization header.
type TokenSource func() (string, bool)

// Client fetches files from the camera service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource TokenSource
	logger      types.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenSource sets the bearer token supplier.
func WithTokenSource(source TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = source
	}
}

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a download client. Relative download URLs are resolved
// against baseURL, which should be the http(s) origin of the service.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logx.NewNilLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch opens a download stream. The caller must close the returned body.
// The size is -1 when the server does not announce a content length.
func (c *Client) Fetch(ctx context.Context, downloadURL string) (io.ReadCloser, int64, error) {
	target, err := c.resolve(downloadURL)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building download request: %w", err)
	}
	if c.tokenSource != nil {
		if token, ok := c.tokenSource(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("downloading %s: %w", target, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, 0, fmt.Errorf("downloading %s: %w", target, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, 0, fmt.Errorf("downloading %s: %w", target, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, 0, fmt.Errorf("downloading %s: unexpected status %s", target, resp.Status)
	}

	c.logger.Debug("download started: %s (%d bytes)", target, resp.ContentLength)
	return resp.Body, resp.ContentLength, nil
}

// Download fetches an entire file into memory. Intended for snapshots;
// use SaveTo for recordings, which may be large.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	body, _, err := c.Fetch(ctx, downloadURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// SaveTo streams a file to the local path, creating parent directories as
// needed. It returns the number of bytes written. The destination is
// removed again when the transfer fails partway.
func (c *Client) SaveTo(ctx context.Context, downloadURL, path string) (int64, error) {
	body, _, err := c.Fetch(ctx, downloadURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}

	written, err := io.Copy(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return written, fmt.Errorf("writing %s: %w", path, err)
	}

	c.logger.Info("saved %s (%d bytes)", path, written)
	return written, nil
}

// resolve joins a possibly relative download URL with the base URL.
func (c *Client) resolve(downloadURL string) (string, error) {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return "", fmt.Errorf("invalid download URL %q: %w", downloadURL, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("relative download URL %q with no base URL", downloadURL)
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}
	return base.ResolveReference(u).String(), nil
}
