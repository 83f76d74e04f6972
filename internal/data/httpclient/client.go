// Package httpclient is the JSON-over-HTTP transport shared by the catalog
// and raster clients.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

const (
	DefaultTimeout = 30 * time.Second
	UserAgent      = "go-eo-explorer/1.0"

	// maxErrorBody bounds how much of a failed response is quoted in errors.
	maxErrorBody = 512
)

// Client performs JSON requests. Transport failures and non-2xx answers wrap
// model.ErrNetwork; context cancellation wraps model.ErrCancelled.
type Client interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Post(ctx context.Context, url string, body []byte) ([]byte, error)
}

// DefaultClient is a Client over net/http.
type DefaultClient struct {
	httpClient *http.Client
}

// NewDefaultClient returns a client with the given timeout; zero uses
// DefaultTimeout.
func NewDefaultClient(timeout time.Duration) *DefaultClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DefaultClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

func (c *DefaultClient) Post(ctx context.Context, url string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, url, body)
}

func (c *DefaultClient) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	util.LogDebugf("HTTP %s %s", method, url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", model.ErrCancelled, method, url, ctx.Err())
		}
		util.LogDebugf("HTTP %s %s failed: %v", method, url, err)
		return nil, fmt.Errorf("%w: %s %s: %w", model.ErrNetwork, method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", model.ErrCancelled, method, url, ctx.Err())
		}
		return nil, fmt.Errorf("%w: failed to read response body: %w", model.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		util.LogDebugf("HTTP %s %s answered %d", method, url, resp.StatusCode)
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s %s: %s", model.ErrNetwork, resp.StatusCode, method, url, bytes.TrimSpace(data))
	}

	return data, nil
}
