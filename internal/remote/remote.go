// Package remote fetches store files from a remote base location. The
// core treats the remote as a plain blob host: a manifest plus files at
// the same relative paths a local store directory uses.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrFetch reports a transport or status failure for one fetch target.
// A failed fetch is scoped to its identifier and can be retried; it
// never invalidates anything already cached.
var ErrFetch = errors.New("remote: fetch failed")

// ErrNotExists reports that the remote definitively has no file at the
// requested path (HTTP 404). It wraps ErrFetch; callers that can treat
// a missing file as benign match this, everything else stays fatal.
var ErrNotExists = fmt.Errorf("%w: not found", ErrFetch)

// Fetcher retrieves the file at a relative path below some base
// location.
type Fetcher interface {
	Fetch(ctx context.Context, relPath string) ([]byte, error)
}

// HTTPFetcher fetches over HTTP(S) from a base URL.
type HTTPFetcher struct {
	base   string
	client *http.Client
}

// NewHTTPFetcher builds a fetcher for baseURL. A nil client gets a
// default with a conservative timeout.
func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPFetcher{base: strings.TrimRight(baseURL, "/"), client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, relPath string) ([]byte, error) {
	url := f.base + "/" + strings.TrimLeft(relPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotExists, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
	}
	return body, nil
}

// Coalescer collapses concurrent fetches of the same relative path into
// a single call on the wrapped fetcher; every waiter receives the same
// bytes or the same error.
type Coalescer struct {
	fetcher Fetcher
	group   singleflight.Group
}

// NewCoalescer wraps fetcher.
func NewCoalescer(fetcher Fetcher) *Coalescer {
	return &Coalescer{fetcher: fetcher}
}

func (c *Coalescer) Fetch(ctx context.Context, relPath string) ([]byte, error) {
	v, err, _ := c.group.Do(relPath, func() (interface{}, error) {
		return c.fetcher.Fetch(ctx, relPath)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
