// Package fetch abstracts retrieval of remote repository content.
//
// The cache and the transaction engine consume the Fetcher interface;
// HTTP is the default implementation. Signature verification, proxies or
// alternative transports plug in here without touching the core.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Fetcher retrieves the content behind a URL.
type Fetcher interface {
	// Fetch opens the resource for reading. The caller must close the
	// returned reader. Cancelling the context aborts the transfer.
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher fetches over HTTP(S) with sane connection timeouts.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher backed by a dedicated HTTP client.
// No overall request timeout is set; large archive downloads are bounded
// by the caller's context instead.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   15 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   15 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				MaxIdleConns:          16,
				IdleConnTimeout:       60 * time.Second,
			},
		},
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	return resp.Body, nil
}
