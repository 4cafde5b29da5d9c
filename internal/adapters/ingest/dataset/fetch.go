package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Fetcher opens a dataset by location
type Fetcher interface {
	Fetch(ctx context.Context, src string) (io.ReadCloser, error)
}

// HTTPFetcher downloads dataset exports, e.g. a dataset items URL
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcherWithTimeout creates an HTTPFetcher whose client gives up after d
func NewHTTPFetcherWithTimeout(d time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: d}}
}

// Fetch returns the response body for url
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if cerr := resp.Body.Close(); cerr != nil {
			return nil, fmt.Errorf("dataset: unexpected status %d for %s; error closing body: %v", resp.StatusCode, url, cerr)
		}
		return nil, fmt.Errorf("dataset: unexpected status %d for %s", resp.StatusCode, url)
	}
	return resp.Body, nil
}

// Open resolves src: "-" is stdin, http(s) URLs go through HTTP, anything else is a file path
func Open(ctx context.Context, src string, web Fetcher) (io.ReadCloser, error) {
	switch {
	case src == "-":
		return io.NopCloser(os.Stdin), nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		if web == nil {
			web = NewHTTPFetcherWithTimeout(2 * time.Minute)
		}
		return web.Fetch(ctx, src)
	default:
		return os.Open(src)
	}
}
