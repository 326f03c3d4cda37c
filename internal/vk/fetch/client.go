// Package fetch acquires wall posts from the source platform without an
// API credential.
//
// Four extraction strategies are tried in priority order: the public
// wall-listing API, heuristic HTML scraping, the RSS feed, and full HTML
// structural parsing. Each strategy is independently unreliable; the
// cascade returns the first non-empty result set.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrHTTPStatusNotOK indicates an HTTP response with a non-200 status code.
var ErrHTTPStatusNotOK = errors.New("HTTP status not OK")

const (
	defaultFetchTimeout = 30 * time.Second
	limiterBurst        = 2
	maxBodySizeBytes    = 5 * 1024 * 1024
	maxRedirects        = 5

	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	mobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1"
)

// ErrTooManyRedirects indicates too many HTTP redirects.
var ErrTooManyRedirects = errors.New("too many redirects")

// Client is a rate-limited HTTP client shared by all extraction
// strategies. The limiter is a hard per-process cap on requests to the
// source platform; it is an unconditional delay, not adaptive backoff.
type Client struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Client with the given requests-per-second budget.
func NewClient(rps float64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	return &Client{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}

				return nil
			},
		},
		limiter: rate.NewLimiter(rate.Limit(rps), limiterBurst),
	}
}

// Get fetches rawURL with the given headers, honoring the rate limit.
// The response body is capped at 5MB.
func (c *Client) Get(ctx context.Context, rawURL string, headers http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatusNotOK, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}

// desktopHeaders mimics a desktop browser; the platform serves reduced
// markup (or a bot challenge) to unadorned clients.
func desktopHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", desktopUserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Referer", "https://vk.com/")

	return h
}

func mobileHeaders() http.Header {
	h := desktopHeaders()
	h.Set("User-Agent", mobileUserAgent)

	return h
}

func feedHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", desktopUserAgent)
	h.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")

	return h
}

func jsonHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", desktopUserAgent)
	h.Set("Accept", "application/json")

	return h
}
