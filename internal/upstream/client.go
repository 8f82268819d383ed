// Package upstream implements the pooled HTTP client that speaks to the
// legacy SCIM service (§4.9): header forwarding with hop-by-hop stripping,
// a bounded per-request timeout, and a single retry on GET after a
// transport error such as a connection reset.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// hopByHop lists the headers §4.9 forbids forwarding verbatim.
var hopByHop = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Response is the upstream call's result: the raw status, body, and header
// subset the coordinator needs to pass back to the client unchanged.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client wraps a pooled *http.Client pointed at a fixed upstream base URL.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// New returns a Client targeting baseURL, bounding every request to
// timeout. The underlying http.Client reuses one Transport across calls so
// connections are pooled process-wide, per §5 "Shared-resource policy".
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithPoolSize(baseURL, timeout, 0)
}

// NewWithPoolSize is New but also bounds the number of pooled connections
// per host (PROXY_WORKERS, §6), so the upstream client's concurrency can be
// sized to the proxy's own worker count.
func NewWithPoolSize(baseURL string, timeout time.Duration, maxConnsPerHost int) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if maxConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = maxConnsPerHost
		transport.MaxConnsPerHost = maxConnsPerHost
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    baseURL,
		timeout:    timeout,
	}
}

// Do issues method against path (relative to baseURL), forwarding header
// (minus hop-by-hop entries) and body. GET requests are retried once after
// any transport error, a connection reset included (§7); a non-2xx response
// is returned, not retried. No other method retries.
func (c *Client) Do(ctx context.Context, method, path string, header http.Header, body []byte) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if method != http.MethodGet {
		return c.doOnce(ctx, method, path, header, body)
	}

	var result Response
	operation := func() error {
		resp, err := c.doOnce(ctx, method, path, header, body)
		if err != nil {
			return err
		}
		result = resp
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return Response{}, err
	}
	return result, nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, header http.Header, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("upstream: build request: %w", err)
	}
	for k, values := range header {
		if hopByHop[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("upstream: read response: %w", err)
	}

	return Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Header:     resp.Header,
	}, nil
}
