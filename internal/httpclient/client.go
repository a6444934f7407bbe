// Package httpclient wraps net/http with per-call proxy binding, utls
// fingerprinting, and centralized retry/backoff, grounded on the teacher's
// internal/transport package and the original client's execute_with_retry.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/relaysix/lazabot/internal/proxypool"
	"github.com/relaysix/lazabot/internal/retry"
)

// Response is the normalized result of a Request call: the body is read to
// completion and buffered so callers never have to manage a live connection.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the response body as a string.
func (r *Response) Text() string { return string(r.Body) }

// Client issues HTTP requests with a fixed user agent and retry policy. Each
// call may bind to a distinct proxypool.Endpoint; a nil endpoint dials directly.
type Client struct {
	jar            http.CookieJar
	userAgent      string
	policy         retry.Policy
	requestTimeout time.Duration
	connectTimeout time.Duration
}

const (
	defaultRequestTimeout = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// New builds a Client with its own cookie jar.
func New(userAgent string, policy retry.Policy) *Client {
	jar, _ := cookiejar.New(nil)
	return NewWithJar(userAgent, jar, policy)
}

// NewWithJar builds a Client around a pre-built cookie jar, so callers can
// share cookie state across multiple Clients (e.g. one per session).
func NewWithJar(userAgent string, jar http.CookieJar, policy retry.Policy) *Client {
	return &Client{
		jar:            jar,
		userAgent:      userAgent,
		policy:         policy,
		requestTimeout: defaultRequestTimeout,
		connectTimeout: defaultConnectTimeout,
	}
}

// SetTimeouts overrides the per-request and per-connect timeouts.
func (c *Client) SetTimeouts(request, connect time.Duration) {
	if request > 0 {
		c.requestTimeout = request
	}
	if connect > 0 {
		c.connectTimeout = connect
	}
}

// Jar exposes the underlying cookie jar, e.g. to persist/restore session
// cookies across process restarts.
func (c *Client) Jar() http.CookieJar { return c.jar }

// Request issues method against targetURL, retrying on transport-level
// failure per the client's retry.Policy. Retries never trigger on a
// successful round trip regardless of status code — callers inspect
// Response.StatusCode themselves.
func (c *Client) Request(ctx context.Context, method, targetURL string, headers http.Header, body []byte, proxy *proxypool.Endpoint) (*Response, error) {
	httpClient := &http.Client{
		Transport: buildTransport(proxy, int64(c.connectTimeout), int64(c.requestTimeout)),
		Jar:       c.jar,
		Timeout:   c.requestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("httpclient: stopped after 10 redirects")
			}
			return nil
		},
	}

	var result *Response
	err := retry.Do(ctx, c.policy, func(attempt int) error {
		req, err := http.NewRequestWithContext(ctx, method, targetURL, bodyReader(body))
		if err != nil {
			return fmt.Errorf("httpclient: build request: %w", err)
		}
		applyHeaders(req, headers)
		if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("httpclient: read body: %w", err)
		}

		result = &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       data,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func bodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}

func applyHeaders(req *http.Request, headers http.Header) {
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
}
