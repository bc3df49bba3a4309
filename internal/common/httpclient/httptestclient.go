package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// TestHTTPClient is a Transport that serves exchanges from an in-process handler.
// It uses httptest.NewRecorder to capture responses without making network calls and
// keeps cookies between exchanges the way a browser would.
type TestHTTPClient struct {
	baseURL string
	handler http.Handler
	jar     http.CookieJar
	trace   bool

	mu  sync.Mutex
	err error // injected transport failure
}

// NewTestClient creates a test transport that dispatches to handler. baseURL only
// determines request URLs and cookie scope.
func NewTestClient(baseURL string, handler http.Handler) (*TestHTTPClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %v", err)
	}
	return &TestHTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		handler: handler,
		jar:     jar,
	}, nil
}

// SetTrace enables request and response logging.
func (c *TestHTTPClient) SetTrace(enabled bool) {
	c.trace = enabled
}

// FailWith makes every following exchange fail with err and no response, simulating
// an unreachable controller. Passing nil restores normal operation.
func (c *TestHTTPClient) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Exchange serves ex from the handler.
func (c *TestHTTPClient) Exchange(ctx context.Context, ex *Exchange) (*Response, error) {
	c.mu.Lock()
	injected := c.err
	c.mu.Unlock()
	if injected != nil {
		return nil, fmt.Errorf("request failed: %w", injected)
	}

	req, err := newRequest(ctx, c.baseURL, ex)
	if err != nil {
		return nil, err
	}
	// Handlers expect a server-side request: a non-nil body and a peer address.
	if req.Body == nil {
		req.Body = http.NoBody
	}
	req.RemoteAddr = "192.0.2.1:1234"
	req.RequestURI = req.URL.RequestURI()
	for _, cookie := range c.jar.Cookies(req.URL) {
		req.AddCookie(cookie)
	}

	start := time.Now()
	if c.trace {
		traceRequest(ctx, req)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	result := rr.Result()
	c.jar.SetCookies(req.URL, result.Cookies())
	body := rr.Body.Bytes()
	if c.trace {
		traceResponse(ctx, req, rr.Code, len(body), time.Since(start))
	}
	return toResponse(rr.Code, result.Header, body)
}
