// Package httpclient provides the HTTP transport used to talk to a UniFi controller.
// It resolves paths against a base address, keeps the controller's session cookie in a
// cookie jar, optionally skips certificate validation for self-signed controllers, and
// reports error statuses separately from transport failures.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/unifictl/internal/common/logtrace"
	"github.com/tidwall/gjson"
)

// Exchange describes one HTTP exchange.
type Exchange struct {
	Method      string            // HTTP method (GET, POST, PUT, DELETE)
	Path        string            // API endpoint path
	BaseURL     string            // Optional override of the client's base address
	Header      map[string]string // Headers sent verbatim
	QueryParams map[string]string // Optional query parameters
	Body        []byte            // Optional request body
}

// Response is a completed exchange with a status below 400.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HTTPError represents an error response from the server with HTTP status code and body.
type HTTPError struct {
	StatusCode int         // HTTP status code of the error
	Header     http.Header // Response headers
	Body       []byte      // Raw response body
	Message    string      // Controller error code when present, otherwise a summary
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	return e.Message
}

// ClientOptions contains options for configuring the HTTP client.
type ClientOptions struct {
	BaseURL               string        // Base address, e.g. https://127.0.0.1:8443
	DisableCertValidation bool          // If true, skips SSL certificate validation
	Timeout               time.Duration // Per exchange; zero means no timeout
	Trace                 bool          // Log every request and response at debug level
}

// HTTPClient is a Transport backed by net/http.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	trace      bool
}

// NewClient creates an HTTP transport with its own cookie jar.
func NewClient(opts ClientOptions) (*HTTPClient, error) {
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %v", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %v", err)
	}
	httpClient := &http.Client{
		Jar:     jar,
		Timeout: opts.Timeout,
	}
	if opts.DisableCertValidation {
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		trace:      opts.Trace,
	}, nil
}

// Exchange performs ex and returns the response. Statuses of 400 and above are
// returned as *HTTPError.
func (c *HTTPClient) Exchange(ctx context.Context, ex *Exchange) (*Response, error) {
	req, err := newRequest(ctx, c.baseURL, ex)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if c.trace {
		traceRequest(ctx, req)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if c.trace {
		traceResponse(ctx, req, resp.StatusCode, len(body), time.Since(start))
	}

	return toResponse(resp.StatusCode, resp.Header, body)
}

// ResolveURL joins ex.Path onto the effective base address and applies query parameters.
func ResolveURL(baseURL string, ex *Exchange) (*url.URL, error) {
	if ex.BaseURL != "" {
		baseURL = ex.BaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Path = path.Join(u.Path, ex.Path)

	q := u.Query()
	for k, v := range ex.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u, nil
}

func newRequest(ctx context.Context, baseURL string, ex *Exchange) (*http.Request, error) {
	u, err := ResolveURL(baseURL, ex)
	if err != nil {
		return nil, err
	}
	method := ex.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if ex.Body != nil {
		body = bytes.NewReader(ex.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	for k, v := range ex.Header {
		req.Header.Set(k, v)
	}
	return req, nil
}

func toResponse(status int, header http.Header, body []byte) (*Response, error) {
	if status >= 400 {
		return nil, &HTTPError{
			StatusCode: status,
			Header:     header,
			Body:       body,
			Message:    errorMessage(status, body),
		}
	}
	return &Response{
		StatusCode: status,
		Header:     header,
		Body:       body,
	}, nil
}

// errorMessage prefers the controller's meta.msg error code over the raw body.
func errorMessage(status int, body []byte) string {
	if msg := gjson.GetBytes(body, "meta.msg"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	if len(body) == 0 {
		return fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	return fmt.Sprintf("%d %s: %s", status, http.StatusText(status), truncate(string(body), 256))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}

func traceRequest(ctx context.Context, req *http.Request) {
	log.Debug().
		Str("trace_id", logtrace.TraceIDFromContext(ctx)).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("starting request")
}

func traceResponse(ctx context.Context, req *http.Request, status, size int, elapsed time.Duration) {
	log.Debug().
		Str("trace_id", logtrace.TraceIDFromContext(ctx)).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", status).
		Int("bytes", size).
		Str("duration", fmt.Sprintf("%dms", elapsed.Milliseconds())).
		Msg("response")
}
