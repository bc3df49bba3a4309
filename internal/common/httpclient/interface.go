package httpclient

import "context"

// Transport performs a single HTTP exchange with the controller.
//
// A response with a status code of 400 or above is reported as *HTTPError, which
// carries the status and body. Any other error means no response was obtained.
// Callers rely on that distinction to tell an expired session from a dead network.
type Transport interface {
	Exchange(ctx context.Context, ex *Exchange) (*Response, error)
}

// Verify that the HTTPClient and TestHTTPClient implement the Transport interface.
var _ Transport = &HTTPClient{}
var _ Transport = &TestHTTPClient{}
