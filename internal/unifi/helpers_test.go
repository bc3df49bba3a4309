package unifi

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tansive/unifictl/internal/common/httpclient"
	"github.com/tansive/unifictl/internal/unifi/unifitest"
)

const (
	testUser     = "admin"
	testPassword = "pw"
)

// newTestClient returns a client wired to a fresh fake controller.
func newTestClient(t *testing.T) (*Client, *unifitest.Controller, *httpclient.TestHTTPClient) {
	t.Helper()
	ctrl := unifitest.NewController(testUser, testPassword)
	transport, err := ctrl.NewTransport()
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.BaseURL = unifitest.BaseURL
	opts.Username = testUser
	opts.Password = testPassword
	opts.Transport = transport
	client, err := New(opts)
	require.NoError(t, err)
	return client, ctrl, transport
}

// scriptedTransport answers exchanges from a list of results and records them.
type scriptedTransport struct {
	mu        sync.Mutex
	results   []scriptedResult
	exchanges []httpclient.Exchange
}

type scriptedResult struct {
	status int
	body   string
	err    error
}

func (s *scriptedTransport) Exchange(ctx context.Context, ex *httpclient.Exchange) (*httpclient.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, *ex)
	if len(s.results) == 0 {
		return nil, errors.New("no scripted result left")
	}
	res := s.results[0]
	s.results = s.results[1:]
	if res.err != nil {
		return nil, res.err
	}
	if res.status >= 400 {
		return nil, &httpclient.HTTPError{StatusCode: res.status, Body: []byte(res.body), Message: res.body}
	}
	return &httpclient.Response{StatusCode: res.status, Body: []byte(res.body)}, nil
}

func (s *scriptedTransport) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p []string
	for _, ex := range s.exchanges {
		p = append(p, ex.Path)
	}
	return p
}

func newScriptedClient(t *testing.T, results ...scriptedResult) (*Client, *scriptedTransport) {
	t.Helper()
	st := &scriptedTransport{results: results}
	opts := DefaultOptions()
	opts.Transport = st
	client, err := New(opts)
	require.NoError(t, err)
	return client, st
}

const okBody = `{"meta":{"rc":"ok"},"data":[]}`
