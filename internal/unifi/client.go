package unifi

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tansive/unifictl/internal/common/httpclient"
	"github.com/tansive/unifictl/internal/common/logtrace"
)

// Client is a goroutine-safe authenticated client for one controller.
type Client struct {
	opts      Options
	transport httpclient.Transport
	log       zerolog.Logger
	debug     atomic.Bool
	session   *session
}

// New validates opts, fills unset fields from DefaultOptions and builds a client.
// Without opts.Transport a net/http transport with its own cookie jar is created.
func New(opts Options) (*Client, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	logger := log.With().Str("component", "unifi").Str("controller", opts.BaseURL).Logger()

	transport := opts.Transport
	if transport == nil {
		hc, err := httpclient.NewClient(httpclient.ClientOptions{
			BaseURL:               opts.BaseURL,
			DisableCertValidation: opts.Insecure,
			Timeout:               opts.Timeout,
			Trace:                 opts.DebugNet,
		})
		if err != nil {
			return nil, ErrInvalidOptions.MsgErr("invalid client options: "+err.Error(), err)
		}
		transport = hc
	}

	c := &Client{
		opts:      opts,
		transport: transport,
		log:       logger,
	}
	c.debug.Store(opts.Debug)
	c.session = newSession(c)
	c.logger().Debug().Str("username", opts.Username).Msg("client initialized")
	return c, nil
}

// SetDebug switches debug logging of the session engine on or off for calls that
// start afterwards.
func (c *Client) SetDebug(enabled bool) {
	c.debug.Store(enabled)
}

func (c *Client) logger() *zerolog.Logger {
	l := c.log
	if c.debug.Load() {
		l = c.log.Level(zerolog.DebugLevel)
	}
	return &l
}

// Login authenticates with the given credentials, or the configured ones where empty.
// Concurrent calls share one login exchange. While logged in it returns an ok envelope
// without contacting the controller.
func (c *Client) Login(ctx context.Context, username, password string) (*Envelope, error) {
	return c.session.login(ctx, username, password)
}

// Logout ends the session and returns the controller's response body.
func (c *Client) Logout(ctx context.Context) ([]byte, error) {
	return c.session.logout(ctx)
}

// LoggedIn reports whether the client currently holds a session.
func (c *Client) LoggedIn() bool {
	return c.session.loggedIn()
}

// Request performs req with a valid session and returns the ok envelope. A session
// expiry reported by the controller leads to one new login and one retry; any other
// failure is returned unchanged.
func (c *Client) Request(ctx context.Context, req Request) (*Envelope, error) {
	ctx, traceID := logtrace.EnsureTraceID(ctx)
	logger := c.logger().With().Str("trace_id", traceID).Str("path", req.Path).Logger()

	if _, err := c.session.login(ctx, "", ""); err != nil {
		return nil, err
	}
	gen := c.session.currentGeneration()

	env, err := c.attempt(ctx, req)
	if err == nil {
		return env, nil
	}
	if !IsSessionExpired(err) {
		return nil, err
	}

	logger.Debug().Err(err).Msg("session expired, logging in again")
	c.session.invalidate(gen)
	if _, err := c.session.login(ctx, "", ""); err != nil {
		return nil, err
	}
	gen = c.session.currentGeneration()

	env, err = c.attempt(ctx, req)
	if err != nil {
		if IsSessionExpired(err) {
			logger.Debug().Err(err).Msg("retry rejected after new login")
			// the controller refused the new cookie too; the next call starts over
			c.session.invalidate(gen)
			return nil, &SessionExpiredError{Err: err}
		}
		return nil, err
	}
	return env, nil
}

// Get is Request with method GET and no body.
func (c *Client) Get(ctx context.Context, path string) (*Envelope, error) {
	return c.Request(ctx, Request{Path: path, Method: http.MethodGet})
}

// Post is Request with method POST and body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.Request(ctx, Request{Path: path, Method: http.MethodPost, Body: body})
}

// attempt executes req once and classifies the outcome.
func (c *Client) attempt(ctx context.Context, req Request) (*Envelope, error) {
	resp, err := c.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	env, err := DecodeEnvelope(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: resp.Body, Err: err}
	}
	if !env.OK() {
		return nil, &APIError{StatusCode: resp.StatusCode, Envelope: env, Body: resp.Body}
	}
	return env, nil
}
