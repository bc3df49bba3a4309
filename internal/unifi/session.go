package unifi

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

const loginFlight = "login"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// session is the login state machine of one client: logged out, logging in (a flight
// is outstanding) or logged in. authenticated and generation change together under mu.
type session struct {
	client   *Client
	username string
	password string

	mu            sync.Mutex
	authenticated bool
	generation    uint64 // bumped on every successful login

	flight singleflight.Group
}

func newSession(c *Client) *session {
	return &session{
		client:   c,
		username: c.opts.Username,
		password: c.opts.Password,
	}
}

func (s *session) loggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *session) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *session) setLoggedOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
}

// invalidate drops the session only if it is still the one established at generation
// gen, so a late expiry report cannot tear down a newer session.
func (s *session) invalidate(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.authenticated = false
	return true
}

// login returns immediately while logged in. Otherwise it joins the outstanding login
// flight, starting one if there is none, and returns that flight's outcome. A caller
// whose ctx ends stops waiting; the flight itself runs on for the remaining waiters.
func (s *session) login(ctx context.Context, username, password string) (*Envelope, error) {
	if s.loggedIn() {
		return okEnvelope(), nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(loginFlight, func() (any, error) {
		return s.authenticate(flightCtx, username, password)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.client.logger().Debug().Msg("joined outstanding login")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Envelope), nil
	case <-ctx.Done():
		return nil, &AuthenticationError{Cause: ctx.Err()}
	}
}

// authenticate performs the login exchange. It runs at most once at a time.
func (s *session) authenticate(ctx context.Context, username, password string) (*Envelope, error) {
	// A flight that finished just before this one started may already have logged in.
	if s.loggedIn() {
		return okEnvelope(), nil
	}
	if username == "" {
		username = s.username
	}
	if password == "" {
		password = s.password
	}

	s.client.logger().Debug().Str("username", username).Msg("logging in")
	resp, err := s.client.Execute(ctx, Request{
		Path: loginPath,
		Body: loginRequest{Username: username, Password: password},
	})
	if err != nil {
		s.setLoggedOut()
		authErr := &AuthenticationError{Cause: err}
		var serverErr *ServerError
		if errors.As(err, &serverErr) {
			authErr.Envelope = serverErr.Envelope
		}
		s.client.logger().Debug().Err(err).Msg("login failed")
		return nil, authErr
	}

	env, err := DecodeEnvelope(resp.Body)
	if err != nil || !env.OK() {
		s.setLoggedOut()
		s.client.logger().Debug().Bytes("body", resp.Body).Msg("login rejected")
		return nil, &AuthenticationError{Envelope: env}
	}

	s.mu.Lock()
	s.authenticated = true
	s.generation++
	s.mu.Unlock()
	s.client.logger().Debug().Str("username", username).Msg("logged in")
	return env, nil
}

// logout ends the session on the controller. Local state is cleared only when the
// controller acknowledged the logout.
func (s *session) logout(ctx context.Context) ([]byte, error) {
	resp, err := s.client.Execute(ctx, Request{Path: logoutPath})
	if err != nil {
		return nil, err
	}
	s.setLoggedOut()
	s.client.logger().Debug().Msg("logged out")
	return resp.Body, nil
}
