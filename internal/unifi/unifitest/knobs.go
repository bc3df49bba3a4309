package unifitest

// HoldLogins makes login requests block until the returned release function is
// called. Release is idempotent.
func (c *Controller) HoldLogins() (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.loginGate = gate
	c.mu.Unlock()

	var released bool
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if released {
			return
		}
		released = true
		c.loginGate = nil
		close(gate)
	}
}

// FailLogins answers every following login with status and body instead of checking
// credentials. An empty body clears the override.
func (c *Controller) FailLogins(status int, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if body == "" {
		c.loginOverride = nil
		return
	}
	c.loginOverride = &cannedResponse{status: status, body: body}
}

// QueueResponse makes the next API request (anything behind the session check) answer
// with status and body. Responses queue up in order.
func (c *Controller) QueueResponse(status int, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = append(c.queued, cannedResponse{status: status, body: body})
}

// ExpireSessions forgets every session, as a controller restart would.
func (c *Controller) ExpireSessions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = map[string]bool{}
}

// Logins returns the number of login exchanges received.
func (c *Controller) Logins() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logins
}

// Logouts returns the number of logout exchanges received.
func (c *Controller) Logouts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logouts
}

// APIRequests returns the number of requests received behind the session check.
func (c *Controller) APIRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiRequests
}

// Sessions returns the number of live sessions.
func (c *Controller) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// LastLogin returns the credentials of the most recent login exchange.
func (c *Controller) LastLogin() (username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLogin.Username, c.lastLogin.Password
}
