// Package unifitest provides an in-process fake UniFi controller for tests. It speaks the
// controller's envelope format, issues session cookies on login, rejects API calls
// without a session with api.err.LoginRequired and counts every exchange so tests can
// assert how many logins and requests a client made.
package unifitest

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/tansive/unifictl/internal/common/httpclient"
	"github.com/tansive/unifictl/internal/common/httpx"
	"github.com/tansive/unifictl/internal/common/middleware"
	"github.com/tansive/unifictl/internal/common/uuid"
)

const (
	// SessionCookie is the cookie carrying the controller session.
	SessionCookie = "unifises"
	// BaseURL is the address used by transports returned from NewTransport.
	BaseURL = "https://unifi.test:8443"
	// ServerVersion is reported by /status.
	ServerVersion = "8.0.26"
)

// Station is a client device returned by stat/sta.
type Station struct {
	MAC      string `json:"mac"`
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
}

type cannedResponse struct {
	status int
	body   string
}

// Controller is a fake controller. The zero value is not usable; call NewController.
type Controller struct {
	Router *chi.Mux

	username string
	password string

	mu            sync.Mutex
	sessions      map[string]bool
	stations      []Station
	loginGate     chan struct{}
	loginOverride *cannedResponse
	queued        []cannedResponse
	logins        int
	logouts       int
	apiRequests   int
	lastLogin     loginBody
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewController returns a controller accepting the given credentials.
func NewController(username, password string) *Controller {
	c := &Controller{
		username: username,
		password: password,
		sessions: map[string]bool{},
		stations: []Station{
			{MAC: "00:11:22:33:44:55", Hostname: "laptop", IP: "192.168.1.20"},
			{MAC: "66:77:88:99:aa:bb", Hostname: "phone", IP: "192.168.1.21"},
		},
	}
	c.Router = chi.NewRouter()
	c.mountHandlers()
	return c
}

// NewTransport returns an in-process transport bound to the controller.
func (c *Controller) NewTransport() (*httpclient.TestHTTPClient, error) {
	return httpclient.NewTestClient(BaseURL, c.Router)
}

func (c *Controller) mountHandlers() {
	c.Router.Use(middleware.RequestLogger)
	c.Router.Use(middleware.Recoverer)
	c.Router.Post("/api/login", c.handleLogin)
	c.Router.Get("/logout", c.handleLogout)
	c.Router.Post("/logout", c.handleLogout)
	c.Router.Get("/status", httpx.WrapHttpRsp(c.getStatus))
	c.Router.Group(func(r chi.Router) {
		r.Use(c.requireSession)
		r.Get("/api/self", httpx.WrapHttpRsp(c.getSelf))
		r.Get("/api/s/{site}/stat/sta", httpx.WrapHttpRsp(c.getStations))
		r.Post("/api/s/{site}/cmd/{manager}", httpx.WrapHttpRsp(c.postCommand))
	})
	c.Router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrNotFound().Send(w)
	})
}

func (c *Controller) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	err := httpx.GetRequestData(r, &body)

	c.mu.Lock()
	c.logins++
	c.lastLogin = body
	gate := c.loginGate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if err != nil {
		httpx.ErrInvalidPayload().Send(w)
		return
	}

	c.mu.Lock()
	override := c.loginOverride
	c.mu.Unlock()
	if override != nil {
		writeRaw(w, override.status, override.body)
		return
	}

	if body.Username != c.username || body.Password != c.password {
		httpx.ErrInvalidCredentials().Send(w)
		return
	}

	id := uuid.New().String()
	c.mu.Lock()
	c.sessions[id] = true
	c.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: id, Path: "/", HttpOnly: true})
	httpx.SendEnvelope(r, w, http.StatusOK, httpx.ResultOK, nil, nil)
}

func (c *Controller) handleLogout(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.logouts++
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		delete(c.sessions, cookie.Value)
	}
	c.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	httpx.SendEnvelope(r, w, http.StatusOK, httpx.ResultOK, nil, nil)
}

// requireSession counts the API request, serves a queued canned response if any, and
// otherwise rejects requests without a live session.
func (c *Controller) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.apiRequests++
		var canned *cannedResponse
		if len(c.queued) > 0 {
			canned = &c.queued[0]
			c.queued = c.queued[1:]
		}
		valid := false
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			valid = c.sessions[cookie.Value]
		}
		c.mu.Unlock()

		if canned != nil {
			writeRaw(w, canned.status, canned.body)
			return
		}
		if !valid {
			httpx.ErrLoginRequired().Send(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Controller) getStatus(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{Meta: map[string]any{"up": true, "server_version": ServerVersion}}, nil
}

func (c *Controller) getSelf(r *http.Request) (*httpx.Response, error) {
	c.mu.Lock()
	name := c.lastLogin.Username
	c.mu.Unlock()
	return &httpx.Response{Data: []map[string]any{{"name": name, "is_super": true}}}, nil
}

func (c *Controller) getStations(r *http.Request) (*httpx.Response, error) {
	if chi.URLParam(r, "site") != "default" {
		return nil, &httpx.Error{Code: "api.err.NoSiteContext", StatusCode: http.StatusBadRequest}
	}
	c.mu.Lock()
	stations := append([]Station(nil), c.stations...)
	c.mu.Unlock()
	return &httpx.Response{Data: stations}, nil
}

func (c *Controller) postCommand(r *http.Request) (*httpx.Response, error) {
	var cmd map[string]any
	if err := httpx.GetRequestData(r, &cmd); err != nil {
		return nil, err
	}
	if _, ok := cmd["cmd"].(string); !ok {
		return nil, &httpx.Error{Code: "api.err.InvalidCommand", StatusCode: http.StatusBadRequest}
	}
	cmd["manager"] = chi.URLParam(r, "manager")
	return &httpx.Response{Data: []map[string]any{cmd}}, nil
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
