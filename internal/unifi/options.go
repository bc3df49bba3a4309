package unifi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tansive/unifictl/internal/common/httpclient"
)

// Controller defaults, matching a freshly installed controller.
const (
	DefaultBaseURL  = "https://127.0.0.1:8443"
	DefaultUsername = "unifi"
	DefaultPassword = "unifi"
	DefaultSite     = "default"

	loginPath  = "/api/login"
	logoutPath = "/logout"
)

// Options configures a Client. It is copied at construction and immutable afterwards.
type Options struct {
	BaseURL  string            `validate:"required,url"`
	Username string            `validate:"required"`
	Password string            `validate:"required"`
	Headers  map[string]string // merged over the default headers
	Insecure bool              // skip certificate validation (self-signed controllers)
	Timeout  time.Duration     `validate:"gte=0"` // per exchange, zero means none
	Debug    bool              // debug logging of the session engine
	DebugNet bool              // debug logging of every exchange

	// Transport replaces the net/http transport built from the options above.
	Transport httpclient.Transport `validate:"-"`
}

// DefaultOptions returns the options of a stock controller. Certificate validation is
// off because controllers ship with a self-signed certificate.
func DefaultOptions() Options {
	return Options{
		BaseURL:  DefaultBaseURL,
		Username: DefaultUsername,
		Password: DefaultPassword,
		Headers:  DefaultHeaders(),
		Insecure: true,
	}
}

// DefaultHeaders returns the headers sent with every call unless overridden.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Referer":      "/login",
	}
}

var optionsValidator = validator.New(validator.WithRequiredStructEnabled())

// withDefaults fills empty fields from DefaultOptions and canonicalises header keys.
func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Username == "" {
		o.Username = DefaultUsername
	}
	if o.Password == "" {
		o.Password = DefaultPassword
	}
	o.Headers = mergeHeaders(DefaultHeaders(), o.Headers)
	return o
}

func (o Options) validate() error {
	if err := optionsValidator.Struct(o); err != nil {
		return ErrInvalidOptions.MsgErr("invalid client options: "+err.Error(), err)
	}
	return nil
}

// mergeHeaders returns base with override applied on top. Keys are compared in
// canonical form so "Content-type" and "Content-Type" collide.
func mergeHeaders(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range override {
		merged[http.CanonicalHeaderKey(k)] = v
	}
	return merged
}
