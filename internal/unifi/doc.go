// Package unifi is an authenticated client for the session-cookie based REST API of a
// UniFi network controller.
//
// A Client owns one controller session. Login coalesces concurrent callers into a single
// in-flight authentication and is a no-op while the session is valid. Request makes sure a
// session exists, performs the call and, when the controller reports that the session has
// expired (HTTP 401 or api.err.LoginRequired), authenticates again and retries the call
// exactly once.
//
// # Basic Usage
//
//	opts := unifi.DefaultOptions()
//	opts.BaseURL = "https://192.168.1.1:8443"
//	opts.Username = "admin"
//	opts.Password = "secret"
//
//	client, err := unifi.New(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	env, err := client.Get(ctx, "/api/s/default/stat/sta")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	var stations []map[string]any
//	if err := unifi.DecodeData(env, &stations); err != nil {
//	    log.Fatal(err)
//	}
//
// # Errors
//
// Failures are classified with errors.Is against ErrNoResponse, ErrServerResponse,
// ErrAuthentication, ErrSessionExpired and ErrAPI, and carry their payload in the
// TransportError, ServerError, AuthenticationError and APIError types.
package unifi
