package unifi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/tansive/unifictl/internal/common/httpclient"
)

var bodyCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Request describes one logical call.
type Request struct {
	Path    string            // e.g. /api/s/default/stat/sta
	Method  string            // defaults to GET without a body and POST with one
	Header  map[string]string // per-call headers, win over the client defaults
	Body    any               // JSON encoded; []byte and json.RawMessage are sent as is
	BaseURL string            // overrides the client's base address
	Query   map[string]string
}

func (r Request) method() string {
	if r.Method != "" {
		return r.Method
	}
	if r.Body == nil {
		return http.MethodGet
	}
	return http.MethodPost
}

func (r Request) encodeBody() ([]byte, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		body, err := bodyCodec.Marshal(b)
		if err != nil {
			return nil, ErrInvalidRequest.MsgErr("unable to encode request body: "+err.Error(), err)
		}
		return body, nil
	}
}

// Execute performs req as a single exchange without any session handling or body
// interpretation. Error statuses come back as *ServerError and missing responses as
// *TransportError.
func (c *Client) Execute(ctx context.Context, req Request) (*httpclient.Response, error) {
	body, err := req.encodeBody()
	if err != nil {
		return nil, err
	}
	resp, err := c.transport.Exchange(ctx, &httpclient.Exchange{
		Method:      req.method(),
		Path:        req.Path,
		BaseURL:     req.BaseURL,
		Header:      mergeHeaders(c.opts.Headers, req.Header),
		QueryParams: req.Query,
		Body:        body,
	})
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			serverErr := &ServerError{
				StatusCode: httpErr.StatusCode,
				Body:       httpErr.Body,
			}
			if env, derr := DecodeEnvelope(httpErr.Body); derr == nil {
				serverErr.Envelope = env
			}
			return nil, serverErr
		}
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}
