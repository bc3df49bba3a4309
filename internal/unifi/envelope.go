package unifi

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Values of meta.rc and well known meta.msg codes.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	LoginRequired = "api.err.LoginRequired"
)

// Meta is the envelope's result block.
type Meta struct {
	RC  string `json:"rc"`
	Msg string `json:"msg,omitempty"`
}

// Envelope is the decoded controller response {"meta":{...},"data":[...]}.
type Envelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data,omitempty"`
	Raw  []byte          `json:"-"`
}

// OK reports whether meta.rc is "ok".
func (e *Envelope) OK() bool {
	return e != nil && e.Meta.RC == ResultOK
}

// Get returns the value at a gjson path of the raw response, for fields the
// Envelope type does not model, e.g. "meta.server_version" or "data.#".
func (e *Envelope) Get(path string) gjson.Result {
	if e == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(e.Raw, path)
}

// DecodeEnvelope decodes body into an Envelope. Anything that is not a JSON object
// with an object-valued meta field is malformed.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	if len(body) == 0 {
		return nil, ErrMalformedEnvelope.Msg("malformed response envelope: empty body")
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedEnvelope.Msg("malformed response envelope: invalid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, ErrMalformedEnvelope.Msg("malformed response envelope: not an object")
	}
	if !root.Get("meta").IsObject() {
		return nil, ErrMalformedEnvelope.Msg("malformed response envelope: missing meta")
	}
	env := &Envelope{}
	if err := json.Unmarshal(body, env); err != nil {
		return nil, ErrMalformedEnvelope.MsgErr("malformed response envelope: "+err.Error(), err)
	}
	env.Raw = body
	return env, nil
}

// DecodeData unmarshals the envelope's data field into v.
func DecodeData(env *Envelope, v any) error {
	if env == nil || len(env.Data) == 0 {
		return ErrMalformedEnvelope.Msg("response has no data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return ErrMalformedEnvelope.MsgErr("unable to decode response data: "+err.Error(), err)
	}
	return nil
}

// okEnvelope is the answer to a login while the session is already valid.
func okEnvelope() *Envelope {
	return &Envelope{
		Meta: Meta{RC: ResultOK},
		Raw:  []byte(`{"meta":{"rc":"ok"}}`),
	}
}
