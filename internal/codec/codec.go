// Package codec converts requests and responses between plaintext JSON and the
// shared-secret envelope that travels on the wire.
//
// The codec is transport-agnostic: it operates on WireRequest and WireResponse
// values (method, URL, headers, body) and never touches an HTTP client.
//
// Wire format:
//
//	GET  ...?ss={"iv":"<base64>","data":"<base64>"}   (query parameters as canonical JSON)
//	POST body replaced by {"iv":"<base64>","data":"<base64>"}, Content-Type: application/json
//
// Encryption is opportunistic: with a nil key every value passes through unchanged.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
)

// SharedSecretParam is the query parameter that carries an encrypted query string.
const SharedSecretParam = "ss"

// ErrMalformedEnvelope is returned when an ss parameter or request body claims
// to be an envelope but cannot be parsed.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// generateIV is a seam for deterministic tests.
var generateIV = func() []byte {
	return cryptox.GenerateRandByteArray(cryptox.IVSize)
}

// WireRequest is the transport-neutral shape of an outbound request.
type WireRequest struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Clone returns a deep copy so encoders never mutate the caller's request.
func (r *WireRequest) Clone() *WireRequest {
	c := &WireRequest{Method: r.Method, Header: r.Header.Clone()}
	if c.Header == nil {
		c.Header = http.Header{}
	}
	if r.URL != nil {
		u := *r.URL
		c.URL = &u
	}
	if r.Body != nil {
		c.Body = bytes.Clone(r.Body)
	}
	return c
}

// WireResponse is the transport-neutral shape of an inbound response.
type WireResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Envelope is the encrypted wire container. []byte fields marshal as base64.
type Envelope struct {
	IV   []byte `json:"iv"`
	Data []byte `json:"data"`
}

// Seal encrypts plaintext into a marshalled Envelope.
func Seal(plaintext, key []byte) ([]byte, error) {
	iv := generateIV()
	ct, err := cryptox.EncryptWithIV(plaintext, key, iv)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{IV: iv, Data: ct})
}

// Open decrypts a marshalled Envelope.
func Open(raw, key []byte) ([]byte, error) {
	env, ok := parseEnvelope(raw)
	if !ok {
		return nil, ErrMalformedEnvelope
	}
	return cryptox.Decrypt(env.IV, env.Data, key)
}

// IsEnvelope reports whether raw has the exact {iv, data} envelope shape.
func IsEnvelope(raw []byte) bool {
	_, ok := parseEnvelope(raw)
	return ok
}

func parseEnvelope(raw []byte) (*Envelope, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) != 2 {
		return nil, false
	}
	if _, ok := fields["iv"]; !ok {
		return nil, false
	}
	if _, ok := fields["data"]; !ok {
		return nil, false
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if len(env.IV) != cryptox.IVSize || len(env.Data) == 0 {
		return nil, false
	}
	return &env, true
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// EncodeRequest returns an encrypted copy of req.
//
// For GET-style methods the query parameters are serialized to canonical JSON,
// encrypted, and replaced by a single ss parameter. For POST-style methods the
// body is encrypted and replaced by the envelope JSON. A nil key disables
// encryption and the request passes through.
func EncodeRequest(req *WireRequest, key []byte) (*WireRequest, error) {
	out := req.Clone()
	if key == nil {
		return out, nil
	}

	if hasBody(out.Method) {
		env, err := Seal(out.Body, key)
		if err != nil {
			return nil, fmt.Errorf("encrypt body: %w", err)
		}
		out.Body = env
		out.Header.Set("Content-Type", "application/json")
		return out, nil
	}

	if out.URL == nil {
		return nil, fmt.Errorf("encode request: %w", errors.New("missing url"))
	}

	plaintext, err := canonicalQuery(out.URL.Query())
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	env, err := Seal(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt query: %w", err)
	}
	out.URL.RawQuery = url.Values{SharedSecretParam: {string(env)}}.Encode()
	return out, nil
}

// DecodeResponse returns the plaintext body of resp. A body that is not a
// recognized envelope is returned unmodified, which is how binary payload
// streams and deliberately plaintext endpoints pass through.
func DecodeResponse(resp *WireResponse, key []byte) ([]byte, error) {
	if key == nil {
		return resp.Body, nil
	}
	env, ok := parseEnvelope(resp.Body)
	if !ok {
		return resp.Body, nil
	}
	plaintext, err := cryptox.Decrypt(env.IV, env.Data, key)
	if err != nil {
		return nil, fmt.Errorf("decrypt response: %w", err)
	}
	return plaintext, nil
}

// DecodeRequest is the receiving side of EncodeRequest: it restores the
// plaintext query parameters or body. Requests without an envelope are
// returned unchanged.
func DecodeRequest(req *WireRequest, key []byte) (*WireRequest, error) {
	out := req.Clone()
	if key == nil {
		return out, nil
	}

	if hasBody(out.Method) {
		if !IsEnvelope(out.Body) {
			return out, nil
		}
		body, err := Open(out.Body, key)
		if err != nil {
			return nil, fmt.Errorf("decrypt body: %w", err)
		}
		out.Body = body
		return out, nil
	}

	if out.URL == nil {
		return out, nil
	}
	ss := out.URL.Query().Get(SharedSecretParam)
	if ss == "" {
		return out, nil
	}
	plaintext, err := Open([]byte(ss), key)
	if err != nil {
		return nil, fmt.Errorf("decrypt query: %w", err)
	}
	values, err := parseCanonicalQuery(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	out.URL.RawQuery = values.Encode()
	return out, nil
}

// EncodeResponse seals a plaintext response body.
func EncodeResponse(body, key []byte) ([]byte, error) {
	if key == nil {
		return body, nil
	}
	return Seal(body, key)
}

// canonicalQuery renders url.Values as JSON with sorted keys. Single values
// become strings and repeated values become arrays. No parameters produce an
// empty plaintext.
func canonicalQuery(v url.Values) ([]byte, error) {
	if len(v) == 0 {
		return []byte{}, nil
	}
	m := make(map[string]any, len(v))
	for k, vals := range v {
		if len(vals) == 1 {
			m[k] = vals[0]
		} else {
			m[k] = vals
		}
	}
	return json.Marshal(m)
}

func parseCanonicalQuery(b []byte) (url.Values, error) {
	values := url.Values{}
	if len(bytes.TrimSpace(b)) == 0 {
		return values, nil
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, raw := range m {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			values.Set(k, s)
			continue
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		values[k] = list
	}
	return values, nil
}
