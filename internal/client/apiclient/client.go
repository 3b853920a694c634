package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/codec"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
)

const defaultTimeout = 30 * time.Second

// Client sends encrypted requests on behalf of one Session.
type Client struct {
	session    *Session
	httpClient *http.Client
	resolver   endpoint.Resolver
	logger     logging.Logger
	extra      []Interceptor
	invoke     Invoker
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithScheme overrides the URL scheme ("http" for local development hosts).
func WithScheme(scheme string) Option {
	return func(c *Client) { c.resolver.Scheme = scheme }
}

// WithInterceptors adds interceptors that run before auth and encryption, so
// they observe plaintext requests and responses.
func WithInterceptors(ics ...Interceptor) Option {
	return func(c *Client) { c.extra = append(c.extra, ics...) }
}

// New returns a Client for session.
func New(session *Session, opts ...Option) (*Client, error) {
	if session == nil {
		return nil, ErrMissingSession
	}
	if _, err := endpoint.GetRoot(session.Identity); err != nil {
		return nil, err
	}

	c := &Client{
		session:    session,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logging.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}

	ics := make([]Interceptor, 0, len(c.extra)+3)
	ics = append(ics, c.loggingInterceptor)
	ics = append(ics, c.extra...)
	ics = append(ics, c.authInterceptor, c.encryptionInterceptor)
	c.invoke = chain(c.transport, ics...)

	return c, nil
}

// Session returns the session the client was built from.
func (c *Client) Session() *Session { return c.session }

// Response is a decoded, plaintext response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type callOptions struct {
	audience *endpoint.Audience
	header   http.Header
}

// CallOption configures a single call.
type CallOption func(*callOptions)

// WithAudience routes a single call through another audience, e.g. Peer for
// transit reads of a remote identity's drive.
func WithAudience(a endpoint.Audience) CallOption {
	return func(o *callOptions) { o.audience = &a }
}

// WithHeader adds a request header to a single call.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Add(key, value)
	}
}

func (c *Client) buildRequest(method, path string, params url.Values, opts []CallOption) (*codec.WireRequest, error) {
	var co callOptions
	for _, o := range opts {
		o(&co)
	}

	audience := c.session.Audience
	if co.audience != nil {
		audience = *co.audience
	}

	base, err := c.resolver.Endpoint(c.session.Identity, audience)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u, err := url.Parse(base + path)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	h := co.header.Clone()
	if h == nil {
		h = http.Header{}
	}
	return &codec.WireRequest{Method: method, URL: u, Header: h}, nil
}

func (c *Client) do(ctx context.Context, req *codec.WireRequest) (*Response, error) {
	wr, err := c.invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := &Response{StatusCode: wr.StatusCode, Header: wr.Header, Body: wr.Body}
	if err := mapError(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Get issues a GET. With a shared secret the params travel encrypted in ss.
func (c *Client) Get(ctx context.Context, path string, params url.Values, opts ...CallOption) (*Response, error) {
	req, err := c.buildRequest(http.MethodGet, path, params, opts)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req)
}

// Post issues a POST with body marshalled to JSON. []byte and json.RawMessage
// bodies are sent as is.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...CallOption) (*Response, error) {
	req, err := c.buildRequest(http.MethodPost, path, nil, opts)
	if err != nil {
		return nil, err
	}

	switch b := body.(type) {
	case nil:
		req.Body = []byte("{}")
	case []byte:
		req.Body = b
	case json.RawMessage:
		req.Body = b
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		req.Body = raw
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(ctx, req)
}

// GetRange issues a GET with a Range header and returns the raw body without
// JSON or envelope decoding. A nil range fetches the whole resource.
func (c *Client) GetRange(ctx context.Context, path string, params url.Values, r *ByteRange, opts ...CallOption) (*RangeResponse, error) {
	req, err := c.buildRequest(http.MethodGet, path, params, opts)
	if err != nil {
		return nil, err
	}
	if r != nil {
		if err := r.validate(); err != nil {
			return nil, err
		}
		req.Header.Set("Range", r.Header())
	}

	resp, err := c.do(withRaw(ctx), req)
	if err != nil {
		return nil, err
	}
	return newRangeResponse(resp)
}

func (c *Client) transport(ctx context.Context, req *codec.WireRequest) (*codec.WireResponse, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(hr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	return &codec.WireResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
}
