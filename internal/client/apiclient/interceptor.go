package apiclient

import (
	"context"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/codec"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
)

// Invoker performs one round trip.
type Invoker func(ctx context.Context, req *codec.WireRequest) (*codec.WireResponse, error)

// Interceptor wraps an Invoker. It may rewrite the request, the response or
// both, and must call next at most once.
type Interceptor func(ctx context.Context, req *codec.WireRequest, next Invoker) (*codec.WireResponse, error)

// chain composes interceptors around final so that interceptors[0] runs first.
func chain(final Invoker, interceptors ...Interceptor) Invoker {
	h := final
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic, next := interceptors[i], h
		h = func(ctx context.Context, req *codec.WireRequest) (*codec.WireResponse, error) {
			return ic(ctx, req, next)
		}
	}
	return h
}

type rawKey struct{}

// withRaw marks a call whose response body must not be envelope-decoded.
func withRaw(ctx context.Context) context.Context {
	return context.WithValue(ctx, rawKey{}, true)
}

func isRaw(ctx context.Context) bool {
	v, _ := ctx.Value(rawKey{}).(bool)
	return v
}

func (c *Client) authInterceptor(ctx context.Context, req *codec.WireRequest, next Invoker) (*codec.WireResponse, error) {
	if c.session.Token != "" {
		req = req.Clone()
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.session.Token)
	}
	return next(ctx, req)
}

func (c *Client) encryptionInterceptor(ctx context.Context, req *codec.WireRequest, next Invoker) (*codec.WireResponse, error) {
	key := c.session.SharedSecret

	enc, err := codec.EncodeRequest(req, key)
	if err != nil {
		return nil, err
	}

	resp, err := next(ctx, enc)
	if err != nil {
		return nil, err
	}
	if isRaw(ctx) && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, err := codec.DecodeResponse(resp, key)
	if err != nil {
		return nil, err
	}
	resp.Body = body
	return resp, nil
}

func (c *Client) loggingInterceptor(ctx context.Context, req *codec.WireRequest, next Invoker) (*codec.WireResponse, error) {
	start := time.Now()
	resp, err := next(ctx, req)

	path := ""
	if req.URL != nil {
		path = req.URL.Path
	}
	if err != nil {
		c.logger.Warn(ctx, "request failed", "method", req.Method, "path", path, "error", err, "elapsed", time.Since(start))
		return nil, err
	}
	c.logger.Debug(ctx, "request", "method", req.Method, "path", path, "status", resp.StatusCode, "bytes", len(resp.Body), "elapsed", time.Since(start))
	return resp, nil
}
