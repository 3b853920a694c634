package apiclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
)

// PathProvision is the session provisioning route of a development host.
const PathProvision = "/auth/provision"

var ErrProvision = errors.New("provision failed")

type provisioned struct {
	Token        string `json:"token"`
	SharedSecret []byte `json:"sharedSecret"`
}

// Provision asks the host of identity for a new session. The call itself
// is unauthenticated and plaintext.
func Provision(ctx context.Context, identity string, audience endpoint.Audience, opts ...Option) (*Session, error) {
	anon, err := NewSession(identity, audience, nil, "")
	if err != nil {
		return nil, err
	}
	c, err := New(anon, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := c.Post(ctx, PathProvision, nil)
	if err != nil {
		return nil, fmt.Errorf("provision %s: %w", identity, err)
	}

	var p provisioned
	if err := resp.Decode(&p); err != nil {
		return nil, err
	}
	defer cryptox.WipeByteArray(p.SharedSecret)

	if p.Token == "" || len(p.SharedSecret) != cryptox.KeySize {
		return nil, fmt.Errorf("%w: host returned no usable session", ErrProvision)
	}
	return NewSession(identity, audience, p.SharedSecret, p.Token)
}
