// Package endpoint derives API roots and endpoint bases from an identity name
// and an API audience. Everything here is pure: no I/O and no hidden state.
package endpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
)

// ErrMissingIdentity is returned when an identity name is empty.
var ErrMissingIdentity = fmt.Errorf("%w: missing identity", common.ErrConfig)

// ErrUnknownAudience is returned when an audience path cannot be parsed.
var ErrUnknownAudience = errors.New("unknown audience")

// Audience selects which API surface of an identity is addressed.
type Audience int

const (
	Owner Audience = iota
	App
	Guest
	Peer
)

var audiencePaths = map[Audience]string{
	Owner: "owner",
	App:   "apps",
	Guest: "guest",
	Peer:  "peer",
}

// Path returns the URL path segment of the audience.
func (a Audience) Path() string {
	return audiencePaths[a]
}

func (a Audience) String() string {
	if p, ok := audiencePaths[a]; ok {
		return p
	}
	return fmt.Sprintf("audience(%d)", int(a))
}

// ParseAudience maps a path segment ("owner", "apps", "guest", "peer") back to an Audience.
func ParseAudience(s string) (Audience, error) {
	for a, p := range audiencePaths {
		if strings.EqualFold(p, s) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAudience, s)
}

// Resolver builds URLs with a configurable scheme. The zero value uses https.
type Resolver struct {
	Scheme string
}

func (r Resolver) scheme() string {
	if r.Scheme == "" {
		return "https"
	}
	return r.Scheme
}

// Root returns "{scheme}://{identity}".
func (r Resolver) Root(identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", ErrMissingIdentity
	}
	return r.scheme() + "://" + identity, nil
}

// Endpoint returns "{scheme}://{identity}/api/{audience-path}/v1".
func (r Resolver) Endpoint(identity string, audience Audience) (string, error) {
	root, err := r.Root(identity)
	if err != nil {
		return "", err
	}
	p := audience.Path()
	if p == "" {
		return "", fmt.Errorf("%w: %d", ErrUnknownAudience, int(audience))
	}
	return root + "/api/" + p + "/v1", nil
}

// GetRoot returns "https://{identity}".
func GetRoot(identity string) (string, error) {
	return Resolver{}.Root(identity)
}

// GetEndpoint returns "https://{identity}/api/{audience-path}/v1".
func GetEndpoint(identity string, audience Audience) (string, error) {
	return Resolver{}.Endpoint(identity, audience)
}
