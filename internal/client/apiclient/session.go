package apiclient

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
)

// Session is the per identity+audience state a Client is built from. It is
// immutable after construction; WithToken returns a refreshed copy.
type Session struct {
	Identity     string
	Audience     endpoint.Audience
	SharedSecret []byte
	Token        string
}

// NewSession validates and copies the session parameters. A nil secret is
// allowed and disables envelope encryption (public endpoints).
func NewSession(identity string, audience endpoint.Audience, secret []byte, token string) (*Session, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, endpoint.ErrMissingIdentity
	}
	if audience.Path() == "" {
		return nil, fmt.Errorf("%w: %d", endpoint.ErrUnknownAudience, int(audience))
	}

	var s []byte
	if secret != nil {
		if len(secret) != cryptox.KeySize {
			return nil, fmt.Errorf("%w: shared secret is %d bytes", cryptox.ErrInvalidKeyLength, len(secret))
		}
		s = make([]byte, cryptox.KeySize)
		copy(s, secret)
	}

	return &Session{Identity: identity, Audience: audience, SharedSecret: s, Token: token}, nil
}

// WithToken returns a copy of the session carrying a new bearer token. The
// copy owns its own secret buffer and must be closed separately.
func (s *Session) WithToken(token string) *Session {
	c := *s
	if s.SharedSecret != nil {
		c.SharedSecret = make([]byte, len(s.SharedSecret))
		copy(c.SharedSecret, s.SharedSecret)
	}
	c.Token = token
	return &c
}

// Close zeroizes the shared secret and drops the token.
func (s *Session) Close() {
	if s == nil {
		return
	}
	cryptox.WipeByteArray(s.SharedSecret)
	s.SharedSecret = nil
	s.Token = ""
}

// Format keeps the secret and token out of fmt output.
func (s *Session) Format(f fmt.State, _ rune) {
	fmt.Fprintf(f, "Session{identity=%s audience=%s secret=[REDACTED]}", s.Identity, s.Audience)
}

// LogValue keeps the secret and token out of slog output.
func (s *Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("identity", s.Identity),
		slog.String("audience", s.Audience.String()),
	)
}
