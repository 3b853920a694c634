// Package services contains the drive host's business logic. This file
// implements SessionService, which provisions sessions and turns bearer
// tokens back into principals.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/codec"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
	"github.com/dmitrijs2005/drivekeeper/internal/server/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Principal is an authenticated caller.
type Principal struct {
	SessionID string
	Identity  string
	Audience  endpoint.Audience
	Secret    []byte
}

// Wipe zeroizes the session secret.
func (p *Principal) Wipe() {
	if p != nil {
		cryptox.WipeByteArray(p.Secret)
	}
}

// LogValue keeps the secret out of logs.
func (p *Principal) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("session", p.SessionID),
		slog.String("audience", p.Audience.String()),
	)
}

// Provisioned is the result of a provision call. SharedSecret marshals as base64.
type Provisioned struct {
	Token        string `json:"token"`
	SharedSecret []byte `json:"sharedSecret"`
}

// SessionService mints and verifies session tokens. The session secret
// travels inside the token, sealed under the storage key.
type SessionService struct {
	identity   string
	jwtSecret  []byte
	storageKey []byte
	ttl        time.Duration
}

func NewSessionService(identity string, jwtSecret, storageKey []byte, ttl time.Duration) *SessionService {
	return &SessionService{identity: identity, jwtSecret: jwtSecret, storageKey: storageKey, ttl: ttl}
}

// Provision creates a new session for audience and returns its token and
// shared secret.
func (s *SessionService) Provision(_ context.Context, audience endpoint.Audience) (*Provisioned, error) {
	secret := cryptox.GenerateRandByteArray(cryptox.KeySize)

	sealed, err := codec.Seal(secret, s.storageKey)
	if err != nil {
		return nil, fmt.Errorf("seal session secret: %w", err)
	}

	token, err := auth.GenerateToken(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: uuid.NewString()},
		Identity:         s.identity,
		Surface:          audience.Path(),
		SealedSecret:     sealed,
	}, s.jwtSecret, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Provisioned{Token: token, SharedSecret: secret}, nil
}

// Authenticate verifies token and restores the session. Every failure is
// reported as common.ErrUnauthorized.
func (s *SessionService) Authenticate(_ context.Context, token string) (*Principal, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}

	audience, err := endpoint.ParseAudience(claims.Surface)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}

	secret, err := codec.Open(claims.SealedSecret, s.storageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: session secret: %v", common.ErrUnauthorized, err)
	}

	return &Principal{
		SessionID: claims.ID,
		Identity:  claims.Identity,
		Audience:  audience,
		Secret:    secret,
	}, nil
}
