// Package auth issues and verifies the host's session tokens.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims plus the session payload. SealedSecret
// is the session shared secret sealed under the host storage key, so the
// token alone is enough to restore the session.
type Claims struct {
	jwt.RegisteredClaims
	Identity     string `json:"idn"`
	Surface      string `json:"srf"`
	SealedSecret []byte `json:"sss"`
}

// GenerateToken signs claims with HS256 and sets the expiry.
func GenerateToken(claims Claims, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(validityDuration))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// ParseToken verifies tokenString and returns its claims. Expired tokens
// fail with common.ErrTokenExpired, anything else with common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
