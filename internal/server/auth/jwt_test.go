package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	in := Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "sess-1"},
		Identity:         "frodo.example",
		Surface:          "owner",
		SealedSecret:     []byte{1, 2, 3},
	}

	tok, err := GenerateToken(in, secret, time.Hour)
	require.NoError(t, err)

	got, err := ParseToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, "frodo.example", got.Identity)
	assert.Equal(t, "owner", got.Surface)
	assert.Equal(t, []byte{1, 2, 3}, got.SealedSecret)
	assert.NotNil(t, got.ExpiresAt)
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken(Claims{Identity: "u1"}, secret, -1*time.Second)
	require.NoError(t, err)

	_, err = ParseToken(tok, secret)
	require.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestParseToken_WrongKey(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(Claims{Identity: "u1"}, []byte("k1"), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(tok, []byte("k2"))
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParseToken_Garbage(t *testing.T) {
	t.Parallel()

	_, err := ParseToken("not-a-jwt", []byte("k"))
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{Identity: "u1"})
	s, err := tok.SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = ParseToken(s, []byte("k"))
	require.ErrorIs(t, err, common.ErrInvalidToken)
}
