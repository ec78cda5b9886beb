// internal/auth/session_test.go
package auth

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatTokenRoundTrip(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "1h")
	require.NoError(t, Init())
	assert.Equal(t, 3600, TOKEN_EXPIRE_TIME_SEC)

	player, game := uuid.New(), uuid.New()
	token, err := CreateJWT(player, game)
	require.NoError(t, err)

	gotPlayer, gotGame, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, player, gotPlayer)
	assert.Equal(t, game, gotGame)
}

func TestRejectsForeignAndExpiredTokens(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "never")
	require.NoError(t, Init())

	_, _, err := AuthenticateJWT("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// signed by another key
	_, otherKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, SeatClaims{
		GameID:           uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}).SignedString(otherKey)
	require.NoError(t, err)
	_, _, err = AuthenticateJWT(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, SeatClaims{
		GameID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString(privateKey)
	require.NoError(t, err)
	_, _, err = AuthenticateJWT(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noGame, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, SeatClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}).SignedString(privateKey)
	require.NoError(t, err)
	_, _, err = AuthenticateJWT(noGame)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestInitFromPath(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "")
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath, pubPath := filepath.Join(dir, "key"), filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o600))

	require.NoError(t, InitFromPath(privPath, pubPath))
	token, err := CreateJWT(uuid.New(), uuid.New())
	require.NoError(t, err)
	_, _, err = AuthenticateJWT(token)
	assert.NoError(t, err)

	assert.Error(t, InitFromPath(filepath.Join(dir, "missing"), pubPath))

	t.Setenv("TOKEN_EXPIRE_TIME", "soon")
	assert.Error(t, InitFromPath(privPath, pubPath))
}
