// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// privateKey and publicKey are used for signing and verifying seat tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// TOKEN_EXPIRE_TIME_SEC indicates how many seconds until JWT expiration (0 => never).
	TOKEN_EXPIRE_TIME_SEC int
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// SeatClaims binds a player id (sub) to the game it was issued for.
type SeatClaims struct {
	GameID string `json:"gid"`
	jwt.RegisteredClaims
}

// parseTokenExpireTime reads the TOKEN_EXPIRE_TIME env var and sets TOKEN_EXPIRE_TIME_SEC accordingly.
func parseTokenExpireTime() error {
	duration := os.Getenv("TOKEN_EXPIRE_TIME")
	if duration == "never" || duration == "0" || duration == "" {
		TOKEN_EXPIRE_TIME_SEC = 0
		return nil
	}
	d, err := time.ParseDuration(duration)
	if err != nil {
		return fmt.Errorf("failed to parse token expire time: %w", err)
	}
	TOKEN_EXPIRE_TIME_SEC = int(d.Seconds())
	return nil
}

// Init generates a fresh ed25519 key pair at runtime and sets the token expiration.
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return parseTokenExpireTime()
}

// InitFromPath reads ed25519 private/public keys from file and sets the token expiration.
func InitFromPath(privatePath, publicPath string) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return errors.New("malformed ed25519 key files")
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	return parseTokenExpireTime()
}

// CreateJWT signs a seat token for playerID in gameID.
func CreateJWT(playerID, gameID uuid.UUID) (string, error) {
	claims := SeatClaims{
		GameID: gameID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  playerID.String(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if TOKEN_EXPIRE_TIME_SEC > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Duration(TOKEN_EXPIRE_TIME_SEC) * time.Second))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a seat token and returns the player and game it names.
func AuthenticateJWT(tokenString string) (playerID, gameID uuid.UUID, err error) {
	var claims SeatClaims
	t, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !t.Valid {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}

	if playerID, err = uuid.Parse(claims.Subject); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: bad sub", ErrInvalidToken)
	}
	if gameID, err = uuid.Parse(claims.GameID); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: bad gid", ErrInvalidToken)
	}
	return playerID, gameID, nil
}
