package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL   = 15 * time.Minute
	refreshTokenTTL   = 24 * time.Hour
)

// TokenClaims is the payload minted for the optional bearer-token
// surface: {userId, fingerprint, iat, exp}.
type TokenClaims struct {
	UserID      string `json:"userId"`
	Fingerprint string `json:"fingerprint"`
	jwt.RegisteredClaims
}

// TokenMinter issues and verifies signed bearer tokens. Not required by
// the pairing protocol; a deployment may enable it for out-of-band
// client trust.
type TokenMinter struct {
	secret []byte
}

// NewTokenMinter constructs a minter over secret, which must be at
// least 32 bytes.
func NewTokenMinter(secret []byte) *TokenMinter {
	return &TokenMinter{secret: secret}
}

// MintToken signs a short-TTL token for userID/fingerprint.
func (m *TokenMinter) MintToken(userID, fingerprint string) (string, error) {
	return m.mint(userID, fingerprint, defaultTokenTTL)
}

// MintRefreshToken signs a long-TTL variant of the same claims.
func (m *TokenMinter) MintRefreshToken(userID, fingerprint string) (string, error) {
	return m.mint(userID, fingerprint, refreshTokenTTL)
}

func (m *TokenMinter) mint(userID, fingerprint string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		UserID:      userID,
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// VerifyToken checks signature and expiry, returning the embedded
// claims on success.
func (m *TokenMinter) VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
