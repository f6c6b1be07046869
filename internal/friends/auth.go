// Package friends implements the friend-request processing boundary:
// bearer-token authentication and the accept/reject/block state changes.
package friends

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMalformed    = errors.New("malformed token")
)

// Claims represents the JWT claims issued by the auth backend
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// UserInfo contains extracted user information from a validated token
type UserInfo struct {
	UserID    string
	ExpiresAt time.Time
}

// Authenticator validates bearer tokens on the friend-request endpoint
type Authenticator struct {
	tokenKey []byte
}

// NewAuthenticator creates an Authenticator with the given HMAC signing key
func NewAuthenticator(tokenKey []byte) *Authenticator {
	return &Authenticator{
		tokenKey: tokenKey,
	}
}

// ValidateToken validates a JWT token and returns user information
func (a *Authenticator) ValidateToken(tokenString string) (*UserInfo, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.tokenKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" {
		return nil, ErrMalformed
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &UserInfo{
		UserID:    claims.UserID,
		ExpiresAt: expiresAt,
	}, nil
}
