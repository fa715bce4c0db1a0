// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the default lifetime of issued tokens.
const DefaultTokenTTL = time.Hour

// Claims is the structured data embedded in and recovered from a signed
// token. The user ID travels as the registered subject; username and email
// ride along for display purposes and carry no authority.
type Claims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject parsed as a ULID.
func (c *Claims) UserID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("AUTH_TOKEN_INVALID").
			With("subject", c.Subject).
			Wrap(err)
	}
	return id, nil
}

// TokenIssuer signs and verifies compact, self-contained bearer tokens.
// Tokens are stateless: there is no server-side session table and no
// revocation list. A token is valid until it expires or its signature
// fails to verify.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer. The secret is required; its absence
// is a configuration error that must abort startup, never a per-request
// condition. A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, oops.Code("CONFIG_INVALID").Errorf("token signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: secret, ttl: ttl}, nil
}

// TTL returns the configured token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token embedding the user's id, username, and email,
// expiring at now + TTL.
func (i *TokenIssuer) Issue(user *User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_SIGN_FAILED").
			With("operation", "sign token").
			Wrap(err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the embedded claims.
// Failure is a tagged error: AUTH_TOKEN_EXPIRED when the current time is
// past the embedded expiration, AUTH_TOKEN_INVALID for a bad signature or
// malformed structure.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, oops.Code("AUTH_TOKEN_INVALID").Errorf("token cannot be empty")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code("AUTH_TOKEN_EXPIRED").Errorf("token has expired")
		}
		return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(err)
	}
	if !token.Valid {
		return nil, oops.Code("AUTH_TOKEN_INVALID").Errorf("token is not valid")
	}

	return claims, nil
}
