/*
Package security provides cryptographic utilities for the server.

This file implements a JSON Web Token verifier using the HMAC SHA-256
algorithm (HS256) via the `lestrrat-go/jwx` library. Trellis does not mint
tokens itself — spec.md §1 treats the mechanism that authenticates a
request as out of scope, and ldp/routes.go's extractPrincipal consumes
whatever bearer token a request carries. JWTService exists to verify those
externally-issued tokens and turn them into a webac.Principal.

Usage Example:

	jwtService := security.NewJWTService("supersecretkey")

	token, err := jwtService.ValidateToken(bearerTokenFromRequest)
	if err != nil {
		// reject the request
	}
	agent := token.Subject()
*/

package security

import (
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// JWTService verifies JSON Web Tokens signed with HMAC SHA-256 (HS256).
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
}

// NewJWTService initializes a JWTService that only checks the token's
// signature and expiration.
//
// The secret parameter is the signing key used for validation. It should
// be a sufficiently random and securely stored string.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
	}
}

// NewJWTServiceWithIssuer creates a JWT service that additionally rejects
// tokens whose "iss"/"aud" claims don't match issuer/audience.
//
// Parameters:
//   - secret: The signing key for HMAC SHA-256
//   - issuer: The expected issuer claim (iss) — empty skips the check
//   - audience: The expected audience claim (aud) — empty skips the check
func NewJWTServiceWithIssuer(secret, issuer, audience string) *JWTService {
	return &JWTService{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}
}

// ValidateToken verifies and parses a JWT string using the configured secret key.
//
// The token's signature and expiration are validated automatically.
// If issuer and audience are configured, they are also validated.
// If validation succeeds, it returns a `jwt.Token` instance that allows
// access to claims such as subject, expiration, and issued-at time.
func (j *JWTService) ValidateToken(tokenString string) (jwt.Token, error) {
	parseOptions := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, j.secret),
	}

	if j.issuer != "" {
		parseOptions = append(parseOptions, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		parseOptions = append(parseOptions, jwt.WithAudience(j.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), parseOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	return token, nil
}
