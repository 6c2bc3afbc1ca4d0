package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	platformerrors "github.com/veilworld/veilworld/internal/platform/errors"
)

const sessionIssuer = "veilworld"

// Sessions mints and checks the bearer tokens that scope credential
// operations to the vault that created them. There is no user identity
// behind a session, only vault custody.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions creates a session minting/verifying helper. A nil clock
// defaults to time.Now.
func NewSessions(secret []byte, ttl time.Duration, now func() time.Time) (*Sessions, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Sessions{secret: secret, ttl: ttl, now: now}, nil
}

// Mint issues a signed session token for the given vault.
func (s *Sessions) Mint(vaultID string) (string, error) {
	vaultID = strings.TrimSpace(vaultID)
	if vaultID == "" {
		return "", fmt.Errorf("vault id is required")
	}
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   vaultID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// VaultID extracts the vault a session token belongs to.
func (s *Sessions) VaultID(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(
		strings.TrimSpace(token),
		&jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", platformerrors.Wrap(platformerrors.CodeSessionInvalid, "invalid session token", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return "", platformerrors.New(platformerrors.CodeSessionInvalid, "session token has no vault subject")
	}
	return claims.Subject, nil
}
