package auth

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/beautymarket/backend/internal/apperror"
)

const tokenIssuer = "beautymarket"

// AccessClaims are the claims embedded in a self-issued access token.
type AccessClaims struct {
	PrincipalID string `json:"principal_id"`
	Role        string `json:"role"`
	ShopID      string `json:"shop_id,omitempty"`
	IssuedAt    int64  `json:"issued_at"`
}

// TokenService issues and verifies HS256-signed access tokens. Two signing
// keys are accepted for verification (current + previous) so a secret can be
// rotated without invalidating every outstanding token mid-flight; only the
// current key signs new tokens.
type TokenService struct {
	currentKey  []byte
	previousKey []byte // may be nil
	ttl         time.Duration
}

// NewTokenService creates a TokenService. secret must be at least 32 bytes.
// previousSecret may be empty (no key rotation in progress).
func NewTokenService(secret, previousSecret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("access token secret must be at least 32 bytes, got %d", len(secret))
	}
	ts := &TokenService{currentKey: []byte(secret), ttl: ttl}
	if previousSecret != "" {
		ts.previousKey = []byte(previousSecret)
	}
	return ts, nil
}

// Issue creates a signed access token for the given principal.
func (ts *TokenService) Issue(principalID uuid.UUID, role string, shopID *uuid.UUID) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: ts.currentKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	now := time.Now()
	custom := AccessClaims{
		PrincipalID: principalID.String(),
		Role:        role,
		IssuedAt:    now.Unix(),
	}
	if shopID != nil {
		custom.ShopID = shopID.String()
	}

	registered := jwt.Claims{
		Subject:   principalID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(ts.ttl)),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
	}

	token, err := jwt.Signed(signer).Claims(registered).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// Verify parses and validates raw, trying the current key and falling back
// to the previous key during rotation. Returns apperror(KindAuthInvalid) on
// any signature, expiry, or issuer mismatch.
func (ts *TokenService) Verify(raw string) (*AccessClaims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindAuthInvalid, "malformed access token", err)
	}

	var registered jwt.Claims
	var custom AccessClaims

	verifyErr := tok.Claims(ts.currentKey, &registered, &custom)
	if verifyErr != nil && ts.previousKey != nil {
		verifyErr = tok.Claims(ts.previousKey, &registered, &custom)
	}
	if verifyErr != nil {
		return nil, apperror.Wrap(apperror.KindAuthInvalid, "invalid access token signature", verifyErr)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer: tokenIssuer,
		Time:   time.Now(),
	}, 5*time.Second); err != nil {
		return nil, apperror.Wrap(apperror.KindAuthInvalid, "access token expired or not yet valid", err)
	}

	return &custom, nil
}
