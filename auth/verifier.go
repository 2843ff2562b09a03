// Package auth verifies bearer tokens issued by the external identity
// service. This module never issues or refreshes tokens; it only accepts
// them (verify-only mode).
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrUnauthenticated covers every token failure: missing, expired, bad
// issuer/audience, bad signature, or a subject that is not an account id.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Claims is the identity slice the pipeline needs from a verified token.
type Claims struct {
	AccountID uuid.UUID
	Email     string
}

// Verifier validates bearer tokens against issuer, audience, and keys.
// Exactly one of keySet (JWKS / asymmetric) or secret (HS256, dev and test
// setups) is used.
type Verifier struct {
	issuer   string
	audience string
	keySet   jwk.Set
	secret   []byte
}

// NewVerifier accepts asymmetric tokens against a JWKS key set.
func NewVerifier(issuer, audience string, keySet jwk.Set) *Verifier {
	return &Verifier{issuer: issuer, audience: audience, keySet: keySet}
}

// NewSharedSecretVerifier accepts HS256 tokens signed with a shared secret.
func NewSharedSecretVerifier(issuer, audience string, secret []byte) *Verifier {
	return &Verifier{issuer: issuer, audience: audience, secret: secret}
}

// FetchKeySet retrieves a JWKS document from the issuer.
func FetchKeySet(ctx context.Context, jwksURL string) (jwk.Set, error) {
	set, err := jwk.Fetch(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("auth: fetch jwks: %w", err)
	}
	return set, nil
}

// Verify validates the raw token and extracts claims. The subject must be a
// uuid account id.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	if v == nil || (v.keySet == nil && len(v.secret) == 0) {
		return Claims{}, fmt.Errorf("%w: verifier not configured", ErrUnauthenticated)
	}
	opts := []jwt.ParseOption{
		jwt.WithValidate(true),
		jwt.WithContext(ctx),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	if v.keySet != nil {
		opts = append(opts, jwt.WithKeySet(v.keySet))
	} else {
		opts = append(opts, jwt.WithKey(jwa.HS256, v.secret))
	}
	token, err := jwt.ParseString(rawToken, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	accountID, err := uuid.Parse(token.Subject())
	if err != nil {
		return Claims{}, fmt.Errorf("%w: subject is not an account id", ErrUnauthenticated)
	}
	claims := Claims{AccountID: accountID}
	if rawEmail, ok := token.Get("email"); ok {
		if email, ok := rawEmail.(string); ok {
			claims.Email = email
		}
	}
	return claims, nil
}
