package testing

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer mints HS256 bearer tokens that validate against
// auth.NewSharedSecretVerifier with the same issuer/audience/secret.
type TokenIssuer struct {
	Issuer   string
	Audience string
	Secret   []byte
}

// NewTokenIssuer creates an issuer with test defaults.
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{Issuer: "https://auth.test", Audience: "purchasekit-test", Secret: []byte(secret)}
}

// Token mints a valid one-hour token for the account.
func (ti *TokenIssuer) Token(accountID uuid.UUID) string {
	return ti.TokenWithExpiry(accountID, time.Now().Add(time.Hour))
}

// TokenWithExpiry mints a token expiring at the given time.
func (ti *TokenIssuer) TokenWithExpiry(accountID uuid.UUID, expiry time.Time) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": accountID.String(),
		"iss": ti.Issuer,
		"aud": ti.Audience,
		"exp": expiry.Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.Secret)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return signed
}

// ExpiredToken mints a token that has already expired.
func (ti *TokenIssuer) ExpiredToken(accountID uuid.UUID) string {
	return ti.TokenWithExpiry(accountID, time.Now().Add(-time.Hour))
}
