package authclient

import (
	"fmt"
	"time"

	"github.com/ashureev/satty/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// DelegationClaims is the token the identity provider hands back: the
// principal in the subject, delegated to the attempt's session key.
type DelegationClaims struct {
	jwt.RegisteredClaims
	SessionKey string `json:"skey"`
}

// MintDelegation signs a delegation for principal. Used by the development
// provider and by tests.
func MintDelegation(key []byte, issuer string, principal domain.Principal, sessionKey string, expiresAt time.Time) (string, error) {
	claims := DelegationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   principal.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionKey: sessionKey,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign delegation: %w", err)
	}
	return token, nil
}

// verifyDelegation checks signature, issuer and expiry, and returns the claims.
func verifyDelegation(key []byte, issuer string, token string, now func() time.Time) (*DelegationClaims, error) {
	claims := &DelegationClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDelegation, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing principal", ErrInvalidDelegation)
	}
	return claims, nil
}
