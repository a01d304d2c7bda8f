package authclient

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const stateIssuer = "satty"

// stateClaims is the signed login state round-tripped through the provider.
type stateClaims struct {
	jwt.RegisteredClaims
	// SessionKeyHash binds the delegation the provider issues to this attempt.
	SessionKeyHash string `json:"skh"`
}

// StateManager signs and verifies login state parameters.
type StateManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateManager creates a state manager. A zero ttl defaults to ten minutes.
func NewStateManager(secret []byte, ttl time.Duration) *StateManager {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &StateManager{secret: secret, ttl: ttl, now: time.Now}
}

// loginState is the decoded form of a verified state parameter.
type loginState struct {
	DeviceID       string
	AttemptID      string
	SessionKeyHash string
}

// Encode signs a state for deviceID/attemptID bound to sessionKey.
func (m *StateManager) Encode(deviceID, attemptID, sessionKey string) (string, error) {
	now := m.now()
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			Subject:   deviceID,
			ID:        attemptID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		SessionKeyHash: hashSessionKey(sessionKey),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return token, nil
}

// Decode verifies a state parameter.
func (m *StateManager) Decode(token string) (*loginState, error) {
	if token == "" {
		return nil, ErrStateMismatch
	}
	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateMismatch, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrStateMismatch
	}
	return &loginState{
		DeviceID:       claims.Subject,
		AttemptID:      claims.ID,
		SessionKeyHash: claims.SessionKeyHash,
	}, nil
}

// NewSessionKey returns a random session key for one login attempt.
func NewSessionKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func hashSessionKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
