package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims of a session token issued by the sign-in
// front end.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Identity is the stable caller identity: the subject, or the email when the
// identity provider issued no subject.
func (c *SessionClaims) Identity() string {
	if sub := strings.TrimSpace(c.Subject); sub != "" {
		return sub
	}
	return strings.TrimSpace(c.Email)
}

// Verifier validates HS256 session tokens.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a session verifier for the shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Verify parses and validates a session token.
func (v *Verifier) Verify(tokenString string) (*SessionClaims, error) {
	if len(v.secret) == 0 {
		return nil, ErrNotConfigured
	}
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Identity() == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueSession signs a session token. It is used by tests and local tooling
// that stand in for the sign-in front end.
func IssueSession(secret, subject, email, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Name:  name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
