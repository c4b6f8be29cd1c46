package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parse verifies a capability token the way the media provider does.
func parse(s *Signer, tokenString string, now time.Time) (*CapabilityClaims, error) {
	claims := &CapabilityClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.apiSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.apiKey),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func TestSignAndParseHostToken(t *testing.T) {
	s := NewSigner("key", "secret", time.Hour, 10*time.Second)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	token, err := s.Sign(Grant{Room: "abc123", Identity: "U1", Name: "Alice", Role: RoleHost}, now)
	require.NoError(t, err)

	claims, err := parse(s, token, now)
	require.NoError(t, err)

	assert.Equal(t, "key", claims.Issuer)
	assert.Equal(t, "U1", claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, RoleHost, claims.Role())
	assert.Equal(t, now.Add(-10*time.Second).Unix(), claims.NotBefore.Unix())
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, VideoGrant{
		Room:           "abc123",
		RoomJoin:       true,
		CanPublish:     true,
		CanSubscribe:   true,
		CanPublishData: true,
	}, claims.Video)
}

func TestViewerTokenCannotPublish(t *testing.T) {
	s := NewSigner("key", "secret", time.Hour, 10*time.Second)
	now := time.Now()

	token, err := s.Sign(Grant{Room: "abc123", Identity: "U2", Role: RoleViewer}, now)
	require.NoError(t, err)

	claims, err := parse(s, token, now)
	require.NoError(t, err)
	assert.False(t, claims.Video.CanPublish)
	assert.Equal(t, RoleViewer, claims.Role())
	assert.Equal(t, "U2", claims.Name)
}

func TestExpiredToken(t *testing.T) {
	s := NewSigner("key", "secret", time.Hour, 10*time.Second)
	now := time.Now()

	token, err := s.Sign(Grant{Room: "r", Identity: "U1", Role: RoleViewer}, now)
	require.NoError(t, err)

	_, err = parse(s, token, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSignerNotConfigured(t *testing.T) {
	s := NewSigner("", "", time.Hour, 0)
	assert.False(t, s.Configured())

	_, err := s.Sign(Grant{Room: "r", Identity: "U1"}, time.Now())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestWrongSecretRejected(t *testing.T) {
	a := NewSigner("key", "secret-a", time.Hour, 0)
	b := NewSigner("key", "secret-b", time.Hour, 0)
	now := time.Now()

	token, err := a.Sign(Grant{Room: "r", Identity: "U1", Role: RoleViewer}, now)
	require.NoError(t, err)

	_, err = parse(b, token, now)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionVerify(t *testing.T) {
	v := NewVerifier("session-secret")

	token, err := IssueSession("session-secret", "", "bob@example.com", "Bob", time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims.Identity())
	assert.Equal(t, "Bob", claims.Name)

	_, err = v.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := IssueSession("session-secret", "U1", "", "", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	anonymous, err := IssueSession("session-secret", "", "", "Nobody", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
