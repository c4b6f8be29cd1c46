package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrNotConfigured = errors.New("token signing is not configured")
)

// Role values carried in capability token metadata.
const (
	RoleHost   = "host"
	RoleViewer = "viewer"
)

// VideoGrant is the media-room permission block understood by the media provider.
type VideoGrant struct {
	Room           string `json:"room"`
	RoomJoin       bool   `json:"roomJoin"`
	CanPublish     bool   `json:"canPublish"`
	CanSubscribe   bool   `json:"canSubscribe"`
	CanPublishData bool   `json:"canPublishData"`
}

// CapabilityClaims is the claim layout of a media room access token.
// Metadata is a JSON string, as the media provider forwards it verbatim
// to other participants.
type CapabilityClaims struct {
	jwt.RegisteredClaims
	Name     string     `json:"name,omitempty"`
	Metadata string     `json:"metadata,omitempty"`
	Video    VideoGrant `json:"video"`
}

type participantMetadata struct {
	Role string `json:"role"`
}

// Role decodes the role stored in the metadata claim.
func (c *CapabilityClaims) Role() string {
	var md participantMetadata
	if err := json.Unmarshal([]byte(c.Metadata), &md); err != nil {
		return ""
	}
	return md.Role
}

// Grant describes a token to mint.
type Grant struct {
	Room     string
	Identity string
	Name     string
	Role     string
}

// Signer mints HS256 capability tokens for the media provider.
type Signer struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
	skew      time.Duration
}

// NewSigner creates a capability token signer. An empty key or secret yields
// a signer whose Sign always fails with ErrNotConfigured.
func NewSigner(apiKey, apiSecret string, ttl, notBeforeSkew time.Duration) *Signer {
	return &Signer{
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		ttl:       ttl,
		skew:      notBeforeSkew,
	}
}

// Configured reports whether both key and secret are present.
func (s *Signer) Configured() bool {
	return s.apiKey != "" && len(s.apiSecret) > 0
}

// TTL is the validity period of minted tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign mints a token for g valid from now-skew until now+ttl.
func (s *Signer) Sign(g Grant, now time.Time) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}

	md, err := json.Marshal(participantMetadata{Role: g.Role})
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	name := g.Name
	if name == "" {
		name = g.Identity
	}

	claims := &CapabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.apiKey,
			Subject:   g.Identity,
			NotBefore: jwt.NewNumericDate(now.Add(-s.skew)),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Name:     name,
		Metadata: string(md),
		Video: VideoGrant{
			Room:           g.Room,
			RoomJoin:       true,
			CanPublish:     g.Role == RoleHost,
			CanSubscribe:   true,
			CanPublishData: true,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.apiSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
