package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-rooms/pkg/jwt"
	"github.com/weiawesome/wes-io-rooms/pkg/response"
)

const (
	UserIDKey     = "user_id"
	EmailKey      = "email"
	UsernameKey   = "username"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// SessionVerifier validates a session token issued by the sign-in front end.
type SessionVerifier interface {
	Verify(token string) (*jwt.SessionClaims, error)
}

// AuthMiddleware resolves the caller identity from a bearer session token.
type AuthMiddleware struct {
	verifier SessionVerifier
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(verifier SessionVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth rejects requests without a valid session token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			response.Unauthenticated(c, "missing authorization header")
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.Unauthenticated(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := m.verifier.Verify(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			response.Unauthenticated(c, err.Error())
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth resolves the identity when a valid token is present and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if strings.HasPrefix(authHeader, BearerPrefix) {
			if claims, err := m.verifier.Verify(strings.TrimPrefix(authHeader, BearerPrefix)); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *jwt.SessionClaims) {
	c.Set(UserIDKey, claims.Identity())
	c.Set(EmailKey, claims.Email)
	c.Set(UsernameKey, claims.Name)
}

// GetUserID extracts the caller identity from Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetUsername extracts the caller display name from Gin context.
func GetUsername(c *gin.Context) string {
	return c.GetString(UsernameKey)
}

// GetEmail extracts email from Gin context.
func GetEmail(c *gin.Context) string {
	return c.GetString(EmailKey)
}
