package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/pkg/jwt"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// UserContext represents the authenticated caller
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Phone  string    `json:"phone"`
	Roles  []string  `json:"roles"`
}

// AuthMiddleware rejects requests without a valid bearer access token.
// Tokens are issued by the auth service; this service only verifies them.
func AuthMiddleware(verifier *jwt.Verifier, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		fail := func(code, message, reason string, err error) {
			entry := logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"ip":     ClientIP(c),
				"reason": reason,
			})
			if err != nil {
				entry = entry.WithError(err)
			}
			entry.Warn("Authentication failed")

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   code,
				"message": message,
				"code":    reason,
			})
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			fail("unauthorized", "Authorization header is required", "MISSING_AUTH_HEADER", nil)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			fail("unauthorized", "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT", nil)
			return
		}

		claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				fail("token_expired", "Access token has expired. Please refresh your token.", "TOKEN_EXPIRED", err)
			} else {
				fail("invalid_token", "Invalid access token", "INVALID_TOKEN", err)
			}
			return
		}

		c.Set(UserContextKey, UserContext{
			UserID: claims.UserID,
			Phone:  claims.Phone,
			Roles:  claims.Roles,
		})
		c.Set("user_id", claims.UserID.String())
		c.Next()
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}
	userCtx, ok := value.(UserContext)
	return userCtx, ok
}

// RequireRole allows the request through only when the authenticated caller holds role.
// Must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUserContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "User context not found",
			})
			return
		}
		for _, r := range user.Roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "Insufficient permissions",
			"code":    "ROLE_REQUIRED",
		})
	}
}
