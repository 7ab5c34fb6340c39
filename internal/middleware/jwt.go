package middleware

import (
	"strings" // String manipulation

	"retail_pos/internal/apperr" // Error taxonomy
	"retail_pos/internal/utils"  // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys set by RequireSession
const (
	KeyUserID       = "userID"
	KeyUsername     = "username"
	KeyRole         = "role"
	KeySessionToken = "sessionToken"
)

// RequireSession validates the bearer session token and stores its claims in the context
func RequireSession(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c.GetHeader("Authorization"))
		if tokenStr == "" {
			apperr.Respond(c, apperr.ErrMissingToken)
			return
		}
		claims, err := utils.ParseJWT(tokenStr, secret) // Parse the JWT token
		if err != nil {
			apperr.Respond(c, apperr.Wrap(apperr.ErrInvalidToken, err))
			return
		}
		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyUsername, claims.Username)
		c.Set(KeyRole, claims.Role)
		c.Set(KeySessionToken, tokenStr)
		c.Next() // Proceed to the next handler
	}
}

// bearerToken extracts the token from an Authorization header value
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// UserID returns the authenticated user id
func UserID(c *gin.Context) string {
	return c.GetString(KeyUserID)
}

// Role returns the authenticated user role
func Role(c *gin.Context) string {
	return c.GetString(KeyRole)
}
