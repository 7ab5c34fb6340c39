package middleware

import (
	"net/http" // HTTP methods
	"time"     // Cookie lifetime

	"retail_pos/internal/apperr" // Error taxonomy
	"retail_pos/internal/utils"  // Anti-forgery helpers

	"github.com/gin-gonic/gin" // Gin web framework
)

// RequireRole lets the request through only when the session role is allowed
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role, exists := c.Get(KeyRole) // Role from the session claims
		if !exists {
			apperr.Respond(c, apperr.ErrMissingToken)
			return
		}
		if _, ok := allowed[role.(string)]; !ok {
			apperr.Respond(c, apperr.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequireSelf lets the request through only when the path parameter names the caller
func RequireSelf(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			apperr.Respond(c, apperr.ErrMissingToken)
			return
		}
		if c.Param(param) != userID {
			apperr.Respond(c, apperr.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequireAntiForgery validates the anti-forgery token on state-changing
// requests. Safe methods pass through, as with the csurf defaults.
func RequireAntiForgery(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		secret, err := c.Cookie(utils.CSRFCookie)
		if err != nil {
			apperr.Respond(c, apperr.ErrInvalidAntiForgeryToken)
			return
		}
		if err := utils.VerifyCSRFToken(key, csrfHeader(c), secret, c.GetString(KeySessionToken)); err != nil {
			apperr.Respond(c, apperr.Wrap(apperr.ErrInvalidAntiForgeryToken, err))
			return
		}
		c.Next()
	}
}

func csrfHeader(c *gin.Context) string {
	for _, h := range utils.CSRFHeaders {
		if v := c.GetHeader(h); v != "" {
			return v
		}
	}
	return ""
}

// IssueAntiForgery returns a handler that hands out a token bound to the
// caller's session; the cookie secret is created once and reused.
func IssueAntiForgery(key string, ttl time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret, err := c.Cookie(utils.CSRFCookie)
		if err != nil || secret == "" {
			secret, err = utils.NewCSRFSecret()
			if err != nil {
				apperr.Respond(c, err)
				return
			}
		}
		token, err := utils.IssueCSRFToken(key, secret, c.GetString(KeySessionToken))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		sameSite := http.SameSiteLaxMode
		if secure {
			sameSite = http.SameSiteNoneMode
		}
		c.SetSameSite(sameSite)
		c.SetCookie(utils.CSRFCookie, secret, int(ttl.Seconds()), "/", "", secure, true)
		c.JSON(http.StatusOK, gin.H{"csrfToken": token})
	}
}
