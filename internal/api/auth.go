package api

import (
	"net/http" // HTTP status codes

	"retail_pos/internal/apperr"     // Error taxonomy
	"retail_pos/internal/auth"       // Credential store
	"retail_pos/internal/middleware" // Session claims
	"retail_pos/internal/utils"      // Cache
	"retail_pos/internal/validation" // Request validation

	"github.com/gin-gonic/gin"                            // Gin web framework
	validatorv10 "github.com/go-playground/validator/v10" // Struct validation
)

// RegisterRequest is the self-registration payload
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=64"` // Display name
	Email    string `json:"email" validate:"required,email"`     // Login email
	Password string `json:"password" validate:"required,min=8"`  // Plain password, hashed before storage
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`    // Login email
	Password string `json:"password" validate:"required"` // Plain password
}

// RegisterHandler creates an account with the default role
func RegisterHandler(svc *auth.Service, cache *utils.Cache, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		if _, err := svc.Register(c.Request.Context(), req.Username, req.Email, req.Password); err != nil {
			apperr.Respond(c, err)
			return
		}
		cache.Invalidate(c.Request.Context(), nil, adminUsersPrefix)
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
	}
}

// LoginHandler exchanges credentials for a session token
func LoginHandler(svc *auth.Service, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		session, err := svc.IssueSession(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// SessionHandler returns the user behind a still valid session token
func SessionHandler(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.Profile(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
