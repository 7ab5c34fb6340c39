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

// ProfileRequest edits the caller's own profile
type ProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=1,max=64"` // Display name
	Email    *string `json:"email" validate:"omitempty,email"`           // Login email
}

// GetProfileHandler returns the caller's profile
func GetProfileHandler(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.Profile(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// UpdateProfileHandler edits the caller's username and email
func UpdateProfileHandler(svc *auth.Service, cache *utils.Cache, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProfileRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		if req.Username == nil && req.Email == nil {
			apperr.Respond(c, apperr.ErrEmptyUpdateBody)
			return
		}
		user, err := svc.UpdateProfile(c.Request.Context(), middleware.UserID(c), auth.ProfileUpdate{
			Username: req.Username,
			Email:    req.Email,
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		cache.Invalidate(c.Request.Context(), nil, adminUsersPrefix)
		c.JSON(http.StatusOK, user)
	}
}

// DeleteProfileHandler deletes the caller's account
func DeleteProfileHandler(svc *auth.Service, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteUser(c.Request.Context(), middleware.UserID(c)); err != nil {
			apperr.Respond(c, err)
			return
		}
		cache.Invalidate(c.Request.Context(), nil, adminUsersPrefix)
		c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
	}
}

// GetUserHandler returns a user by id; routed behind RequireSelf
func GetUserHandler(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.Profile(c.Request.Context(), c.Param("id"))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
