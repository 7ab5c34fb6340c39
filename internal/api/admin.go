package api

import (
	"context"  // Cache writes
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // Cache key building

	"retail_pos/internal/apperr"     // Error taxonomy
	"retail_pos/internal/auth"       // Credential store
	"retail_pos/internal/domain"     // Domain models
	"retail_pos/internal/ledger"     // Invoice ledger
	"retail_pos/internal/utils"      // Cache
	"retail_pos/internal/validation" // Request validation

	"github.com/gin-gonic/gin"                            // Gin web framework
	validatorv10 "github.com/go-playground/validator/v10" // Struct validation
	"github.com/sirupsen/logrus"                          // Structured logging
)

// Cache key prefixes of the admin listings; writes drop the whole prefix
const (
	adminUsersPrefix    = "admin:users:"
	adminInvoicesPrefix = "admin:invoices:"
)

// UserPage is one page of the admin user listing
type UserPage struct {
	Users      []domain.User `json:"users"`       // Sanitized users
	Page       int           `json:"page"`        // Current page
	PageSize   int           `json:"page_size"`   // Page size
	Total      int64         `json:"total"`       // Total number of users
	TotalPages int           `json:"total_pages"` // Total pages
	Cached     bool          `json:"cached"`      // Served from the cache
}

// pageParams reads page and page_size, clamping page_size to 100
func pageParams(c *gin.Context, defaultSize int) (page, pageSize int) {
	page, pageSize = 1, defaultSize
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}

// storePage caches a listing page; a failed write only costs a later miss
func storePage(ctx context.Context, cache *utils.Cache, key string, page any) {
	if err := cache.Set(ctx, key, page); err != nil {
		logrus.WithFields(logrus.Fields{"cache_key": key, "error": err.Error()}).Warn("Failed to cache page")
	}
}

// ListUsersHandler returns a page of users; pages are cached until a user changes
func ListUsersHandler(svc *auth.Service, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := pageParams(c, 20)
		cacheKey := adminUsersPrefix + "page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)

		var cached UserPage
		if found, err := cache.Get(ctx, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}

		users, total, err := svc.ListUsers(ctx, page, pageSize)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		resp := UserPage{
			Users:      users,
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: (int(total) + pageSize - 1) / pageSize,
		}
		storePage(ctx, cache, cacheKey, resp)
		c.JSON(http.StatusOK, resp)
	}
}

// AdminGetUserHandler returns any user by id
func AdminGetUserHandler(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.Profile(c.Request.Context(), c.Param("id"))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// CreateUserRequest is the admin account creation payload
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=64"` // Display name
	Email    string `json:"email" validate:"required,email"`     // Login email
	Password string `json:"password" validate:"required,min=8"`  // Plain password
	Role     string `json:"role" validate:"omitempty,role"`      // Defaults to user
}

// CreateUserHandler creates an account with any role
func CreateUserHandler(svc *auth.Service, cache *utils.Cache, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		_, err := svc.CreateUser(c.Request.Context(), auth.NewUser{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
			Role:     req.Role,
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		cache.Invalidate(c.Request.Context(), nil, adminUsersPrefix)
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
	}
}

// UpdateUserRequest edits a user; omitted fields are kept
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=1,max=64"` // Display name
	Email    *string `json:"email" validate:"omitempty,email"`           // Login email
	Role     *string `json:"role" validate:"omitempty,role"`             // Admin path only
}

func (r UpdateUserRequest) empty() bool {
	return r.Username == nil && r.Email == nil && r.Role == nil
}

// UpdateUserHandler edits any user, role included
func UpdateUserHandler(svc *auth.Service, cache *utils.Cache, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateUserRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		if req.empty() {
			apperr.Respond(c, apperr.ErrEmptyUpdateBody)
			return
		}
		user, err := svc.UpdateUser(c.Request.Context(), c.Param("id"), auth.ProfileUpdate{
			Username: req.Username,
			Email:    req.Email,
			Role:     req.Role,
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		cache.Invalidate(c.Request.Context(), nil, adminUsersPrefix)
		c.JSON(http.StatusOK, user)
	}
}

// DeleteUserHandler removes any user except the bootstrap admin
func DeleteUserHandler(svc *auth.Service, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
			apperr.Respond(c, err)
			return
		}
		cache.Invalidate(c.Request.Context(), nil, adminUsersPrefix)
		c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
	}
}

// InvoicePage is one page of the admin invoice listing
type InvoicePage struct {
	Invoices   []domain.PopulatedInvoice `json:"invoices"`    // Invoices with their products
	Page       int                       `json:"page"`        // Current page
	PageSize   int                       `json:"page_size"`   // Page size
	Total      int64                     `json:"total"`       // Total number of matching invoices
	TotalPages int                       `json:"total_pages"` // Total pages
	Cached     bool                      `json:"cached"`      // Served from the cache
}

// ListAllInvoicesHandler returns a page of every user's invoices, optionally
// filtered by owner, status or creation date. Pages are cached until an
// invoice changes.
func ListAllInvoicesHandler(svc *ledger.Service, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		// Build cache key from all query params
		var keyParts []string
		for _, k := range []string{"user_id", "status", "from", "to", "page", "page_size"} {
			keyParts = append(keyParts, k+"="+c.DefaultQuery(k, ""))
		}
		cacheKey := adminInvoicesPrefix + strings.Join(keyParts, ":")

		var cached InvoicePage
		if found, err := cache.Get(ctx, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}

		page, pageSize := pageParams(c, 20)
		filter := ledger.Filter{
			UserID: c.Query("user_id"),
			Status: c.Query("status"),
			From:   c.Query("from"),
			To:     c.Query("to"),
		}
		invoices, total, err := svc.ListPage(ctx, filter, page, pageSize)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		populated, err := svc.PopulateMany(ctx, invoices)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		resp := InvoicePage{
			Invoices:   populated,
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: (int(total) + pageSize - 1) / pageSize,
		}
		storePage(ctx, cache, cacheKey, resp)
		c.JSON(http.StatusOK, resp)
	}
}
