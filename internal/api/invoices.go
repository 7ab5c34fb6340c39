package api

import (
	"net/http" // HTTP status codes

	"retail_pos/internal/apperr"     // Error taxonomy
	"retail_pos/internal/domain"     // Domain models
	"retail_pos/internal/ledger"     // Invoice ledger
	"retail_pos/internal/middleware" // Session claims
	"retail_pos/internal/utils"      // Cache
	"retail_pos/internal/validation" // Request validation

	"github.com/gin-gonic/gin"                            // Gin web framework
	validatorv10 "github.com/go-playground/validator/v10" // Struct validation
)

// CreateInvoiceRequest records an invoice by hand for a user
type CreateInvoiceRequest struct {
	OwnerUserID string   `json:"ownerUserId" validate:"required"`
	ScanCodes   []string `json:"scanCodes" validate:"required,min=1,dive,scancode"`
}

// InvoiceItemRequest is one invoice line in an admin edit
type InvoiceItemRequest struct {
	ProductID string  `json:"productId" validate:"required"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	Price     float64 `json:"price" validate:"gte=0"`
}

// UpdateInvoiceRequest overwrites invoice fields; omitted fields are kept
type UpdateInvoiceRequest struct {
	OwnerUserID *string              `json:"ownerUserId" validate:"omitempty,min=1"`
	Status      *string              `json:"status" validate:"omitempty,min=1"`
	TotalAmount *float64             `json:"totalAmount" validate:"omitempty,gte=0"`
	Items       []InvoiceItemRequest `json:"items" validate:"omitempty,dive"` // Replaces every line when present
}

// ListOwnInvoicesHandler returns the caller's invoices with their products
func ListOwnInvoicesHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		invoices, err := svc.ListForOwner(ctx, middleware.UserID(c))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		populated, err := svc.PopulateMany(ctx, invoices)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, populated)
	}
}

// CreateInvoiceHandler records a manual invoice
func CreateInvoiceHandler(svc *ledger.Service, cache *utils.Cache, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateInvoiceRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		invoice, err := svc.Create(c.Request.Context(), req.OwnerUserID, req.ScanCodes)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		cache.Invalidate(c.Request.Context(), nil, adminInvoicesPrefix)
		c.JSON(http.StatusCreated, invoice)
	}
}

// canReadInvoice allows the owner and staff roles
func canReadInvoice(c *gin.Context, invoice *domain.Invoice) bool {
	switch middleware.Role(c) {
	case domain.RoleAdmin, domain.RoleModerator:
		return true
	}
	return invoice.UserID == middleware.UserID(c)
}

// GetInvoiceHandler returns one invoice, by id or processor order id
func GetInvoiceHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		invoice, err := svc.Get(ctx, c.Param("id"))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if !canReadInvoice(c, invoice) {
			apperr.Respond(c, apperr.ErrForbidden)
			return
		}
		populated, err := svc.Populate(ctx, invoice)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, populated)
	}
}

// UpdateInvoiceHandler overwrites invoice fields as given
func UpdateInvoiceHandler(svc *ledger.Service, cache *utils.Cache, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateInvoiceRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		update := ledger.Update{UserID: req.OwnerUserID, Status: req.Status, TotalAmount: req.TotalAmount}
		if req.Items != nil {
			update.Items = make([]domain.InvoiceItem, len(req.Items))
			for i, item := range req.Items {
				update.Items[i] = domain.InvoiceItem{
					ProductID: item.ProductID,
					Name:      item.Name,
					Quantity:  item.Quantity,
					Price:     item.Price,
				}
			}
		}
		invoice, err := svc.UpdateByID(c.Request.Context(), c.Param("id"), update)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		cache.Invalidate(c.Request.Context(), nil, adminInvoicesPrefix)
		c.JSON(http.StatusOK, invoice)
	}
}

// DeleteInvoiceHandler removes an invoice and its lines
func DeleteInvoiceHandler(svc *ledger.Service, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteByID(c.Request.Context(), c.Param("id")); err != nil {
			apperr.Respond(c, err)
			return
		}
		cache.Invalidate(c.Request.Context(), nil, adminInvoicesPrefix)
		c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted successfully"})
	}
}
