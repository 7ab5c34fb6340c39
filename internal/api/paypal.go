package api

import (
	"net/http" // HTTP status codes

	"retail_pos/internal/apperr"     // Error taxonomy
	"retail_pos/internal/middleware" // Session claims
	"retail_pos/internal/payment"    // Payment orchestrator
	"retail_pos/internal/utils"      // Cache
	"retail_pos/internal/validation" // Request validation

	"github.com/gin-gonic/gin"                            // Gin web framework
	validatorv10 "github.com/go-playground/validator/v10" // Struct validation
)

// CreateOrderRequest is the checkout cart; one entry per scanned unit
type CreateOrderRequest struct {
	ScanCodes []string `json:"scanCodes" validate:"dive,scancode"`
}

// CreatePayPalOrderHandler opens a processor order for the cart and returns
// the processor's order, approval link included.
func CreatePayPalOrderHandler(svc *payment.Orchestrator, cache *utils.Cache, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		order, err := svc.InitiateOrder(c.Request.Context(), middleware.UserID(c), req.ScanCodes)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		cache.Invalidate(c.Request.Context(), nil, adminInvoicesPrefix)
		c.JSON(http.StatusOK, order.Payload)
	}
}

// OrderStatusHandler relays the processor's view of an order
func OrderStatusHandler(svc *payment.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.GetOrderStatus(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, order.Payload)
	}
}

// CapturePaymentHandler captures an approved order and returns the processor
// payload with the updated invoice under "invoice".
func CapturePaymentHandler(svc *payment.Orchestrator, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		capture, err := svc.CaptureOrder(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		cache.Invalidate(c.Request.Context(), nil, adminInvoicesPrefix)
		c.JSON(http.StatusOK, capture.Body())
	}
}
