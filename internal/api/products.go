package api

import (
	"net/http" // HTTP status codes
	"strconv"  // Query parsing

	"retail_pos/internal/apperr"     // Error taxonomy
	"retail_pos/internal/catalog"    // Product catalog
	"retail_pos/internal/middleware" // Session claims
	"retail_pos/internal/validation" // Request validation

	"github.com/gin-gonic/gin"                            // Gin web framework
	validatorv10 "github.com/go-playground/validator/v10" // Struct validation
)

// ProductFields are the editable product fields shared by create and update
type ProductFields struct {
	Name        *string  `json:"name" validate:"omitempty,max=255"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Ingredients []string `json:"ingredients"`
	ImageURL    *string  `json:"imageUrl" validate:"omitempty,url"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
}

func (f ProductFields) empty() bool {
	return f.Name == nil && f.Description == nil && f.Category == nil && f.Ingredients == nil &&
		f.ImageURL == nil && f.Stock == nil && f.Price == nil
}

func (f ProductFields) input(scanCode string) catalog.ProductInput {
	return catalog.ProductInput{
		ScanCode:    scanCode,
		Name:        f.Name,
		Description: f.Description,
		Category:    f.Category,
		Ingredients: f.Ingredients,
		ImageURL:    f.ImageURL,
		Stock:       f.Stock,
		Price:       f.Price,
	}
}

// CreateProductRequest adds a product by hand
type CreateProductRequest struct {
	ScanCode string `json:"scanCode" validate:"required,scancode"`
	ProductFields
}

// RatingRequest scores a product
type RatingRequest struct {
	Rating  *float64 `json:"rating"`  // 0 to 5
	Comment string   `json:"comment"` // Optional free text
}

// ListProductsHandler pages through the catalog, or searches by name when a
// query parameter is present.
func ListProductsHandler(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if q, ok := c.GetQuery("query"); ok {
			products, err := svc.SearchByName(ctx, q)
			if err != nil {
				apperr.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, products)
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(catalog.DefaultPageSize)))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		products, err := svc.List(ctx, limit, offset)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

// CreateProductHandler adds a product; the price is generated when omitted
func CreateProductHandler(svc *catalog.Service, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateProductRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		product, err := svc.Create(c.Request.Context(), req.input(req.ScanCode))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

// BoughtProductsHandler lists what the caller has bought, with their own rating
func BoughtProductsHandler(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := svc.ListPurchasedByUser(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

// GetProductHandler returns a product, fetching or refreshing it from the
// external catalog as needed.
func GetProductHandler(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, err := svc.GetOrRefresh(c.Request.Context(), c.Param("scanCode"))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// UpdateProductHandler edits a product
func UpdateProductHandler(svc *catalog.Service, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProductFields
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		if req.empty() {
			apperr.Respond(c, apperr.ErrEmptyUpdateBody)
			return
		}
		scanCode := c.Param("scanCode")
		product, err := svc.Update(c.Request.Context(), scanCode, req.input(scanCode))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// RateProductHandler records the caller's score for a product
func RateProductHandler(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RatingRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Rating == nil {
			apperr.Respond(c, apperr.ErrInvalidRating)
			return
		}
		product, err := svc.Rate(c.Request.Context(), c.Param("scanCode"), middleware.UserID(c), *req.Rating, req.Comment)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// DeleteProductHandler removes a product and its ratings
func DeleteProductHandler(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("scanCode")); err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
	}
}
