// Package catalog keeps product records keyed by scan code, enriched lazily
// from an external catalog source and carrying a rating aggregate.
package catalog

import (
	"context"      // Request scoped operations
	"errors"       // Error classification
	"math"         // Rating validation
	"math/rand" // Price generation
	"strings"      // Search normalisation
	"time"         // Staleness

	"retail_pos/internal/apperr" // Error taxonomy
	"retail_pos/internal/domain" // Domain models
	"retail_pos/internal/utils"  // Cache

	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/datatypes"          // JSON columns
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/clause"        // Upsert clauses
)

// DefaultPageSize is the product list page size when none is requested
const DefaultPageSize = 25

// Service implements the catalog operations
type Service struct {
	db     *gorm.DB
	source Source
	cache  *utils.Cache
	now    func() time.Time
	rnd    func() float64
}

// NewService builds a catalog service; cache may be nil
func NewService(db *gorm.DB, source Source, cache *utils.Cache) *Service {
	return &Service{db: db, source: source, cache: cache, now: time.Now, rnd: rand.Float64}
}

func productKey(scanCode string) string { return "product:" + scanCode }

// GetOrRefresh returns the product for scanCode, creating it from the
// external source when unknown and refreshing it when stale.
func (s *Service) GetOrRefresh(ctx context.Context, scanCode string) (*domain.Product, error) {
	now := s.now()
	var cached domain.Product
	if found, err := s.cache.Get(ctx, productKey(scanCode), &cached); err == nil && found && !cached.Stale(now) {
		return &cached, nil
	}

	product, err := s.find(ctx, scanCode)
	switch {
	case errors.Is(err, apperr.ErrProductNotFound):
		product, err = s.createFromSource(ctx, scanCode)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case product.Stale(now):
		product = s.refresh(ctx, product)
	}

	if err := s.cache.Set(ctx, productKey(scanCode), product); err != nil {
		logrus.WithFields(logrus.Fields{"scan_code": scanCode, "error": err.Error()}).Warn("Failed to cache product")
	}
	return product, nil
}

// find loads a product with its ratings
func (s *Service) find(ctx context.Context, scanCode string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.WithContext(ctx).Preload("Ratings").Where("scan_code = ?", scanCode).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrProductNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("Failed to fetch product", err)
	}
	return &product, nil
}

func (s *Service) createFromSource(ctx context.Context, scanCode string) (*domain.Product, error) {
	info, err := s.source.Lookup(ctx, scanCode)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, apperr.ErrProductNotFound
	}
	product := domain.Product{
		ScanCode:    scanCode,
		Name:        info.Name,
		Description: info.Description,
		Category:    info.Category,
		Ingredients: datatypes.JSONSlice[string](info.Ingredients),
		ImageURL:    info.ImageURL,
		Price:       GeneratePrice(info.Category, s.rnd),
		Ratings:     []domain.Rating{},
		RefreshedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&product).Error; err != nil {
		// Lost a creation race against a concurrent lookup of the same code
		if existing, findErr := s.find(ctx, scanCode); findErr == nil {
			return existing, nil
		}
		return nil, apperr.Persistence("Failed to create product", err)
	}
	logrus.WithFields(logrus.Fields{
		"scan_code": scanCode,      // Product scan code
		"price":     product.Price, // Generated price
	}).Info("Product created from catalog source")
	return &product, nil
}

// refresh overwrites descriptive fields and price from the source. Ratings are
// untouched. Source failures keep the stored product as is.
func (s *Service) refresh(ctx context.Context, product *domain.Product) *domain.Product {
	log := logrus.WithField("scan_code", product.ScanCode)
	info, err := s.source.Lookup(ctx, product.ScanCode)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Catalog refresh failed, serving stored product")
		return product
	}
	if info == nil {
		log.Warn("Catalog source no longer knows product, serving stored product")
		return product
	}
	updates := map[string]any{
		"name":         info.Name,
		"description":  info.Description,
		"category":     info.Category,
		"ingredients":  datatypes.JSONSlice[string](info.Ingredients),
		"image_url":    info.ImageURL,
		"price":        GeneratePrice(info.Category, s.rnd),
		"refreshed_at": s.now(),
	}
	if err := s.db.WithContext(ctx).Model(product).Updates(updates).Error; err != nil {
		log.WithField("error", err.Error()).Warn("Failed to store refreshed product")
		return product
	}
	fresh, err := s.find(ctx, product.ScanCode)
	if err != nil {
		return product
	}
	log.Info("Product refreshed from catalog source")
	return fresh
}

// List returns a page of products, refreshing stale entries on the way
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	var products []domain.Product
	err := s.db.WithContext(ctx).Preload("Ratings").Order("created_at asc, scan_code asc").Offset(offset).Limit(limit).Find(&products).Error
	if err != nil {
		return nil, apperr.Persistence("Failed to fetch products", err)
	}
	now := s.now()
	for i := range products {
		if products[i].Stale(now) {
			products[i] = *s.refresh(ctx, &products[i])
		}
	}
	return products, nil
}

// ProductInput carries admin supplied product fields; nil pointers are unset
type ProductInput struct {
	ScanCode    string
	Name        *string
	Description *string
	Category    *string
	Ingredients []string
	ImageURL    *string
	Stock       *int
	Price       *float64
}

// Create adds a product by hand; a missing price is generated from the category
func (s *Service) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if strings.TrimSpace(in.ScanCode) == "" {
		return nil, apperr.Validation("Scan code is required")
	}
	if _, err := s.find(ctx, in.ScanCode); err == nil {
		return nil, apperr.ErrDuplicateScan
	} else if !errors.Is(err, apperr.ErrProductNotFound) {
		return nil, err
	}
	product := domain.Product{
		ScanCode:    in.ScanCode,
		Name:        deref(in.Name),
		Description: deref(in.Description),
		Category:    deref(in.Category),
		Ingredients: datatypes.JSONSlice[string](in.Ingredients),
		ImageURL:    deref(in.ImageURL),
		Ratings:     []domain.Rating{},
		RefreshedAt: s.now(),
	}
	if in.Stock != nil {
		product.Stock = *in.Stock
	}
	if in.Price != nil {
		product.Price = *in.Price
	} else {
		product.Price = GeneratePrice(product.Category, s.rnd)
	}
	if product.Ingredients == nil {
		product.Ingredients = datatypes.JSONSlice[string]{}
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&product).Error; err != nil {
		return nil, apperr.Persistence("Failed to create product", err)
	}
	return &product, nil
}

// Update edits the descriptive fields, price and stock of a product
func (s *Service) Update(ctx context.Context, scanCode string, in ProductInput) (*domain.Product, error) {
	product, err := s.find(ctx, scanCode)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Category != nil {
		updates["category"] = *in.Category
	}
	if in.Ingredients != nil {
		updates["ingredients"] = datatypes.JSONSlice[string](in.Ingredients)
	}
	if in.ImageURL != nil {
		updates["image_url"] = *in.ImageURL
	}
	if in.Stock != nil {
		updates["stock"] = *in.Stock
	}
	if in.Price != nil {
		updates["price"] = *in.Price
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(product).Updates(updates).Error; err != nil {
			return nil, apperr.Persistence("Failed to update product", err)
		}
	}
	s.cache.Invalidate(ctx, []string{productKey(scanCode)})
	return s.find(ctx, scanCode)
}

// Delete removes a product and its ratings
func (s *Service) Delete(ctx context.Context, scanCode string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scan_code = ?", scanCode).Delete(&domain.Rating{}).Error; err != nil {
			return err
		}
		res := tx.Where("scan_code = ?", scanCode).Delete(&domain.Product{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrProductNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrProductNotFound) {
			return err
		}
		return apperr.Persistence("Failed to delete product", err)
	}
	s.cache.Invalidate(ctx, []string{productKey(scanCode)})
	logrus.WithField("scan_code", scanCode).Info("Product deleted")
	return nil
}

// Rate records userID's score for a product, replacing an earlier score by the
// same user, and recomputes the average in the same transaction.
func (s *Service) Rate(ctx context.Context, scanCode, userID string, score float64, comment string) (*domain.Product, error) {
	if math.IsNaN(score) || score < 0 || score > 5 {
		return nil, apperr.ErrInvalidRating
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Product{}).Where("scan_code = ?", scanCode).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperr.ErrProductNotFound
		}
		rating := domain.Rating{ScanCode: scanCode, UserID: userID, Score: score, Comment: comment}
		upsert := clause.OnConflict{
			Columns:   []clause.Column{{Name: "scan_code"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "comment", "updated_at"}),
		}
		if err := tx.Clauses(upsert).Create(&rating).Error; err != nil {
			return err
		}
		avg := gorm.Expr("(SELECT COALESCE(AVG(score), 0) FROM ratings WHERE ratings.scan_code = ?)", scanCode)
		return tx.Model(&domain.Product{}).Where("scan_code = ?", scanCode).Update("average_rating", avg).Error
	})
	if err != nil {
		if errors.Is(err, apperr.ErrProductNotFound) {
			return nil, err
		}
		return nil, apperr.Persistence("Failed to update rating", err)
	}
	s.cache.Invalidate(ctx, []string{productKey(scanCode)})
	logrus.WithFields(logrus.Fields{
		"scan_code": scanCode, // Rated product
		"user_id":   userID,   // Rating author
		"score":     score,    // Submitted score
	}).Info("Product rated")
	return s.find(ctx, scanCode)
}

// SearchByName matches names case-insensitively. No match is reported as
// ErrNoMatches rather than an empty list.
func (s *Service) SearchByName(ctx context.Context, query string) ([]domain.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var products []domain.Product
	err := s.db.WithContext(ctx).Preload("Ratings").
		Where("LOWER(name) LIKE ? ESCAPE '!'", pattern).
		Order("name asc").
		Find(&products).Error
	if err != nil {
		return nil, apperr.Persistence("Failed to search products", err)
	}
	if len(products) == 0 {
		return nil, apperr.ErrNoMatches
	}
	return products, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// ListPurchasedByUser returns every product found on the user's invoices,
// annotated with the user's own score (0 when unrated).
func (s *Service) ListPurchasedByUser(ctx context.Context, userID string) ([]domain.ProductWithRating, error) {
	var scanCodes []string
	err := s.db.WithContext(ctx).Model(&domain.InvoiceItem{}).
		Distinct("invoice_items.product_id").
		Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id").
		Where("invoices.user_id = ?", userID).
		Pluck("invoice_items.product_id", &scanCodes).Error
	if err != nil {
		return nil, apperr.Persistence("Failed to fetch purchases", err)
	}
	out := []domain.ProductWithRating{}
	if len(scanCodes) == 0 {
		return out, nil
	}
	var products []domain.Product
	err = s.db.WithContext(ctx).Preload("Ratings").Where("scan_code IN ?", scanCodes).Order("name asc").Find(&products).Error
	if err != nil {
		return nil, apperr.Persistence("Failed to fetch purchased products", err)
	}
	for _, p := range products {
		annotated := domain.ProductWithRating{Product: p}
		for _, r := range p.Ratings {
			if r.UserID == userID {
				annotated.Rating = r.Score
				break
			}
		}
		out = append(out, annotated)
	}
	return out, nil
}

// Resolve maps every distinct scan code to its current product. The first
// code that cannot be resolved fails the whole call.
func (s *Service) Resolve(ctx context.Context, scanCodes []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(scanCodes))
	for _, code := range scanCodes {
		if _, done := out[code]; done {
			continue
		}
		product, err := s.GetOrRefresh(ctx, code)
		if err != nil {
			return nil, err
		}
		out[code] = product
	}
	return out, nil
}

// FindMany loads the products for the given scan codes, skipping unknown ones
func (s *Service) FindMany(ctx context.Context, scanCodes []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(scanCodes))
	if len(scanCodes) == 0 {
		return out, nil
	}
	var products []domain.Product
	if err := s.db.WithContext(ctx).Where("scan_code IN ?", scanCodes).Find(&products).Error; err != nil {
		return nil, apperr.Persistence("Failed to fetch products", err)
	}
	for i := range products {
		out[products[i].ScanCode] = &products[i]
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
