package domain

import (
	"time" // Timestamps

	"github.com/google/uuid" // Primary key generation
	"gorm.io/datatypes"      // JSON columns
	"gorm.io/gorm"           // GORM ORM library
)

// StaleAfter is how long catalog data is trusted before a refresh
const StaleAfter = 24 * time.Hour

// Product Model
type Product struct {
	ID            string                      `gorm:"primaryKey;size:36" json:"id"`                       // Primary key
	ScanCode      string                      `gorm:"size:64;uniqueIndex;not null" json:"scanCode"`       // Barcode, domain key
	Name          string                      `gorm:"size:255" json:"name"`                               // Display name
	Description   string                      `gorm:"type:text" json:"description"`                       // Generic name from the catalog source
	Category      string                      `gorm:"type:text" json:"category"`                          // Comma separated categories
	Ingredients   datatypes.JSONSlice[string] `json:"ingredients"`                                        // Ingredient list
	ImageURL      string                      `gorm:"size:512" json:"imageUrl"`                           // Product picture
	Stock         int                         `gorm:"not null;default:0" json:"stock"`                    // Units in stock
	Price         float64                     `gorm:"type:decimal(10,2);not null;default:0" json:"price"` // Unit price
	Ratings       []Rating                    `gorm:"foreignKey:ScanCode;references:ScanCode" json:"ratings"`
	AverageRating float64                     `gorm:"not null;default:0" json:"averageRating"` // Mean of Ratings scores
	RefreshedAt   time.Time                   `json:"refreshedAt"`                             // Last catalog source sync
	CreatedAt     time.Time                   `json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when none was set
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Ingredients == nil {
		p.Ingredients = datatypes.JSONSlice[string]{}
	}
	return nil
}

// Stale reports whether the catalog data should be refreshed at now
func (p *Product) Stale(now time.Time) bool {
	return now.Sub(p.RefreshedAt) > StaleAfter
}

// Rating is one user's score for a product; a user rates a product at most once
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	ScanCode  string    `gorm:"size:64;not null;uniqueIndex:idx_rating_product_user" json:"-"` // Rated product
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_rating_product_user" json:"userId"`
	Score     float64   `gorm:"not null" json:"score"` // 0 to 5
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProductWithRating is a product annotated with one user's own score
type ProductWithRating struct {
	Product
	Rating float64 `json:"rating"` // Caller's score, 0 when unrated
}
