package domain

import (
	"time" // Timestamps

	"github.com/google/uuid" // Primary key generation
	"gorm.io/datatypes"      // JSON columns
	"gorm.io/gorm"           // GORM ORM library
)

// Report is an immutable sales snapshot
type Report struct {
	ID                    string                             `gorm:"primaryKey;size:36" json:"id"`
	Sales                 int64                              `gorm:"not null" json:"sales"`             // Invoice count
	Revenue               float64                            `gorm:"not null" json:"revenue"`           // Sum of invoice totals
	AverageOrderPrice     float64                            `gorm:"not null" json:"averageOrderPrice"` // Mean invoice total
	MostPurchasedProducts datatypes.JSONSlice[ReportProduct] `json:"mostPurchasedProducts"`             // Top products by quantity
	CreatedAt             time.Time                          `json:"createdAt"`
}

// BeforeCreate assigns a UUID when none was set
func (r *Report) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ReportProduct is one entry of the best sellers list
type ReportProduct struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	ScanCode      string `json:"scanCode"`
	PurchaseCount int64  `json:"purchaseCount"`
}
