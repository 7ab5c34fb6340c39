package domain

import (
	"time" // Timestamps

	"github.com/google/uuid" // Primary key generation
	"gorm.io/gorm"           // GORM ORM library
)

// Invoice statuses written by the application; capture results may carry
// any other processor status verbatim.
const (
	InvoicePending   = "PENDING"
	InvoiceCompleted = "COMPLETED"
)

// Invoice Model
type Invoice struct {
	ID          string        `gorm:"primaryKey;size:36" json:"id"`                        // Primary key
	OrderID     string        `gorm:"size:64;uniqueIndex;not null" json:"externalOrderId"` // Payment processor order id
	UserID      string        `gorm:"size:36;index;not null" json:"ownerUserId"`           // Owner
	Items       []InvoiceItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`            // Line items
	TotalAmount float64       `gorm:"type:decimal(12,2);not null" json:"totalAmount"`
	Status      string        `gorm:"size:32;index;not null" json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when none was set
func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// InvoiceItem is one line of an invoice; ProductID holds the product scan code
type InvoiceItem struct {
	ID        uint    `gorm:"primaryKey" json:"-"`
	InvoiceID string  `gorm:"size:36;index;not null" json:"-"`
	ProductID string  `gorm:"size:64;index;not null" json:"productId"`
	Name      string  `gorm:"size:255" json:"name"`
	Quantity  int     `gorm:"not null" json:"quantity"`
	Price     float64 `gorm:"type:decimal(10,2);not null" json:"price"`
}

// PopulatedItem is an invoice line joined with the current product document
type PopulatedItem struct {
	InvoiceItem
	Product *Product `json:"product"`
}

// PopulatedInvoice is an invoice whose items carry their products
type PopulatedInvoice struct {
	Invoice
	Items []PopulatedItem `json:"items"`
}
