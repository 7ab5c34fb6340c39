package domain

import "time"

// Outbox row states
const (
	OutboxPending = "PENDING" // Capture confirmed, ledger not yet updated
	OutboxApplied = "APPLIED" // Ledger carries the captured status
	OutboxFailed  = "FAILED"  // Gave up after the configured attempts
)

// CaptureOutbox records a processor capture result until the invoice ledger
// reflects it. One row per processor order.
type CaptureOutbox struct {
	OrderID   string     `gorm:"primaryKey;size:64" json:"orderId"` // Processor order id
	Status    string     `gorm:"size:32;not null" json:"status"`    // Processor status to apply
	State     string     `gorm:"size:16;index;not null" json:"state"`
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	LastError string     `gorm:"type:text" json:"lastError"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	AppliedAt *time.Time `json:"appliedAt"`
}
