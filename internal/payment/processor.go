// Package payment drives checkout against an external payment processor and
// keeps the invoice ledger in step with capture results.
package payment

import (
	"context" // Request scoped operations

	"github.com/shopspring/decimal" // Money amounts
)

// OrderRequest asks the processor for a new order
type OrderRequest struct {
	ReferenceID string          // Caller side reference, unique per attempt
	Amount      decimal.Decimal // Cart total
}

// Order is a processor order as returned by the processor
type Order struct {
	ID      string         // Processor order id
	Status  string         // Processor status, e.g. CREATED or COMPLETED
	Payload map[string]any // Full response body, relayed to clients verbatim
}

// Processor is the external payment processor
type Processor interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}
