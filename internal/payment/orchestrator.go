package payment

import (
	"context" // Request scoped operations
	"errors"  // Error classification
	"fmt"     // Reference ids
	"time"    // Reference ids

	"retail_pos/internal/apperr" // Error taxonomy
	"retail_pos/internal/domain" // Domain models
	"retail_pos/internal/ledger" // Invoice ledger

	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// Orchestrator runs checkout: order creation, capture and status lookups
type Orchestrator struct {
	processor Processor
	ledger    *ledger.Service
	outbox    *outbox
	now       func() time.Time
}

// NewOrchestrator wires a processor to the ledger
func NewOrchestrator(db *gorm.DB, processor Processor, ledgerSvc *ledger.Service) *Orchestrator {
	return &Orchestrator{
		processor: processor,
		ledger:    ledgerSvc,
		outbox:    &outbox{db: db, ledger: ledgerSvc, now: time.Now},
		now:       time.Now,
	}
}

// InitiateOrder prices the cart, opens a processor order and records a
// PENDING invoice under the processor order id.
func (o *Orchestrator) InitiateOrder(ctx context.Context, userID string, scanCodes []string) (*Order, error) {
	if len(scanCodes) == 0 {
		return nil, apperr.ErrEmptyCart
	}
	cart, err := o.ledger.Quote(ctx, scanCodes)
	if err != nil {
		return nil, err
	}
	referenceID := fmt.Sprintf("%s-%d", userID, o.now().UnixMilli())
	order, err := o.processor.CreateOrder(ctx, OrderRequest{ReferenceID: referenceID, Amount: cart.Total})
	if err != nil {
		return nil, err
	}
	if _, err := o.ledger.RecordCart(ctx, order.ID, userID, cart); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"order_id":     order.ID,                      // Processor order id
		"reference_id": referenceID,                   // Our reference
		"user_id":      userID,                        // Payer
		"amount":       cart.Total.StringFixed(2),     // Cart total
		"state":        StateFromStatus(order.Status), // Lifecycle state
	}).Info("Payment order initiated")
	return order, nil
}

// Capture is a processor capture joined with the updated invoice
type Capture struct {
	Order   *Order
	Invoice *domain.PopulatedInvoice
}

// Body is the client response: the processor payload plus the invoice
func (c *Capture) Body() map[string]any {
	body := make(map[string]any, len(c.Order.Payload)+1)
	for k, v := range c.Order.Payload {
		body[k] = v
	}
	body["invoice"] = c.Invoice
	return body
}

// CaptureOrder captures at the processor, then carries the result into the
// ledger through the outbox. When the ledger write fails the outbox row stays
// pending for the reconciler.
func (o *Orchestrator) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	order, err := o.processor.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{
		"order_id": orderID,                       // Processor order id
		"status":   order.Status,                  // Processor status
		"state":    StateFromStatus(order.Status), // Lifecycle state
	})

	if err := o.outbox.record(ctx, orderID, order.Status); err != nil {
		log.WithField("error", err.Error()).Error("Failed to record capture in outbox")
		if err := o.ledger.ApplyCaptureResult(ctx, orderID, order.Status); err != nil {
			log.WithField("error", err.Error()).Error("Capture confirmed but invoice not updated")
			return nil, apperr.Persistence("Payment captured but invoice update failed", err)
		}
	} else if err := o.outbox.apply(ctx, orderID, order.Status); err != nil {
		if markErr := o.outbox.failed(ctx, orderID, err, false); markErr != nil {
			log.WithField("error", markErr.Error()).Error("Failed to record outbox attempt")
		}
		log.WithField("error", err.Error()).Error("Capture confirmed, invoice update left to reconciler")
		if errors.Is(err, apperr.ErrInvoiceNotFound) {
			return nil, err
		}
		return nil, apperr.Persistence("Payment captured but invoice update is pending", err)
	}

	invoice, err := o.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	populated, err := o.ledger.Populate(ctx, invoice)
	if err != nil {
		return nil, err
	}
	log.Info("Payment captured")
	return &Capture{Order: order, Invoice: populated}, nil
}

// GetOrderStatus reads the order from the processor; nothing local changes
func (o *Orchestrator) GetOrderStatus(ctx context.Context, orderID string) (*Order, error) {
	return o.processor.GetOrder(ctx, orderID)
}
