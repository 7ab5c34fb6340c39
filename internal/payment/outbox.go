package payment

import (
	"context" // Request scoped operations
	"time"    // Timestamps

	"retail_pos/internal/domain" // Domain models
	"retail_pos/internal/ledger" // Invoice ledger

	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Upsert clauses
)

// outbox persists capture results until the ledger carries them
type outbox struct {
	db     *gorm.DB
	ledger *ledger.Service
	now    func() time.Time
}

// record stores a confirmed capture as pending
func (o *outbox) record(ctx context.Context, orderID, status string) error {
	row := domain.CaptureOutbox{OrderID: orderID, Status: status, State: domain.OutboxPending}
	return o.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "state", "updated_at"}),
	}).Create(&row).Error
}

// apply writes the status onto the invoice and marks the row applied in one
// transaction.
func (o *outbox) apply(ctx context.Context, orderID, status string) error {
	return o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := o.ledger.ApplyCaptureResultTx(tx, orderID, status); err != nil {
			return err
		}
		applied := o.now()
		return tx.Model(&domain.CaptureOutbox{}).Where("order_id = ?", orderID).Updates(map[string]any{
			"state":      domain.OutboxApplied,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
			"applied_at": &applied,
		}).Error
	})
}

// failed counts a failed apply; giveUp moves the row out of the pending set
func (o *outbox) failed(ctx context.Context, orderID string, cause error, giveUp bool) error {
	updates := map[string]any{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": cause.Error(),
	}
	if giveUp {
		updates["state"] = domain.OutboxFailed
	}
	return o.db.WithContext(ctx).Model(&domain.CaptureOutbox{}).Where("order_id = ?", orderID).Updates(updates).Error
}

// pending lists rows still waiting for the ledger, oldest first
func (o *outbox) pending(ctx context.Context, limit int) ([]domain.CaptureOutbox, error) {
	var rows []domain.CaptureOutbox
	err := o.db.WithContext(ctx).Where("state = ?", domain.OutboxPending).Order("created_at asc").Limit(limit).Find(&rows).Error
	return rows, err
}
