package payment

import (
	"context" // Cancellation
	"time"    // Ticker

	"retail_pos/internal/ledger" // Invoice ledger

	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/gorm"               // GORM ORM library
)

const reconcileBatch = 100

// Reconciler retries outbox rows whose ledger write failed after a capture
type Reconciler struct {
	outbox      *outbox
	interval    time.Duration
	maxAttempts int
}

// NewReconciler builds a reconciler; rows are given up after maxAttempts
func NewReconciler(db *gorm.DB, ledgerSvc *ledger.Service, interval time.Duration, maxAttempts int) *Reconciler {
	return &Reconciler{
		outbox:      &outbox{db: db, ledger: ledgerSvc, now: time.Now},
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Run reconciles on every tick until ctx is cancelled
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	logrus.WithField("interval", r.interval.String()).Info("Capture reconciler started")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Capture reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				logrus.WithField("error", err.Error()).Error("Capture reconciliation failed")
			}
		}
	}
}

// RunOnce applies every pending outbox row once and returns how many landed
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	rows, err := r.outbox.pending(ctx, reconcileBatch)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, row := range rows {
		log := logrus.WithFields(logrus.Fields{
			"order_id": row.OrderID,      // Processor order id
			"status":   row.Status,       // Status to apply
			"attempts": row.Attempts + 1, // Including this one
		})
		if err := r.outbox.apply(ctx, row.OrderID, row.Status); err != nil {
			giveUp := row.Attempts+1 >= r.maxAttempts
			if markErr := r.outbox.failed(ctx, row.OrderID, err, giveUp); markErr != nil {
				return applied, markErr
			}
			if giveUp {
				log.WithField("error", err.Error()).Error("Giving up on capture reconciliation")
			} else {
				log.WithField("error", err.Error()).Warn("Capture reconciliation attempt failed")
			}
			continue
		}
		applied++
		log.Info("Capture reconciled into ledger")
	}
	return applied, nil
}
