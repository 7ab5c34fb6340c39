// Package report builds sales snapshots over the invoice ledger.
package report

import (
	"context" // Request scoped operations
	"errors"  // Error classification

	"retail_pos/internal/apperr" // Error taxonomy
	"retail_pos/internal/domain" // Domain models

	"github.com/shopspring/decimal" // Money rounding
	"github.com/sirupsen/logrus"    // Structured logging
	"gorm.io/datatypes"             // JSON columns
	"gorm.io/gorm"                  // GORM ORM library
)

// TopProducts is how many products a report ranks
const TopProducts = 5

// Generator computes and stores report snapshots
type Generator struct {
	db *gorm.DB
}

// NewGenerator builds a report generator
func NewGenerator(db *gorm.DB) *Generator {
	return &Generator{db: db}
}

type totals struct {
	Sales   int64
	Revenue float64
	Average float64
}

type purchaseCount struct {
	ProductID     string
	PurchaseCount int64
}

// Generate rescans every invoice and persists a new snapshot
func (g *Generator) Generate(ctx context.Context) (*domain.Report, error) {
	db := g.db.WithContext(ctx)

	var t totals
	err := db.Model(&domain.Invoice{}).
		Select("COUNT(*) AS sales, COALESCE(SUM(total_amount), 0) AS revenue, COALESCE(AVG(total_amount), 0) AS average").
		Scan(&t).Error
	if err != nil {
		return nil, apperr.Persistence("Failed to aggregate invoices", err)
	}

	var counts []purchaseCount
	err = db.Model(&domain.InvoiceItem{}).
		Select("product_id, SUM(quantity) AS purchase_count").
		Group("product_id").
		Order("purchase_count desc, product_id asc").
		Limit(TopProducts).
		Scan(&counts).Error
	if err != nil {
		return nil, apperr.Persistence("Failed to rank products", err)
	}

	top, err := g.describe(ctx, counts)
	if err != nil {
		return nil, err
	}

	report := domain.Report{
		Sales:                 t.Sales,
		Revenue:               decimal.NewFromFloat(t.Revenue).Round(2).InexactFloat64(),
		AverageOrderPrice:     decimal.NewFromFloat(t.Average).Round(2).InexactFloat64(),
		MostPurchasedProducts: top,
	}
	if err := db.Create(&report).Error; err != nil {
		return nil, apperr.Persistence("Failed to store report", err)
	}
	logrus.WithFields(logrus.Fields{
		"report_id": report.ID,      // Snapshot id
		"sales":     report.Sales,   // Invoice count
		"revenue":   report.Revenue, // Sum of totals
	}).Info("Report generated")
	return &report, nil
}

// describe joins ranked scan codes with their products, dropping codes whose
// product no longer exists.
func (g *Generator) describe(ctx context.Context, counts []purchaseCount) (datatypes.JSONSlice[domain.ReportProduct], error) {
	top := datatypes.JSONSlice[domain.ReportProduct]{}
	if len(counts) == 0 {
		return top, nil
	}
	codes := make([]string, len(counts))
	for i, c := range counts {
		codes[i] = c.ProductID
	}
	var products []domain.Product
	if err := g.db.WithContext(ctx).Where("scan_code IN ?", codes).Find(&products).Error; err != nil {
		return nil, apperr.Persistence("Failed to fetch ranked products", err)
	}
	byCode := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byCode[p.ScanCode] = p
	}
	for _, c := range counts {
		p, ok := byCode[c.ProductID]
		if !ok {
			continue
		}
		top = append(top, domain.ReportProduct{
			ProductID:     p.ID,
			Name:          p.Name,
			ScanCode:      p.ScanCode,
			PurchaseCount: c.PurchaseCount,
		})
	}
	return top, nil
}

// Latest returns the most recent snapshot
func (g *Generator) Latest(ctx context.Context) (*domain.Report, error) {
	var report domain.Report
	err := g.db.WithContext(ctx).Order("created_at desc").First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("Failed to fetch report", err)
	}
	return &report, nil
}
