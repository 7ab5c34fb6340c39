// Package ledger records invoices for processor orders and exposes them to
// their owners and to administrators.
package ledger

import (
	"context" // Request scoped operations
	"errors"  // Error classification

	"retail_pos/internal/apperr" // Error taxonomy
	"retail_pos/internal/domain" // Domain models

	"github.com/google/uuid"        // Manual order ids
	"github.com/shopspring/decimal" // Money arithmetic
	"github.com/sirupsen/logrus"    // Structured logging
	"gorm.io/gorm"                  // GORM ORM library
)

// Products resolves scan codes against the catalog
type Products interface {
	// Resolve returns the current product for every code or fails
	Resolve(ctx context.Context, scanCodes []string) (map[string]*domain.Product, error)
	// FindMany returns stored products, skipping unknown codes
	FindMany(ctx context.Context, scanCodes []string) (map[string]*domain.Product, error)
}

// Service implements the invoice ledger
type Service struct {
	db       *gorm.DB
	products Products
}

// NewService builds a ledger over db
func NewService(db *gorm.DB, products Products) *Service {
	return &Service{db: db, products: products}
}

// Cart is a priced cart: the lines and total an invoice will store
type Cart struct {
	Items []domain.InvoiceItem
	Total decimal.Decimal
}

// Quote resolves and prices a cart without recording anything. Recording the
// returned Cart with RecordCart stores exactly the quoted lines and total.
func (s *Service) Quote(ctx context.Context, scanCodes []string) (*Cart, error) {
	items, total, err := s.lines(ctx, scanCodes)
	if err != nil {
		return nil, err
	}
	return &Cart{Items: items, Total: total}, nil
}

// lines resolves scanCodes into invoice lines. Each scan code counts as one
// unit; repeated codes stack into a single line.
func (s *Service) lines(ctx context.Context, scanCodes []string) ([]domain.InvoiceItem, decimal.Decimal, error) {
	if len(scanCodes) == 0 {
		return nil, decimal.Zero, apperr.ErrEmptyCart
	}
	products, err := s.products.Resolve(ctx, scanCodes)
	if err != nil {
		return nil, decimal.Zero, err
	}

	var items []domain.InvoiceItem
	index := map[string]int{}
	total := decimal.Zero
	for _, code := range scanCodes {
		p := products[code]
		total = total.Add(decimal.NewFromFloat(p.Price))
		if i, ok := index[code]; ok {
			items[i].Quantity++
			continue
		}
		index[code] = len(items)
		items = append(items, domain.InvoiceItem{ProductID: code, Name: p.Name, Quantity: 1, Price: p.Price})
	}
	return items, total.Round(2), nil
}

// RecordOrder prices scanCodes and creates a PENDING invoice keyed by the
// processor order id
func (s *Service) RecordOrder(ctx context.Context, orderID, userID string, scanCodes []string) (*domain.Invoice, error) {
	cart, err := s.Quote(ctx, scanCodes)
	if err != nil {
		return nil, err
	}
	return s.RecordCart(ctx, orderID, userID, cart)
}

// RecordCart creates a PENDING invoice from an already quoted cart
func (s *Service) RecordCart(ctx context.Context, orderID, userID string, cart *Cart) (*domain.Invoice, error) {
	if cart == nil || len(cart.Items) == 0 {
		return nil, apperr.ErrEmptyCart
	}
	items := append([]domain.InvoiceItem(nil), cart.Items...) // Create assigns ids in place

	invoice := domain.Invoice{
		OrderID:     orderID,
		UserID:      userID,
		Items:       items,
		TotalAmount: cart.Total.InexactFloat64(),
		Status:      domain.InvoicePending,
	}
	if err := s.db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, apperr.Persistence("Failed to record invoice", err)
	}
	logrus.WithFields(logrus.Fields{
		"order_id": orderID,             // Processor order id
		"user_id":  userID,              // Invoice owner
		"total":    invoice.TotalAmount, // Invoice total
		"lines":    len(items),          // Distinct products
	}).Info("Invoice recorded")
	return &invoice, nil
}

// ApplyCaptureResult stores the processor status on the invoice for orderID
func (s *Service) ApplyCaptureResult(ctx context.Context, orderID, status string) error {
	return s.ApplyCaptureResultTx(s.db.WithContext(ctx), orderID, status)
}

// ApplyCaptureResultTx is ApplyCaptureResult on an open transaction
func (s *Service) ApplyCaptureResultTx(tx *gorm.DB, orderID, status string) error {
	var invoice domain.Invoice
	err := tx.Select("id").Where("order_id = ?", orderID).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrInvoiceNotFound
	}
	if err != nil {
		return apperr.Persistence("Failed to fetch invoice", err)
	}
	if err := tx.Model(&invoice).Update("status", status).Error; err != nil {
		return apperr.Persistence("Failed to update invoice status", err)
	}
	return nil
}

// Get finds an invoice by its id or by its processor order id
func (s *Service) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := s.db.WithContext(ctx).Preload("Items").Where("id = ? OR order_id = ?", id, id).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("Failed to fetch invoice", err)
	}
	return &invoice, nil
}

// ListForOwner returns the user's invoices, newest first
func (s *Service) ListForOwner(ctx context.Context, userID string) ([]domain.Invoice, error) {
	invoices := []domain.Invoice{}
	err := s.db.WithContext(ctx).Preload("Items").Where("user_id = ?", userID).Order("created_at desc").Find(&invoices).Error
	if err != nil {
		return nil, apperr.Persistence("Failed to fetch invoices", err)
	}
	return invoices, nil
}

// Filter narrows an invoice listing; empty fields match every invoice
type Filter struct {
	UserID string // Owner
	Status string // Exact invoice status
	From   string // Created at or after, as accepted by the database
	To     string // Created at or before
}

// ListPage returns one page of the invoices matching f, newest first, and the
// number of matching invoices.
func (s *Service) ListPage(ctx context.Context, f Filter, page, pageSize int) ([]domain.Invoice, int64, error) {
	matching := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&domain.Invoice{})
		if f.UserID != "" {
			query = query.Where("user_id = ?", f.UserID)
		}
		if f.Status != "" {
			query = query.Where("status = ?", f.Status)
		}
		if f.From != "" {
			query = query.Where("created_at >= ?", f.From)
		}
		if f.To != "" {
			query = query.Where("created_at <= ?", f.To)
		}
		return query
	}

	var total int64
	if err := matching().Count(&total).Error; err != nil {
		return nil, 0, apperr.Persistence("Failed to count invoices", err)
	}
	invoices := []domain.Invoice{}
	err := matching().Preload("Items").Order("created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&invoices).Error
	if err != nil {
		return nil, 0, apperr.Persistence("Failed to fetch invoices", err)
	}
	return invoices, total, nil
}

// Populate joins each line with the stored product; lines whose product was
// deleted carry a nil product.
func (s *Service) Populate(ctx context.Context, invoice *domain.Invoice) (*domain.PopulatedInvoice, error) {
	out, err := s.PopulateMany(ctx, []domain.Invoice{*invoice})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// PopulateMany is Populate over a list with one product query
func (s *Service) PopulateMany(ctx context.Context, invoices []domain.Invoice) ([]domain.PopulatedInvoice, error) {
	var codes []string
	for _, inv := range invoices {
		for _, item := range inv.Items {
			codes = append(codes, item.ProductID)
		}
	}
	products, err := s.products.FindMany(ctx, codes)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PopulatedInvoice, 0, len(invoices))
	for _, inv := range invoices {
		populated := domain.PopulatedInvoice{Invoice: inv, Items: make([]domain.PopulatedItem, 0, len(inv.Items))}
		for _, item := range inv.Items {
			populated.Items = append(populated.Items, domain.PopulatedItem{InvoiceItem: item, Product: products[item.ProductID]})
		}
		out = append(out, populated)
	}
	return out, nil
}

// Update carries an administrator's invoice edit; nil fields are kept
type Update struct {
	UserID      *string
	Status      *string
	TotalAmount *float64
	Items       []domain.InvoiceItem // Replaces every line when non-nil
}

func (u Update) empty() bool {
	return u.UserID == nil && u.Status == nil && u.TotalAmount == nil && u.Items == nil
}

// UpdateByID overwrites invoice fields as given. Totals are not recomputed;
// a total that disagrees with the lines is only logged.
func (s *Service) UpdateByID(ctx context.Context, id string, in Update) (*domain.Invoice, error) {
	if in.empty() {
		return nil, apperr.ErrEmptyUpdateBody
	}
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.UserID != nil {
		updates["user_id"] = *in.UserID
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if in.TotalAmount != nil {
		updates["total_amount"] = *in.TotalAmount
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(invoice).Updates(updates).Error; err != nil {
				return err
			}
		}
		if in.Items == nil {
			return nil
		}
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&domain.InvoiceItem{}).Error; err != nil {
			return err
		}
		if len(in.Items) == 0 {
			return nil
		}
		items := make([]domain.InvoiceItem, len(in.Items))
		for i, item := range in.Items {
			item.ID = 0
			item.InvoiceID = invoice.ID
			items[i] = item
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return nil, apperr.Persistence("Failed to update invoice", err)
	}

	updated, err := s.Get(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}
	if sum := lineTotal(updated.Items); !sum.Equal(decimal.NewFromFloat(updated.TotalAmount).Round(2)) {
		logrus.WithFields(logrus.Fields{
			"invoice_id": updated.ID,          // Edited invoice
			"total":      updated.TotalAmount, // Stored total
			"line_total": sum.String(),        // Sum of the lines
		}).Warn("Invoice total does not match its lines")
	}
	return updated, nil
}

func lineTotal(items []domain.InvoiceItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum.Round(2)
}

// DeleteByID removes an invoice and its lines
func (s *Service) DeleteByID(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&domain.InvoiceItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Invoice{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrInvoiceNotFound
		}
		return nil
	})
	if errors.Is(err, apperr.ErrInvoiceNotFound) {
		return err
	}
	if err != nil {
		return apperr.Persistence("Failed to delete invoice", err)
	}
	logrus.WithField("invoice_id", id).Info("Invoice deleted")
	return nil
}

// Create records an invoice entered by an administrator, outside any
// processor order.
func (s *Service) Create(ctx context.Context, userID string, scanCodes []string) (*domain.Invoice, error) {
	return s.RecordOrder(ctx, "manual-"+uuid.NewString(), userID, scanCodes)
}
