package ledger

import (
	"context"
	"testing"
	"time"

	"retail_pos/internal/apperr"
	"retail_pos/internal/catalog"
	"retail_pos/internal/domain"
	"retail_pos/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// emptySource knows no products
type emptySource struct{}

func (emptySource) Lookup(context.Context, string) (*catalog.SourceProduct, error) { return nil, nil }

func ptr[T any](v T) *T { return &v }

func newLedger(t *testing.T) (*Service, *catalog.Service, *gorm.DB) {
	db := testutil.NewDB(t)
	products := catalog.NewService(db, emptySource{}, nil)
	ctx := context.Background()
	for code, price := range map[string]float64{"1234": 2.10, "5678": 0.35} {
		_, err := products.Create(ctx, catalog.ProductInput{ScanCode: code, Name: ptr("P" + code), Price: ptr(price)})
		require.NoError(t, err)
	}
	return NewService(db, products), products, db
}

func TestRecordOrderStacksRepeatedCodes(t *testing.T) {
	svc, _, _ := newLedger(t)
	ctx := context.Background()

	inv, err := svc.RecordOrder(ctx, "ORDER-1", "u-1", []string{"1234", "5678", "1234"})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePending, inv.Status)
	assert.Equal(t, 4.55, inv.TotalAmount)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, "1234", inv.Items[0].ProductID)
	assert.Equal(t, 2, inv.Items[0].Quantity)
	assert.Equal(t, 1, inv.Items[1].Quantity)

	got, err := svc.Get(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)
	assert.Len(t, got.Items, 2)
}

func TestRecordOrderFailures(t *testing.T) {
	svc, _, db := newLedger(t)
	ctx := context.Background()

	_, err := svc.RecordOrder(ctx, "ORDER-1", "u-1", nil)
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)

	_, err = svc.RecordOrder(ctx, "ORDER-1", "u-1", []string{"1234", "unknown"})
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)

	var count int64
	require.NoError(t, db.Model(&domain.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordCartKeepsQuotedPrices(t *testing.T) {
	svc, products, _ := newLedger(t)
	ctx := context.Background()

	cart, err := svc.Quote(ctx, []string{"1234", "1234"})
	require.NoError(t, err)
	assert.Equal(t, "4.20", cart.Total.StringFixed(2))

	// Price edited between quoting and recording
	_, err = products.Update(ctx, "1234", catalog.ProductInput{Price: ptr(9.99)})
	require.NoError(t, err)

	inv, err := svc.RecordCart(ctx, "ORDER-1", "u-1", cart)
	require.NoError(t, err)
	assert.Equal(t, 4.2, inv.TotalAmount)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, 2.10, inv.Items[0].Price)
	assert.Equal(t, 2, inv.Items[0].Quantity)
	assert.Zero(t, cart.Items[0].ID)

	_, err = svc.RecordCart(ctx, "ORDER-2", "u-1", &Cart{})
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestListPageFiltersAndPaginates(t *testing.T) {
	svc, _, db := newLedger(t)
	ctx := context.Background()
	for i, owner := range []string{"u-1", "u-1", "u-1", "u-2"} {
		_, err := svc.RecordOrder(ctx, "ORDER-"+string(rune('A'+i)), owner, []string{"1234"})
		require.NoError(t, err)
	}
	require.NoError(t, svc.ApplyCaptureResult(ctx, "ORDER-D", domain.InvoiceCompleted))
	// Distinct creation times for a stable newest-first order
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"ORDER-A", "ORDER-B", "ORDER-C", "ORDER-D"} {
		require.NoError(t, db.Model(&domain.Invoice{}).Where("order_id = ?", id).Update("created_at", base.Add(time.Duration(i)*time.Hour)).Error)
	}

	page, total, err := svc.ListPage(ctx, Filter{UserID: "u-1"}, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "ORDER-C", page[0].OrderID)
	assert.Equal(t, "ORDER-B", page[1].OrderID)
	assert.Len(t, page[0].Items, 1)

	page, _, err = svc.ListPage(ctx, Filter{UserID: "u-1"}, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "ORDER-A", page[0].OrderID)

	page, total, err = svc.ListPage(ctx, Filter{Status: domain.InvoiceCompleted}, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, "u-2", page[0].UserID)

	page, total, err = svc.ListPage(ctx, Filter{UserID: "nobody"}, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, page)
}

func TestApplyCaptureResult(t *testing.T) {
	svc, _, _ := newLedger(t)
	ctx := context.Background()
	_, err := svc.RecordOrder(ctx, "ORDER-1", "u-1", []string{"1234"})
	require.NoError(t, err)

	require.NoError(t, svc.ApplyCaptureResult(ctx, "ORDER-1", domain.InvoiceCompleted))
	// Re-applying the same status is not an error
	require.NoError(t, svc.ApplyCaptureResult(ctx, "ORDER-1", domain.InvoiceCompleted))
	inv, err := svc.Get(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceCompleted, inv.Status)

	assert.ErrorIs(t, svc.ApplyCaptureResult(ctx, "missing", "COMPLETED"), apperr.ErrInvoiceNotFound)
}

func TestListAndPopulate(t *testing.T) {
	svc, products, _ := newLedger(t)
	ctx := context.Background()
	_, err := svc.RecordOrder(ctx, "ORDER-1", "u-1", []string{"1234", "5678"})
	require.NoError(t, err)
	_, err = svc.RecordOrder(ctx, "ORDER-2", "u-2", []string{"5678"})
	require.NoError(t, err)

	own, err := svc.ListForOwner(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, own, 1)

	none, err := svc.ListForOwner(ctx, "u-3")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	all, total, err := svc.ListPage(ctx, Filter{}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.EqualValues(t, 2, total)

	require.NoError(t, products.Delete(ctx, "5678"))
	populated, err := svc.Populate(ctx, &own[0])
	require.NoError(t, err)
	require.Len(t, populated.Items, 2)
	byCode := map[string]*domain.Product{}
	for _, item := range populated.Items {
		byCode[item.ProductID] = item.Product
	}
	require.NotNil(t, byCode["1234"])
	assert.Equal(t, "P1234", byCode["1234"].Name)
	assert.Nil(t, byCode["5678"])
}

func TestUpdateByIDOverwrites(t *testing.T) {
	svc, _, _ := newLedger(t)
	ctx := context.Background()
	inv, err := svc.RecordOrder(ctx, "ORDER-1", "u-1", []string{"1234"})
	require.NoError(t, err)

	_, err = svc.UpdateByID(ctx, inv.ID, Update{})
	assert.ErrorIs(t, err, apperr.ErrEmptyUpdateBody)

	// Total and lines disagree; the overwrite is kept as given
	updated, err := svc.UpdateByID(ctx, inv.ID, Update{
		Status:      ptr("REFUNDED"),
		TotalAmount: ptr(99.0),
		Items:       []domain.InvoiceItem{{ProductID: "5678", Name: "P5678", Quantity: 3, Price: 0.35}},
	})
	require.NoError(t, err)
	assert.Equal(t, "REFUNDED", updated.Status)
	assert.Equal(t, 99.0, updated.TotalAmount)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "5678", updated.Items[0].ProductID)

	_, err = svc.UpdateByID(ctx, "missing", Update{Status: ptr("X")})
	assert.ErrorIs(t, err, apperr.ErrInvoiceNotFound)
}

func TestDeleteByIDAndCreate(t *testing.T) {
	svc, _, db := newLedger(t)
	ctx := context.Background()
	inv, err := svc.Create(ctx, "u-1", []string{"1234"})
	require.NoError(t, err)
	assert.Contains(t, inv.OrderID, "manual-")

	require.NoError(t, svc.DeleteByID(ctx, inv.ID))
	var count int64
	require.NoError(t, db.Model(&domain.InvoiceItem{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, svc.DeleteByID(ctx, inv.ID), apperr.ErrInvoiceNotFound)
}
