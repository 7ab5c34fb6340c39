package payment

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"retail_pos/internal/apperr"
	"retail_pos/internal/catalog"
	"retail_pos/internal/domain"
	"retail_pos/internal/ledger"
	"retail_pos/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeProcessor hands out sequential order ids and a fixed capture status
type fakeProcessor struct {
	mu            sync.Mutex
	requests      []OrderRequest
	captureStatus string
	captureErr    error
}

func (f *fakeProcessor) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return &Order{ID: "ORDER-A", Status: "CREATED", Payload: map[string]any{"id": "ORDER-A", "status": "CREATED"}}, nil
}

func (f *fakeProcessor) CaptureOrder(_ context.Context, orderID string) (*Order, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return &Order{ID: orderID, Status: f.captureStatus, Payload: map[string]any{"id": orderID, "status": f.captureStatus}}, nil
}

func (f *fakeProcessor) GetOrder(_ context.Context, orderID string) (*Order, error) {
	return &Order{ID: orderID, Status: "APPROVED", Payload: map[string]any{"id": orderID, "status": "APPROVED"}}, nil
}

type noSource struct{}

func (noSource) Lookup(context.Context, string) (*catalog.SourceProduct, error) { return nil, nil }

type fixture struct {
	db     *gorm.DB
	ledger *ledger.Service
	proc   *fakeProcessor
	orch   *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	products := catalog.NewService(db, noSource{}, nil)
	price, name := 2.5, "Baguette"
	_, err := products.Create(context.Background(), catalog.ProductInput{ScanCode: "1234", Name: &name, Price: &price})
	require.NoError(t, err)
	ledgerSvc := ledger.NewService(db, products)
	proc := &fakeProcessor{captureStatus: "COMPLETED"}
	return &fixture{db: db, ledger: ledgerSvc, proc: proc, orch: NewOrchestrator(db, proc, ledgerSvc)}
}

func (f *fixture) outboxRow(t *testing.T, orderID string) domain.CaptureOutbox {
	var row domain.CaptureOutbox
	require.NoError(t, f.db.First(&row, "order_id = ?", orderID).Error)
	return row
}

func TestInitiateAndCaptureOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.orch.now = func() time.Time { return time.UnixMilli(1700000000000) }

	order, err := f.orch.InitiateOrder(ctx, "u-1", []string{"1234", "1234"})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-A", order.ID)
	require.Len(t, f.proc.requests, 1)
	assert.Equal(t, "5.00", f.proc.requests[0].Amount.StringFixed(2))
	assert.Equal(t, "u-1-1700000000000", f.proc.requests[0].ReferenceID)

	invoice, err := f.ledger.Get(ctx, "ORDER-A")
	require.NoError(t, err)
	assert.Equal(t, 5.0, invoice.TotalAmount)
	assert.Equal(t, domain.InvoicePending, invoice.Status)
	assert.Equal(t, "u-1", invoice.UserID)

	capture, err := f.orch.CaptureOrder(ctx, "ORDER-A")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceCompleted, capture.Invoice.Status)
	require.Len(t, capture.Invoice.Items, 1)
	require.NotNil(t, capture.Invoice.Items[0].Product)
	assert.Equal(t, "Baguette", capture.Invoice.Items[0].Product.Name)

	body := capture.Body()
	assert.Equal(t, "COMPLETED", body["status"])
	assert.Equal(t, capture.Invoice, body["invoice"])

	invoice, err = f.ledger.Get(ctx, "ORDER-A")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceCompleted, invoice.Status)

	row := f.outboxRow(t, "ORDER-A")
	assert.Equal(t, domain.OutboxApplied, row.State)
	assert.NotNil(t, row.AppliedAt)
}

func TestInitiateOrderRejectsEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.InitiateOrder(context.Background(), "u-1", nil)
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
	assert.Empty(t, f.proc.requests)
}

func TestInitiateOrderUnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.InitiateOrder(context.Background(), "u-1", []string{"1234", "nope"})
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
	assert.Empty(t, f.proc.requests)
}

func TestCaptureProcessorFailureTouchesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.InitiateOrder(ctx, "u-1", []string{"1234"})
	require.NoError(t, err)

	f.proc.captureErr = apperr.Upstream("Failed to capture payment", assert.AnError)
	_, err = f.orch.CaptureOrder(ctx, "ORDER-A")
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

	invoice, err := f.ledger.Get(ctx, "ORDER-A")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePending, invoice.Status)
	var count int64
	require.NoError(t, f.db.Model(&domain.CaptureOutbox{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReconcilerAppliesPendingCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Captured at the processor but the ledger has no invoice yet
	_, err := f.orch.CaptureOrder(ctx, "ORDER-LATE")
	assert.ErrorIs(t, err, apperr.ErrInvoiceNotFound)
	row := f.outboxRow(t, "ORDER-LATE")
	assert.Equal(t, domain.OutboxPending, row.State)
	assert.Equal(t, 1, row.Attempts)
	assert.True(t, strings.Contains(row.LastError, "Invoice not found"))

	_, err = f.ledger.RecordOrder(ctx, "ORDER-LATE", "u-1", []string{"1234"})
	require.NoError(t, err)

	rec := NewReconciler(f.db, f.ledger, time.Minute, 5)
	applied, err := rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	invoice, err := f.ledger.Get(ctx, "ORDER-LATE")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", invoice.Status)
	row = f.outboxRow(t, "ORDER-LATE")
	assert.Equal(t, domain.OutboxApplied, row.State)
	assert.Empty(t, row.LastError)

	// Nothing left to do
	applied, err = rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestReconcilerGivesUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.CaptureOrder(ctx, "ORDER-LOST")
	require.Error(t, err)

	rec := NewReconciler(f.db, f.ledger, time.Minute, 2)
	applied, err := rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	row := f.outboxRow(t, "ORDER-LOST")
	assert.Equal(t, domain.OutboxFailed, row.State)
	assert.Equal(t, 2, row.Attempts)
}

func TestReconcilerRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	rec := NewReconciler(f.db, f.ledger, 5*time.Millisecond, 3)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}

func TestGetOrderStatusPassthrough(t *testing.T) {
	f := newFixture(t)
	order, err := f.orch.GetOrderStatus(context.Background(), "ORDER-Z")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", order.Status)
}

// flakySource fails its first lookup, then offers a different catalog entry
type flakySource struct {
	mu    sync.Mutex
	calls int
}

func (s *flakySource) Lookup(context.Context, string) (*catalog.SourceProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls == 1 {
		return nil, assert.AnError
	}
	return &catalog.SourceProduct{Name: "Baguette tradition", Category: "Produits frais"}, nil
}

func TestInitiateOrderChargesWhatTheInvoiceRecords(t *testing.T) {
	db := testutil.NewDB(t)
	src := &flakySource{}
	products := catalog.NewService(db, src, nil)
	ctx := context.Background()
	price, name := 2.5, "Baguette"
	_, err := products.Create(ctx, catalog.ProductInput{ScanCode: "1234", Name: &name, Price: &price})
	require.NoError(t, err)
	stale := time.Now().Add(-2 * domain.StaleAfter)
	require.NoError(t, db.Model(&domain.Product{}).Where("scan_code = ?", "1234").Update("refreshed_at", stale).Error)

	ledgerSvc := ledger.NewService(db, products)
	proc := &fakeProcessor{captureStatus: "COMPLETED"}
	orch := NewOrchestrator(db, proc, ledgerSvc)

	_, err = orch.InitiateOrder(ctx, "u-1", []string{"1234"})
	require.NoError(t, err)
	require.Len(t, proc.requests, 1)
	assert.Equal(t, "2.50", proc.requests[0].Amount.StringFixed(2))
	assert.Equal(t, 1, src.calls)

	invoice, err := ledgerSvc.Get(ctx, "ORDER-A")
	require.NoError(t, err)
	assert.Equal(t, proc.requests[0].Amount.InexactFloat64(), invoice.TotalAmount)
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, 2.5, invoice.Items[0].Price)
}
