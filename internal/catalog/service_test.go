package catalog

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"retail_pos/internal/apperr"
	"retail_pos/internal/domain"
	"retail_pos/internal/testutil"
	"retail_pos/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeSource serves canned products and counts lookups
type fakeSource struct {
	mu       sync.Mutex
	products map[string]*SourceProduct
	err      error
	calls    int
}

func (f *fakeSource) Lookup(_ context.Context, scanCode string) (*SourceProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.products[scanCode], nil
}

type fixture struct {
	svc   *Service
	db    *gorm.DB
	src   *fakeSource
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		db:    testutil.NewDB(t),
		src:   &fakeSource{products: map[string]*SourceProduct{}},
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.db, f.src, nil)
	f.svc.now = func() time.Time { return f.clock }
	f.svc.rnd = func() float64 { return 0.5 }
	return f
}

func ptr[T any](v T) *T { return &v }

func TestGetOrRefreshCreatesFromSource(t *testing.T) {
	f := newFixture(t)
	f.src.products["111"] = &SourceProduct{Name: "Eau", Category: "Boissons", Ingredients: []string{"eau"}}

	p, err := f.svc.GetOrRefresh(context.Background(), "111")
	require.NoError(t, err)
	assert.Equal(t, "Eau", p.Name)
	assert.Equal(t, 3.0, p.Price)
	assert.Equal(t, []string{"eau"}, []string(p.Ingredients))
	assert.Equal(t, 1, f.src.calls)

	var count int64
	require.NoError(t, f.db.Model(&domain.Product{}).Where("scan_code = ?", "111").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrRefreshUnknownEverywhere(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetOrRefresh(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestGetOrRefreshSourceFailure(t *testing.T) {
	f := newFixture(t)
	f.src.err = apperr.Upstream("Failed to query catalog source", errors.New("timeout"))
	_, err := f.svc.GetOrRefresh(context.Background(), "111")
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestGetOrRefreshIsIdempotentWhileFresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.src.products["111"] = &SourceProduct{Name: "Eau", Category: "Boissons"}

	first, err := f.svc.GetOrRefresh(ctx, "111")
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Hour)
	second, err := f.svc.GetOrRefresh(ctx, "111")
	require.NoError(t, err)

	assert.Equal(t, 1, f.src.calls)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Price, second.Price)
}

func TestGetOrRefreshRefreshesStaleKeepingRatings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.src.products["111"] = &SourceProduct{Name: "Eau", Category: "Boissons"}
	_, err := f.svc.GetOrRefresh(ctx, "111")
	require.NoError(t, err)
	_, err = f.svc.Rate(ctx, "111", "u-1", 4, "")
	require.NoError(t, err)

	f.clock = f.clock.Add(domain.StaleAfter + time.Minute)
	f.src.products["111"] = &SourceProduct{Name: "Eau minérale", Category: "Snacks"}
	f.svc.rnd = func() float64 { return 0 }

	p, err := f.svc.GetOrRefresh(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, 2, f.src.calls)
	assert.Equal(t, "Eau minérale", p.Name)
	assert.Equal(t, 0.5, p.Price)
	assert.Equal(t, 4.0, p.AverageRating)
	assert.Len(t, p.Ratings, 1)
	assert.True(t, p.RefreshedAt.Equal(f.clock))
}

func TestGetOrRefreshStaleWithoutMatchKeepsProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.src.products["111"] = &SourceProduct{Name: "Eau", Category: "Boissons"}
	_, err := f.svc.GetOrRefresh(ctx, "111")
	require.NoError(t, err)

	delete(f.src.products, "111")
	f.clock = f.clock.Add(48 * time.Hour)
	p, err := f.svc.GetOrRefresh(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, "Eau", p.Name)
}

func TestGetOrRefreshUsesCache(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	f.svc.cache = utils.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	ctx := context.Background()
	f.src.products["111"] = &SourceProduct{Name: "Eau", Category: "Boissons"}

	_, err := f.svc.GetOrRefresh(ctx, "111")
	require.NoError(t, err)
	assert.True(t, mr.Exists("pos:product:111"))

	// Served from the cache even though the row is gone
	require.NoError(t, f.db.Where("scan_code = ?", "111").Delete(&domain.Product{}).Error)
	p, err := f.svc.GetOrRefresh(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, "Eau", p.Name)
	assert.Equal(t, 1, f.src.calls)

	_, err = f.svc.Rate(ctx, "111", "u-1", 3, "")
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestCreateAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, ProductInput{ScanCode: "222", Name: ptr("Chips"), Category: ptr("Snacks")})
	require.NoError(t, err)
	assert.Equal(t, 1.75, p.Price)
	assert.Equal(t, 0, p.Stock)

	_, err = f.svc.Create(ctx, ProductInput{ScanCode: "222", Name: ptr("Other")})
	assert.ErrorIs(t, err, apperr.ErrDuplicateScan)

	_, err = f.svc.Create(ctx, ProductInput{ScanCode: " "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	p, err = f.svc.Update(ctx, "222", ProductInput{Price: ptr(2.2), Stock: ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, "Chips", p.Name)
	assert.Equal(t, 2.2, p.Price)
	assert.Equal(t, 7, p.Stock)

	_, err = f.svc.Update(ctx, "999", ProductInput{Name: ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestDeleteRemovesRatings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, ProductInput{ScanCode: "222", Name: ptr("Chips"), Price: ptr(1.0)})
	require.NoError(t, err)
	_, err = f.svc.Rate(ctx, "222", "u-1", 5, "great")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "222"))
	var count int64
	require.NoError(t, f.db.Model(&domain.Rating{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, f.svc.Delete(ctx, "222"), apperr.ErrProductNotFound)
}

func TestRateReplacesAndAverages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, ProductInput{ScanCode: "333", Name: ptr("Pain"), Price: ptr(1.0)})
	require.NoError(t, err)

	_, err = f.svc.Rate(ctx, "333", "u-1", 4, "")
	require.NoError(t, err)
	p, err := f.svc.Rate(ctx, "333", "u-2", 5, "")
	require.NoError(t, err)
	assert.Equal(t, 4.5, p.AverageRating)

	// u-1 changes their mind; still one entry per user
	p, err = f.svc.Rate(ctx, "333", "u-1", 2, "meh")
	require.NoError(t, err)
	assert.Len(t, p.Ratings, 2)
	assert.Equal(t, 3.5, p.AverageRating)

	_, err = f.svc.Rate(ctx, "nope", "u-1", 2, "")
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestRateBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, ProductInput{ScanCode: "333", Name: ptr("Pain"), Price: ptr(1.0)})
	require.NoError(t, err)

	for _, score := range []float64{-1, 5.1, math.NaN()} {
		_, err := f.svc.Rate(ctx, "333", "u-1", score, "")
		assert.ErrorIs(t, err, apperr.ErrInvalidRating, "score %v", score)
	}
	for _, score := range []float64{0, 5} {
		_, err := f.svc.Rate(ctx, "333", "u-1", score, "")
		assert.NoError(t, err, "score %v", score)
	}
}

func TestSearchByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for code, name := range map[string]string{"1": "Nutella", "2": "Pain complet", "3": "100% Jus"} {
		_, err := f.svc.Create(ctx, ProductInput{ScanCode: code, Name: ptr(name), Price: ptr(1.0)})
		require.NoError(t, err)
	}

	got, err := f.svc.SearchByName(ctx, "nUt")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Nutella", got[0].Name)

	got, err = f.svc.SearchByName(ctx, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = f.svc.SearchByName(ctx, "0%")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = f.svc.SearchByName(ctx, "zzz")
	assert.ErrorIs(t, err, apperr.ErrNoMatches)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListRefreshesStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.src.products["1"] = &SourceProduct{Name: "Fresh name", Category: "Boissons"}
	_, err := f.svc.Create(ctx, ProductInput{ScanCode: "1", Name: ptr("Old name"), Price: ptr(1.0)})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, ProductInput{ScanCode: "2", Name: ptr("Other"), Price: ptr(1.0)})
	require.NoError(t, err)

	f.clock = f.clock.Add(25 * time.Hour)
	list, err := f.svc.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Fresh name", list[0].Name)
	assert.Equal(t, "Other", list[1].Name)

	list, err = f.svc.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2", list[0].ScanCode)
}

func TestListPurchasedByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, ProductInput{ScanCode: "1", Name: ptr("A"), Price: ptr(1.0)})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, ProductInput{ScanCode: "2", Name: ptr("B"), Price: ptr(1.0)})
	require.NoError(t, err)
	_, err = f.svc.Rate(ctx, "2", "u-1", 4, "")
	require.NoError(t, err)

	inv := domain.Invoice{OrderID: "o-1", UserID: "u-1", Status: domain.InvoicePending, Items: []domain.InvoiceItem{
		{ProductID: "1", Quantity: 1, Price: 1},
		{ProductID: "2", Quantity: 2, Price: 1},
	}}
	require.NoError(t, f.db.Create(&inv).Error)

	got, err := f.svc.ListPurchasedByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.0, got[0].Rating)
	assert.Equal(t, 4.0, got[1].Rating)

	got, err = f.svc.ListPurchasedByUser(ctx, "u-2")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, ProductInput{ScanCode: "1", Name: ptr("A"), Price: ptr(1.0)})
	require.NoError(t, err)

	got, err := f.svc.Resolve(ctx, []string{"1", "1"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Zero(t, f.src.calls)

	_, err = f.svc.Resolve(ctx, []string{"1", "missing"})
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}
