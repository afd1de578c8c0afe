package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"posledger/backend/internal/cache"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/inventory"
	"posledger/backend/internal/store"
	"posledger/backend/internal/store/memory"
)

type fixture struct {
	svc      *Service
	repo     *memory.Store
	ctx      context.Context
	product  domain.Product
	customer domain.Customer
	vendor   domain.Vendor
}

// newFixture builds a service over an empty memory store holding one store,
// one cashier, one product (stock 10, price 100, cost 50) and one customer
// with 5 points.
func newFixture(t *testing.T, saleCache cache.SaleCache) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()

	st, err := repo.CreateStore(ctx, domain.Store{Name: "Test Store"})
	require.NoError(t, err)
	user, err := repo.CreateUser(ctx, domain.User{Username: "kasir", FullName: "Kasir Test", Role: domain.RoleCashier, StoreID: st.ID, Active: true})
	require.NoError(t, err)
	vendor, err := repo.CreateVendor(ctx, domain.Vendor{Name: "PT Pemasok"})
	require.NoError(t, err)
	product, err := repo.CreateProduct(ctx, domain.Product{
		SKU:           "SKU-TEST-01",
		Name:          "Test Product",
		Category:      "grocery",
		CostPrice:     decimal.NewFromInt(50),
		SellingPrice:  decimal.NewFromInt(100),
		StockQuantity: 10,
		ReorderLevel:  3,
	})
	require.NoError(t, err)
	customer, err := repo.CreateCustomer(ctx, domain.Customer{Name: "Member", Phone: "0811", LoyaltyPoints: 5})
	require.NoError(t, err)

	svc := New(repo, saleCache, time.Minute, zaptest.NewLogger(t))
	actorCtx := WithActor(ctx, domain.Actor{UserID: user.ID, Username: user.Username, Role: user.Role, StoreID: st.ID})
	return &fixture{svc: svc, repo: repo, ctx: actorCtx, product: *product, customer: *customer, vendor: *vendor}
}

func (f *fixture) addProduct(t *testing.T, sku string, price, cost int64, stock int) domain.Product {
	t.Helper()
	p, err := f.repo.CreateProduct(context.Background(), domain.Product{
		SKU:           sku,
		Name:          sku,
		CostPrice:     decimal.NewFromInt(cost),
		SellingPrice:  decimal.NewFromInt(price),
		StockQuantity: stock,
	})
	require.NoError(t, err)
	return *p
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.repo.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *fixture) saleCount(t *testing.T) int {
	t.Helper()
	sales, err := f.repo.ListSales(context.Background(), store.SaleFilter{})
	require.NoError(t, err)
	return len(sales)
}

func cart(items ...domain.CartItem) domain.CreateSaleRequest {
	return domain.CreateSaleRequest{PaymentMethod: "Cash", Items: items}
}

func TestCreateSaleComputesSnapshotTotals(t *testing.T) {
	f := newFixture(t, nil)

	sale, err := f.svc.CreateSale(f.ctx, cart(domain.CartItem{ProductID: f.product.ID, Quantity: 2}))
	require.NoError(t, err)

	assert.Equal(t, domain.SaleStatusCompleted, sale.Status)
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(200)), sale.TotalAmount.String())
	assert.True(t, sale.CostTotal.Equal(decimal.NewFromInt(100)), sale.CostTotal.String())
	assert.True(t, sale.ProfitTotal.Equal(decimal.NewFromInt(100)), sale.ProfitTotal.String())
	assert.NotEmpty(t, sale.InvoiceNumber)
	assert.Equal(t, 8, f.stock(t, f.product.ID))

	require.Len(t, sale.Items, 1)
	item := sale.Items[0]
	assert.True(t, item.Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, item.CostPrice.Equal(decimal.NewFromInt(50)))
	assert.True(t, item.Profit.Equal(decimal.NewFromInt(100)))
}

func TestCreateSaleTotalsMatchItemSums(t *testing.T) {
	f := newFixture(t, nil)
	other := f.addProduct(t, "SKU-OTHER", 35, 20, 50)

	sale, err := f.svc.CreateSale(f.ctx, cart(
		domain.CartItem{ProductID: f.product.ID, Quantity: 3},
		domain.CartItem{ProductID: other.ID, Quantity: 7},
	))
	require.NoError(t, err)

	total, cost := decimal.Zero, decimal.Zero
	for _, item := range sale.Items {
		q := decimal.NewFromInt(int64(item.Quantity))
		total = total.Add(item.Price.Mul(q))
		cost = cost.Add(item.CostPrice.Mul(q))
		assert.True(t, item.Profit.Equal(item.Price.Sub(item.CostPrice).Mul(q)))
	}
	assert.True(t, total.Equal(sale.TotalAmount))
	assert.True(t, cost.Equal(sale.CostTotal))
	assert.True(t, sale.TotalAmount.Sub(sale.CostTotal).Equal(sale.ProfitTotal))
	assert.Equal(t, 7, f.stock(t, f.product.ID))
	assert.Equal(t, 43, f.stock(t, other.ID))

	stored, err := f.svc.GetSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(sale.TotalAmount))
	require.NotNil(t, stored.User)
	assert.Equal(t, "Kasir Test", stored.User.FullName)
}

func TestCreateSaleInsufficientStockLeavesNoTrace(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateSale(f.ctx, cart(domain.CartItem{ProductID: f.product.ID, Quantity: 20}))

	var stockErr *store.InsufficientStockError
	require.True(t, errors.As(err, &stockErr), "got %v", err)
	assert.Equal(t, f.product.ID, stockErr.ProductID)
	assert.Equal(t, 10, stockErr.Available)
	assert.Equal(t, 20, stockErr.Requested)
	assert.Equal(t, 10, f.stock(t, f.product.ID))
	assert.Zero(t, f.saleCount(t))
}

func TestCreateSaleIsAllOrNothingAcrossLines(t *testing.T) {
	f := newFixture(t, nil)
	scarce := f.addProduct(t, "SKU-SCARCE", 10, 5, 1)

	_, err := f.svc.CreateSale(f.ctx, cart(
		domain.CartItem{ProductID: f.product.ID, Quantity: 4},
		domain.CartItem{ProductID: scarce.ID, Quantity: 2},
	))

	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, 10, f.stock(t, f.product.ID))
	assert.Equal(t, 1, f.stock(t, scarce.ID))
	assert.Zero(t, f.saleCount(t))
}

func TestCreateSaleSumsDuplicateLines(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateSale(f.ctx, cart(
		domain.CartItem{ProductID: f.product.ID, Quantity: 6},
		domain.CartItem{ProductID: f.product.ID, Quantity: 6},
	))

	var stockErr *store.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 12, stockErr.Requested)
	assert.Equal(t, 10, f.stock(t, f.product.ID))
}

func TestCreateSaleUnknownProduct(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateSale(f.ctx, cart(
		domain.CartItem{ProductID: f.product.ID, Quantity: 1},
		domain.CartItem{ProductID: "prd-missing", Quantity: 1},
	))

	var nf *store.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "product", nf.Kind)
	assert.Equal(t, "prd-missing", nf.ID)
	assert.Equal(t, 10, f.stock(t, f.product.ID))
	assert.Zero(t, f.saleCount(t))
}

func TestCreateSaleRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)

	cases := map[string]domain.CreateSaleRequest{
		"empty cart":     {PaymentMethod: "Cash"},
		"zero quantity":  cart(domain.CartItem{ProductID: f.product.ID, Quantity: 0}),
		"blank product":  cart(domain.CartItem{ProductID: " ", Quantity: 1}),
		"unknown method": {PaymentMethod: "Barter", Items: []domain.CartItem{{ProductID: f.product.ID, Quantity: 1}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateSale(f.ctx, req)
			assert.ErrorIs(t, err, store.ErrInvalidInput)
		})
	}

	_, err := f.svc.CreateSale(context.Background(), cart(domain.CartItem{ProductID: f.product.ID, Quantity: 1}))
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, 10, f.stock(t, f.product.ID))
}

func TestCreateSaleAccruesLoyaltyPoints(t *testing.T) {
	f := newFixture(t, nil)
	pricey := f.addProduct(t, "SKU-PRICEY", 125, 90, 10)

	req := cart(domain.CartItem{ProductID: pricey.ID, Quantity: 2})
	req.CustomerID = f.customer.ID
	_, err := f.svc.CreateSale(f.ctx, req)
	require.NoError(t, err)

	c, err := f.repo.GetCustomer(context.Background(), f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 5+2, c.LoyaltyPoints)
	require.Len(t, c.RecentSales, 1)
}

func TestCreateSaleUnknownCustomerRollsBack(t *testing.T) {
	f := newFixture(t, nil)

	req := cart(domain.CartItem{ProductID: f.product.ID, Quantity: 1})
	req.CustomerID = "cus-missing"
	_, err := f.svc.CreateSale(f.ctx, req)

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 10, f.stock(t, f.product.ID))
	assert.Zero(t, f.saleCount(t))
}

func TestPointsEarnedFloorsPerHundred(t *testing.T) {
	assert.Equal(t, 0, PointsEarned(decimal.NewFromInt(99)))
	assert.Equal(t, 1, PointsEarned(decimal.NewFromInt(100)))
	assert.Equal(t, 2, PointsEarned(decimal.RequireFromString("299.99")))
	assert.Equal(t, 0, PointsEarned(decimal.NewFromInt(-500)))
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t, nil)

	var succeeded, rejected atomic.Int32
	var g errgroup.Group
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			_, err := f.svc.CreateSale(f.ctx, cart(domain.CartItem{ProductID: f.product.ID, Quantity: 1}))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, store.ErrInsufficientStock):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(10), succeeded.Load())
	assert.Equal(t, int32(15), rejected.Load())
	assert.Zero(t, f.stock(t, f.product.ID))
	assert.Equal(t, 10, f.saleCount(t))
}

func TestRefundRestoresStockOnce(t *testing.T) {
	f := newFixture(t, nil)
	sale, err := f.svc.CreateSale(f.ctx, cart(domain.CartItem{ProductID: f.product.ID, Quantity: 2}))
	require.NoError(t, err)
	require.Equal(t, 8, f.stock(t, f.product.ID))

	refunded, err := f.svc.RefundSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusRefunded, refunded.Status)
	assert.Equal(t, 10, f.stock(t, f.product.ID))

	_, err = f.svc.RefundSale(f.ctx, sale.ID)
	var already *store.AlreadyRefundedError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, sale.ID, already.SaleID)
	assert.Equal(t, 10, f.stock(t, f.product.ID))

	logs, err := f.repo.ListAuditLogs(context.Background(), 10)
	require.NoError(t, err)
	refundLogs := 0
	for _, entry := range logs {
		if entry.Action == domain.AuditRefundSale {
			refundLogs++
			assert.Equal(t, sale.ID, entry.EntityID)
			assert.Contains(t, entry.Details, `"newStatus":"Refunded"`)
		}
	}
	assert.Equal(t, 1, refundLogs)
}

func TestRefundKeepsLoyaltyPoints(t *testing.T) {
	f := newFixture(t, nil)
	req := cart(domain.CartItem{ProductID: f.product.ID, Quantity: 3})
	req.CustomerID = f.customer.ID
	sale, err := f.svc.CreateSale(f.ctx, req)
	require.NoError(t, err)

	_, err = f.svc.RefundSale(f.ctx, sale.ID)
	require.NoError(t, err)

	c, err := f.repo.GetCustomer(context.Background(), f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, c.LoyaltyPoints)
}

func TestRefundUnknownSale(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.RefundSale(f.ctx, "sal-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

type recordingCache struct {
	cache.NoopSaleCache
	sets    int
	deletes []string
}

func (c *recordingCache) Set(_ context.Context, _ *domain.Sale, _ time.Duration) error {
	c.sets++
	return nil
}

func (c *recordingCache) Delete(_ context.Context, id string) error {
	c.deletes = append(c.deletes, id)
	return nil
}

func TestSaleCacheHoldsOnlyRefundedSales(t *testing.T) {
	rc := &recordingCache{}
	f := newFixture(t, rc)
	sale, err := f.svc.CreateSale(f.ctx, cart(domain.CartItem{ProductID: f.product.ID, Quantity: 1}))
	require.NoError(t, err)

	_, err = f.svc.GetSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Zero(t, rc.sets)

	_, err = f.svc.RefundSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{sale.ID}, rc.deletes)

	got, err := f.svc.GetSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusRefunded, got.Status)
	assert.Equal(t, 1, rc.sets)
}

type mapCache struct {
	mu    sync.Mutex
	sales map[string]domain.Sale
}

func (c *mapCache) Get(_ context.Context, id string) (*domain.Sale, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sale, ok := c.sales[id]
	if !ok {
		return nil, false, nil
	}
	return &sale, true, nil
}

func (c *mapCache) Set(_ context.Context, sale *domain.Sale, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sales[sale.ID] = *sale
	return nil
}

func (c *mapCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sales, id)
	return nil
}

// refundAfterReadRepo refunds the sale right after the first GetSale has
// read it, before the caller gets to touch the cache.
type refundAfterReadRepo struct {
	*memory.Store
	refund func(id string)
	once   sync.Once
}

func (r *refundAfterReadRepo) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := r.Store.GetSale(ctx, id)
	if err == nil {
		r.once.Do(func() { r.refund(id) })
	}
	return sale, err
}

func TestSaleCacheNeverKeepsStatusFromBeforeRefund(t *testing.T) {
	f := newFixture(t, nil)
	sale, err := f.svc.CreateSale(f.ctx, cart(domain.CartItem{ProductID: f.product.ID, Quantity: 1}))
	require.NoError(t, err)

	mc := &mapCache{sales: map[string]domain.Sale{}}
	repo := &refundAfterReadRepo{Store: f.repo}
	svc := New(repo, mc, time.Minute, zaptest.NewLogger(t))
	repo.refund = func(id string) {
		_, err := svc.RefundSale(f.ctx, id)
		require.NoError(t, err)
	}

	first, err := svc.GetSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusCompleted, first.Status)

	second, err := svc.GetSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusRefunded, second.Status)

	cached, ok, err := mc.Get(f.ctx, sale.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SaleStatusRefunded, cached.Status)
}

func TestReceiveStockAddsAndOverwritesCost(t *testing.T) {
	f := newFixture(t, nil)
	other := f.addProduct(t, "SKU-OTHER", 30, 10, 0)

	res, err := f.svc.ReceiveStock(f.ctx, f.product.ID, domain.ReceiveStockRequest{
		VendorID: f.vendor.ID,
		Items: []domain.ReceiveStockItem{
			{QuantityReceived: 5, CostPrice: decimal.NewFromInt(55)},
			{ProductID: other.ID, QuantityReceived: 12, CostPrice: decimal.RequireFromString("11.5")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ItemsProcessed)

	p, err := f.repo.GetProduct(context.Background(), f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, p.StockQuantity)
	assert.True(t, p.CostPrice.Equal(decimal.NewFromInt(55)))

	o, err := f.repo.GetProduct(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, o.StockQuantity)
	assert.True(t, o.CostPrice.Equal(decimal.RequireFromString("11.5")))

	logs, err := f.svc.ListStockInLogs(f.ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, other.ID, logs[0].ProductID)
	assert.Equal(t, "PT Pemasok", logs[0].VendorName)
	assert.Equal(t, "Kasir Test", logs[0].UserName)
}

func TestReceiveStockRollsBackWholeBatch(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.ReceiveStock(f.ctx, "", domain.ReceiveStockRequest{
		Items: []domain.ReceiveStockItem{
			{ProductID: f.product.ID, QuantityReceived: 5, CostPrice: decimal.NewFromInt(60)},
			{ProductID: "prd-missing", QuantityReceived: 1, CostPrice: decimal.NewFromInt(1)},
		},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	p, err := f.repo.GetProduct(context.Background(), f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.StockQuantity)
	assert.True(t, p.CostPrice.Equal(decimal.NewFromInt(50)))

	logs, err := f.repo.ListStockInLogs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestReceiveStockValidatesItems(t *testing.T) {
	f := newFixture(t, nil)

	for name, item := range map[string]domain.ReceiveStockItem{
		"zero quantity": {ProductID: f.product.ID, QuantityReceived: 0, CostPrice: decimal.NewFromInt(1)},
		"zero cost":     {ProductID: f.product.ID, QuantityReceived: 1, CostPrice: decimal.Zero},
		"negative cost": {ProductID: f.product.ID, QuantityReceived: 1, CostPrice: decimal.NewFromInt(-3)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.ReceiveStock(f.ctx, "", domain.ReceiveStockRequest{Items: []domain.ReceiveStockItem{item}})
			assert.ErrorIs(t, err, store.ErrInvalidInput)
		})
	}

	_, err := f.svc.ReceiveStock(f.ctx, f.product.ID, domain.ReceiveStockRequest{
		VendorID: "ven-missing",
		Items:    []domain.ReceiveStockItem{{QuantityReceived: 1, CostPrice: decimal.NewFromInt(1)}},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 10, f.stock(t, f.product.ID))
}

func TestReceiveStockRejectsQuantitiesPastStockLimit(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.ReceiveStock(f.ctx, f.product.ID, domain.ReceiveStockRequest{
		Items: []domain.ReceiveStockItem{{QuantityReceived: math.MaxInt, CostPrice: decimal.NewFromInt(1)}},
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, 10, f.stock(t, f.product.ID))

	// Each line is in range but the second one pushes stock past the limit.
	_, err = f.svc.ReceiveStock(f.ctx, f.product.ID, domain.ReceiveStockRequest{
		Items: []domain.ReceiveStockItem{
			{QuantityReceived: 5, CostPrice: decimal.NewFromInt(1)},
			{QuantityReceived: inventory.MaxStock - 10, CostPrice: decimal.NewFromInt(1)},
		},
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, 10, f.stock(t, f.product.ID))

	logs, err := f.repo.ListStockInLogs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = f.svc.CreateSale(f.ctx, cart(domain.CartItem{ProductID: f.product.ID, Quantity: math.MaxInt}))
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestMoneyInputsKeepTwoDecimalPlaces(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{
		SKU: "SKU-FINE", Name: "Fine", SellingPrice: decimal.RequireFromString("10.005"), CostPrice: decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{
		SKU: "SKU-HUGE", Name: "Huge", SellingPrice: decimal.RequireFromString("1000000000000"),
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	created, err := f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{
		SKU: "SKU-OK", Name: "Ok", SellingPrice: decimal.RequireFromString("10.50"), CostPrice: decimal.RequireFromString("7.25"),
	})
	require.NoError(t, err)
	assert.True(t, created.SellingPrice.Equal(decimal.RequireFromString("10.5")))

	_, err = f.svc.ReceiveStock(f.ctx, f.product.ID, domain.ReceiveStockRequest{
		Items: []domain.ReceiveStockItem{{QuantityReceived: 1, CostPrice: decimal.RequireFromString("1.234")}},
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, 10, f.stock(t, f.product.ID))
}

func TestCreateSaleRejectsTotalsPastMoneyLimit(t *testing.T) {
	f := newFixture(t, nil)
	top, err := f.repo.CreateProduct(context.Background(), domain.Product{
		SKU:           "SKU-MAX",
		Name:          "Max",
		SellingPrice:  decimal.RequireFromString("999999999999.99"),
		StockQuantity: 5,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateSale(f.ctx, cart(domain.CartItem{ProductID: top.ID, Quantity: 2}))
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, 5, f.stock(t, top.ID))
	assert.Zero(t, f.saleCount(t))

	_, err = f.svc.CreateSale(f.ctx, cart(domain.CartItem{ProductID: top.ID, Quantity: 1}))
	assert.NoError(t, err)
	assert.Equal(t, 4, f.stock(t, top.ID))
}

func TestRedeemPointsGuardsBalance(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.RedeemPoints(f.ctx, f.customer.ID, domain.RedeemPointsRequest{Points: 10})
	var pointsErr *store.InsufficientPointsError
	require.True(t, errors.As(err, &pointsErr))
	assert.Equal(t, 5, pointsErr.Available)
	assert.Equal(t, 10, pointsErr.Requested)

	c, err := f.repo.GetCustomer(context.Background(), f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, c.LoyaltyPoints)

	updated, err := f.svc.RedeemPoints(f.ctx, f.customer.ID, domain.RedeemPointsRequest{Points: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.LoyaltyPoints)

	_, err = f.svc.RedeemPoints(f.ctx, f.customer.ID, domain.RedeemPointsRequest{Points: 0})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = f.svc.RedeemPoints(f.ctx, "cus-missing", domain.RedeemPointsRequest{Points: 1})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCatalogDuplicatesAndReferences(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateCustomer(f.ctx, domain.CustomerCreateRequest{Name: "Dup", Phone: "0811"})
	var dup *store.DuplicateIdentifierError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "phone", dup.Field)

	_, err = f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{SKU: "sku-test-01", Name: "Again", SellingPrice: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	_, err = f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{SKU: "SKU-NEW", Name: "New", SellingPrice: decimal.NewFromInt(1), SupplierID: "ven-missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	stores, err := f.svc.ListStores(f.ctx)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	err = f.svc.DeleteStore(f.ctx, stores[0].ID)
	assert.ErrorIs(t, err, store.ErrForeignKey)

	empty, err := f.svc.CreateStore(f.ctx, domain.StoreCreateRequest{Name: "Cabang Baru"})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteStore(f.ctx, empty.ID))
}

func TestReportsCountOnlyCompletedSales(t *testing.T) {
	f := newFixture(t, nil)
	first, err := f.svc.CreateSale(f.ctx, cart(domain.CartItem{ProductID: f.product.ID, Quantity: 2}))
	require.NoError(t, err)
	_, err = f.svc.CreateSale(f.ctx, cart(domain.CartItem{ProductID: f.product.ID, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.RefundSale(f.ctx, first.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	summary, err := f.svc.SalesSummary(f.ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NumberOfSales)
	assert.True(t, summary.TotalRevenue.Equal(decimal.NewFromInt(100)))
	assert.True(t, summary.TotalProfit.Equal(decimal.NewFromInt(50)))
	assert.True(t, summary.AverageSaleValue.Equal(decimal.NewFromInt(100)))

	stock, err := f.svc.StockSummary(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stock.TotalProducts)
	assert.True(t, stock.TotalInventoryValue.Equal(decimal.NewFromInt(9*50)))
	assert.Empty(t, stock.LowStockProducts)
}
