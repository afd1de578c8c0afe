// Package storetest holds behaviour checks every store.Repository backend
// must pass. Each backend's tests call Run with a factory for an empty store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/inventory"
	"posledger/backend/internal/service"
	"posledger/backend/internal/store"
)

// Factory returns an empty, migrated repository. It should register its own
// cleanup on t.
type Factory func(t *testing.T) store.Repository

type env struct {
	repo     store.Repository
	svc      *service.Service
	ctx      context.Context
	storeID  string
	product  domain.Product
	customer domain.Customer
	vendor   domain.Vendor
}

func setup(t *testing.T, newRepo Factory) *env {
	t.Helper()
	ctx := context.Background()
	repo := newRepo(t)
	suffix := time.Now().UTC().Format("150405.000000000")

	st, err := repo.CreateStore(ctx, domain.Store{Name: "Conformance " + suffix})
	require.NoError(t, err)
	user, err := repo.CreateUser(ctx, domain.User{
		Username:     "kasir-" + suffix,
		FullName:     "Kasir Conformance",
		PasswordHash: "x",
		Role:         domain.RoleCashier,
		StoreID:      st.ID,
		Active:       true,
	})
	require.NoError(t, err)
	vendor, err := repo.CreateVendor(ctx, domain.Vendor{Name: "PT Pemasok"})
	require.NoError(t, err)
	product, err := repo.CreateProduct(ctx, domain.Product{
		SKU:           "SKU-" + suffix,
		Name:          "Beras 5kg",
		Category:      "grocery",
		CostPrice:     decimal.NewFromInt(50),
		SellingPrice:  decimal.NewFromInt(100),
		StockQuantity: 10,
		ReorderLevel:  2,
		SupplierID:    vendor.ID,
	})
	require.NoError(t, err)
	customer, err := repo.CreateCustomer(ctx, domain.Customer{Name: "Member", Phone: "08" + suffix, LoyaltyPoints: 5})
	require.NoError(t, err)

	svc := service.New(repo, nil, time.Minute, zaptest.NewLogger(t))
	actorCtx := service.WithActor(ctx, domain.Actor{UserID: user.ID, Username: user.Username, Role: user.Role, StoreID: st.ID})
	return &env{repo: repo, svc: svc, ctx: actorCtx, storeID: st.ID, product: *product, customer: *customer, vendor: *vendor}
}

func (e *env) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := e.repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func (e *env) salesFor(t *testing.T, customerID string) []domain.Sale {
	t.Helper()
	sales, err := e.repo.ListSales(context.Background(), store.SaleFilter{CustomerID: customerID})
	require.NoError(t, err)
	return sales
}

func saleOf(customerID string, items ...domain.CartItem) domain.CreateSaleRequest {
	return domain.CreateSaleRequest{CustomerID: customerID, PaymentMethod: "cash", Items: items}
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// Run executes the conformance cases against the backend built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("SaleSnapshotsPricesAndDecrementsStock", func(t *testing.T) {
		e := setup(t, newRepo)

		sale, err := e.svc.CreateSale(e.ctx, saleOf(e.customer.ID, domain.CartItem{ProductID: e.product.ID, Quantity: 2}))
		require.NoError(t, err)
		requireDecimal(t, "200", sale.TotalAmount)
		requireDecimal(t, "100", sale.CostTotal)
		requireDecimal(t, "100", sale.ProfitTotal)
		assert.Equal(t, 8, e.stock(t, e.product.ID))

		stored, err := e.repo.GetSale(context.Background(), sale.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SaleStatusCompleted, stored.Status)
		assert.Equal(t, domain.PaymentCash, stored.PaymentMethod)
		assert.Equal(t, sale.InvoiceNumber, stored.InvoiceNumber)
		require.Len(t, stored.Items, 1)
		assert.Equal(t, "Beras 5kg", stored.Items[0].ProductName)
		requireDecimal(t, "100", stored.Items[0].Price)
		requireDecimal(t, "50", stored.Items[0].CostPrice)
		requireDecimal(t, "100", stored.Items[0].Profit)
		require.NotNil(t, stored.User)
		assert.Equal(t, "Kasir Conformance", stored.User.FullName)
		require.NotNil(t, stored.Customer)
		assert.Equal(t, e.customer.ID, stored.Customer.ID)

		customer, err := e.repo.GetCustomer(context.Background(), e.customer.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, customer.LoyaltyPoints)
		require.Len(t, customer.RecentSales, 1)
	})

	t.Run("SaleItemsKeepCartOrder", func(t *testing.T) {
		e := setup(t, newRepo)
		second, err := e.repo.CreateProduct(context.Background(), domain.Product{
			SKU:           e.product.SKU + "-B",
			Name:          "Aaa First By Name",
			CostPrice:     decimal.RequireFromString("3.50"),
			SellingPrice:  decimal.RequireFromString("4.25"),
			StockQuantity: 5,
		})
		require.NoError(t, err)

		sale, err := e.svc.CreateSale(e.ctx, saleOf("",
			domain.CartItem{ProductID: e.product.ID, Quantity: 1},
			domain.CartItem{ProductID: second.ID, Quantity: 2},
		))
		require.NoError(t, err)
		requireDecimal(t, "108.5", sale.TotalAmount)

		stored, err := e.repo.GetSale(context.Background(), sale.ID)
		require.NoError(t, err)
		require.Len(t, stored.Items, 2)
		assert.Equal(t, e.product.ID, stored.Items[0].ProductID)
		assert.Equal(t, second.ID, stored.Items[1].ProductID)
		requireDecimal(t, "1.5", stored.Items[1].Profit)
	})

	t.Run("InsufficientStockLeavesNoTrace", func(t *testing.T) {
		e := setup(t, newRepo)

		_, err := e.svc.CreateSale(e.ctx, saleOf(e.customer.ID, domain.CartItem{ProductID: e.product.ID, Quantity: 20}))
		var stockErr *store.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 10, stockErr.Available)
		assert.Equal(t, 20, stockErr.Requested)
		assert.Equal(t, 10, e.stock(t, e.product.ID))
		assert.Empty(t, e.salesFor(t, e.customer.ID))
	})

	t.Run("UnknownProductRollsBackEarlierLines", func(t *testing.T) {
		e := setup(t, newRepo)

		_, err := e.svc.CreateSale(e.ctx, saleOf("",
			domain.CartItem{ProductID: e.product.ID, Quantity: 1},
			domain.CartItem{ProductID: "prd-missing", Quantity: 1},
		))
		require.ErrorIs(t, err, store.ErrNotFound)
		assert.Equal(t, 10, e.stock(t, e.product.ID))
	})

	t.Run("RefundRestocksOnce", func(t *testing.T) {
		e := setup(t, newRepo)
		sale, err := e.svc.CreateSale(e.ctx, saleOf(e.customer.ID, domain.CartItem{ProductID: e.product.ID, Quantity: 2}))
		require.NoError(t, err)

		refunded, err := e.svc.RefundSale(e.ctx, sale.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SaleStatusRefunded, refunded.Status)
		assert.Equal(t, 10, e.stock(t, e.product.ID))

		_, err = e.svc.RefundSale(e.ctx, sale.ID)
		require.ErrorIs(t, err, store.ErrAlreadyRefunded)
		assert.Equal(t, 10, e.stock(t, e.product.ID))

		stored, err := e.repo.GetSale(context.Background(), sale.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SaleStatusRefunded, stored.Status)

		logs, err := e.repo.ListAuditLogs(context.Background(), 10)
		require.NoError(t, err)
		require.NotEmpty(t, logs)
		assert.Equal(t, domain.AuditRefundSale, logs[0].Action)
		assert.Equal(t, sale.ID, logs[0].EntityID)

		customer, err := e.repo.GetCustomer(context.Background(), e.customer.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, customer.LoyaltyPoints)
	})

	t.Run("ReceiveStockAddsAndOverwritesCost", func(t *testing.T) {
		e := setup(t, newRepo)

		result, err := e.svc.ReceiveStock(e.ctx, e.product.ID, domain.ReceiveStockRequest{
			VendorID: e.vendor.ID,
			Items: []domain.ReceiveStockItem{
				{QuantityReceived: 5, CostPrice: decimal.RequireFromString("55.25")},
				{ProductID: e.product.ID, QuantityReceived: 3, CostPrice: decimal.RequireFromString("57.75")},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.ItemsProcessed)

		p, err := e.repo.GetProduct(context.Background(), e.product.ID)
		require.NoError(t, err)
		assert.Equal(t, 18, p.StockQuantity)
		requireDecimal(t, "57.75", p.CostPrice)

		logs, err := e.repo.ListStockInLogs(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, "Beras 5kg", logs[0].ProductName)
		assert.Equal(t, "PT Pemasok", logs[0].VendorName)
		assert.Equal(t, "Kasir Conformance", logs[0].UserName)
	})

	t.Run("ReceiveStockUnknownVendorRollsBack", func(t *testing.T) {
		e := setup(t, newRepo)

		_, err := e.svc.ReceiveStock(e.ctx, e.product.ID, domain.ReceiveStockRequest{
			VendorID: "ven-missing",
			Items:    []domain.ReceiveStockItem{{QuantityReceived: 5, CostPrice: decimal.NewFromInt(60)}},
		})
		require.ErrorIs(t, err, store.ErrNotFound)
		assert.Equal(t, 10, e.stock(t, e.product.ID))

		logs, err := e.repo.ListStockInLogs(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("RedeemBeyondBalanceFails", func(t *testing.T) {
		e := setup(t, newRepo)

		_, err := e.svc.RedeemPoints(e.ctx, e.customer.ID, domain.RedeemPointsRequest{Points: 10})
		var pointsErr *store.InsufficientPointsError
		require.ErrorAs(t, err, &pointsErr)
		assert.Equal(t, 5, pointsErr.Available)
		assert.Equal(t, 10, pointsErr.Requested)

		customer, err := e.svc.RedeemPoints(e.ctx, e.customer.ID, domain.RedeemPointsRequest{Points: 5})
		require.NoError(t, err)
		assert.Equal(t, 0, customer.LoyaltyPoints)
	})

	t.Run("DuplicateAndReferenceErrors", func(t *testing.T) {
		e := setup(t, newRepo)
		ctx := context.Background()

		_, err := e.repo.CreateProduct(ctx, domain.Product{SKU: e.product.SKU, Name: "Copy", SellingPrice: decimal.NewFromInt(1)})
		require.ErrorIs(t, err, store.ErrDuplicate)
		_, err = e.repo.CreateCustomer(ctx, domain.Customer{Name: "Copy", Phone: e.customer.Phone})
		require.ErrorIs(t, err, store.ErrDuplicate)
		_, err = e.repo.CreateProduct(ctx, domain.Product{SKU: e.product.SKU + "-X", Name: "Orphan", SellingPrice: decimal.NewFromInt(1), SupplierID: "ven-missing"})
		require.ErrorIs(t, err, store.ErrNotFound)

		require.ErrorIs(t, e.repo.DeleteStore(ctx, e.storeID), store.ErrForeignKey)
		empty, err := e.repo.CreateStore(ctx, domain.Store{Name: "Empty " + e.product.SKU})
		require.NoError(t, err)
		require.NoError(t, e.repo.DeleteStore(ctx, empty.ID))
		require.ErrorIs(t, e.repo.DeleteStore(ctx, empty.ID), store.ErrNotFound)
	})

	t.Run("UsersProvisionedThroughService", func(t *testing.T) {
		e := setup(t, newRepo)
		ctx := context.Background()
		username := "gudang-" + strings.ToLower(e.product.SKU)

		created, err := e.svc.CreateUser(e.ctx, domain.UserCreateRequest{
			Username: username,
			Password: "rahasia-gudang",
			FullName: "Staf Gudang",
			Role:     domain.RoleStock,
			StoreID:  e.storeID,
		})
		require.NoError(t, err)

		stored, err := e.repo.GetUserByUsername(ctx, username)
		require.NoError(t, err)
		assert.Equal(t, created.ID, stored.ID)
		assert.Equal(t, domain.RoleStock, stored.Role)
		assert.True(t, stored.Active)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("rahasia-gudang")))

		users, err := e.repo.ListUsers(ctx)
		require.NoError(t, err)
		var names []string
		for _, u := range users {
			names = append(names, u.Username)
		}
		assert.Contains(t, names, username)

		_, err = e.svc.CreateUser(e.ctx, domain.UserCreateRequest{Username: username, Password: "rahasia-gudang", FullName: "Copy", Role: domain.RoleStock, StoreID: e.storeID})
		assert.ErrorIs(t, err, store.ErrDuplicate)
		_, err = e.svc.CreateUser(e.ctx, domain.UserCreateRequest{Username: username + "-x", Password: "rahasia-gudang", FullName: "Orphan", Role: domain.RoleStock, StoreID: "sto-missing"})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ReceiveStockStaysWithinStockLimit", func(t *testing.T) {
		e := setup(t, newRepo)

		_, err := e.svc.ReceiveStock(e.ctx, e.product.ID, domain.ReceiveStockRequest{
			Items: []domain.ReceiveStockItem{{QuantityReceived: inventory.MaxStock - 5, CostPrice: decimal.NewFromInt(1)}},
		})
		require.ErrorIs(t, err, store.ErrInvalidInput)
		assert.Equal(t, 10, e.stock(t, e.product.ID))

		_, err = e.svc.ReceiveStock(e.ctx, e.product.ID, domain.ReceiveStockRequest{
			Items: []domain.ReceiveStockItem{{QuantityReceived: inventory.MaxStock - 10, CostPrice: decimal.NewFromInt(1)}},
		})
		require.NoError(t, err)
		assert.Equal(t, inventory.MaxStock, e.stock(t, e.product.ID))
	})

	t.Run("FailedTransactionRollsBack", func(t *testing.T) {
		e := setup(t, newRepo)
		boom := errors.New("boom")

		err := store.WithinTx(context.Background(), e.repo, func(tx store.Tx) error {
			if err := tx.AddStock(context.Background(), e.product.ID, -4); err != nil {
				return err
			}
			if err := tx.AddLoyaltyPoints(context.Background(), e.customer.ID, 100); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 10, e.stock(t, e.product.ID))

		customer, err := e.repo.GetCustomer(context.Background(), e.customer.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, customer.LoyaltyPoints)
	})

	t.Run("ConcurrentSalesNeverOversell", func(t *testing.T) {
		e := setup(t, newRepo)
		const attempts = 15

		var sold, rejected atomic.Int32
		var g errgroup.Group
		for i := 0; i < attempts; i++ {
			g.Go(func() error {
				_, err := e.svc.CreateSale(e.ctx, saleOf("", domain.CartItem{ProductID: e.product.ID, Quantity: 1}))
				switch {
				case err == nil:
					sold.Add(1)
				case errors.Is(err, store.ErrInsufficientStock):
					rejected.Add(1)
				default:
					return fmt.Errorf("attempt %d: %w", i, err)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.EqualValues(t, 10, sold.Load())
		assert.EqualValues(t, attempts-10, rejected.Load())
		assert.Equal(t, 0, e.stock(t, e.product.ID))
	})

	t.Run("SalesFilterByWindowAndStatus", func(t *testing.T) {
		e := setup(t, newRepo)
		first, err := e.svc.CreateSale(e.ctx, saleOf(e.customer.ID, domain.CartItem{ProductID: e.product.ID, Quantity: 1}))
		require.NoError(t, err)
		_, err = e.svc.CreateSale(e.ctx, saleOf(e.customer.ID, domain.CartItem{ProductID: e.product.ID, Quantity: 1}))
		require.NoError(t, err)
		_, err = e.svc.RefundSale(e.ctx, first.ID)
		require.NoError(t, err)

		ctx := context.Background()
		completed, err := e.repo.ListSales(ctx, store.SaleFilter{CustomerID: e.customer.ID, Status: domain.SaleStatusCompleted})
		require.NoError(t, err)
		assert.Len(t, completed, 1)

		future, err := e.repo.ListSales(ctx, store.SaleFilter{CustomerID: e.customer.ID, From: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.Empty(t, future)

		limited, err := e.repo.ListSales(ctx, store.SaleFilter{CustomerID: e.customer.ID, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}
