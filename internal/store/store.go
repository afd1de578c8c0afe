package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
)

// Repository is the store handle shared by the service layer. Reads and
// catalog writes run on their own; every stock-affecting flow goes through
// Begin and the Tx it returns.
type Repository interface {
	Beginner

	CreateStore(ctx context.Context, s domain.Store) (*domain.Store, error)
	ListStores(ctx context.Context) ([]domain.Store, error)
	DeleteStore(ctx context.Context, id string) error

	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	CreateVendor(ctx context.Context, vendor domain.Vendor) (*domain.Vendor, error)
	GetVendor(ctx context.Context, id string) (*domain.Vendor, error)
	ListVendors(ctx context.Context) ([]domain.Vendor, error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)

	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error)

	ListStockInLogs(ctx context.Context, limit int) ([]domain.StockInLog, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	Close() error
}

type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// SaleFilter narrows ListSales. Zero values mean no constraint.
type SaleFilter struct {
	CustomerID string
	Status     string
	From       time.Time
	To         time.Time
	Limit      int
}

// Tx is one atomic unit of work. Lock* methods take a row lock that is held
// until Commit or Rollback. Rollback after Commit is a no-op.
type Tx interface {
	// LockProducts returns the products that exist among ids, keyed by id.
	LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
	LockStock(ctx context.Context, productID string) (int, error)
	AddStock(ctx context.Context, productID string, delta int) error
	SetCostPrice(ctx context.Context, productID string, cost decimal.Decimal) error

	InsertSale(ctx context.Context, sale *domain.Sale) error
	LockSale(ctx context.Context, id string) (*domain.Sale, error)
	SetSaleStatus(ctx context.Context, id string, status string) error

	LockCustomer(ctx context.Context, id string) (*domain.Customer, error)
	AddLoyaltyPoints(ctx context.Context, customerID string, delta int) error

	GetVendor(ctx context.Context, id string) (*domain.Vendor, error)
	InsertStockInLog(ctx context.Context, entry *domain.StockInLog) error

	// CreateAuditLog must not poison the surrounding transaction when it
	// fails; callers are free to ignore its error and still commit.
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error

	Commit() error
	Rollback() error
}

// WithinTx runs fn inside a transaction obtained from b. The transaction is
// committed when fn returns nil and rolled back on error or panic.
func WithinTx(ctx context.Context, b Beginner, fn func(tx Tx) error) (err error) {
	tx, err := b.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
