// Package seed loads demo data for local runs and tests.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

const (
	StoreID    = "sto-main"
	VendorID   = "ven-sumber-rejeki"
	CustomerID = "cus-walkin-member"
)

// Demo inserts a store, one user per role, a vendor, a handful of products
// and a loyalty customer. Rows that already exist are left alone, so Demo
// can run on every start.
func Demo(ctx context.Context, repo store.Repository, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := repo.CreateStore(ctx, domain.Store{ID: StoreID, Name: "Toko Utama", Address: "Jl. Merdeka 1"}); ignoreDuplicate(err) != nil {
		return fmt.Errorf("seed store: %w", err)
	}

	for _, u := range seedUsers(logger) {
		if _, err := repo.CreateUser(ctx, u); ignoreDuplicate(err) != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}

	if _, err := repo.CreateVendor(ctx, domain.Vendor{ID: VendorID, Name: "CV Sumber Rejeki", ContactName: "Budi", Phone: "0215550100"}); ignoreDuplicate(err) != nil {
		return fmt.Errorf("seed vendor: %w", err)
	}

	for _, p := range seedProducts() {
		if _, err := repo.CreateProduct(ctx, p); ignoreDuplicate(err) != nil {
			return fmt.Errorf("seed product %s: %w", p.SKU, err)
		}
	}

	if _, err := repo.CreateCustomer(ctx, domain.Customer{ID: CustomerID, Name: "Siti Rahma", Phone: "081200000001", LoyaltyPoints: 25}); ignoreDuplicate(err) != nil {
		return fmt.Errorf("seed customer: %w", err)
	}
	return nil
}

func ignoreDuplicate(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	return err
}

// seedUsers reads passwords from SEED_<ROLE>_PASSWORD and falls back to
// dev defaults with a warning.
func seedUsers(logger *zap.Logger) []domain.User {
	defaults := []struct {
		id, username, fullName, role, envKey, fallback string
	}{
		{"usr-admin", "admin", "Admin Toko", domain.RoleAdmin, "SEED_ADMIN_PASSWORD", "admin123"},
		{"usr-manager", "manager", "Manajer Toko", domain.RoleManager, "SEED_MANAGER_PASSWORD", "manager123"},
		{"usr-cashier", "cashier", "Kasir Satu", domain.RoleCashier, "SEED_CASHIER_PASSWORD", "cashier123"},
		{"usr-stock", "stock", "Staf Gudang", domain.RoleStock, "SEED_STOCK_PASSWORD", "stock123"},
	}

	users := make([]domain.User, 0, len(defaults))
	warned := false
	for _, d := range defaults {
		password := os.Getenv(d.envKey)
		if password == "" {
			password = d.fallback
			if !warned {
				logger.Warn("using default seed credentials; set SEED_*_PASSWORD to override")
				warned = true
			}
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("hash seed password", zap.String("username", d.username), zap.Error(err))
			continue
		}
		users = append(users, domain.User{
			ID:           d.id,
			Username:     d.username,
			FullName:     d.fullName,
			PasswordHash: string(hash),
			Role:         d.role,
			StoreID:      StoreID,
			Active:       true,
		})
	}
	return users
}

func seedProducts() []domain.Product {
	p := func(id, sku, name, category, cost, price string, stock, reorder int) domain.Product {
		return domain.Product{
			ID:            id,
			SKU:           sku,
			Name:          name,
			Category:      category,
			CostPrice:     decimal.RequireFromString(cost),
			SellingPrice:  decimal.RequireFromString(price),
			StockQuantity: stock,
			ReorderLevel:  reorder,
			SupplierID:    VendorID,
		}
	}
	return []domain.Product{
		p("prd-mie", "SKU-MIE-01", "Mie Goreng Instan", "grocery", "2700", "3500", 120, 24),
		p("prd-telur", "SKU-TELUR-01", "Telur 10 Butir", "grocery", "23000", "26500", 40, 10),
		p("prd-susu", "SKU-SUSU-01", "Susu UHT 1L", "dairy", "13600", "18900", 36, 12),
		p("prd-kopi", "SKU-KOPI-01", "Kopi Sachet", "beverage", "1700", "2600", 200, 50),
		p("prd-gula", "SKU-GULA-01", "Gula 1kg", "grocery", "15300", "17400", 8, 10),
		p("prd-sabun", "SKU-SABUN-01", "Sabun Mandi", "household", "5000", "7400", 60, 15),
	}
}
