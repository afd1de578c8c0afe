package gormstore

import (
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
)

type storeRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:191;not null;uniqueIndex"`
	Address   string `gorm:"size:255"`
	CreatedAt time.Time
}

func (storeRow) TableName() string { return "stores" }

type userRow struct {
	ID           string  `gorm:"primaryKey;size:64"`
	Username     string  `gorm:"size:191;not null;uniqueIndex"`
	FullName     string  `gorm:"size:191;not null"`
	PasswordHash string  `gorm:"size:255;not null"`
	Role         string  `gorm:"size:32;not null"`
	StoreID      *string `gorm:"size:64;index"`
	Active       bool    `gorm:"not null"`
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type vendorRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:191;not null"`
	ContactName string `gorm:"size:191"`
	Phone       string `gorm:"size:64"`
	Email       string `gorm:"size:191"`
	CreatedAt   time.Time
}

func (vendorRow) TableName() string { return "vendors" }

type productRow struct {
	ID            string          `gorm:"primaryKey;size:64"`
	SKU           string          `gorm:"column:sku;size:64;not null;uniqueIndex"`
	Name          string          `gorm:"size:191;not null"`
	Category      string          `gorm:"size:64"`
	CostPrice     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	SellingPrice  decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	StockQuantity int             `gorm:"not null"`
	ReorderLevel  int             `gorm:"not null"`
	SupplierID    *string         `gorm:"size:64;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (productRow) TableName() string { return "products" }

type customerRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"size:191;not null"`
	Phone         string `gorm:"size:64;not null;uniqueIndex"`
	Email         string `gorm:"size:191"`
	LoyaltyPoints int    `gorm:"not null"`
	CreatedAt     time.Time
}

func (customerRow) TableName() string { return "customers" }

type saleRow struct {
	ID            string          `gorm:"primaryKey;size:64"`
	InvoiceNumber string          `gorm:"size:64;not null;uniqueIndex"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CostTotal     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	ProfitTotal   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	PaymentMethod string          `gorm:"size:16;not null"`
	Status        string          `gorm:"size:16;not null;index"`
	UserID        string          `gorm:"size:64;not null;index"`
	StoreID       string          `gorm:"size:64;not null;index"`
	CustomerID    *string         `gorm:"size:64;index"`
	CreatedAt     time.Time       `gorm:"index"`
}

func (saleRow) TableName() string { return "sales" }

type saleItemRow struct {
	ID        string          `gorm:"primaryKey;size:64"`
	SaleID    string          `gorm:"size:64;not null;index"`
	Position  int             `gorm:"not null"`
	ProductID string          `gorm:"size:64;not null;index"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CostPrice decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Profit    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
}

func (saleItemRow) TableName() string { return "sale_items" }

type stockInLogRow struct {
	ID               string          `gorm:"primaryKey;size:64"`
	ProductID        string          `gorm:"size:64;not null;index"`
	VendorID         *string         `gorm:"size:64"`
	UserID           string          `gorm:"size:64;not null"`
	QuantityReceived int             `gorm:"not null"`
	CostPrice        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CreatedAt        time.Time       `gorm:"index"`
}

func (stockInLogRow) TableName() string { return "stock_in_logs" }

type auditLogRow struct {
	ID         string    `gorm:"primaryKey;size:64"`
	UserID     string    `gorm:"size:64"`
	Action     string    `gorm:"size:64;not null"`
	EntityType string    `gorm:"size:64;not null"`
	EntityID   string    `gorm:"size:255"`
	Details    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

func (auditLogRow) TableName() string { return "audit_logs" }

func allModels() []any {
	return []any{
		&storeRow{}, &userRow{}, &vendorRow{}, &productRow{}, &customerRow{},
		&saleRow{}, &saleItemRow{}, &stockInLogRow{}, &auditLogRow{},
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r storeRow) toDomain() domain.Store {
	return domain.Store{ID: r.ID, Name: r.Name, Address: r.Address, CreatedAt: r.CreatedAt}
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Username:     r.Username,
		FullName:     r.FullName,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		StoreID:      deref(r.StoreID),
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
	}
}

func (r vendorRow) toDomain() domain.Vendor {
	return domain.Vendor{ID: r.ID, Name: r.Name, ContactName: r.ContactName, Phone: r.Phone, Email: r.Email, CreatedAt: r.CreatedAt}
}

func productFromDomain(p domain.Product) productRow {
	return productRow{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		Category:      p.Category,
		CostPrice:     p.CostPrice,
		SellingPrice:  p.SellingPrice,
		StockQuantity: p.StockQuantity,
		ReorderLevel:  p.ReorderLevel,
		SupplierID:    optional(p.SupplierID),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:            r.ID,
		SKU:           r.SKU,
		Name:          r.Name,
		Category:      r.Category,
		CostPrice:     r.CostPrice,
		SellingPrice:  r.SellingPrice,
		StockQuantity: r.StockQuantity,
		ReorderLevel:  r.ReorderLevel,
		SupplierID:    deref(r.SupplierID),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r customerRow) toDomain() domain.Customer {
	return domain.Customer{ID: r.ID, Name: r.Name, Phone: r.Phone, Email: r.Email, LoyaltyPoints: r.LoyaltyPoints, CreatedAt: r.CreatedAt}
}

func (r saleRow) toDomain() domain.Sale {
	return domain.Sale{
		ID:            r.ID,
		InvoiceNumber: r.InvoiceNumber,
		TotalAmount:   r.TotalAmount,
		CostTotal:     r.CostTotal,
		ProfitTotal:   r.ProfitTotal,
		PaymentMethod: r.PaymentMethod,
		Status:        r.Status,
		UserID:        r.UserID,
		StoreID:       r.StoreID,
		CustomerID:    deref(r.CustomerID),
		CreatedAt:     r.CreatedAt,
	}
}

func (r saleItemRow) toDomain() domain.SaleItem {
	return domain.SaleItem{
		ID:        r.ID,
		SaleID:    r.SaleID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Price:     r.Price,
		CostPrice: r.CostPrice,
		Profit:    r.Profit,
	}
}

func (r stockInLogRow) toDomain() domain.StockInLog {
	return domain.StockInLog{
		ID:               r.ID,
		ProductID:        r.ProductID,
		VendorID:         deref(r.VendorID),
		UserID:           r.UserID,
		QuantityReceived: r.QuantityReceived,
		CostPrice:        r.CostPrice,
		CreatedAt:        r.CreatedAt,
	}
}

func (r auditLogRow) toDomain() domain.AuditLog {
	return domain.AuditLog{
		ID:         r.ID,
		UserID:     r.UserID,
		Action:     r.Action,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Details:    r.Details,
		CreatedAt:  r.CreatedAt,
	}
}
