package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

type tx struct {
	db   *gorm.DB
	done bool
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	db := s.db.WithContext(ctx).Begin()
	if db.Error != nil {
		return nil, db.Error
	}
	return &tx{db: db}, nil
}

func (t *tx) Commit() error {
	if t.done {
		return gorm.ErrInvalidTransaction
	}
	t.done = true
	return t.db.Commit().Error
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.db.Rollback().Error
}

func (t *tx) forUpdate() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *tx) LockProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []productRow
	if err := t.forUpdate().Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		result[r.ID] = r.toDomain()
	}
	return result, nil
}

func (t *tx) LockStock(_ context.Context, productID string) (int, error) {
	var row productRow
	if err := t.forUpdate().Select("id", "stock_quantity").First(&row, "id = ?", productID).Error; err != nil {
		return 0, notFoundOr(err, "product", productID)
	}
	return row.StockQuantity, nil
}

func (t *tx) AddStock(_ context.Context, productID string, delta int) error {
	return t.updateProduct(productID, map[string]any{
		"stock_quantity": gorm.Expr("stock_quantity + ?", delta),
	})
}

func (t *tx) SetCostPrice(_ context.Context, productID string, cost decimal.Decimal) error {
	return t.updateProduct(productID, map[string]any{"cost_price": cost})
}

func (t *tx) updateProduct(id string, changes map[string]any) error {
	changes["updated_at"] = time.Now().UTC()
	res := t.db.Model(&productRow{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.NotFound("product", id)
	}
	return nil
}

func (t *tx) InsertSale(_ context.Context, sale *domain.Sale) error {
	if sale.CustomerID != "" {
		var c customerRow
		if err := t.db.Select("id").First(&c, "id = ?", sale.CustomerID).Error; err != nil {
			return notFoundOr(err, "customer", sale.CustomerID)
		}
	}
	if sale.ID == "" {
		sale.ID = xid.New("sal")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	row := saleRow{
		ID:            sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		TotalAmount:   sale.TotalAmount,
		CostTotal:     sale.CostTotal,
		ProfitTotal:   sale.ProfitTotal,
		PaymentMethod: sale.PaymentMethod,
		Status:        sale.Status,
		UserID:        sale.UserID,
		StoreID:       sale.StoreID,
		CustomerID:    optional(sale.CustomerID),
		CreatedAt:     sale.CreatedAt,
	}
	if err := t.db.Create(&row).Error; err != nil {
		return duplicateOr(err, "invoice number", sale.InvoiceNumber)
	}

	items := make([]saleItemRow, 0, len(sale.Items))
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("itm")
		}
		sale.Items[i].SaleID = sale.ID
		item := sale.Items[i]
		items = append(items, saleItemRow{
			ID:        item.ID,
			SaleID:    sale.ID,
			Position:  i,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			CostPrice: item.CostPrice,
			Profit:    item.Profit,
		})
	}
	if len(items) > 0 {
		if err := t.db.Create(&items).Error; err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) LockSale(_ context.Context, id string) (*domain.Sale, error) {
	var row saleRow
	if err := t.forUpdate().First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "sale", id)
	}
	sale := row.toDomain()
	items, err := loadSaleItems(t.db, id)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (t *tx) SetSaleStatus(_ context.Context, id string, status string) error {
	res := t.db.Model(&saleRow{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.NotFound("sale", id)
	}
	return nil
}

func (t *tx) LockCustomer(_ context.Context, id string) (*domain.Customer, error) {
	var row customerRow
	if err := t.forUpdate().First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "customer", id)
	}
	c := row.toDomain()
	return &c, nil
}

func (t *tx) AddLoyaltyPoints(_ context.Context, customerID string, delta int) error {
	res := t.db.Model(&customerRow{}).Where("id = ?", customerID).
		Update("loyalty_points", gorm.Expr("loyalty_points + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.NotFound("customer", customerID)
	}
	return nil
}

func (t *tx) GetVendor(_ context.Context, id string) (*domain.Vendor, error) {
	return getVendor(t.db, id)
}

func (t *tx) InsertStockInLog(_ context.Context, entry *domain.StockInLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("sil")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return t.db.Create(&stockInLogRow{
		ID:               entry.ID,
		ProductID:        entry.ProductID,
		VendorID:         optional(entry.VendorID),
		UserID:           entry.UserID,
		QuantityReceived: entry.QuantityReceived,
		CostPrice:        entry.CostPrice,
		CreatedAt:        entry.CreatedAt,
	}).Error
}

const auditSavepoint = "audit_entry"

// CreateAuditLog runs inside a savepoint so a failed insert can be undone
// without aborting the enclosing transaction.
func (t *tx) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if err := t.db.SavePoint(auditSavepoint).Error; err != nil {
		return err
	}
	if err := t.db.Create(auditFromDomain(entry)).Error; err != nil {
		if rbErr := t.db.RollbackTo(auditSavepoint).Error; rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

var (
	_ store.Repository = (*Store)(nil)
	_ store.Tx         = (*tx)(nil)
)
