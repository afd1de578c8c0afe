package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

// tx runs at READ COMMITTED; every row it mutates is first taken with
// SELECT ... FOR UPDATE, products in id order.
type tx struct {
	tx   *sql.Tx
	done bool
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	return &tx{tx: sqlTx}, nil
}

func (t *tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	return t.tx.Commit()
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

func (t *tx) LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

func (t *tx) LockStock(ctx context.Context, productID string) (int, error) {
	var qty int
	err := t.tx.QueryRowContext(ctx, `SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.NotFound("product", productID)
		}
		return 0, err
	}
	return qty, nil
}

func (t *tx) AddStock(ctx context.Context, productID string, delta int) error {
	return t.execOne(ctx, "product", productID, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1
	`, productID, delta)
}

func (t *tx) SetCostPrice(ctx context.Context, productID string, cost decimal.Decimal) error {
	return t.execOne(ctx, "product", productID, `
		UPDATE products
		SET cost_price = $2, updated_at = now()
		WHERE id = $1
	`, productID, cost)
}

// execOne runs an update that must touch exactly the row identified by id.
func (t *tx) execOne(ctx context.Context, kind, id, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFound(kind, id)
	}
	return nil
}

func (t *tx) InsertSale(ctx context.Context, sale *domain.Sale) error {
	if sale.ID == "" {
		sale.ID = xid.New("sal")
	}
	sale.CreatedAt = createdAt(sale.CreatedAt)

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, invoice_number, total_amount, cost_total, profit_total,
			payment_method, status, user_id, store_id, customer_id, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, sale.ID, sale.InvoiceNumber, sale.TotalAmount, sale.CostTotal, sale.ProfitTotal,
		sale.PaymentMethod, sale.Status, sale.UserID, sale.StoreID, nullIfEmpty(sale.CustomerID), sale.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return &store.DuplicateIdentifierError{Field: "invoice number", Value: sale.InvoiceNumber}
		case isForeignKeyViolation(err):
			if sale.CustomerID != "" {
				return store.NotFound("customer", sale.CustomerID)
			}
			return &store.ForeignKeyError{Entity: "sale", ID: sale.ID}
		}
		return err
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		if item.ID == "" {
			item.ID = xid.New("itm")
		}
		item.SaleID = sale.ID
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, position, product_id, quantity, price, cost_price, profit)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, sale.ID, i, item.ProductID, item.Quantity, item.Price, item.CostPrice, item.Profit); err != nil {
			if isForeignKeyViolation(err) {
				return store.NotFound("product", item.ProductID)
			}
			return err
		}
	}
	return nil
}

func (t *tx) LockSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullString
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, invoice_number, total_amount, cost_total, profit_total,
			payment_method, status, user_id, store_id, customer_id, created_at
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&sale.ID, &sale.InvoiceNumber, &sale.TotalAmount, &sale.CostTotal, &sale.ProfitTotal,
		&sale.PaymentMethod, &sale.Status, &sale.UserID, &sale.StoreID, &customerID, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("sale", id)
		}
		return nil, err
	}
	sale.CustomerID = customerID.String
	sale.CreatedAt = sale.CreatedAt.UTC()

	items, err := loadSaleItems(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (t *tx) SetSaleStatus(ctx context.Context, id string, status string) error {
	return t.execOne(ctx, "sale", id, `UPDATE sales SET status = $2 WHERE id = $1`, id, status)
}

func (t *tx) LockCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, t.tx, id, true)
}

func (t *tx) AddLoyaltyPoints(ctx context.Context, customerID string, delta int) error {
	return t.execOne(ctx, "customer", customerID, `
		UPDATE customers SET loyalty_points = loyalty_points + $2 WHERE id = $1
	`, customerID, delta)
}

func (t *tx) GetVendor(ctx context.Context, id string) (*domain.Vendor, error) {
	return getVendor(ctx, t.tx, id)
}

func (t *tx) InsertStockInLog(ctx context.Context, entry *domain.StockInLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("sil")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO stock_in_logs (id, product_id, vendor_id, user_id, quantity_received, cost_price, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.ProductID, nullIfEmpty(entry.VendorID), entry.UserID, entry.QuantityReceived, entry.CostPrice, entry.CreatedAt)
	if err != nil && isForeignKeyViolation(err) {
		return &store.ForeignKeyError{Entity: "stock in log", ID: entry.ID}
	}
	return err
}

// CreateAuditLog wraps the insert in a savepoint. A failed insert would
// otherwise abort the whole transaction.
func (t *tx) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if _, err := t.tx.ExecContext(ctx, `SAVEPOINT audit_entry`); err != nil {
		return err
	}
	if err := insertAuditLog(ctx, t.tx, entry); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT audit_entry`); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	_, err := t.tx.ExecContext(ctx, `RELEASE SAVEPOINT audit_entry`)
	return err
}

var (
	_ store.Repository = (*Store)(nil)
	_ store.Tx         = (*tx)(nil)
)
