package memory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

// tx mutates the maps in place and records an undo step for each change.
type tx struct {
	s    *Store
	undo []func()
	done bool
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &tx{s: s, undo: make([]func(), 0, 16)}, nil
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.undo = nil
	t.s.mu.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.done = true
	t.undo = nil
	t.s.mu.Unlock()
	return nil
}

func (t *tx) LockProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	if t.done {
		return nil, errTxDone
	}
	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (t *tx) LockStock(_ context.Context, productID string) (int, error) {
	if t.done {
		return 0, errTxDone
	}
	p, ok := t.s.products[productID]
	if !ok {
		return 0, store.NotFound("product", productID)
	}
	return p.StockQuantity, nil
}

func (t *tx) AddStock(_ context.Context, productID string, delta int) error {
	return t.updateProduct(productID, func(p *domain.Product) {
		p.StockQuantity += delta
	})
}

func (t *tx) SetCostPrice(_ context.Context, productID string, cost decimal.Decimal) error {
	return t.updateProduct(productID, func(p *domain.Product) {
		p.CostPrice = cost
	})
}

func (t *tx) updateProduct(id string, mutate func(p *domain.Product)) error {
	if t.done {
		return errTxDone
	}
	old, ok := t.s.products[id]
	if !ok {
		return store.NotFound("product", id)
	}
	next := old
	mutate(&next)
	next.UpdatedAt = time.Now().UTC()
	t.s.products[id] = next
	t.undo = append(t.undo, func() { t.s.products[id] = old })
	return nil
}

func (t *tx) InsertSale(_ context.Context, sale *domain.Sale) error {
	if t.done {
		return errTxDone
	}
	if _, exists := t.s.invoices[sale.InvoiceNumber]; exists {
		return &store.DuplicateIdentifierError{Field: "invoice number", Value: sale.InvoiceNumber}
	}
	if sale.CustomerID != "" {
		if _, ok := t.s.customers[sale.CustomerID]; !ok {
			return store.NotFound("customer", sale.CustomerID)
		}
	}
	if sale.ID == "" {
		sale.ID = xid.New("sal")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("itm")
		}
		sale.Items[i].SaleID = sale.ID
	}

	stored := cloneSale(sale)
	id, invoice, n := sale.ID, sale.InvoiceNumber, len(t.s.saleOrder)
	t.s.sales[id] = stored
	t.s.invoices[invoice] = id
	t.s.saleOrder = append(t.s.saleOrder, id)
	t.undo = append(t.undo, func() {
		delete(t.s.sales, id)
		delete(t.s.invoices, invoice)
		t.s.saleOrder = t.s.saleOrder[:n]
	})
	return nil
}

func (t *tx) LockSale(_ context.Context, id string) (*domain.Sale, error) {
	if t.done {
		return nil, errTxDone
	}
	sale, ok := t.s.sales[id]
	if !ok {
		return nil, store.NotFound("sale", id)
	}
	return cloneSale(sale), nil
}

func (t *tx) SetSaleStatus(_ context.Context, id string, status string) error {
	if t.done {
		return errTxDone
	}
	sale, ok := t.s.sales[id]
	if !ok {
		return store.NotFound("sale", id)
	}
	old := sale.Status
	sale.Status = status
	t.undo = append(t.undo, func() { sale.Status = old })
	return nil
}

func (t *tx) LockCustomer(_ context.Context, id string) (*domain.Customer, error) {
	if t.done {
		return nil, errTxDone
	}
	c, ok := t.s.customers[id]
	if !ok {
		return nil, store.NotFound("customer", id)
	}
	return &c, nil
}

func (t *tx) AddLoyaltyPoints(_ context.Context, customerID string, delta int) error {
	if t.done {
		return errTxDone
	}
	old, ok := t.s.customers[customerID]
	if !ok {
		return store.NotFound("customer", customerID)
	}
	next := old
	next.LoyaltyPoints += delta
	t.s.customers[customerID] = next
	t.undo = append(t.undo, func() { t.s.customers[customerID] = old })
	return nil
}

func (t *tx) GetVendor(_ context.Context, id string) (*domain.Vendor, error) {
	if t.done {
		return nil, errTxDone
	}
	v, ok := t.s.vendors[id]
	if !ok {
		return nil, store.NotFound("vendor", id)
	}
	return &v, nil
}

func (t *tx) InsertStockInLog(_ context.Context, entry *domain.StockInLog) error {
	if t.done {
		return errTxDone
	}
	if entry.ID == "" {
		entry.ID = xid.New("sil")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	n := len(t.s.stockInLogs)
	t.s.stockInLogs = append(t.s.stockInLogs, *entry)
	t.undo = append(t.undo, func() { t.s.stockInLogs = t.s.stockInLogs[:n] })
	return nil
}

func (t *tx) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if t.done {
		return errTxDone
	}
	n := len(t.s.auditLogs)
	t.s.appendAudit(entry)
	t.undo = append(t.undo, func() { t.s.auditLogs = t.s.auditLogs[:n] })
	return nil
}

var (
	_ store.Repository = (*Store)(nil)
	_ store.Tx         = (*tx)(nil)
)
