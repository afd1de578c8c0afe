package memory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

var errTxDone = errors.New("memory: transaction has already been committed or rolled back")

// Store keeps every table in maps guarded by one RWMutex. A transaction
// holds the write lock from Begin until Commit or Rollback, which gives the
// same serialization a row lock would for the contended product rows.
type Store struct {
	mu          sync.RWMutex
	stores      map[string]domain.Store
	users       map[string]domain.User
	usersByName map[string]string
	vendors     map[string]domain.Vendor
	products    map[string]domain.Product
	productSKUs map[string]string
	customers   map[string]domain.Customer
	phones      map[string]string
	sales       map[string]*domain.Sale
	saleOrder   []string
	invoices    map[string]string
	stockInLogs []domain.StockInLog
	auditLogs   []domain.AuditLog
}

func New() *Store {
	return &Store{
		stores:      make(map[string]domain.Store),
		users:       make(map[string]domain.User),
		usersByName: make(map[string]string),
		vendors:     make(map[string]domain.Vendor),
		products:    make(map[string]domain.Product),
		productSKUs: make(map[string]string),
		customers:   make(map[string]domain.Customer),
		phones:      make(map[string]string),
		sales:       make(map[string]*domain.Sale),
		saleOrder:   make([]string, 0, 64),
		invoices:    make(map[string]string),
		stockInLogs: make([]domain.StockInLog, 0, 64),
		auditLogs:   make([]domain.AuditLog, 0, 128),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateStore(_ context.Context, st domain.Store) (*domain.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.stores {
		if strings.EqualFold(existing.Name, st.Name) {
			return nil, &store.DuplicateIdentifierError{Field: "store name", Value: st.Name}
		}
	}
	if st.ID == "" {
		st.ID = xid.New("sto")
	}
	if _, exists := s.stores[st.ID]; exists {
		return nil, &store.DuplicateIdentifierError{Field: "store id", Value: st.ID}
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	s.stores[st.ID] = st
	return &st, nil
}

func (s *Store) ListStores(_ context.Context) ([]domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Store, 0, len(s.stores))
	for _, st := range s.stores {
		result = append(result, st)
	}
	slices.SortFunc(result, func(a, b domain.Store) int { return strings.Compare(a.Name, b.Name) })
	return result, nil
}

func (s *Store) DeleteStore(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[id]; !ok {
		return store.NotFound("store", id)
	}
	for _, u := range s.users {
		if u.StoreID == id {
			return &store.ForeignKeyError{Entity: "store", ID: id}
		}
	}
	for _, sale := range s.sales {
		if sale.StoreID == id {
			return &store.ForeignKeyError{Entity: "store", ID: id}
		}
	}
	delete(s.stores, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if _, exists := s.usersByName[username]; exists {
		return nil, &store.DuplicateIdentifierError{Field: "username", Value: username}
	}
	if user.StoreID != "" {
		if _, ok := s.stores[user.StoreID]; !ok {
			return nil, store.NotFound("store", user.StoreID)
		}
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Username = username
	s.users[user.ID] = user
	s.usersByName[username] = user.ID
	return &user, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.NotFound("user", username)
	}
	user := s.users[id]
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	slices.SortFunc(result, func(a, b domain.User) int { return strings.Compare(a.Username, b.Username) })
	return result, nil
}

func (s *Store) CreateVendor(_ context.Context, vendor domain.Vendor) (*domain.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vendor.ID == "" {
		vendor.ID = xid.New("ven")
	}
	if vendor.CreatedAt.IsZero() {
		vendor.CreatedAt = time.Now().UTC()
	}
	s.vendors[vendor.ID] = vendor
	return &vendor, nil
}

func (s *Store) GetVendor(_ context.Context, id string) (*domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vendors[id]
	if !ok {
		return nil, store.NotFound("vendor", id)
	}
	return &v, nil
}

func (s *Store) ListVendors(_ context.Context) ([]domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Vendor, 0, len(s.vendors))
	for _, v := range s.vendors {
		result = append(result, v)
	}
	slices.SortFunc(result, func(a, b domain.Vendor) int { return strings.Compare(a.Name, b.Name) })
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productSKUs[product.SKU]; exists {
		return nil, &store.DuplicateIdentifierError{Field: "sku", Value: product.SKU}
	}
	if product.SupplierID != "" {
		if _, ok := s.vendors[product.SupplierID]; !ok {
			return nil, store.NotFound("vendor", product.SupplierID)
		}
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	s.products[product.ID] = product
	s.productSKUs[product.SKU] = product.ID
	return &product, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.NotFound("product", id)
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b domain.Product) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.phones[customer.Phone]; exists {
		return nil, &store.DuplicateIdentifierError{Field: "phone", Value: customer.Phone}
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.RecentSales = nil
	s.customers[customer.ID] = customer
	s.phones[customer.Phone] = customer.ID
	return &customer, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.NotFound("customer", id)
	}
	c.RecentSales = s.filterSales(store.SaleFilter{CustomerID: id, Limit: 10}, false)
	return &c, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b domain.Customer) int { return strings.Compare(a.Name, b.Name) })
	return result, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.NotFound("sale", id)
	}
	return s.decorateSale(sale, true), nil
}

func (s *Store) ListSales(_ context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterSales(filter, false), nil
}

// filterSales walks sales newest first. Callers hold at least the read lock.
func (s *Store) filterSales(filter store.SaleFilter, withItems bool) []domain.Sale {
	result := make([]domain.Sale, 0, 16)
	for i := len(s.saleOrder) - 1; i >= 0; i-- {
		sale := s.sales[s.saleOrder[i]]
		if filter.CustomerID != "" && sale.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !sale.CreatedAt.Before(filter.To) {
			continue
		}
		result = append(result, *s.decorateSale(sale, withItems))
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result
}

func (s *Store) decorateSale(src *domain.Sale, withItems bool) *domain.Sale {
	out := cloneSale(src)
	if !withItems {
		out.Items = nil
	} else {
		for i := range out.Items {
			if p, ok := s.products[out.Items[i].ProductID]; ok {
				out.Items[i].ProductName = p.Name
				out.Items[i].ProductSKU = p.SKU
			}
		}
	}
	if u, ok := s.users[out.UserID]; ok {
		out.User = &domain.SaleUser{ID: u.ID, Username: u.Username, FullName: u.FullName}
	}
	if c, ok := s.customers[out.CustomerID]; ok {
		out.Customer = &domain.SaleCustomer{ID: c.ID, Name: c.Name, Phone: c.Phone}
	}
	return out
}

func (s *Store) ListStockInLogs(_ context.Context, limit int) ([]domain.StockInLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockInLog, 0, min(len(s.stockInLogs), max(limit, 0)))
	for i := len(s.stockInLogs) - 1; i >= 0; i-- {
		entry := s.stockInLogs[i]
		entry.ProductName = s.products[entry.ProductID].Name
		entry.UserName = s.users[entry.UserID].FullName
		if entry.VendorID != "" {
			entry.VendorName = s.vendors[entry.VendorID].Name
		}
		result = append(result, entry)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendAudit(entry)
	return nil
}

func (s *Store) appendAudit(entry domain.AuditLog) {
	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 32)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		result = append(result, s.auditLogs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func cloneSale(src *domain.Sale) *domain.Sale {
	out := *src
	out.Items = slices.Clone(src.Items)
	out.User = nil
	out.Customer = nil
	return &out
}
