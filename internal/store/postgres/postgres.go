package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates missing tables and indexes. It is safe to run on
// every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// queryer is the subset shared by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) CreateStore(ctx context.Context, st domain.Store) (*domain.Store, error) {
	if st.ID == "" {
		st.ID = xid.New("sto")
	}
	st.CreatedAt = createdAt(st.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stores (id, name, address, created_at)
		VALUES ($1,$2,$3,$4)
	`, st.ID, st.Name, st.Address, st.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &store.DuplicateIdentifierError{Field: "store name", Value: st.Name}
		}
		return nil, err
	}
	return &st, nil
}

func (s *Store) ListStores(ctx context.Context) ([]domain.Store, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, created_at
		FROM stores
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := make([]domain.Store, 0, 8)
	for rows.Next() {
		var st domain.Store
		if err := rows.Scan(&st.ID, &st.Name, &st.Address, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.CreatedAt = st.CreatedAt.UTC()
		stores = append(stores, st)
	}
	return stores, rows.Err()
}

func (s *Store) DeleteStore(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stores WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &store.ForeignKeyError{Entity: "store", ID: id}
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFound("store", id)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	user.CreatedAt = createdAt(user.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, full_name, password_hash, role, store_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, user.ID, user.Username, user.FullName, user.PasswordHash, user.Role, nullIfEmpty(user.StoreID), user.Active, user.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, &store.DuplicateIdentifierError{Field: "username", Value: user.Username}
		case isForeignKeyViolation(err):
			return nil, store.NotFound("store", user.StoreID)
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var user domain.User
	var storeID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, full_name, password_hash, role, store_id, active, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.FullName, &user.PasswordHash, &user.Role, &storeID, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("user", username)
		}
		return nil, err
	}
	user.StoreID = storeID.String
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, full_name, password_hash, role, store_id, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		var user domain.User
		var storeID sql.NullString
		if err := rows.Scan(&user.ID, &user.Username, &user.FullName, &user.PasswordHash, &user.Role, &storeID, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.StoreID = storeID.String
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) CreateVendor(ctx context.Context, vendor domain.Vendor) (*domain.Vendor, error) {
	if vendor.ID == "" {
		vendor.ID = xid.New("ven")
	}
	vendor.CreatedAt = createdAt(vendor.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vendors (id, name, contact_name, phone, email, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, vendor.ID, vendor.Name, vendor.ContactName, vendor.Phone, vendor.Email, vendor.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &store.DuplicateIdentifierError{Field: "vendor id", Value: vendor.ID}
		}
		return nil, err
	}
	return &vendor, nil
}

func (s *Store) GetVendor(ctx context.Context, id string) (*domain.Vendor, error) {
	return getVendor(ctx, s.db, id)
}

func getVendor(ctx context.Context, q queryer, id string) (*domain.Vendor, error) {
	var v domain.Vendor
	err := q.QueryRowContext(ctx, `
		SELECT id, name, contact_name, phone, email, created_at
		FROM vendors
		WHERE id = $1
	`, id).Scan(&v.ID, &v.Name, &v.ContactName, &v.Phone, &v.Email, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("vendor", id)
		}
		return nil, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}

func (s *Store) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact_name, phone, email, created_at
		FROM vendors
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vendors := make([]domain.Vendor, 0, 16)
	for rows.Next() {
		var v domain.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.ContactName, &v.Phone, &v.Email, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.CreatedAt = v.CreatedAt.UTC()
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

const productColumns = `id, sku, name, category, cost_price, selling_price, stock_quantity, reorder_level, supplier_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (domain.Product, error) {
	var p domain.Product
	var supplierID sql.NullString
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.CostPrice, &p.SellingPrice, &p.StockQuantity, &p.ReorderLevel, &supplierID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.SupplierID = supplierID.String
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	product.CreatedAt = createdAt(product.CreatedAt)
	product.UpdatedAt = product.CreatedAt
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.ID, product.SKU, product.Name, product.Category, product.CostPrice, product.SellingPrice,
		product.StockQuantity, product.ReorderLevel, nullIfEmpty(product.SupplierID), product.CreatedAt, product.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, &store.DuplicateIdentifierError{Field: "sku", Value: product.SKU}
		case isForeignKeyViolation(err):
			return nil, store.NotFound("vendor", product.SupplierID)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("product", id)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	customer.CreatedAt = createdAt(customer.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, loyalty_points, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Name, customer.Phone, customer.Email, customer.LoyaltyPoints, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &store.DuplicateIdentifierError{Field: "phone", Value: customer.Phone}
		}
		return nil, err
	}
	return &customer, nil
}

func getCustomer(ctx context.Context, q queryer, id string, lock bool) (*domain.Customer, error) {
	query := `SELECT id, name, phone, email, loyalty_points, created_at FROM customers WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var c domain.Customer
	err := q.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.LoyaltyPoints, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("customer", id)
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := getCustomer(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	recent, err := s.ListSales(ctx, store.SaleFilter{CustomerID: id, Limit: 10})
	if err != nil {
		return nil, err
	}
	c.RecentSales = recent
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, loyalty_points, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.LoyaltyPoints, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// saleSelect joins the cashier and customer summaries onto each sale row.
const saleSelect = `
	SELECT s.id, s.invoice_number, s.total_amount, s.cost_total, s.profit_total,
		s.payment_method, s.status, s.user_id, s.store_id, s.customer_id, s.created_at,
		u.username, u.full_name, c.name, c.phone
	FROM sales s
	LEFT JOIN users u ON u.id = s.user_id
	LEFT JOIN customers c ON c.id = s.customer_id
`

func scanSale(row scanner) (domain.Sale, error) {
	var sale domain.Sale
	var customerID, username, fullName, customerName, customerPhone sql.NullString
	err := row.Scan(
		&sale.ID, &sale.InvoiceNumber, &sale.TotalAmount, &sale.CostTotal, &sale.ProfitTotal,
		&sale.PaymentMethod, &sale.Status, &sale.UserID, &sale.StoreID, &customerID, &sale.CreatedAt,
		&username, &fullName, &customerName, &customerPhone,
	)
	if err != nil {
		return sale, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.CustomerID = customerID.String
	if username.Valid {
		sale.User = &domain.SaleUser{ID: sale.UserID, Username: username.String, FullName: fullName.String}
	}
	if customerName.Valid {
		sale.Customer = &domain.SaleCustomer{ID: sale.CustomerID, Name: customerName.String, Phone: customerPhone.String}
	}
	return sale, nil
}

func loadSaleItems(ctx context.Context, q queryer, saleID string) ([]domain.SaleItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT si.id, si.sale_id, si.product_id, p.name, p.sku, si.quantity, si.price, si.cost_price, si.profit
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.position
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.ProductSKU, &item.Quantity, &item.Price, &item.CostPrice, &item.Profit); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, saleSelect+` WHERE s.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("sale", id)
		}
		return nil, err
	}
	items, err := loadSaleItems(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	var where []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if filter.CustomerID != "" {
		add("s.customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		add("s.status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		add("s.created_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		add("s.created_at < ?", filter.To.UTC())
	}

	query := saleSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.created_at DESC, s.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, max(filter.Limit, 16))
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) ListStockInLogs(ctx context.Context, limit int) ([]domain.StockInLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.product_id, p.name, l.vendor_id, v.name, l.user_id, u.full_name,
			l.quantity_received, l.cost_price, l.created_at
		FROM stock_in_logs l
		JOIN products p ON p.id = l.product_id
		LEFT JOIN vendors v ON v.id = l.vendor_id
		LEFT JOIN users u ON u.id = l.user_id
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.StockInLog, 0, limit)
	for rows.Next() {
		var entry domain.StockInLog
		var vendorID, vendorName, userName sql.NullString
		if err := rows.Scan(&entry.ID, &entry.ProductID, &entry.ProductName, &vendorID, &vendorName, &entry.UserID, &userName,
			&entry.QuantityReceived, &entry.CostPrice, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.VendorID = vendorID.String
		entry.VendorName = vendorName.String
		entry.UserName = userName.String
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	return insertAuditLog(ctx, s.db, entry)
}

func insertAuditLog(ctx context.Context, q queryer, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	entry.CreatedAt = createdAt(entry.CreatedAt)
	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID, entry.Details, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, entity_type, entity_id, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
