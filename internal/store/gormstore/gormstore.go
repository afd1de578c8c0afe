// Package gormstore implements store.Repository on gorm, for MySQL
// deployments and for SQLite in local runs and tests.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

type Store struct {
	db *gorm.DB
}

func newConfig(logger *zap.Logger) *gorm.Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// OpenMySQL connects with a go-sql-driver DSN. The DSN must carry
// parseTime=true.
func OpenMySQL(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), newConfig(logger))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(8)
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenSQLite opens a SQLite database on a single connection. SQLite has no
// row locks, so the one connection is what serializes writers; it also keeps
// a ":memory:" database alive for the life of the Store.
func OpenSQLite(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), newConfig(logger))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	return &Store{db: db}, nil
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(allModels()...)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFoundOr(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.NotFound(kind, id)
	}
	return err
}

func duplicateOr(err error, field, value string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &store.DuplicateIdentifierError{Field: field, Value: value}
	}
	return err
}

func (s *Store) CreateStore(ctx context.Context, st domain.Store) (*domain.Store, error) {
	if st.ID == "" {
		st.ID = xid.New("sto")
	}
	row := storeRow{ID: st.ID, Name: st.Name, Address: st.Address, CreatedAt: st.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, duplicateOr(err, "store name", st.Name)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) ListStores(ctx context.Context) ([]domain.Store, error) {
	var rows []storeRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Store, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, nil
}

// DeleteStore refuses while users or sales still reference the store.
func (s *Store) DeleteStore(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row storeRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "store", id)
		}
		var refs int64
		if err := tx.Model(&userRow{}).Where("store_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs == 0 {
			if err := tx.Model(&saleRow{}).Where("store_id = ?", id).Count(&refs).Error; err != nil {
				return err
			}
		}
		if refs > 0 {
			return &store.ForeignKeyError{Entity: "store", ID: id}
		}
		if err := tx.Delete(&storeRow{}, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return &store.ForeignKeyError{Entity: "store", ID: id}
			}
			return err
		}
		return nil
	})
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	row := userRow{
		ID:           user.ID,
		Username:     strings.ToLower(strings.TrimSpace(user.Username)),
		FullName:     user.FullName,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		StoreID:      optional(user.StoreID),
		Active:       user.Active,
		CreatedAt:    user.CreatedAt,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.StoreID != nil {
			var st storeRow
			if err := tx.First(&st, "id = ?", *row.StoreID).Error; err != nil {
				return notFoundOr(err, "store", *row.StoreID)
			}
		}
		return duplicateOr(tx.Create(&row).Error, "username", row.Username)
	})
	if err != nil {
		return nil, err
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "username = ?", username).Error; err != nil {
		return nil, notFoundOr(err, "user", username)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("username").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, nil
}

func (s *Store) CreateVendor(ctx context.Context, vendor domain.Vendor) (*domain.Vendor, error) {
	if vendor.ID == "" {
		vendor.ID = xid.New("ven")
	}
	row := vendorRow{ID: vendor.ID, Name: vendor.Name, ContactName: vendor.ContactName, Phone: vendor.Phone, Email: vendor.Email, CreatedAt: vendor.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, duplicateOr(err, "vendor id", vendor.ID)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) GetVendor(ctx context.Context, id string) (*domain.Vendor, error) {
	return getVendor(s.db.WithContext(ctx), id)
}

func getVendor(db *gorm.DB, id string) (*domain.Vendor, error) {
	var row vendorRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "vendor", id)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	var rows []vendorRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Vendor, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	row := productFromDomain(product)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.SupplierID != nil {
			if _, err := getVendor(tx, *row.SupplierID); err != nil {
				return err
			}
		}
		return duplicateOr(tx.Create(&row).Error, "sku", row.SKU)
	})
	if err != nil {
		return nil, err
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var row productRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "product", id)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	if err := s.db.WithContext(ctx).Order("category").Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	row := customerRow{
		ID:            customer.ID,
		Name:          customer.Name,
		Phone:         customer.Phone,
		Email:         customer.Email,
		LoyaltyPoints: customer.LoyaltyPoints,
		CreatedAt:     customer.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, duplicateOr(err, "phone", customer.Phone)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var row customerRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "customer", id)
	}
	out := row.toDomain()
	recent, err := s.ListSales(ctx, store.SaleFilter{CustomerID: id, Limit: 10})
	if err != nil {
		return nil, err
	}
	out.RecentSales = recent
	return &out, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var rows []customerRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Customer, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	db := s.db.WithContext(ctx)
	var row saleRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "sale", id)
	}
	sale := row.toDomain()
	items, err := loadSaleItems(db, id)
	if err != nil {
		return nil, err
	}

	productIDs := make([]string, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	var products []productRow
	if err := db.Where("id IN ?", productIDs).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]productRow, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for i := range items {
		if p, ok := byID[items[i].ProductID]; ok {
			items[i].ProductName = p.Name
			items[i].ProductSKU = p.SKU
		}
	}
	sale.Items = items

	sales := []domain.Sale{sale}
	if err := attachParties(db, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func loadSaleItems(db *gorm.DB, saleID string) ([]domain.SaleItem, error) {
	var rows []saleItemRow
	if err := db.Where("sale_id = ?", saleID).Order("position").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]domain.SaleItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toDomain())
	}
	return items, nil
}

// attachParties fills the user and customer summaries on each sale.
func attachParties(db *gorm.DB, sales []domain.Sale) error {
	userIDs := make([]string, 0, len(sales))
	customerIDs := make([]string, 0, len(sales))
	for _, sale := range sales {
		userIDs = append(userIDs, sale.UserID)
		if sale.CustomerID != "" {
			customerIDs = append(customerIDs, sale.CustomerID)
		}
	}

	users := make(map[string]userRow)
	if len(userIDs) > 0 {
		var rows []userRow
		if err := db.Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
			return err
		}
		for _, r := range rows {
			users[r.ID] = r
		}
	}
	customers := make(map[string]customerRow)
	if len(customerIDs) > 0 {
		var rows []customerRow
		if err := db.Where("id IN ?", customerIDs).Find(&rows).Error; err != nil {
			return err
		}
		for _, r := range rows {
			customers[r.ID] = r
		}
	}

	for i := range sales {
		if u, ok := users[sales[i].UserID]; ok {
			sales[i].User = &domain.SaleUser{ID: u.ID, Username: u.Username, FullName: u.FullName}
		}
		if c, ok := customers[sales[i].CustomerID]; ok {
			sales[i].Customer = &domain.SaleCustomer{ID: c.ID, Name: c.Name, Phone: c.Phone}
		}
	}
	return nil
}

func (s *Store) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&saleRow{})
	if filter.CustomerID != "" {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		q = q.Where("created_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("created_at < ?", filter.To.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []saleRow
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, len(rows))
	for _, r := range rows {
		sales = append(sales, r.toDomain())
	}
	if err := attachParties(db, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) ListStockInLogs(ctx context.Context, limit int) ([]domain.StockInLog, error) {
	type joined struct {
		stockInLogRow
		ProductName string
		VendorName  *string
		UserName    *string
	}

	q := s.db.WithContext(ctx).
		Table("stock_in_logs").
		Select("stock_in_logs.*, products.name AS product_name, vendors.name AS vendor_name, users.full_name AS user_name").
		Joins("JOIN products ON products.id = stock_in_logs.product_id").
		Joins("LEFT JOIN vendors ON vendors.id = stock_in_logs.vendor_id").
		Joins("LEFT JOIN users ON users.id = stock_in_logs.user_id").
		Order("stock_in_logs.created_at DESC").
		Order("stock_in_logs.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []joined
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.StockInLog, 0, len(rows))
	for _, r := range rows {
		entry := r.stockInLogRow.toDomain()
		entry.ProductName = r.ProductName
		entry.VendorName = deref(r.VendorName)
		entry.UserName = deref(r.UserName)
		result = append(result, entry)
	}
	return result, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	return s.db.WithContext(ctx).Create(auditFromDomain(entry)).Error
}

func auditFromDomain(entry domain.AuditLog) *auditLogRow {
	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return &auditLogRow{
		ID:         entry.ID,
		UserID:     entry.UserID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    entry.Details,
		CreatedAt:  entry.CreatedAt,
	}
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []auditLogRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.AuditLog, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, nil
}
