package service

import (
	"context"
	"strings"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/inventory"
	"posledger/backend/internal/pricing"
	"posledger/backend/internal/store"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.SupplierID = strings.TrimSpace(req.SupplierID)

	if req.SKU == "" || req.Name == "" {
		return domain.Product{}, store.Invalid("sku and name are required")
	}
	if !req.SellingPrice.IsPositive() || req.CostPrice.IsNegative() {
		return domain.Product{}, store.Invalid("sellingPrice must be positive and costPrice must not be negative")
	}
	if !pricing.Storable(req.SellingPrice) || !pricing.Storable(req.CostPrice) {
		return domain.Product{}, store.Invalid("prices must have at most %d decimal places and not exceed %s", pricing.MoneyScale, pricing.MaxAmount)
	}
	if req.StockQuantity < 0 || req.ReorderLevel < 0 {
		return domain.Product{}, store.Invalid("stockQuantity and reorderLevel must not be negative")
	}
	if req.StockQuantity > inventory.MaxStock || req.ReorderLevel > inventory.MaxStock {
		return domain.Product{}, store.Invalid("stockQuantity and reorderLevel must not exceed %d", inventory.MaxStock)
	}
	if req.SupplierID != "" {
		if _, err := s.repo.GetVendor(ctx, req.SupplierID); err != nil {
			return domain.Product{}, err
		}
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Category:      req.Category,
		CostPrice:     req.CostPrice,
		SellingPrice:  req.SellingPrice,
		StockQuantity: req.StockQuantity,
		ReorderLevel:  req.ReorderLevel,
		SupplierID:    req.SupplierID,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	phone := strings.TrimSpace(req.Phone)
	if name == "" || phone == "" {
		return domain.Customer{}, store.Invalid("name and phone are required")
	}
	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  name,
		Phone: phone,
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

// GetCustomer includes the customer's ten most recent sales.
func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	c, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	return *c, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateVendor(ctx context.Context, req domain.VendorCreateRequest) (domain.Vendor, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Vendor{}, store.Invalid("name is required")
	}
	created, err := s.repo.CreateVendor(ctx, domain.Vendor{
		Name:        name,
		ContactName: strings.TrimSpace(req.ContactName),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
	})
	if err != nil {
		return domain.Vendor{}, err
	}
	return *created, nil
}

func (s *Service) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	return s.repo.ListVendors(ctx)
}

func (s *Service) CreateStore(ctx context.Context, req domain.StoreCreateRequest) (domain.Store, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Store{}, store.Invalid("name is required")
	}
	created, err := s.repo.CreateStore(ctx, domain.Store{Name: name, Address: strings.TrimSpace(req.Address)})
	if err != nil {
		return domain.Store{}, err
	}
	return *created, nil
}

func (s *Service) ListStores(ctx context.Context) ([]domain.Store, error) {
	return s.repo.ListStores(ctx)
}

func (s *Service) DeleteStore(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteStore(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, domain.AuditDeleteStore, "Store", id, map[string]any{})
	return nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, clampLimit(limit))
}
