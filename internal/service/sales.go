package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/inventory"
	"posledger/backend/internal/pricing"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

func normalizePaymentMethod(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash":
		return domain.PaymentCash, nil
	case "card":
		return domain.PaymentCard, nil
	default:
		return "", store.Invalid("unsupported payment method %q", raw)
	}
}

// cartDemand validates cart lines and sums the requested quantity per
// product. The returned ids are sorted so row locks are always taken in the
// same order.
func cartDemand(items []domain.CartItem) (map[string]int, []string, error) {
	if len(items) == 0 {
		return nil, nil, store.Invalid("sale must contain at least one item")
	}
	demand := make(map[string]int, len(items))
	for i := range items {
		items[i].ProductID = strings.TrimSpace(items[i].ProductID)
		if items[i].ProductID == "" {
			return nil, nil, store.Invalid("item %d: productId is required", i+1)
		}
		if items[i].Quantity <= 0 || items[i].Quantity > inventory.MaxStock {
			return nil, nil, store.Invalid("item %d: quantity must be between 1 and %d", i+1, inventory.MaxStock)
		}
		demand[items[i].ProductID] += items[i].Quantity
	}
	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return demand, ids, nil
}

// CreateSale turns a cart into a completed sale. Product lookup, stock
// checks, the sale insert, stock decrements and loyalty accrual share one
// transaction; any failure leaves no trace.
func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	if strings.TrimSpace(actor.StoreID) == "" {
		return domain.Sale{}, store.Invalid("user is not assigned to a store")
	}
	paymentMethod, err := normalizePaymentMethod(req.PaymentMethod)
	if err != nil {
		return domain.Sale{}, err
	}
	items := slices.Clone(req.Items)
	demand, productIDs, err := cartDemand(items)
	if err != nil {
		return domain.Sale{}, err
	}
	customerID := strings.TrimSpace(req.CustomerID)

	var sale domain.Sale
	var pointsEarned int
	err = store.WithinTx(ctx, s.repo, func(tx store.Tx) error {
		products, err := tx.LockProducts(ctx, productIDs)
		if err != nil {
			return err
		}
		for _, item := range items {
			if _, ok := products[item.ProductID]; !ok {
				return store.NotFound("product", item.ProductID)
			}
		}
		for _, id := range productIDs {
			p := products[id]
			if p.StockQuantity < demand[id] {
				return &store.InsufficientStockError{
					ProductID: id,
					Name:      p.Name,
					Available: p.StockQuantity,
					Requested: demand[id],
				}
			}
		}
		if customerID != "" {
			if _, err := tx.LockCustomer(ctx, customerID); err != nil {
				return err
			}
		}

		var totals pricing.Totals
		saleItems := make([]domain.SaleItem, 0, len(items))
		for _, item := range items {
			p := products[item.ProductID]
			line := pricing.Snapshot(p, item.Quantity)
			totals.Add(line)
			saleItems = append(saleItems, domain.SaleItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				ProductSKU:  p.SKU,
				Quantity:    item.Quantity,
				Price:       line.Price,
				CostPrice:   line.CostPrice,
				Profit:      line.Profit,
			})
		}

		if !pricing.Storable(totals.Amount) || !pricing.Storable(totals.Cost) {
			return store.Invalid("sale total exceeds %s", pricing.MaxAmount)
		}

		now := s.now()
		sale = domain.Sale{
			InvoiceNumber: xid.Invoice(now),
			TotalAmount:   totals.Amount,
			CostTotal:     totals.Cost,
			ProfitTotal:   totals.Profit(),
			PaymentMethod: paymentMethod,
			Status:        domain.SaleStatusCompleted,
			UserID:        actor.UserID,
			StoreID:       actor.StoreID,
			CustomerID:    customerID,
			CreatedAt:     now,
			Items:         saleItems,
		}
		if err := tx.InsertSale(ctx, &sale); err != nil {
			return err
		}

		for _, item := range items {
			if _, err := inventory.Adjust(ctx, tx, item.ProductID, -item.Quantity); err != nil {
				return withProductName(err, products[item.ProductID].Name)
			}
		}

		if customerID != "" {
			pointsEarned = PointsEarned(totals.Amount)
			if pointsEarned > 0 {
				if err := tx.AddLoyaltyPoints(ctx, customerID, pointsEarned); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		s.logFailure("create sale", err, zap.String("user_id", actor.UserID), zap.Int("lines", len(items)))
		return domain.Sale{}, err
	}

	s.logger.Info("sale created",
		zap.String("sale_id", sale.ID),
		zap.String("invoice", sale.InvoiceNumber),
		zap.String("total", sale.TotalAmount.String()),
		zap.Int("points_earned", pointsEarned),
	)
	return sale, nil
}

func withProductName(err error, name string) error {
	var stockErr *store.InsufficientStockError
	if errors.As(err, &stockErr) && stockErr.Name == "" {
		stockErr.Name = name
	}
	return err
}

// GetSale reads through the sale cache. Cache errors never fail the read.
// Only refunded sales are cached: a completed sale can still change status,
// and a refund landing between the store read and the cache write would
// otherwise leave the old status cached.
func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	if cached, ok, err := s.sales.Get(ctx, id); err != nil {
		s.logger.Warn("sale cache read failed", zap.String("sale_id", id), zap.Error(err))
	} else if ok {
		return *cached, nil
	}

	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	if sale.Status != domain.SaleStatusRefunded {
		return *sale, nil
	}
	if err := s.sales.Set(ctx, sale, s.cacheTTL); err != nil {
		s.logger.Warn("sale cache write failed", zap.String("sale_id", id), zap.Error(err))
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, store.SaleFilter{Limit: clampLimit(limit)})
}
