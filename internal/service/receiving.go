package service

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/inventory"
	"posledger/backend/internal/pricing"
	"posledger/backend/internal/store"
)

// ReceiveStock books a vendor delivery. Each line raises stock, replaces the
// product's cost price with the received cost and appends a stock-in log
// row. Lines without a productId apply to defaultProductID.
func (s *Service) ReceiveStock(ctx context.Context, defaultProductID string, req domain.ReceiveStockRequest) (domain.ReceiveStockResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ReceiveStockResult{}, err
	}
	if len(req.Items) == 0 {
		return domain.ReceiveStockResult{}, store.Invalid("at least one item is required")
	}

	items := slices.Clone(req.Items)
	seen := make(map[string]bool, len(items))
	productIDs := make([]string, 0, len(items))
	for i := range items {
		items[i].ProductID = strings.TrimSpace(items[i].ProductID)
		if items[i].ProductID == "" {
			items[i].ProductID = strings.TrimSpace(defaultProductID)
		}
		if items[i].ProductID == "" {
			return domain.ReceiveStockResult{}, store.Invalid("item %d: productId is required", i+1)
		}
		if items[i].QuantityReceived <= 0 || items[i].QuantityReceived > inventory.MaxStock {
			return domain.ReceiveStockResult{}, store.Invalid("item %d: quantityReceived must be between 1 and %d", i+1, inventory.MaxStock)
		}
		if !items[i].CostPrice.IsPositive() {
			return domain.ReceiveStockResult{}, store.Invalid("item %d: costPrice must be positive", i+1)
		}
		if !pricing.Storable(items[i].CostPrice) {
			return domain.ReceiveStockResult{}, store.Invalid("item %d: costPrice must have at most %d decimal places and not exceed %s", i+1, pricing.MoneyScale, pricing.MaxAmount)
		}
		if !seen[items[i].ProductID] {
			seen[items[i].ProductID] = true
			productIDs = append(productIDs, items[i].ProductID)
		}
	}
	slices.Sort(productIDs)
	vendorID := strings.TrimSpace(req.VendorID)

	err = store.WithinTx(ctx, s.repo, func(tx store.Tx) error {
		if vendorID != "" {
			if _, err := tx.GetVendor(ctx, vendorID); err != nil {
				return err
			}
		}
		products, err := tx.LockProducts(ctx, productIDs)
		if err != nil {
			return err
		}
		for _, id := range productIDs {
			if _, ok := products[id]; !ok {
				return store.NotFound("product", id)
			}
		}

		for _, item := range items {
			if _, err := inventory.Adjust(ctx, tx, item.ProductID, item.QuantityReceived); err != nil {
				return err
			}
			if err := tx.SetCostPrice(ctx, item.ProductID, item.CostPrice); err != nil {
				return err
			}
			entry := domain.StockInLog{
				ProductID:        item.ProductID,
				VendorID:         vendorID,
				UserID:           actor.UserID,
				QuantityReceived: item.QuantityReceived,
				CostPrice:        item.CostPrice,
				CreatedAt:        s.now(),
			}
			if err := tx.InsertStockInLog(ctx, &entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logFailure("receive stock", err, zap.String("vendor_id", vendorID), zap.Int("items", len(items)))
		return domain.ReceiveStockResult{}, err
	}

	s.logAudit(ctx, domain.AuditReceiveStock, "Product", strings.Join(productIDs, ","), map[string]any{
		"vendorId":       vendorID,
		"itemsProcessed": len(items),
	})
	return domain.ReceiveStockResult{
		Message:        "Stock received successfully",
		ItemsProcessed: len(items),
	}, nil
}

func (s *Service) ListStockInLogs(ctx context.Context, limit int) ([]domain.StockInLog, error) {
	return s.repo.ListStockInLogs(ctx, clampLimit(limit))
}
