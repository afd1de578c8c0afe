package service

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/inventory"
	"posledger/backend/internal/store"
)

// RefundSale moves a completed sale to Refunded and puts every item back on
// the shelf. Loyalty points earned by the sale are kept.
func (s *Service) RefundSale(ctx context.Context, saleID string) (domain.Sale, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.Sale{}, store.Invalid("sale id is required")
	}

	var refunded domain.Sale
	err := store.WithinTx(ctx, s.repo, func(tx store.Tx) error {
		sale, err := tx.LockSale(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != domain.SaleStatusCompleted {
			return &store.AlreadyRefundedError{SaleID: saleID}
		}

		restock := slices.Clone(sale.Items)
		slices.SortStableFunc(restock, func(a, b domain.SaleItem) int {
			return cmp.Compare(a.ProductID, b.ProductID)
		})
		for _, item := range restock {
			if _, err := inventory.Adjust(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := tx.SetSaleStatus(ctx, saleID, domain.SaleStatusRefunded); err != nil {
			return err
		}
		s.logAuditTx(ctx, tx, domain.AuditRefundSale, "Sale", saleID, map[string]any{
			"originalStatus": domain.SaleStatusCompleted,
			"newStatus":      domain.SaleStatusRefunded,
			"invoiceNumber":  sale.InvoiceNumber,
		})

		sale.Status = domain.SaleStatusRefunded
		refunded = *sale
		return nil
	})
	if err != nil {
		s.logFailure("refund sale", err, zap.String("sale_id", saleID))
		return domain.Sale{}, err
	}

	if err := s.sales.Delete(ctx, saleID); err != nil {
		s.logger.Warn("sale cache invalidation failed", zap.String("sale_id", saleID), zap.Error(err))
	}
	s.logger.Info("sale refunded", zap.String("sale_id", saleID), zap.Int("items", len(refunded.Items)))
	return refunded, nil
}
