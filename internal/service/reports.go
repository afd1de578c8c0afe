package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

const defaultReportWindow = 30 * 24 * time.Hour

// SalesSummary aggregates completed sales created in [from, to). Zero bounds
// default to the last thirty days.
func (s *Service) SalesSummary(ctx context.Context, from, to time.Time) (domain.SalesSummary, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-defaultReportWindow)
	}
	if !from.Before(to) {
		return domain.SalesSummary{}, store.Invalid("from must be before to")
	}

	sales, err := s.repo.ListSales(ctx, store.SaleFilter{
		Status: domain.SaleStatusCompleted,
		From:   from,
		To:     to,
	})
	if err != nil {
		return domain.SalesSummary{}, err
	}

	summary := domain.SalesSummary{
		TotalRevenue:     decimal.Zero,
		TotalProfit:      decimal.Zero,
		AverageSaleValue: decimal.Zero,
		From:             from,
		To:               to,
	}
	for _, sale := range sales {
		summary.TotalRevenue = summary.TotalRevenue.Add(sale.TotalAmount)
		summary.TotalProfit = summary.TotalProfit.Add(sale.ProfitTotal)
	}
	summary.NumberOfSales = len(sales)
	if summary.NumberOfSales > 0 {
		summary.AverageSaleValue = summary.TotalRevenue.Div(decimal.NewFromInt(int64(summary.NumberOfSales))).Round(2)
	}
	return summary, nil
}

// StockSummary values inventory at current cost and lists products at or
// below their reorder level.
func (s *Service) StockSummary(ctx context.Context) (domain.StockSummary, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.StockSummary{}, err
	}

	summary := domain.StockSummary{
		TotalProducts:       len(products),
		TotalInventoryValue: decimal.Zero,
		LowStockProducts:    make([]domain.Product, 0),
	}
	for _, p := range products {
		summary.TotalInventoryValue = summary.TotalInventoryValue.Add(p.CostPrice.Mul(decimal.NewFromInt(int64(p.StockQuantity))))
		if p.StockQuantity <= p.ReorderLevel {
			summary.LowStockProducts = append(summary.LowStockProducts, p)
		}
	}
	return summary, nil
}
