// Package pricing derives per-line price, cost and profit at the moment of a
// sale. It has no side effects.
package pricing

import (
	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
)

// MoneyScale and MaxAmount describe the NUMERIC(14,2) money columns.
const MoneyScale = 2

var MaxAmount = decimal.RequireFromString("999999999999.99")

// Storable reports whether d survives a round trip through the money
// columns unchanged.
func Storable(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale)) && d.Abs().LessThanOrEqual(MaxAmount)
}

type Line struct {
	Price     decimal.Decimal
	CostPrice decimal.Decimal
	Quantity  int
	Total     decimal.Decimal
	CostTotal decimal.Decimal
	Profit    decimal.Decimal
}

func Snapshot(p domain.Product, qty int) Line {
	q := decimal.NewFromInt(int64(qty))
	total := p.SellingPrice.Mul(q)
	cost := p.CostPrice.Mul(q)
	return Line{
		Price:     p.SellingPrice,
		CostPrice: p.CostPrice,
		Quantity:  qty,
		Total:     total,
		CostTotal: cost,
		Profit:    p.SellingPrice.Sub(p.CostPrice).Mul(q),
	}
}

type Totals struct {
	Amount decimal.Decimal
	Cost   decimal.Decimal
}

func (t *Totals) Add(l Line) {
	t.Amount = t.Amount.Add(l.Total)
	t.Cost = t.Cost.Add(l.CostTotal)
}

func (t Totals) Profit() decimal.Decimal {
	return t.Amount.Sub(t.Cost)
}
