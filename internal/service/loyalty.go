package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

// currencyPerPoint is how much a customer spends to earn one point.
var currencyPerPoint = decimal.NewFromInt(100)

func PointsEarned(total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(total.Div(currencyPerPoint).Floor().IntPart())
}

func (s *Service) RedeemPoints(ctx context.Context, customerID string, req domain.RedeemPointsRequest) (domain.Customer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.Customer{}, store.Invalid("customer id is required")
	}
	if req.Points <= 0 {
		return domain.Customer{}, store.Invalid("points must be a positive integer")
	}

	var updated domain.Customer
	err := store.WithinTx(ctx, s.repo, func(tx store.Tx) error {
		customer, err := tx.LockCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if customer.LoyaltyPoints < req.Points {
			return &store.InsufficientPointsError{Available: customer.LoyaltyPoints, Requested: req.Points}
		}
		if err := tx.AddLoyaltyPoints(ctx, customerID, -req.Points); err != nil {
			return err
		}
		customer.LoyaltyPoints -= req.Points
		updated = *customer
		return nil
	})
	if err != nil {
		s.logFailure("redeem points", err, zap.String("customer_id", customerID), zap.Int("points", req.Points))
		return domain.Customer{}, err
	}

	s.logAudit(ctx, domain.AuditRedeemPoints, "Customer", customerID, map[string]any{
		"pointsRedeemed": req.Points,
		"balance":        updated.LoyaltyPoints,
	})
	return updated, nil
}
