package cache

import (
	"context"
	"time"

	"posledger/backend/internal/domain"
)

// SaleCache holds read-only sale views keyed by sale id.
type SaleCache interface {
	Get(ctx context.Context, saleID string) (*domain.Sale, bool, error)
	Set(ctx context.Context, sale *domain.Sale, ttl time.Duration) error
	Delete(ctx context.Context, saleID string) error
}

type NoopSaleCache struct{}

func (NoopSaleCache) Get(_ context.Context, _ string) (*domain.Sale, bool, error) {
	return nil, false, nil
}

func (NoopSaleCache) Set(_ context.Context, _ *domain.Sale, _ time.Duration) error {
	return nil
}

func (NoopSaleCache) Delete(_ context.Context, _ string) error {
	return nil
}
