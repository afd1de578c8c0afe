package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"posledger/backend/internal/cache"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service runs the sale, refund, receiving and loyalty flows against an
// explicit store handle. Authorization happens before a call reaches it;
// the service trusts the actor found in the context.
type Service struct {
	repo     store.Repository
	sales    cache.SaleCache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func New(repo store.Repository, saleCache cache.SaleCache, cacheTTL time.Duration, logger *zap.Logger) *Service {
	if saleCache == nil {
		saleCache = cache.NoopSaleCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:     repo,
		sales:    saleCache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.UserID) == "" {
		return domain.Actor{}, store.Invalid("authenticated user required")
	}
	return actor, nil
}

func (s *Service) newAuditEntry(ctx context.Context, action, entityType, entityID string, details map[string]any) domain.AuditLog {
	actor, _ := ActorFromContext(ctx)
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte("{}")
	}
	return domain.AuditLog{
		UserID:     actor.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    string(payload),
		CreatedAt:  s.now(),
	}
}

// logAudit writes an audit entry outside any transaction. Failures are
// logged and dropped.
func (s *Service) logAudit(ctx context.Context, action, entityType, entityID string, details map[string]any) {
	entry := s.newAuditEntry(ctx, action, entityType, entityID, details)
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

// logAuditTx is logAudit inside tx. The backend isolates the insert so a
// failure here leaves tx usable.
func (s *Service) logAuditTx(ctx context.Context, tx store.Tx, action, entityType, entityID string, details map[string]any) {
	entry := s.newAuditEntry(ctx, action, entityType, entityID, details)
	if err := tx.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

// logFailure keeps client mistakes at debug level and surfaces store
// failures as errors.
func (s *Service) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if store.IsClientError(err) {
		s.logger.Debug(op+" rejected", fields...)
		return
	}
	s.logger.Error(op+" failed", fields...)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
