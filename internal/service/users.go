package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

const (
	minUsernameLength = 4
	minPasswordLength = 8
)

func validRole(role string) bool {
	switch role {
	case domain.RoleAdmin, domain.RoleManager, domain.RoleCashier, domain.RoleStock:
		return true
	}
	return false
}

// CreateUser provisions an active account with a bcrypt-hashed password.
// Every role except admin must belong to a store.
func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	role := strings.ToLower(strings.TrimSpace(req.Role))
	storeID := strings.TrimSpace(req.StoreID)

	if len(username) < minUsernameLength || strings.ContainsAny(username, " \t\r\n") {
		return domain.User{}, store.Invalid("username must be at least %d characters without spaces", minUsernameLength)
	}
	if len(req.Password) < minPasswordLength {
		return domain.User{}, store.Invalid("password must be at least %d characters", minPasswordLength)
	}
	// bcrypt ignores everything past 72 bytes.
	if len(req.Password) > 72 {
		return domain.User{}, store.Invalid("password must be at most 72 bytes")
	}
	if !validRole(role) {
		return domain.User{}, store.Invalid("unknown role %q", req.Role)
	}
	if role != domain.RoleAdmin && storeID == "" {
		return domain.User{}, store.Invalid("storeId is required for role %s", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	created, err := s.repo.CreateUser(ctx, domain.User{
		Username:     username,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(hash),
		Role:         role,
		StoreID:      storeID,
		Active:       true,
		CreatedAt:    s.now(),
	})
	if err != nil {
		s.logFailure("create user", err, zap.String("username", username))
		return domain.User{}, err
	}

	s.logAudit(ctx, domain.AuditCreateUser, "User", created.ID, map[string]any{
		"username": created.Username,
		"role":     created.Role,
		"storeId":  created.StoreID,
	})
	return *created, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}
