package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"posledger/backend/internal/domain"
)

func TestCanPerform(t *testing.T) {
	actor := func(role string) domain.Actor {
		return domain.Actor{UserID: "usr-" + role, Role: role}
	}

	cases := []struct {
		action  string
		allowed []string
		denied  []string
	}{
		{ActionSaleCreate, []string{domain.RoleAdmin, domain.RoleManager, domain.RoleCashier}, []string{domain.RoleStock}},
		{ActionSaleRefund, []string{domain.RoleAdmin, domain.RoleManager}, []string{domain.RoleCashier, domain.RoleStock}},
		{ActionSaleList, []string{domain.RoleAdmin, domain.RoleManager}, []string{domain.RoleCashier, domain.RoleStock}},
		{ActionStockReceive, []string{domain.RoleAdmin, domain.RoleManager, domain.RoleStock}, []string{domain.RoleCashier}},
		{ActionCustomerRedeem, []string{domain.RoleAdmin, domain.RoleManager, domain.RoleCashier}, []string{domain.RoleStock}},
		{ActionProductRead, []string{domain.RoleAdmin, domain.RoleManager, domain.RoleCashier, domain.RoleStock}, nil},
		{ActionAuditRead, []string{domain.RoleAdmin}, []string{domain.RoleManager, domain.RoleCashier, domain.RoleStock}},
		{ActionStoreWrite, []string{domain.RoleAdmin}, []string{domain.RoleManager}},
		{ActionUserWrite, []string{domain.RoleAdmin}, []string{domain.RoleManager, domain.RoleCashier, domain.RoleStock}},
	}
	for _, tc := range cases {
		for _, role := range tc.allowed {
			assert.True(t, CanPerform(actor(role), tc.action), "%s should be allowed %s", role, tc.action)
		}
		for _, role := range tc.denied {
			assert.False(t, CanPerform(actor(role), tc.action), "%s should be denied %s", role, tc.action)
		}
	}
}

func TestCanPerformDeniesUnknownInputs(t *testing.T) {
	assert.False(t, CanPerform(domain.Actor{UserID: "usr-1", Role: domain.RoleAdmin}, "sale.delete"))
	assert.False(t, CanPerform(domain.Actor{UserID: "usr-1", Role: "owner"}, ActionSaleRead))
	assert.False(t, CanPerform(domain.Actor{Role: domain.RoleAdmin}, ActionSaleRead))
}
