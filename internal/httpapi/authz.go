package httpapi

import (
	"slices"

	"posledger/backend/internal/domain"
)

const (
	ActionSaleCreate     = "sale.create"
	ActionSaleRead       = "sale.read"
	ActionSaleList       = "sale.list"
	ActionSaleRefund     = "sale.refund"
	ActionStockReceive   = "stock.receive"
	ActionStockInList    = "stockin.list"
	ActionCustomerRedeem = "customer.redeem"
	ActionCustomerCreate = "customer.create"
	ActionCustomerRead   = "customer.read"
	ActionProductRead    = "product.read"
	ActionProductWrite   = "product.write"
	ActionVendorRead     = "vendor.read"
	ActionVendorWrite    = "vendor.write"
	ActionStoreWrite     = "store.write"
	ActionReportRead     = "report.read"
	ActionAuditRead      = "audit.read"
	ActionUserWrite      = "user.write"
)

var (
	frontOfHouse = []string{domain.RoleAdmin, domain.RoleManager, domain.RoleCashier}
	management   = []string{domain.RoleAdmin, domain.RoleManager}
	backOfHouse  = []string{domain.RoleAdmin, domain.RoleManager, domain.RoleStock}
	everyone     = []string{domain.RoleAdmin, domain.RoleManager, domain.RoleCashier, domain.RoleStock}
	adminOnly    = []string{domain.RoleAdmin}
)

var permissions = map[string][]string{
	ActionSaleCreate:     frontOfHouse,
	ActionSaleRead:       frontOfHouse,
	ActionCustomerRedeem: frontOfHouse,
	ActionCustomerCreate: frontOfHouse,
	ActionCustomerRead:   frontOfHouse,
	ActionSaleList:       management,
	ActionSaleRefund:     management,
	ActionReportRead:     management,
	ActionStockReceive:   backOfHouse,
	ActionStockInList:    backOfHouse,
	ActionProductWrite:   backOfHouse,
	ActionVendorWrite:    backOfHouse,
	ActionProductRead:    everyone,
	ActionVendorRead:     everyone,
	ActionStoreWrite:     adminOnly,
	ActionAuditRead:      adminOnly,
	ActionUserWrite:      adminOnly,
}

// CanPerform reports whether actor may run action. Unknown actions and
// actors without a user id are denied.
func CanPerform(actor domain.Actor, action string) bool {
	if actor.UserID == "" {
		return false
	}
	roles, ok := permissions[action]
	if !ok {
		return false
	}
	return slices.Contains(roles, actor.Role)
}
