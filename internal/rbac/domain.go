package rbac

import (
	"github.com/gesticom/gesticom/internal/shared"
)

// Grants maps a role to the capabilities it holds.
type Grants map[shared.Role][]string

// DefaultGrants returns the built-in role matrix.
func DefaultGrants() Grants {
	all := shared.AllPermissions()
	admin := make([]string, 0, len(all))
	for _, p := range all {
		if p == shared.PermDocumentsReverse {
			continue
		}
		admin = append(admin, p)
	}
	return Grants{
		shared.RoleSuperAdmin: all,
		shared.RoleAdmin:      admin,
		shared.RoleAccountant: {shared.PermAccountingView, shared.PermAccountingManage, shared.PermStockView},
		shared.RoleManager:    {shared.PermDocumentsCreate, shared.PermStockView, shared.PermAccountingView},
		shared.RoleCashier:    {shared.PermDocumentsCreate, shared.PermStockView},
	}
}
