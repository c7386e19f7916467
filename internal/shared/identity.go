package shared

import "strings"

// Role names the privilege level of an authenticated user.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleAccountant Role = "ACCOUNTANT"
	RoleManager    Role = "MANAGER"
	RoleCashier    Role = "CASHIER"
)

// ParseRole normalises a stored role name. Unknown names yield false.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleAccountant, RoleManager, RoleCashier:
		return role, true
	}
	return "", false
}

// Identity is the authenticated actor attached to every request.
type Identity struct {
	UserID   int64
	Role     Role
	EntityID int64
}

// Valid reports whether the identity can be used for authorization.
func (i Identity) Valid() bool {
	if i.UserID <= 0 {
		return false
	}
	_, ok := ParseRole(string(i.Role))
	return ok
}

// CanAccessEntity reports whether the actor may act on data owned by entityID.
func (i Identity) CanAccessEntity(entityID int64) bool {
	return i.Role == RoleSuperAdmin || i.EntityID == entityID
}

// ResolveEntity picks the entity a new document belongs to. Only
// SUPER_ADMIN may create documents for another entity.
func (i Identity) ResolveEntity(requested int64) (int64, error) {
	if requested == 0 || requested == i.EntityID {
		return i.EntityID, nil
	}
	if i.Role != RoleSuperAdmin {
		return 0, ErrForbidden
	}
	return requested, nil
}

// ScopeEntity picks the entity a read is restricted to. Zero means every
// entity and is only returned for SUPER_ADMIN.
func (i Identity) ScopeEntity(requested int64) (int64, error) {
	if i.Role == RoleSuperAdmin {
		return requested, nil
	}
	if requested == 0 || requested == i.EntityID {
		return i.EntityID, nil
	}
	return 0, ErrForbidden
}
