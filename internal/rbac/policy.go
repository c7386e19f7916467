package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/gesticom/gesticom/internal/shared"
)

// Policy answers capability checks for the identity carried by a context.
type Policy struct {
	grants map[shared.Role]map[string]struct{}
}

// NewPolicy builds a Policy from the given grants.
func NewPolicy(grants Grants) *Policy {
	index := make(map[shared.Role]map[string]struct{}, len(grants))
	for role, perms := range grants {
		set := make(map[string]struct{}, len(perms))
		for _, p := range normalizePermissions(perms) {
			set[p] = struct{}{}
		}
		index[role] = set
	}
	return &Policy{grants: index}
}

// Authorize returns ErrUnauthorized without an identity and ErrForbidden
// when the identity's role lacks the capability.
func (p *Policy) Authorize(ctx context.Context, capability string) error {
	id, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return shared.ErrUnauthorized
	}
	if !p.Allows(id.Role, capability) {
		return fmt.Errorf("%w: role %s lacks %s", shared.ErrForbidden, id.Role, capability)
	}
	return nil
}

// Allows reports whether role holds capability.
func (p *Policy) Allows(role shared.Role, capability string) bool {
	if p == nil {
		return false
	}
	set, ok := p.grants[role]
	if !ok {
		return false
	}
	_, ok = set[strings.TrimSpace(strings.ToLower(capability))]
	return ok
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}
