package ledger

import "fmt"

// Role is the capability class of an authenticated user.
type Role string

const (
	RoleSeller    Role = "seller"
	RoleShopOwner Role = "shop_owner"
	RoleAdmin     Role = "admin_of_app"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSeller, RoleShopOwner, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller. ShopID is empty for admins.
type Principal struct {
	UserID string
	Role   Role
	ShopID string
}

// Decision is the outcome of an access check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) Allowed() bool { return d == Allow }

// CanAccess is the single capability check for shop-scoped resources.
// Admins reach every shop; sellers and owners reach only their own.
func CanAccess(role Role, requesterShopID, resourceShopID string) Decision {
	switch role {
	case RoleAdmin:
		return Allow
	case RoleSeller, RoleShopOwner:
		if requesterShopID != "" && requesterShopID == resourceShopID {
			return Allow
		}
	}
	return Deny
}

// Authorize applies CanAccess for p against a resource in shopID.
func Authorize(p Principal, shopID string) error {
	if !CanAccess(p.Role, p.ShopID, shopID).Allowed() {
		return fmt.Errorf("%w: %s may not access shop %s", ErrForbidden, p.Role, shopID)
	}
	return nil
}

// RequireRole rejects principals whose role is not listed.
func RequireRole(p Principal, roles ...Role) error {
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s not permitted", ErrForbidden, p.Role)
}

// ScopeShop resolves the shop a request acts on. Non-admins default to
// their own shop when none is given.
func ScopeShop(p Principal, requested string) string {
	if requested == "" && p.Role != RoleAdmin {
		return p.ShopID
	}
	return requested
}

// RequireShop rejects an unresolved shop scope. Admins must name a shop
// for anything that writes or aggregates per shop.
func RequireShop(shopID string) error {
	if shopID == "" {
		return Invalid("shop_id is required")
	}
	return nil
}
