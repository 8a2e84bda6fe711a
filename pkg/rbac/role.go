package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of roles a user record can carry.
type Role string

const (
	// RoleNone is the zero value: no principal, or an unknown role.
	RoleNone  Role = ""
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ErrInvalidRole reports a role string outside the closed set.
var ErrInvalidRole = errors.New("rbac: invalid role")

// ParseRole maps a stored or claimed role string onto the enum.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return RoleNone, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Valid reports whether r is a member of the closed set (RoleNone excluded).
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

func (r Role) String() string { return string(r) }

// Tier is an access requirement. Tiers are ordered: public < authenticated < admin.
type Tier int

const (
	TierPublic Tier = iota
	TierAuthenticated
	TierAdmin
)

func (t Tier) String() string {
	switch t {
	case TierPublic:
		return "public"
	case TierAuthenticated:
		return "authenticated"
	case TierAdmin:
		return "admin"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Satisfies reports whether role meets tier. Admin satisfies every tier and
// no other role satisfies admin.
func Satisfies(role Role, tier Tier) bool {
	switch tier {
	case TierPublic:
		return true
	case TierAuthenticated:
		return role.Valid()
	case TierAdmin:
		return role == RoleAdmin
	default:
		return false
	}
}
