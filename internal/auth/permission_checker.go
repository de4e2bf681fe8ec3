package auth

import (
	"context"

	"github.com/frahmantamala/expense-tracker/internal/user"
)

type PermissionChecker interface {
	CanApproveExpenses(userPermissions []string) bool
	CanRejectExpenses(userPermissions []string) bool
	CanViewAllExpenses(userPermissions []string) bool
	HasAnyPermission(userPermissions []string, requiredPermissions []string) bool
	IsAdmin(userPermissions []string) bool
}

// DefaultPermissionChecker answers both the permission-list questions used by
// the RBAC middleware and the per-identity questions the expense store asks.
type DefaultPermissionChecker struct{}

func NewPermissionChecker() *DefaultPermissionChecker {
	return &DefaultPermissionChecker{}
}

func (c *DefaultPermissionChecker) HasPermission(ctx context.Context, userPermissions []string, permission string) (bool, error) {
	return c.HasAnyPermission(userPermissions, []string{permission}), nil
}

func (c *DefaultPermissionChecker) CanApproveExpensesCtx(ctx context.Context, userPermissions []string) (bool, error) {
	return c.CanApproveExpenses(userPermissions), nil
}

func (c *DefaultPermissionChecker) CanRejectExpensesCtx(ctx context.Context, userPermissions []string) (bool, error) {
	return c.CanRejectExpenses(userPermissions), nil
}

func (c *DefaultPermissionChecker) IsAdminCtx(ctx context.Context, userPermissions []string) (bool, error) {
	return c.IsAdmin(userPermissions), nil
}

func (c *DefaultPermissionChecker) CanApproveExpenses(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{user.PermissionApproveExpenses, user.PermissionAdmin})
}

func (c *DefaultPermissionChecker) CanRejectExpenses(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{user.PermissionRejectExpenses, user.PermissionAdmin})
}

func (c *DefaultPermissionChecker) CanViewAllExpenses(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{user.PermissionViewAllExpenses, user.PermissionAdmin})
}

func (c *DefaultPermissionChecker) HasAnyPermission(userPermissions []string, requiredPermissions []string) bool {
	for _, userPerm := range userPermissions {
		for _, requiredPerm := range requiredPermissions {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}

func (c *DefaultPermissionChecker) IsAdmin(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{user.PermissionAdmin})
}

// Identity-level checks.

func (c *DefaultPermissionChecker) CanCreate(actor user.Identity) bool {
	return c.HasAnyPermission(actor.Permissions(), []string{user.PermissionCreateExpenses, user.PermissionAdmin})
}

func (c *DefaultPermissionChecker) CanViewAll(actor user.Identity) bool {
	return c.CanViewAllExpenses(actor.Permissions())
}

// CanModify allows the owner (with edit rights) or an admin.
func (c *DefaultPermissionChecker) CanModify(actor user.Identity, ownerID string) bool {
	if c.IsAdmin(actor.Permissions()) {
		return true
	}
	return actor.ID != "" && actor.ID == ownerID &&
		c.HasAnyPermission(actor.Permissions(), []string{user.PermissionEditExpenses})
}

func (c *DefaultPermissionChecker) CanApprove(actor user.Identity) bool {
	return c.CanApproveExpenses(actor.Permissions())
}

func (c *DefaultPermissionChecker) CanReject(actor user.Identity) bool {
	return c.CanRejectExpenses(actor.Permissions())
}
