package user

import (
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/expense-tracker/internal/core/datamodel/user"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

const (
	PermissionAdmin           = "admin"
	PermissionViewAllExpenses = "view_all_expenses"
	PermissionApproveExpenses = "approve_expenses"
	PermissionRejectExpenses  = "reject_expenses"
	PermissionCreateExpenses  = "create_expenses"
	PermissionEditExpenses    = "edit_expenses"
)

var rolePermissions = map[Role][]string{
	RoleAdmin: {
		PermissionAdmin,
		PermissionViewAllExpenses,
		PermissionApproveExpenses,
		PermissionRejectExpenses,
		PermissionCreateExpenses,
		PermissionEditExpenses,
	},
	RoleEmployee: {
		PermissionCreateExpenses,
		PermissionEditExpenses,
	},
}

// Identity is who is acting: the session record and the JWT subject.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i Identity) Permissions() []string {
	return rolePermissions[i.Role]
}

func (i Identity) HasPermission(permission string) bool {
	for _, p := range i.Permissions() {
		if p == permission {
			return true
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Role: u.Role}
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

var ErrNotFound = errors.New("user not found")

func ToDataModel(u *User) *userDatamodel.User {
	dm := &userDatamodel.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
	}
	if !u.CreatedAt.IsZero() {
		createdAt := u.CreatedAt
		dm.CreatedAt = &createdAt
	}
	return dm
}

func FromDataModel(u *userDatamodel.User) *User {
	out := &User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         Role(u.Role),
	}
	if u.CreatedAt != nil {
		out.CreatedAt = *u.CreatedAt
	}
	return out
}

func SessionToDataModel(i Identity) *userDatamodel.Session {
	return &userDatamodel.Session{ID: i.ID, Username: i.Username, Role: string(i.Role)}
}

func SessionFromDataModel(s *userDatamodel.Session) Identity {
	return Identity{ID: s.ID, Username: s.Username, Role: Role(s.Role)}
}
