package user

import "time"

type ProfileResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Role        Role       `json:"role"`
	Permissions []string   `json:"permissions"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

func (u *User) ToProfile() ProfileResponse {
	p := ProfileResponse{
		ID:          u.ID,
		Username:    u.Username,
		Role:        u.Role,
		Permissions: u.Identity().Permissions(),
	}
	if !u.CreatedAt.IsZero() {
		createdAt := u.CreatedAt
		p.CreatedAt = &createdAt
	}
	return p
}
