package auth

import (
	"time"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/core/common/validation"
	"github.com/frahmantamala/expense-tracker/internal/user"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SignupDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required("Username is required", internal.ErrCodeValidationFailed)
	v.Field("password", d.Password).Required("Password is required", internal.ErrCodeValidationFailed)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func (d SignupDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("username", d.Username).
		Required("Username is required", internal.ErrCodeValidationFailed).
		MaxLength(64, internal.ErrCodeValidationFailed)
	v.Field("password", d.Password).
		Required("Password is required", internal.ErrCodeValidationFailed).
		MaxLength(72, internal.ErrCodeValidationFailed)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresAt   time.Time     `json:"expires_at"`
	User        user.Identity `json:"user"`
}
