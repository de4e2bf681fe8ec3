package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/transport"
	"github.com/frahmantamala/expense-tracker/internal/user"
	"github.com/frahmantamala/expense-tracker/pkg/logger"
)

type ServiceAPI interface {
	Signup(ctx context.Context, dto SignupDTO) (*user.Identity, error)
	Login(ctx context.Context, dto LoginDTO) (*user.Identity, error)
	Logout(ctx context.Context) error
	IssueToken(identity user.Identity) (AuthResponse, error)
	Authenticate(ctx context.Context, tokenString string) (user.Identity, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var dto SignupDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	identity, err := h.Service.Signup(r.Context(), dto)
	if err != nil {
		h.Logger.Info("signup failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.writeToken(w, http.StatusCreated, *identity)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	identity, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.Logger.Info("authentication failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.writeToken(w, http.StatusOK, *identity)
}

func (h *Handler) writeToken(w http.ResponseWriter, status int, identity user.Identity) {
	resp, err := h.Service.IssueToken(identity)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, status, resp)
}

// Logout acknowledges a valid token. Tokens are stateless, so clients drop them.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteAppError(w, internal.ErrNotAuthenticated)
		return
	}

	if _, err := h.Service.Authenticate(r.Context(), token); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := h.Service.Logout(r.Context()); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.Logger.Debug("auth middleware: missing authorization token")
			h.WriteAppError(w, internal.ErrNotAuthenticated)
			return
		}

		identity, err := h.Service.Authenticate(r.Context(), token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			h.HandleServiceError(w, err)
			return
		}

		ctx := user.ContextWithIdentity(r.Context(), identity)
		ctx = logger.With(ctx, "user_id", identity.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
