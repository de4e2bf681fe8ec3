package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/user"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	Create(ctx context.Context, u *user.User) error
	Update(ctx context.Context, u *user.User) error
}

// SessionRepository holds the single active identity of a CLI session.
type SessionRepository interface {
	// Load returns nil, nil when nobody is logged in.
	Load(ctx context.Context) (*user.Identity, error)
	Save(ctx context.Context, identity user.Identity) error
	Clear(ctx context.Context) error
}

type Config struct {
	BCryptCost    int
	AdminUsername string
	AdminPassword string
}

// Service is the identity provider. sessions may be nil when identities travel
// as bearer tokens instead.
type Service struct {
	users          UserRepository
	sessions       SessionRepository
	tokenGenerator TokenGenerator
	cfg            Config
	logger         *slog.Logger
	newID          func() string
}

func NewService(users UserRepository, sessions SessionRepository, tokenGen TokenGenerator, cfg Config, logger *slog.Logger) *Service {
	if cfg.BCryptCost == 0 {
		cfg.BCryptCost = bcrypt.DefaultCost
	}
	if cfg.AdminUsername == "" {
		cfg.AdminUsername = "admin"
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "admin123"
	}
	return &Service{
		users:          users,
		sessions:       sessions,
		tokenGenerator: tokenGen,
		cfg:            cfg,
		logger:         logger,
		newID:          uuid.NewString,
	}
}

// EnsureAdmin creates the built-in admin once; later calls find it and return.
func (s *Service) EnsureAdmin(ctx context.Context) (*user.User, error) {
	existing, err := s.users.GetByUsername(ctx, s.cfg.AdminUsername)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	hash, err := s.HashPassword(s.cfg.AdminPassword)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash admin password", err)
	}
	admin := &user.User{
		ID:           DefaultAdminID,
		Username:     s.cfg.AdminUsername,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if errors.Is(err, internal.ErrUsernameExists) {
			return s.users.GetByUsername(ctx, s.cfg.AdminUsername)
		}
		return nil, err
	}

	s.logger.Info("seeded admin user", "user_id", admin.ID, "username", admin.Username)
	return admin, nil
}

// Signup creates an employee and makes it the active session.
func (s *Service) Signup(ctx context.Context, dto SignupDTO) (*user.Identity, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.EnsureAdmin(ctx); err != nil {
		return nil, err
	}

	hash, err := s.HashPassword(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	u := &user.User{
		ID:           s.newID(),
		Username:     dto.Username,
		PasswordHash: hash,
		Role:         user.RoleEmployee,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, internal.ErrUsernameExists) {
			s.logger.Info("signup rejected: username taken", "username", dto.Username)
		}
		return nil, err
	}

	identity := u.Identity()
	if err := s.saveSession(ctx, identity); err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", "user_id", u.ID, "username", u.Username)
	return &identity, nil
}

// Login never tells the caller which of username or password was wrong.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*user.Identity, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.EnsureAdmin(ctx); err != nil {
		return nil, err
	}

	u, err := s.users.GetByUsername(ctx, dto.Username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.logger.Debug("login failed", "reason", "unknown user")
			return nil, internal.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, legacy := verifyPassword(u.PasswordHash, dto.Password)
	if !ok {
		s.logger.Debug("login failed", "reason", "password mismatch", "user_id", u.ID)
		return nil, internal.ErrInvalidCredentials
	}
	if legacy {
		s.upgradeLegacyHash(ctx, u, dto.Password)
	}

	identity := u.Identity()
	if err := s.saveSession(ctx, identity); err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", u.ID, "role", u.Role)
	return &identity, nil
}

// Logout clears the active session; logging out twice is fine.
func (s *Service) Logout(ctx context.Context) error {
	if s.sessions == nil {
		return nil
	}
	if err := s.sessions.Clear(ctx); err != nil {
		return internal.NewInternalError("failed to clear session", err)
	}
	return nil
}

func (s *Service) CurrentSession(ctx context.Context) (*user.Identity, error) {
	if s.sessions == nil {
		return nil, nil
	}
	return s.sessions.Load(ctx)
}

// RequireSession is CurrentSession that treats absence as ErrNotAuthenticated.
func (s *Service) RequireSession(ctx context.Context) (user.Identity, error) {
	identity, err := s.CurrentSession(ctx)
	if err != nil {
		return user.Identity{}, err
	}
	if identity == nil {
		return user.Identity{}, internal.ErrNotAuthenticated
	}
	return *identity, nil
}

func (s *Service) IssueToken(identity user.Identity) (AuthResponse, error) {
	token, expiresAt, err := s.tokenGenerator.GenerateAccessToken(identity)
	if err != nil {
		return AuthResponse{}, internal.NewInternalError("failed to sign token", err)
	}
	return AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        identity,
	}, nil
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}

// Authenticate resolves a bearer token to the identity of a user that still exists.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (user.Identity, error) {
	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return user.Identity{}, err
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.Identity{}, internal.ErrInvalidToken
		}
		return user.Identity{}, err
	}
	return u.Identity(), nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BCryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) saveSession(ctx context.Context, identity user.Identity) error {
	if s.sessions == nil {
		return nil
	}
	if err := s.sessions.Save(ctx, identity); err != nil {
		return internal.NewInternalError("failed to save session", err)
	}
	return nil
}

func (s *Service) upgradeLegacyHash(ctx context.Context, u *user.User, password string) {
	hash, err := s.HashPassword(password)
	if err != nil {
		s.logger.Warn("failed to rehash legacy password", "user_id", u.ID, "error", err)
		return
	}
	upgraded := *u
	upgraded.PasswordHash = hash
	if err := s.users.Update(ctx, &upgraded); err != nil {
		s.logger.Warn("failed to store rehashed password", "user_id", u.ID, "error", err)
		return
	}
	s.logger.Info("upgraded legacy password hash", "user_id", u.ID)
}

const legacyHashPrefix = "h_"

// verifyPassword checks bcrypt hashes and the unsalted "h_" hashes found in
// directories written before bcrypt was introduced.
func verifyPassword(hash, password string) (ok bool, legacy bool) {
	if strings.HasPrefix(hash, legacyHashPrefix) {
		return hash == LegacyHash(password), true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, false
}

// LegacyHash reproduces the old 32-bit string hash over UTF-16 code units.
func LegacyHash(password string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(password)) {
		h = (h << 5) - h + int32(c)
	}
	n := int64(h)
	if n < 0 {
		n = -n
	}
	return legacyHashPrefix + strconv.FormatInt(n, 36)
}
