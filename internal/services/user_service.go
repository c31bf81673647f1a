package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/auth"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthenticated)

type UserService struct {
	users             store.UserStore
	tokens            *auth.TokenManager
	policy            AccessPolicy
	institutionDomain string
	logger            *zap.Logger
	now               func() time.Time
}

const maxPasswordBytes = 72

type RegisterInput struct {
	FirstName  string `json:"firstName" validate:"required,max=50"`
	LastName   string `json:"lastName" validate:"required,max=50"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6,max=72"`
	Department string `json:"department" validate:"max=100"`
}

type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type UserQuery struct {
	Role       string
	Department string
	Search     string
	Page       int
	Limit      int
}

type UserPage struct {
	Users      []models.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

func NewUserService(users store.UserStore, tokens *auth.TokenManager, policy AccessPolicy, institutionDomain string, logger *zap.Logger) *UserService {
	return &UserService{
		users:             users,
		tokens:            tokens,
		policy:            policy,
		institutionDomain: strings.ToLower(strings.TrimSpace(institutionDomain)),
		logger:            logger.With(zap.String("service", "users")),
		now:               time.Now,
	}
}

// Register creates a student account for an institution address and signs
// the new user in.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Department = strings.TrimSpace(in.Department)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	// bcrypt reads at most 72 bytes; the tag above counts characters.
	if len(in.Password) > maxPasswordBytes {
		return nil, invalid("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	if s.institutionDomain != "" && !strings.HasSuffix(in.Email, "@"+s.institutionDomain) {
		return nil, invalid("email", "must be a valid @"+s.institutionDomain+" address")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &models.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         auth.RoleStudent,
		Department:   in.Department,
		LastLogin:    &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, storeError("create user", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return s.issue(user)
}

func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storeError("find user", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		s.logger.Info("failed login", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, storeError("touch last login", err)
	}
	user.LastLogin = &now
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, expires, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expires, User: user}, nil
}

// Authenticate resolves a bearer token to an Actor. The role is read from
// the stored user so role changes apply on the next request.
func (s *UserService) Authenticate(ctx context.Context, token string) (Actor, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Actor{}, ErrUnauthenticated
	}
	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return Actor{}, ErrUnauthenticated
	}
	if err != nil {
		return Actor{}, storeError("find user", err)
	}
	if !auth.IsKnownRole(user.Role) {
		return Actor{}, ErrUnauthenticated
	}
	return Actor{ID: user.ID, Role: user.Role, Email: user.Email}, nil
}

func (s *UserService) Profile(ctx context.Context, actor Actor) (*models.User, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	user, err := s.users.FindUserByID(ctx, actor.ID)
	if err != nil {
		return nil, storeError("find user", err)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, actor Actor, q UserQuery) (*UserPage, error) {
	if err := s.policy.requireAdmin(actor); err != nil {
		return nil, err
	}
	if q.Role != "" && !auth.IsKnownRole(q.Role) {
		return nil, invalid("role", "unknown role")
	}
	page, limit := normalizePage(q.Page, q.Limit, 20, 100)
	users, total, err := s.users.ListUsers(ctx, store.UserFilter{
		Role:       strings.ToLower(q.Role),
		Department: q.Department,
		Search:     q.Search,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return nil, storeError("list users", err)
	}
	return &UserPage{Users: users, Pagination: newPagination(page, limit, total)}, nil
}

func (s *UserService) UpdateRole(ctx context.Context, actor Actor, id, role string) (*models.User, error) {
	if err := s.policy.requireAdmin(actor); err != nil {
		return nil, err
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if !auth.IsKnownRole(role) {
		return nil, invalid("role", "must be one of: "+strings.Join(auth.Roles(), " "))
	}
	if id == actor.ID {
		return nil, invalid("role", "cannot change your own role")
	}
	user, err := s.users.UpdateUserRole(ctx, id, role)
	if err != nil {
		return nil, storeError("update user role", err)
	}
	s.logger.Info("user role changed",
		zap.String("user_id", id),
		zap.String("role", role),
		zap.String("actor", actor.ID))
	return user, nil
}

// EnsureAdmin seeds an admin account when none exists for email. It reports
// whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, nil
	}
	_, err := s.users.FindUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, storeError("find admin", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	now := s.now().UTC()
	err = s.users.CreateUser(ctx, &models.User{
		FirstName:    "System",
		LastName:     "Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		Department:   "IT Security",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return false, storeError("create admin", err)
	}
	s.logger.Info("bootstrap admin created", zap.String("email", email))
	return true, nil
}
