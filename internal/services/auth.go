package services

import (
	"context"
	"errors"
	"strings"

	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// AuthService registers users and exchanges credentials for session tokens.
type AuthService struct {
	users  UserRepository
	tokens *TokenManager
	opts   Options
	cost   int
}

// NewAuthService returns an AuthService that issues tokens through tokens.
func NewAuthService(users UserRepository, tokens *TokenManager, opts Options) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		opts:   opts.withDefaults(),
		cost:   bcrypt.DefaultCost,
	}
}

// Register creates an account and returns a session for it.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (types.AuthResult, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" {
		return types.AuthResult{}, missing("email")
	}
	if password == "" {
		return types.AuthResult{}, missing("password")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return types.AuthResult{}, ErrDuplicateUser
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.AuthResult{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return types.AuthResult{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.AuthResult{}, ErrDuplicateUser
		}
		return types.AuthResult{}, err
	}

	s.opts.publish(ctx, types.EventUserRegistered, user.ID, user.ID, user.Public())
	return s.session(user)
}

// Login verifies credentials. Unknown emails and wrong passwords are indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return types.AuthResult{}, missing("email")
	}
	if password == "" {
		return types.AuthResult{}, missing("password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AuthResult{}, ErrInvalidCredentials
		}
		return types.AuthResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.AuthResult{}, ErrInvalidCredentials
	}

	return s.session(user)
}

// CurrentUser loads the account behind a verified session.
func (s *AuthService) CurrentUser(ctx context.Context, id string) (types.PublicUser, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return types.PublicUser{}, err
	}
	return user.Public(), nil
}

// Verify parses a session token.
func (s *AuthService) Verify(token string) (Claims, error) {
	return s.tokens.Parse(token)
}

// Tokens exposes the token manager backing the sessions.
func (s *AuthService) Tokens() *TokenManager {
	return s.tokens
}

func (s *AuthService) session(user types.User) (types.AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return types.AuthResult{}, err
	}
	return types.AuthResult{Token: token, User: user.Public()}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
