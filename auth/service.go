package auth

import (
	"context"
	"errors"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/forms"
	"github.com/user/socialapp/store"
)

// Accounts is the part of store.Store the auth service needs.
type Accounts interface {
	CreateUser(ctx context.Context, u *store.User) error
	UserByEmail(ctx context.Context, email string) (*store.User, error)
}

// Service registers and authenticates users.
type Service struct {
	accounts Accounts
}

// NewService creates a Service.
func NewService(accounts Accounts) *Service {
	return &Service{accounts: accounts}
}

// Register validates req and creates the account with empty lists and the
// default profile image.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*store.User, error) {
	if err := forms.Validate(req); err != nil {
		return nil, err
	}
	age, err := forms.Age(req.Age)
	if err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, apperror.NewInternalError("failed to hash password", err)
	}

	user := &store.User{
		Name:         req.Name,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Age:          age,
		ProfileImage: store.DefaultProfileImage,
		Posts:        []string{},
		Followers:    []string{},
		Following:    []string{},
	}
	if err := s.accounts.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperror.NewConflictError("email or username already taken", err)
		}
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}
	return user, nil
}

// Login returns the account whose email and password match req.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*store.User, error) {
	if err := forms.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.accounts.UserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewNotFoundError("user not found", err)
	}
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to get user", err)
	}

	if !CheckPassword(user.PasswordHash, req.Password) {
		return nil, apperror.NewAuthError("invalid credentials", nil)
	}
	return user, nil
}
