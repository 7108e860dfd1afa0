package user

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned on a failed login.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Accounts is the slice of the repository the account flows need.
type Accounts interface {
	Insert(ctx context.Context, u User) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, u User) (User, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
}

// Service wraps user account logic.
type Service struct {
	repo Accounts
}

// NewService wires the user service.
func NewService(repo Accounts) *Service {
	return &Service{repo: repo}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, name, email, password string, isAdmin bool) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(password)), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Insert(ctx, User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
	})
}

// Authenticate checks email and password and returns the user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(strings.TrimSpace(password))) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// UpdateProfile applies name/email/admin changes and, when password is
// non-empty, rotates the password too.
func (s *Service) UpdateProfile(ctx context.Context, u User, password string) (User, error) {
	updated, err := s.repo.Update(ctx, u)
	if err != nil {
		return User{}, err
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(password)), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		if err := s.repo.SetPassword(ctx, u.ID, string(hash)); err != nil {
			return User{}, err
		}
	}
	return updated, nil
}
