package student

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Errors raised by the auth and reset flows.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidOTP         = errors.New("invalid otp")
)

// OTPStore keeps one live reset code per student. Expiry belongs to the
// store, not to this service.
type OTPStore interface {
	Put(ctx context.Context, studentID, code string) error
	Get(ctx context.Context, studentID string) (string, error)
	Delete(ctx context.Context, studentID string) error
}

// Mailer delivers the reset code. A send failure is terminal for the
// request; nothing retries.
type Mailer interface {
	SendOTP(to, name, code string) error
}

// CodeFunc produces a fresh OTP code.
type CodeFunc func() string

// Accounts is the slice of the repository the account flows need.
type Accounts interface {
	Insert(ctx context.Context, st Student) (Student, error)
	GetByEmail(ctx context.Context, email string) (Student, error)
	GetByRegisterNo(ctx context.Context, registerNo string) (Student, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
}

// Service wraps student account logic: password handling and the
// OTP-based reset flow.
type Service struct {
	repo    Accounts
	otps    OTPStore
	mailer  Mailer
	newCode CodeFunc
}

// NewService wires the student service.
func NewService(repo Accounts, otps OTPStore, mailer Mailer, newCode CodeFunc) *Service {
	return &Service{repo: repo, otps: otps, mailer: mailer, newCode: newCode}
}

// Create registers a student with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, st Student, password string) (Student, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(password)), bcrypt.DefaultCost)
	if err != nil {
		return Student{}, err
	}
	st.PasswordHash = string(hash)
	if st.Status == "" {
		st.Status = "active"
	}
	return s.repo.Insert(ctx, st)
}

// Authenticate checks email and password and returns the student.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Student, error) {
	st, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Student{}, ErrInvalidCredentials
		}
		return Student{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(strings.TrimSpace(password))) != nil {
		return Student{}, ErrInvalidCredentials
	}
	return st, nil
}

// SendResetOTP generates a fresh code for the student, supersedes any
// live one, and mails it. The code expires on its own in the store.
func (s *Service) SendResetOTP(ctx context.Context, registerNo string) error {
	st, err := s.repo.GetByRegisterNo(ctx, registerNo)
	if err != nil {
		return err
	}
	code := s.newCode()
	if err := s.otps.Put(ctx, st.ID, code); err != nil {
		return err
	}
	return s.mailer.SendOTP(st.Email, st.Name, code)
}

// VerifyResetOTP checks a submitted code without consuming it.
func (s *Service) VerifyResetOTP(ctx context.Context, registerNo, code string) error {
	st, err := s.repo.GetByRegisterNo(ctx, registerNo)
	if err != nil {
		return err
	}
	stored, err := s.otps.Get(ctx, st.ID)
	if err != nil || stored != code {
		return ErrInvalidOTP
	}
	return nil
}

// ResetPassword stores a new password and consumes the live OTP.
func (s *Service) ResetPassword(ctx context.Context, registerNo, password string) error {
	st, err := s.repo.GetByRegisterNo(ctx, registerNo)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(password)), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, st.ID, string(hash)); err != nil {
		return err
	}
	return s.otps.Delete(ctx, st.ID)
}
