// Package account stores users and their recolor credits.
package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound is returned when no account matches.
	ErrNotFound = errors.New("account: not found")
	// ErrExists is returned when a username is already taken.
	ErrExists = errors.New("account: username already exists")
	// ErrInsufficientCredits is returned when a deduction would go below zero.
	ErrInsufficientCredits = errors.New("account: insufficient credits")
	// ErrInvalidCredentials is returned when username and password don't match.
	ErrInvalidCredentials = errors.New("account: invalid credentials")
	// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("account: password too short")
)

// MinPasswordLength applies to passwords set through ChangePassword.
const MinPasswordLength = 6

// Account is a user of the studio.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	// Password is either plaintext (legacy rows) or a bcrypt hash.
	Password  string    `json:"-"`
	Credits   int       `json:"credits"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists accounts. DeductCredit and RefundCredit are atomic.
type Store interface {
	GetByUsername(ctx context.Context, username string) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	Create(ctx context.Context, a Account) (Account, error)
	List(ctx context.Context) ([]Account, error)
	// DeductCredit takes one credit and returns the remaining balance.
	DeductCredit(ctx context.Context, id string) (int, error)
	// RefundCredit gives one credit back and returns the new balance.
	RefundCredit(ctx context.Context, id string) (int, error)
	SetCredits(ctx context.Context, id string, credits int) error
	SetAdmin(ctx context.Context, id string, admin bool) error
	UpdatePassword(ctx context.Context, id string, password string) error
}

// Service implements login and account maintenance on a Store.
type Service struct {
	Store Store
}

// NewService returns a Service on store.
func NewService(store Store) *Service {
	return &Service{Store: store}
}

// Login checks the credentials and returns the account.
func (s *Service) Login(ctx context.Context, username, password string) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Account{}, ErrInvalidCredentials
	}
	acc, err := s.Store.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if !CheckPassword(acc.Password, password) {
		return Account{}, ErrInvalidCredentials
	}
	return acc, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	if len(next) < MinPasswordLength {
		return ErrWeakPassword
	}
	acc, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CheckPassword(acc.Password, current) {
		return ErrInvalidCredentials
	}
	hashed, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.Store.UpdatePassword(ctx, id, hashed)
}

// Register creates an account with a hashed password.
func (s *Service) Register(ctx context.Context, username, password string, credits int, admin bool) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Account{}, fmt.Errorf("account: username is required")
	}
	if len(password) < MinPasswordLength {
		return Account{}, ErrWeakPassword
	}
	hashed, err := HashPassword(password)
	if err != nil {
		return Account{}, err
	}
	return s.Store.Create(ctx, Account{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  hashed,
		Credits:   credits,
		IsAdmin:   admin,
		CreatedAt: time.Now().UTC(),
	})
}

// EnsureAdmin seeds the default administrator when username is unknown.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string, credits int) (Account, bool, error) {
	acc, err := s.Store.GetByUsername(ctx, username)
	if err == nil {
		return acc, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, false, err
	}
	hashed, err := HashPassword(password)
	if err != nil {
		return Account{}, false, err
	}
	acc, err = s.Store.Create(ctx, Account{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  hashed,
		Credits:   credits,
		IsAdmin:   true,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Is(err, ErrExists) {
		acc, err = s.Store.GetByUsername(ctx, username)
		return acc, false, err
	}
	return acc, err == nil, err
}

// HashPassword bcrypt-hashes a password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("account: hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword compares a stored password, bcrypt or plaintext, with a candidate.
func CheckPassword(stored, candidate string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}
