package accounts

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ridehall/busline/internal/domain"
	"github.com/ridehall/busline/internal/repository"
)

const minPasswordLen = 8

// Repo is the persistence surface the service needs.
type Repo interface {
	CreatePassenger(ctx context.Context, name, email, passwordHash string) (int64, error)
	GetPassenger(ctx context.Context, id int64) (*domain.Passenger, error)
}

type Service struct {
	repo Repo
}

func New(repo Repo) *Service {
	return &Service{repo: repo}
}

// Register creates a passenger account, hashing the password with bcrypt.
//
// Returns accounts.ErrEmailTaken when the email is already registered and
// accounts.ErrWeakPassword for passwords under 8 characters.
func (s *Service) Register(ctx context.Context, name, email, password string) (int64, error) {
	const op = "service.accounts.Register"

	if len(password) < minPasswordLen {
		return 0, fmt.Errorf("%s:%w", op, ErrWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	id, err := s.repo.CreatePassenger(ctx, name, email, string(hash))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%s:%w", op, ErrEmailTaken)
		}

		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

// Get returns a passenger profile. The password hash never leaves this layer.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Passenger, error) {
	const op = "service.accounts.Get"

	p, err := s.repo.GetPassenger(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrPassengerNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	p.PasswordHash = ""

	return p, nil
}

// VerifyPassword checks a candidate password against a passenger's stored
// hash. It reports a bare boolean so callers cannot distinguish a missing
// account from a wrong password.
func (s *Service) VerifyPassword(ctx context.Context, id int64, password string) bool {
	p, err := s.repo.GetPassenger(ctx, id)
	if err != nil {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) == nil
}
