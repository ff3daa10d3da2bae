package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ridehall/busline/internal/domain"
	"github.com/ridehall/busline/internal/repository"
)

type fakeRepo struct {
	passengers map[int64]*domain.Passenger
	emails     map[string]bool
	nextID     int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		passengers: make(map[int64]*domain.Passenger),
		emails:     make(map[string]bool),
	}
}

func (f *fakeRepo) CreatePassenger(_ context.Context, name, email, passwordHash string) (int64, error) {
	if f.emails[email] {
		return 0, repository.ErrConflict
	}

	f.nextID++
	f.emails[email] = true
	f.passengers[f.nextID] = &domain.Passenger{
		ID:           f.nextID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
	}

	return f.nextID, nil
}

func (f *fakeRepo) GetPassenger(_ context.Context, id int64) (*domain.Passenger, error) {
	p, ok := f.passengers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	cp := *p
	return &cp, nil
}

func TestRegister_HashesPassword(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)

	id, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct horse")
	require.NoError(t, err)

	stored := repo.passengers[id]
	require.NotNil(t, stored)
	assert.NotEqual(t, "correct horse", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := New(newFakeRepo())

	_, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct horse")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "Other", "ada@example.com", "battery staple")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_WeakPassword(t *testing.T) {
	svc := New(newFakeRepo())

	_, err := svc.Register(context.Background(), "Ada", "ada@example.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestGet_StripsHash(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)

	id, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct horse")
	require.NoError(t, err)

	p, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, p.PasswordHash)
	assert.Equal(t, "ada@example.com", p.Email)
}

func TestGet_NotFound(t *testing.T) {
	svc := New(newFakeRepo())

	_, err := svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrPassengerNotFound)
	assert.False(t, errors.Is(err, ErrEmailTaken))
}

func TestVerifyPassword(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)

	id, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct horse")
	require.NoError(t, err)

	assert.True(t, svc.VerifyPassword(context.Background(), id, "correct horse"))
	assert.False(t, svc.VerifyPassword(context.Background(), id, "wrong"))
	assert.False(t, svc.VerifyPassword(context.Background(), 999, "correct horse"))
}
