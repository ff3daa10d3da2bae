package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ridehall/busline/internal/domain"
)

type AccountRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AccountRepo) With(db DB) *AccountRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AccountRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// CreatePassenger persists a passenger record. The password must already be
// hashed by the caller.
//
// Returns repository.ErrConflict when the email is taken.
func (r *AccountRepo) CreatePassenger(
	ctx context.Context,
	name, email, passwordHash string,
) (int64, error) {
	const op = "postgres.AccountRepo.CreatePassenger"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO passengers(name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		name, email, passwordHash,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *AccountRepo) GetPassenger(ctx context.Context, id int64) (*domain.Passenger, error) {
	const op = "postgres.AccountRepo.GetPassenger"

	db := r.handle()

	var p domain.Passenger
	err := db.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM passengers WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}
