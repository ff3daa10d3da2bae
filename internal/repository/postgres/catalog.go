package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ridehall/busline/internal/repository"
)

type CatalogRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CatalogRepo) With(db DB) *CatalogRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CatalogRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *CatalogRepo) CreateRoute(
	ctx context.Context,
	origin, destination string,
) (int64, error) {
	const op = "postgres.CatalogRepo.CreateRoute"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO routes(origin, destination)
		 VALUES ($1, $2)
		 RETURNING id`,
		origin, destination,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *CatalogRepo) CreateSchedule(
	ctx context.Context,
	routeID int64,
	departs, arrives time.Time,
	totalSeats int,
) (int64, error) {
	const op = "postgres.CatalogRepo.CreateSchedule"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO schedules(route_id, departs_at, arrives_at, total_seats)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		routeID, departs, arrives, totalSeats,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// InitScheduleSeats materializes the seat map: one free row per seat
// number 1..totalSeats.
func (r *CatalogRepo) InitScheduleSeats(
	ctx context.Context,
	scheduleID int64,
	totalSeats int,
) (int64, error) {
	const op = "postgres.CatalogRepo.InitScheduleSeats"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`INSERT INTO schedule_seats(schedule_id, seat_no, status)
		 SELECT $1, gs, 'free'
		 FROM generate_series(1, $2::int) AS gs
		 ON CONFLICT DO NOTHING`,
		scheduleID, totalSeats,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *CatalogRepo) DeactivateSchedule(ctx context.Context, scheduleID int64) error {
	const op = "postgres.CatalogRepo.DeactivateSchedule"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE schedules SET active = false WHERE id = $1`,
		scheduleID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
