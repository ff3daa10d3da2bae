package service

import (
	postgres "github.com/ridehall/busline/internal/repository/postgres"
	redis "github.com/ridehall/busline/internal/repository/redis"
	"github.com/ridehall/busline/internal/service/accounts"
	"github.com/ridehall/busline/internal/service/bookings"
	"github.com/ridehall/busline/internal/service/catalog"
	"github.com/ridehall/busline/internal/service/query"
	"github.com/ridehall/busline/internal/service/reservation"
	"github.com/ridehall/busline/internal/service/tracking"
)

type Services struct {
	Reservation *reservation.Service
	Query       *query.Service
	Catalog     *catalog.Service
	Bookings    *bookings.Service
	Accounts    *accounts.Service
	Tracking    *tracking.Service
}

type Config struct {
	Reservation reservation.Config
	Query       query.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redis.SchedulesPubSub,
	positions *redis.PositionsPubSub,
	limiter *redis.SlidingWindowLimiter,
	notifier reservation.Notifier,
	cfg Config,
) *Services {
	return &Services{
		Reservation: reservation.New(store, cache, pubsub, limiter, notifier, cfg.Reservation),
		Query:       query.New(store, cache, cfg.Query),
		Catalog:     catalog.New(store, cache, pubsub),
		Bookings:    bookings.New(store),
		Accounts:    accounts.New(store.Accounts()),
		Tracking:    tracking.New(cache, positions),
	}
}
