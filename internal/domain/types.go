package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatFree   SeatStatus = "free"
	SeatHeld   SeatStatus = "held"
	SeatBooked SeatStatus = "booked"
)

// PaymentStatus tracks a booking through payment. Bookings only exist once
// payment succeeded, so paid is the initial state.
type PaymentStatus string

const (
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Route struct {
	ID          int64
	Origin      string
	Destination string
	Active      bool
}

type Schedule struct {
	ID         int64
	RouteID    int64
	DepartsAt  time.Time
	ArrivesAt  time.Time
	TotalSeats int
	Active     bool
}

// SeatState is one entry of a schedule's seat map snapshot.
type SeatState struct {
	SeatNo int
	Status SeatStatus
}

type ScheduleCounts struct {
	Free   int64
	Held   int64
	Booked int64
	Total  int64
}

type Hold struct {
	ID         uuid.UUID
	ScheduleID int64
	HolderID   string
	SeatNos    []int
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

type Booking struct {
	ID            uuid.UUID
	ScheduleID    int64
	HolderID      string
	SeatNos       []int
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
}

// ExpiredHold is what the sweeper reports for each hold it reclaimed.
type ExpiredHold struct {
	HoldID     uuid.UUID
	ScheduleID int64
	HolderID   string
	SeatNos    []int
}

type Passenger struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// BusPosition is the driver-reported location for one schedule,
// broadcast to subscribed clients. Rendering is an external concern.
type BusPosition struct {
	ScheduleID int64     `json:"schedule_id"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lng"`
	ReportedAt time.Time `json:"reported_at"`
}
