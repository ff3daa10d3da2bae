package httpgin

import "time"

type CreateHoldRequest struct {
	HolderID string `json:"holder_id" binding:"required"`
	SeatNos  []int  `json:"seat_nos" binding:"required,min=1,unique,dive,gt=0"`
	TTLSec   int    `json:"ttl_sec"`
}

type ConfirmHoldRequest struct {
	HoldID string `json:"hold_id" binding:"required,uuid"`
}

type PaymentConfirmRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
	HoldID    string `json:"hold_id" binding:"required,uuid"`
	Status    string `json:"status" binding:"required"`
}

type CreateRouteRequest struct {
	Origin      string `json:"origin" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

type CreateScheduleRequest struct {
	RouteID    int64  `json:"route_id" binding:"required"`
	DepartsAt  string `json:"departs_at" binding:"required"`
	ArrivesAt  string `json:"arrives_at" binding:"required"`
	TotalSeats int    `json:"total_seats" binding:"required,gt=0"`
}

type RegisterPassengerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ReportPositionRequest struct {
	Latitude  float64 `json:"lat" binding:"required"`
	Longitude float64 `json:"lng" binding:"required"`
}

type ErrorResponse struct {
	Error            string `json:"error"`
	UnavailableSeats []int  `json:"unavailable_seats,omitempty"`
}

type CreateHoldResponse struct {
	HoldID    string    `json:"hold_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ConfirmHoldResponse struct {
	BookingID  string `json:"booking_id"`
	ScheduleID int64  `json:"schedule_id"`
}

type CreateRouteResponse struct {
	RouteID int64 `json:"route_id"`
}

type RegisterPassengerResponse struct {
	PassengerID int64 `json:"passenger_id"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
