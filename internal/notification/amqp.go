package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/google/uuid"

	"github.com/ridehall/busline/internal/domain"
)

const queueName = "busline.notifications"

// publisher is the slice of *amqp.Channel the dispatcher uses.
type publisher interface {
	PublishWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) error
}

// Dispatcher pushes booking and hold events onto a durable queue for the
// downstream mailer. Delivery is fire-and-forget: a publish failure is
// logged and dropped, it never rolls back the booking that caused it.
type Dispatcher struct {
	conn *amqp.Connection
	ch   publisher
	log  *slog.Logger
}

// NewDispatcher connects to the broker and declares the queue. An empty URL
// disables dispatch entirely; every event becomes a no-op.
func NewDispatcher(url string, log *slog.Logger) (*Dispatcher, error) {
	const op = "notification.NewDispatcher"

	if url == "" {
		log.Info("notifications disabled, no AMQP URL configured")
		return &Dispatcher{log: log}, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Dispatcher{
		conn: conn,
		ch:   ch,
		log:  log,
	}, nil
}

func (d *Dispatcher) Close() {
	if d.conn == nil {
		return
	}

	_ = d.conn.Close()
}

type bookingConfirmedEvent struct {
	Type       string    `json:"type"`
	BookingID  uuid.UUID `json:"booking_id"`
	ScheduleID int64     `json:"schedule_id"`
	HolderID   string    `json:"holder_id"`
	SeatNos    []int     `json:"seat_nos"`
	OccurredAt time.Time `json:"occurred_at"`
}

type holdExpiredEvent struct {
	Type       string    `json:"type"`
	HoldID     uuid.UUID `json:"hold_id"`
	ScheduleID int64     `json:"schedule_id"`
	HolderID   string    `json:"holder_id"`
	SeatNos    []int     `json:"seat_nos"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (d *Dispatcher) BookingConfirmed(
	ctx context.Context,
	bookingID uuid.UUID,
	scheduleID int64,
	holderID string,
	seatNos []int,
) {
	d.publish(ctx, bookingConfirmedEvent{
		Type:       "booking_confirmed",
		BookingID:  bookingID,
		ScheduleID: scheduleID,
		HolderID:   holderID,
		SeatNos:    seatNos,
		OccurredAt: time.Now().UTC(),
	})
}

func (d *Dispatcher) HoldExpired(ctx context.Context, expired domain.ExpiredHold) {
	d.publish(ctx, holdExpiredEvent{
		Type:       "hold_expired",
		HoldID:     expired.HoldID,
		ScheduleID: expired.ScheduleID,
		HolderID:   expired.HolderID,
		SeatNos:    expired.SeatNos,
		OccurredAt: time.Now().UTC(),
	})
}

func (d *Dispatcher) publish(ctx context.Context, event any) {
	if d.ch == nil {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		d.log.Error("failed to encode notification", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = d.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		d.log.Error("failed to publish notification", "error", err)
	}
}
