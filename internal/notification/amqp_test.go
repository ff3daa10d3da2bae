package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridehall/busline/internal/domain"
)

type fakePublisher struct {
	published []amqp.Publishing
	err       error
}

func (f *fakePublisher) PublishWithContext(
	_ context.Context,
	_, _ string,
	_, _ bool,
	msg amqp.Publishing,
) error {
	if f.err != nil {
		return f.err
	}

	f.published = append(f.published, msg)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBookingConfirmed_PublishesPersistentJSON(t *testing.T) {
	pub := &fakePublisher{}
	d := &Dispatcher{ch: pub, log: discardLogger()}

	bookingID := uuid.New()
	d.BookingConfirmed(context.Background(), bookingID, 7, "rider-1", []int{3, 4})

	require.Len(t, pub.published, 1)
	msg := pub.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)

	var ev bookingConfirmedEvent
	require.NoError(t, json.Unmarshal(msg.Body, &ev))
	assert.Equal(t, "booking_confirmed", ev.Type)
	assert.Equal(t, bookingID, ev.BookingID)
	assert.Equal(t, int64(7), ev.ScheduleID)
	assert.Equal(t, []int{3, 4}, ev.SeatNos)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestHoldExpired_PublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	d := &Dispatcher{ch: pub, log: discardLogger()}

	holdID := uuid.New()
	d.HoldExpired(context.Background(), domain.ExpiredHold{
		HoldID:     holdID,
		ScheduleID: 9,
		HolderID:   "rider-2",
		SeatNos:    []int{12},
	})

	require.Len(t, pub.published, 1)

	var ev holdExpiredEvent
	require.NoError(t, json.Unmarshal(pub.published[0].Body, &ev))
	assert.Equal(t, "hold_expired", ev.Type)
	assert.Equal(t, holdID, ev.HoldID)
	assert.Equal(t, []int{12}, ev.SeatNos)
}

func TestPublish_FailureIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker gone")}
	d := &Dispatcher{ch: pub, log: discardLogger()}

	d.BookingConfirmed(context.Background(), uuid.New(), 1, "rider", []int{1})

	assert.Empty(t, pub.published)
}

func TestDisabledDispatcher_NoOps(t *testing.T) {
	d, err := NewDispatcher("", discardLogger())
	require.NoError(t, err)

	d.BookingConfirmed(context.Background(), uuid.New(), 1, "rider", []int{1})
	d.HoldExpired(context.Background(), domain.ExpiredHold{ScheduleID: 1})
	d.Close()
}
