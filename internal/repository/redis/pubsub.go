package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ridehall/busline/internal/domain"
)

// SchedulesPubSub fans schedule-changed events out to other instances so
// their caches drop stale seat maps without waiting for the TTL.
type SchedulesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewSchedulesPubSub(rdb *redis.Client) *SchedulesPubSub {
	return &SchedulesPubSub{
		rdb:     rdb,
		channel: ChannelSchedulesChanged(),
	}
}

type scheduleChangedMsg struct {
	Type       string `json:"type"`
	ScheduleID int64  `json:"schedule_id"`
	TsUnix     int64  `json:"ts_unix"`
}

func (p *SchedulesPubSub) PublishScheduleChanged(ctx context.Context, scheduleID int64) error {
	msg := scheduleChangedMsg{
		Type:       "schedule_changed",
		ScheduleID: scheduleID,
		TsUnix:     time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *SchedulesPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, scheduleID int64)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			if scheduleID, ok := decodeScheduleChanged(m.Payload); ok {
				handler(ctx, scheduleID)
			}
		}
	}
}

// decodeScheduleChanged extracts the schedule ID from a published event.
// Malformed payloads are dropped rather than crashing the subscriber loop.
func decodeScheduleChanged(payload string) (int64, bool) {
	var ev scheduleChangedMsg
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.ScheduleID == 0 {
		return 0, false
	}
	return ev.ScheduleID, true
}

// PositionsPubSub broadcasts driver-reported bus positions on a shared
// channel. Consumers live outside this service; delivery is at-most-once
// and unordered across schedules.
type PositionsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewPositionsPubSub(rdb *redis.Client) *PositionsPubSub {
	return &PositionsPubSub{
		rdb:     rdb,
		channel: ChannelBusPositions(),
	}
}

func (p *PositionsPubSub) PublishPosition(ctx context.Context, pos domain.BusPosition) error {
	b, _ := json.Marshal(pos)
	return p.rdb.Publish(ctx, p.channel, b).Err()
}
