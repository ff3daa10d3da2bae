package redis

import "fmt"

const ns = "busline:v1"

func KeySchedule(scheduleID int64) string {
	return fmt.Sprintf("%s:schedule:%d", ns, scheduleID)
}

func KeyScheduleAvailability(scheduleID int64) string {
	return fmt.Sprintf("%s:schedule:%d:availability", ns, scheduleID)
}

func KeyScheduleSeatMap(scheduleID int64) string {
	return fmt.Sprintf("%s:schedule:%d:seatmap", ns, scheduleID)
}

func KeyBusPosition(scheduleID int64) string {
	return fmt.Sprintf("%s:schedule:%d:position", ns, scheduleID)
}

func KeyRateLimit() string {
	return ns + ":rl"
}

func ChannelSchedulesChanged() string {
	return ns + ":schedules:changed"
}

func ChannelBusPositions() string {
	return ns + ":positions"
}
