package redis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeysShareNamespace(t *testing.T) {
	keys := []string{
		KeySchedule(7),
		KeyScheduleAvailability(7),
		KeyScheduleSeatMap(7),
		KeyBusPosition(7),
		KeyRateLimit(),
		ChannelSchedulesChanged(),
		ChannelBusPositions(),
	}

	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		assert.Truef(t, strings.HasPrefix(k, "busline:v1:"), "key %q escapes the namespace", k)
		assert.Falsef(t, seen[k], "key %q is not unique", k)
		seen[k] = true
	}
}

func TestScheduleKeysVaryByScheduleID(t *testing.T) {
	assert.NotEqual(t, KeySchedule(1), KeySchedule(2))
	assert.NotEqual(t, KeyScheduleSeatMap(1), KeyScheduleAvailability(1))
}
