package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeScheduleChanged(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantID  int64
		wantOK  bool
	}{
		{
			name:    "valid event",
			payload: `{"type":"schedule_changed","schedule_id":42,"ts_unix":1756600000}`,
			wantID:  42,
			wantOK:  true,
		},
		{"missing schedule id", `{"type":"schedule_changed"}`, 0, false},
		{"malformed json", `{not json`, 0, false},
		{"empty payload", ``, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := decodeScheduleChanged(tt.payload)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
