package httpgin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridehall/busline/internal/service/accounts"
	"github.com/ridehall/busline/internal/service/bookings"
	"github.com/ridehall/busline/internal/service/catalog"
	"github.com/ridehall/busline/internal/service/query"
	"github.com/ridehall/busline/internal/service/reservation"
	"github.com/ridehall/busline/internal/service/tracking"
)

func doRespond(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondErr(c, err)
	return w
}

func TestRespondErr_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"schedule not found", reservation.ErrScheduleNotFound, http.StatusNotFound},
		{"schedule inactive", reservation.ErrScheduleInactive, http.StatusConflict},
		{"hold not found", reservation.ErrHoldNotFound, http.StatusNotFound},
		{"booking not refundable", reservation.ErrBookingNotRefundable, http.StatusConflict},
		{"query schedule not found", query.ErrScheduleNotFound, http.StatusNotFound},
		{"route missing", catalog.ErrRouteNotFound, http.StatusNotFound},
		{"invalid capacity", catalog.ErrInvalidCapacity, http.StatusBadRequest},
		{"booking not found", bookings.ErrBookingNotFound, http.StatusNotFound},
		{"email taken", accounts.ErrEmailTaken, http.StatusConflict},
		{"no position", tracking.ErrNoPosition, http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRespond(fmt.Errorf("svc.Op:%w", tt.err))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRespondErr_SeatsUnavailableListsSeats(t *testing.T) {
	err := fmt.Errorf("svc.Op:%w", &reservation.SeatsUnavailableError{SeatNos: []int{2, 7}})

	w := doRespond(err)
	require.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int{2, 7}, resp.UnavailableSeats)
}

func TestRespondErr_RateLimitedSetsRetryAfter(t *testing.T) {
	err := fmt.Errorf("svc.Op:%w", &reservation.RateLimitedError{RetryAfter: "30s"})

	w := doRespond(err)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
