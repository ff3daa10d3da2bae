package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ridehall/busline/internal/domain"
	redisrepo "github.com/ridehall/busline/internal/repository/redis"
	"github.com/ridehall/busline/internal/service"
	"github.com/ridehall/busline/internal/service/accounts"
	"github.com/ridehall/busline/internal/service/bookings"
	"github.com/ridehall/busline/internal/service/catalog"
	"github.com/ridehall/busline/internal/service/query"
	"github.com/ridehall/busline/internal/service/reservation"
	"github.com/ridehall/busline/internal/service/tracking"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/schedules/:id", handleGetSchedule(svcs))
	r.GET("/schedules/:id/availability", handleGetAvailability(svcs))
	r.GET("/schedules/:id/seatmap", handleGetSeatMap(svcs))
	r.GET("/schedules/:id/position", handleGetPosition(svcs))

	r.POST("/schedules/:id/holds", handleCreateHold(svcs, idem))
	r.POST("/schedules/:id/position", handleReportPosition(svcs))

	r.GET("/holds/:id", handleGetHold(svcs))
	r.POST("/holds/confirm", handleConfirmHold(svcs))
	r.POST("/holds/:id/release", handleReleaseHold(svcs))

	r.POST("/payments/confirm", handlePaymentConfirm(svcs))

	r.GET("/bookings/:id", handleGetBooking(svcs))
	r.POST("/bookings/:id/cancel", handleCancelBooking(svcs))

	r.POST("/passengers", handleRegisterPassenger(svcs))
	r.GET("/passengers/:id", handleGetPassenger(svcs))

	// Admin-API
	// TODO: add admin middleware
	admin := r.Group("/admin")
	{
		admin.POST("/routes", handleCreateRoute(svcs))
		admin.GET("/routes/:id", handleGetRoute(svcs))
		admin.POST("/schedules", handleCreateSchedule(svcs))
		admin.POST("/schedules/:id/deactivate", handleDeactivateSchedule(svcs))
		admin.GET("/schedules/:id/ledger", handleGetLedger(svcs))
		admin.GET("/schedules/:id/audit", handleAuditSchedule(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get schedule
// @Param    id  path  int  true  "Schedule ID"
// @Success  200  {object}  domain.Schedule
// @Failure  404  {object}  ErrorResponse
// @Router   /schedules/{id} [get]
func handleGetSchedule(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheduleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		sch, err := svcs.Query.GetSchedule(c.Request.Context(), scheduleID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, sch, "public, max-age=60", true)
	}
}

// @Summary  Get seat availability counters
// @Param    id  path  int  true  "Schedule ID"
// @Success  200  {object}  domain.ScheduleCounts
// @Router   /schedules/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheduleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		cnt, err := svcs.Query.Availability(c.Request.Context(), scheduleID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, cnt, "public, max-age=15", true)
	}
}

// @Summary  Get seat map snapshot
// @Param    id  path  int  true  "Schedule ID"
// @Success  200  {array}   domain.SeatState
// @Router   /schedules/{id}/seatmap [get]
func handleGetSeatMap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheduleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		seats, err := svcs.Query.SeatMap(c.Request.Context(), scheduleID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, seats, "public, max-age=5", true)
	}
}

// @Summary  Create hold (idempotent)
// @Param    id  path  int  true  "Schedule ID"
// @Param    req body  CreateHoldRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateHoldResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seats unavailable / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /schedules/{id}/holds [post]
func handleCreateHold(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheduleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CreateHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemHold(scheduleID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		ttl := time.Duration(req.TTLSec) * time.Second
		rlKey := "ip:" + c.ClientIP()

		holdID, expiresAt, err := svcs.Reservation.CreateHold(
			c.Request.Context(),
			scheduleID,
			req.HolderID,
			req.SeatNos,
			ttl,
			rlKey,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := CreateHoldResponse{
			HoldID:    holdID.String(),
			ExpiresAt: expiresAt,
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Get hold
// @Param    id  path  string  true  "Hold ID (uuid)"
// @Success  200 {object} domain.Hold
// @Failure  404 {object} ErrorResponse "missing or expired"
// @Router   /holds/{id} [get]
func handleGetHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		hid, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid hold id")
			return
		}
		h, err := svcs.Query.GetHold(c.Request.Context(), hid)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, h)
	}
}

// @Summary  Confirm hold into a booking
// @Param    req body  ConfirmHoldRequest true "payload"
// @Success  201 {object} ConfirmHoldResponse
// @Failure  404 {object} ErrorResponse "hold missing or expired"
// @Router   /holds/confirm [post]
func handleConfirmHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConfirmHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		hid, err := uuid.Parse(req.HoldID)
		if err != nil {
			badRequest(c, "invalid hold_id")
			return
		}
		bookingID, scheduleID, err := svcs.Reservation.Confirm(
			c.Request.Context(),
			hid,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, ConfirmHoldResponse{
			BookingID:  bookingID.String(),
			ScheduleID: scheduleID,
		})
	}
}

// @Summary  Release hold
// @Param    id  path  string  true  "Hold ID (uuid)"
// @Success  204 "always, releasing is idempotent"
// @Router   /holds/{id}/release [post]
func handleReleaseHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		hid, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid hold id")
			return
		}
		if err := svcs.Reservation.Release(c.Request.Context(), hid); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Apply external payment result
// @Param    req body  PaymentConfirmRequest true "payload"
// @Success  201 {object} ConfirmHoldResponse "payment succeeded"
// @Success  204 "payment failed, hold released"
// @Router   /payments/confirm [post]
func handlePaymentConfirm(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentConfirmRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		hid, err := uuid.Parse(req.HoldID)
		if err != nil {
			badRequest(c, "invalid hold_id")
			return
		}

		if req.Status != "succeeded" {
			if err := svcs.Reservation.Release(c.Request.Context(), hid); err != nil {
				respondErr(c, err)
				return
			}
			c.Status(http.StatusNoContent)
			return
		}

		bookingID, scheduleID, err := svcs.Reservation.Confirm(
			c.Request.Context(),
			hid,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, ConfirmHoldResponse{
			BookingID:  bookingID.String(),
			ScheduleID: scheduleID,
		})
	}
}

// @Summary  Get booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.Booking
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bid, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid booking id")
			return
		}
		b, err := svcs.Bookings.Get(c.Request.Context(), bid)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Cancel booking (refund)
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} map[string]int64
// @Failure  409 {object} ErrorResponse "not refundable"
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bid, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid booking id")
			return
		}
		scheduleID, err := svcs.Reservation.CancelBooking(c.Request.Context(), bid)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"schedule_id": scheduleID})
	}
}

// @Summary  Register passenger
// @Param    req body  RegisterPassengerRequest true "payload"
// @Success  201 {object} RegisterPassengerResponse
// @Failure  409 {object} ErrorResponse "email taken"
// @Router   /passengers [post]
func handleRegisterPassenger(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterPassengerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		id, err := svcs.Accounts.Register(
			c.Request.Context(),
			req.Name,
			req.Email,
			req.Password,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, RegisterPassengerResponse{PassengerID: id})
	}
}

// @Summary  Get passenger
// @Param    id  path  int  true  "Passenger ID"
// @Success  200 {object} domain.Passenger
// @Router   /passengers/{id} [get]
func handleGetPassenger(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		p, err := svcs.Accounts.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// @Summary  Report bus position
// @Param    id  path  int  true  "Schedule ID"
// @Param    req body  ReportPositionRequest true "payload"
// @Success  202
// @Router   /schedules/{id}/position [post]
func handleReportPosition(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheduleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ReportPositionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		err := svcs.Tracking.ReportPosition(c.Request.Context(), domain.BusPosition{
			ScheduleID: scheduleID,
			Latitude:   req.Latitude,
			Longitude:  req.Longitude,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

// @Summary  Get last reported bus position
// @Param    id  path  int  true  "Schedule ID"
// @Success  200 {object} domain.BusPosition
// @Failure  404 {object} ErrorResponse "no recent position"
// @Router   /schedules/{id}/position [get]
func handleGetPosition(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheduleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		pos, err := svcs.Tracking.Latest(c.Request.Context(), scheduleID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, pos)
	}
}

// @Summary  Create route
// @Param    req body  CreateRouteRequest true "payload"
// @Success  201 {object} CreateRouteResponse
// @Router   /admin/routes [post]
func handleCreateRoute(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRouteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		id, err := svcs.Catalog.CreateRoute(
			c.Request.Context(),
			req.Origin,
			req.Destination,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateRouteResponse{RouteID: id})
	}
}

// @Summary  Get route
// @Param    id  path  int  true  "Route ID"
// @Success  200 {object} domain.Route
// @Router   /admin/routes/{id} [get]
func handleGetRoute(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		routeID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		rt, err := svcs.Query.GetRoute(c.Request.Context(), routeID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rt)
	}
}

// @Summary  Create schedule and init seat map
// @Param    req body  CreateScheduleRequest true "payload"
// @Success  201 {object} domain.Schedule
// @Router   /admin/schedules [post]
func handleCreateSchedule(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateScheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		departs, err := parseRFC3339(req.DepartsAt)
		if err != nil {
			badRequest(c, "invalid departs_at (RFC3339)")
			return
		}
		arrives, err := parseRFC3339(req.ArrivesAt)
		if err != nil {
			badRequest(c, "invalid arrives_at (RFC3339)")
			return
		}
		sch, err := svcs.Catalog.CreateSchedule(
			c.Request.Context(),
			req.RouteID,
			departs,
			arrives,
			req.TotalSeats,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, sch)
	}
}

// @Summary  Deactivate schedule
// @Param    id  path  int  true  "Schedule ID"
// @Success  204
// @Router   /admin/schedules/{id}/deactivate [post]
func handleDeactivateSchedule(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheduleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Catalog.DeactivateSchedule(c.Request.Context(), scheduleID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  List ledger entries
// @Param    id  path  int  true  "Schedule ID"
// @Success  200 {array} domain.LedgerEntry
// @Router   /admin/schedules/{id}/ledger [get]
func handleGetLedger(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheduleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		entries, err := svcs.Query.Ledger(c.Request.Context(), scheduleID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

// @Summary  Audit seat map against ledger replay
// @Param    id  path  int  true  "Schedule ID"
// @Success  200 {object} query.AuditResult
// @Router   /admin/schedules/{id}/audit [get]
func handleAuditSchedule(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheduleID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		res, err := svcs.Query.Audit(c.Request.Context(), scheduleID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var unavailable *reservation.SeatsUnavailableError
	if errors.As(err, &unavailable) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:            "seats unavailable",
			UnavailableSeats: unavailable.SeatNos,
		})
		return
	}

	var limited *reservation.RateLimitedError
	if errors.As(err, &limited) {
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
		return
	}

	switch {
	// reservation service
	case errors.Is(err, reservation.ErrScheduleNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "schedule not found"})
	case errors.Is(err, reservation.ErrScheduleInactive):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "schedule is not active"})
	case errors.Is(err, reservation.ErrHoldNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "hold not found"})
	case errors.Is(err, reservation.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
	case errors.Is(err, reservation.ErrBookingNotRefundable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking is not refundable"})
	// query service
	case errors.Is(err, query.ErrScheduleNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "schedule not found"})
	case errors.Is(err, query.ErrRouteNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "route not found"})
	case errors.Is(err, query.ErrHoldNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "hold not found"})
	// catalog service
	case errors.Is(err, catalog.ErrRouteNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "route does not exist"})
	case errors.Is(err, catalog.ErrScheduleNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "schedule not found"})
	case errors.Is(err, catalog.ErrScheduleConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "schedule conflict"})
	case errors.Is(err, catalog.ErrInvalidCapacity):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "total seats must be positive"})
	// bookings service
	case errors.Is(err, bookings.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
	// accounts service
	case errors.Is(err, accounts.ErrEmailTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "email already registered"})
	case errors.Is(err, accounts.ErrPassengerNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "passenger not found"})
	case errors.Is(err, accounts.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "password too short"})
	// tracking service
	case errors.Is(err, tracking.ErrNoPosition):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no recent position"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
