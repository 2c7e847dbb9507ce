package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/services"
)

// BookingHandler handles booking and seat availability API endpoints
type BookingHandler struct {
	coordinator *services.ReservationCoordinator
	inventory   *services.InventoryService
	logger      *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	coordinator *services.ReservationCoordinator,
	inventory *services.InventoryService,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		coordinator: coordinator,
		inventory:   inventory,
		logger:      logger,
	}
}

// ===========================================================================
// BOOKINGS
// ===========================================================================

// CreateBooking reserves seats for a passenger
// POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.coordinator.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// GetBooking returns a single booking
// GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	booking, err := h.inventory.GetBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// EditBooking applies a partial update to a booking
// PUT /api/v1/bookings/:id
func (h *BookingHandler) EditBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req models.EditBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.coordinator.EditBooking(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CancelBooking cancels a booking. Repeating the call is harmless.
// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	booking, err := h.coordinator.CancelBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// RefundBooking refunds and cancels a paid booking
// POST /api/v1/bookings/:id/refund
func (h *BookingHandler) RefundBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	booking, err := h.coordinator.RefundBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ===========================================================================
// AVAILABILITY & REPORTS
// ===========================================================================

// GetAvailability returns the seat map of a bus on a travel date
// GET /api/v1/availability?bus_id=&travel_date=&exclude_booking_id=
func (h *BookingHandler) GetAvailability(c *gin.Context) {
	date, ok := travelDateQuery(c, "travel_date", true)
	if !ok {
		return
	}

	var exclude *uuid.UUID
	if raw := c.Query("exclude_booking_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, h.logger, models.NewValidationError("exclude_booking_id", "must be a UUID"))
			return
		}
		exclude = &id
	}

	availability, err := h.coordinator.QueryAvailability(c.Request.Context(), c.Query("bus_id"), *date, exclude)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}

// GetBookingReport lists bookings for the admin export
// GET /api/v1/reports/bookings
func (h *BookingHandler) GetBookingReport(c *gin.Context) {
	var filter models.BookingFilter

	date, ok := travelDateQuery(c, "travel_date", false)
	if !ok {
		return
	}
	filter.TravelDate = date

	if v := c.Query("route_id"); v != "" {
		filter.RouteID = &v
	}
	if v := c.Query("bus_id"); v != "" {
		filter.BusID = &v
	}
	if v := c.Query("status"); v != "" {
		status := models.BookingStatus(v)
		filter.Status = &status
	}
	if v := c.Query("payment_status"); v != "" {
		payment := models.PaymentStatus(v)
		filter.PaymentStatus = &payment
	}
	if v := c.Query("booking_ids"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				respondError(c, h.logger, models.NewValidationError("booking_ids", "%q is not a UUID", raw))
				return
			}
			filter.BookingIDs = append(filter.BookingIDs, id)
		}
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			respondError(c, h.logger, models.NewValidationError("limit", "must be an integer"))
			return
		}
		filter.Limit = limit
	}

	report, err := h.inventory.Report(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ===========================================================================
// HELPERS
// ===========================================================================

func bookingIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"field":   "id",
			"message": "Booking ID must be a UUID",
		})
		return uuid.Nil, false
	}
	return id, true
}

// travelDateQuery parses a YYYY-MM-DD query parameter. A missing optional value yields nil.
func travelDateQuery(c *gin.Context, name string, required bool) (*models.TravelDate, bool) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"field":   name,
				"message": "is required",
			})
			return nil, false
		}
		return nil, true
	}

	date, err := models.ParseTravelDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"field":   name,
			"message": "must be a date in YYYY-MM-DD format",
		})
		return nil, false
	}
	return &date, true
}
