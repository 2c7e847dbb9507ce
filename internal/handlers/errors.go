package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/lock"
	"github.com/smarttransit/seat-reservation/internal/models"
)

// respondError maps engine errors onto HTTP responses
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	if ve, ok := models.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"field":   ve.Field,
			"message": ve.Message,
		})
		return
	}

	if sc, ok := models.AsSeatConflict(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":             "seat_conflict",
			"message":           "One or more seats are already booked",
			"conflicting_seats": sc.ConflictingSeats,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.Is(err, models.ErrNotEditable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not_editable", "message": err.Error()})
	case errors.Is(err, models.ErrNotEligible):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not_eligible", "message": err.Error()})
	case errors.Is(err, models.ErrDuplicateID):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_id", "message": err.Error()})
	case errors.Is(err, lock.ErrNotAcquired):
		logger.WithError(err).Warn("Seat inventory busy")
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "busy",
			"message": "The seat inventory is busy, please retry",
		})
	default:
		_ = c.Error(err)
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An internal error occurred",
		})
	}
}

// respondBindError reports a malformed JSON body
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": err.Error(),
	})
}
