package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// JobRunner is the part of the cron service the admin endpoints drive
type JobRunner interface {
	RunCompletionNow(ctx context.Context) (int, error)
	GetJobStatus() map[string]interface{}
}

// AdminHandler handles operator endpoints for background jobs
type AdminHandler struct {
	jobs   JobRunner
	logger *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(jobs JobRunner, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{jobs: jobs, logger: logger}
}

// CompleteBookings runs the booking completion job immediately
// POST /api/v1/admin/jobs/complete-bookings
func (h *AdminHandler) CompleteBookings(c *gin.Context) {
	completed, err := h.jobs.RunCompletionNow(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).WithField("completed", completed).Error("Manual booking completion failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "job_failed",
			"message":   "Some bookings could not be completed",
			"completed": completed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"completed": completed})
}

// GetJobStatus lists scheduled jobs with their next and previous runs
// GET /api/v1/admin/jobs
func (h *AdminHandler) GetJobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.GetJobStatus())
}
