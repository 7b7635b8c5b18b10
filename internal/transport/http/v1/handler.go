// Package v1 provides the admin HTTP handlers.
package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/reminder"
	"github.com/xiaot623/studybuddy/internal/repository"
	"github.com/xiaot623/studybuddy/internal/validate"
)

// Scheduler is the part of the reminder scheduler the API exposes.
type Scheduler interface {
	Status() reminder.Status
	TriggerScan(ctx context.Context) (reminder.ScanResult, error)
	SendTestReminder(ctx context.Context, ownerID, taskID string) error
}

// ConnectionStats reports live chat connections.
type ConnectionStats interface {
	ConnectionCount() int
	ParticipantCount() int
}

// Handler handles admin HTTP requests.
type Handler struct {
	store          repository.Store
	scheduler      Scheduler
	stats          ConnectionStats
	clock          clock.Clock
	maxTitleLength int
}

// NewHandler creates a new handler. stats may be nil.
func NewHandler(store repository.Store, scheduler Scheduler, stats ConnectionStats, c clock.Clock, maxTitleLength int) *Handler {
	if c == nil {
		c = clock.New(nil)
	}
	if maxTitleLength <= 0 {
		maxTitleLength = validate.DefaultMaxTitleLength
	}
	return &Handler{
		store:          store,
		scheduler:      scheduler,
		stats:          stats,
		clock:          c,
		maxTitleLength: maxTitleLength,
	}
}

// RegisterRoutes registers admin routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	// Reminder API
	e.GET("/v1/reminders/status", h.ReminderStatus)
	e.POST("/v1/reminders/scan", h.TriggerScan)

	// Task API
	e.GET("/v1/users/:user_id/tasks", h.ListTasks)
	e.PATCH("/v1/users/:user_id/tasks/:task_id", h.UpdateTask)
	e.POST("/v1/users/:user_id/tasks/:task_id/remind", h.RemindTask)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	resp := map[string]interface{}{
		"status": "healthy",
	}
	if h.stats != nil {
		resp["connections"] = h.stats.ConnectionCount()
		resp["participants"] = h.stats.ParticipantCount()
	}
	return c.JSON(http.StatusOK, resp)
}
