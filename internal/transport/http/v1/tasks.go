package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/domain"
	"github.com/xiaot623/studybuddy/internal/gateway"
	"github.com/xiaot623/studybuddy/internal/reminder"
	"github.com/xiaot623/studybuddy/internal/validate"
)

// TaskView is the API representation of a task.
type TaskView struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	DueDate   string `json:"due_date"`
	Notified  bool   `json:"notified"`
	CreatedAt int64  `json:"created_at"`
}

func toView(t domain.Task) TaskView {
	return TaskView{
		ID:        t.ID,
		OwnerID:   t.OwnerID,
		Kind:      string(t.Kind),
		Title:     t.Title,
		DueDate:   t.DueDate.Format("2006-01-02"),
		Notified:  t.Notified,
		CreatedAt: t.CreatedAt.UnixMilli(),
	}
}

// TaskUpdateRequest is the request to edit a task. Omitted fields are kept.
// DueDate uses the same day-first formats as the chat.
type TaskUpdateRequest struct {
	Kind    *string `json:"kind,omitempty"`
	Title   *string `json:"title,omitempty"`
	DueDate *string `json:"due_date,omitempty"`
}

// ListTasks lists a user's tasks.
// GET /v1/users/:user_id/tasks?include_past=true
func (h *Handler) ListTasks(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("user_id")

	includePast := false
	if raw := c.QueryParam("include_past"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "include_past must be a boolean"})
		}
		includePast = v
	}

	tasks, err := h.store.ListTasksForOwner(ctx, userID, includePast)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	views := make([]TaskView, len(tasks))
	for i, t := range tasks {
		views[i] = toView(t)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tasks": views,
	})
}

// UpdateTask edits a task owned by the user.
// PATCH /v1/users/:user_id/tasks/:task_id
func (h *Handler) UpdateTask(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("user_id")
	taskID := c.Param("task_id")

	var req TaskUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	var update domain.TaskUpdate
	if req.Kind != nil {
		kind, err := validate.ParseKind(*req.Kind)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": validate.Reason(err)})
		}
		update.Kind = &kind
	}
	if req.Title != nil {
		title, err := validate.NormalizeTitle(*req.Title, h.maxTitleLength)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": validate.Reason(err)})
		}
		update.Title = &title
	}
	if req.DueDate != nil {
		due, err := validate.ParseDueDate(*req.DueDate, clock.Today(h.clock.Now()))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": validate.Reason(err)})
		}
		update.DueDate = &due
	}
	if update.Empty() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "no fields to update"})
	}

	task, err := h.store.GetTask(ctx, taskID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if task == nil || task.OwnerID != userID {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
	}

	ok, err := h.store.UpdateTask(ctx, taskID, update)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
	}

	task, err = h.store.GetTask(ctx, taskID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if task == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
	}
	return c.JSON(http.StatusOK, toView(*task))
}

// RemindTask sends the task's reminder now without marking it.
// POST /v1/users/:user_id/tasks/:task_id/remind
func (h *Handler) RemindTask(c echo.Context) error {
	err := h.scheduler.SendTestReminder(c.Request().Context(), c.Param("user_id"), c.Param("task_id"))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	case errors.Is(err, reminder.ErrTaskNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
	case errors.Is(err, gateway.ErrNotConnected):
		return c.JSON(http.StatusConflict, map[string]string{"error": "user not connected"})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
