package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/studybuddy/internal/reminder"
)

// ReminderStatus reports the scheduler state.
// GET /v1/reminders/status
func (h *Handler) ReminderStatus(c echo.Context) error {
	st := h.scheduler.Status()

	resp := map[string]interface{}{
		"is_running":       st.Running,
		"interval_minutes": int(st.Interval.Minutes()),
		"next_run":         nil,
		"scans_run":        st.ScansRun,
		"ticks_skipped":    st.TicksSkipped,
		"last_scan":        st.LastScan,
	}
	if st.NextRun != nil {
		resp["next_run"] = st.NextRun.UnixMilli()
	}
	if st.LastScanAt != nil {
		resp["last_scan_at"] = st.LastScanAt.UnixMilli()
	}
	return c.JSON(http.StatusOK, resp)
}

// TriggerScan runs a reminder scan now.
// POST /v1/reminders/scan
func (h *Handler) TriggerScan(c echo.Context) error {
	res, err := h.scheduler.TriggerScan(c.Request().Context())
	if errors.Is(err, reminder.ErrScanInProgress) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}
