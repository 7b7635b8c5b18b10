package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/domain"
	"github.com/xiaot623/studybuddy/internal/gateway"
	"github.com/xiaot623/studybuddy/internal/reminder"
	"github.com/xiaot623/studybuddy/internal/repository"
	"github.com/xiaot623/studybuddy/tests/helpers"
)

var now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type stubNotifier struct {
	err  error
	sent []string
}

func (n *stubNotifier) Send(_ context.Context, recipient, _ string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, recipient)
	return nil
}

type stubScheduler struct {
	*reminder.Scheduler
	scanErr error
}

func (s stubScheduler) TriggerScan(ctx context.Context) (reminder.ScanResult, error) {
	if s.scanErr != nil {
		return reminder.ScanResult{}, s.scanErr
	}
	return s.Scheduler.TriggerScan(ctx)
}

func newTestHandler(t *testing.T, notifier *stubNotifier) (*Handler, repository.Store, *reminder.Scheduler) {
	t.Helper()
	c := clock.NewFake(now)
	db := helpers.NewTestSQLiteStore(t, repository.WithClock(c))
	sched, err := reminder.New(db, notifier, c, reminder.Options{})
	require.NoError(t, err)
	return NewHandler(db, sched, nil, c, 0), db, sched
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func seedTask(t *testing.T, db repository.Store, owner string, due time.Time) string {
	t.Helper()
	id, err := db.CreateTask(context.Background(), owner, domain.TaskKindAssignment, "Essay", due)
	require.NoError(t, err)
	return id
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(t, &stubNotifier{})
	c, rec := newContext(http.MethodGet, "/health", "")

	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestReminderStatus(t *testing.T) {
	h, _, sched := newTestHandler(t, &stubNotifier{})

	c, rec := newContext(http.MethodGet, "/v1/reminders/status", "")
	require.NoError(t, h.ReminderStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["is_running"])
	assert.Equal(t, float64(60), resp["interval_minutes"])
	assert.Nil(t, resp["next_run"])

	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(sched.Stop)

	c, rec = newContext(http.MethodGet, "/v1/reminders/status", "")
	require.NoError(t, h.ReminderStatus(c))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["is_running"])
	assert.Equal(t, float64(now.Add(time.Hour).UnixMilli()), resp["next_run"])
}

func TestTriggerScan(t *testing.T) {
	notifier := &stubNotifier{}
	h, db, _ := newTestHandler(t, notifier)
	seedTask(t, db, "42", now.Add(24*time.Hour+30*time.Minute))

	c, rec := newContext(http.MethodPost, "/v1/reminders/scan", "")
	require.NoError(t, h.TriggerScan(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var res reminder.ScanResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, reminder.ScanResult{Found: 1, Sent: 1}, res)
	assert.Equal(t, []string{"42"}, notifier.sent)
}

func TestTriggerScanConflict(t *testing.T) {
	_, db, sched := newTestHandler(t, &stubNotifier{})
	h := NewHandler(db, stubScheduler{Scheduler: sched, scanErr: reminder.ErrScanInProgress}, nil, nil, 0)

	c, rec := newContext(http.MethodPost, "/v1/reminders/scan", "")
	require.NoError(t, h.TriggerScan(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListTasks(t *testing.T) {
	h, db, _ := newTestHandler(t, &stubNotifier{})
	seedTask(t, db, "42", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	seedTask(t, db, "7", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	c, rec := newContext(http.MethodGet, "/v1/users/42/tasks", "")
	c.SetParamNames("user_id")
	c.SetParamValues("42")
	require.NoError(t, h.ListTasks(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tasks []TaskView `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "2025-06-10", resp.Tasks[0].DueDate)

	c, rec = newContext(http.MethodGet, "/v1/users/42/tasks?include_past=maybe", "")
	c.SetParamNames("user_id")
	c.SetParamValues("42")
	require.NoError(t, h.ListTasks(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateTask(t *testing.T) {
	h, db, _ := newTestHandler(t, &stubNotifier{})
	id := seedTask(t, db, "42", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	_, err := db.MarkTaskNotified(context.Background(), id, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	c, rec := newContext(http.MethodPatch, "/", `{"title":"  Final   Essay ","due_date":"20-06-2025","kind":"exam"}`)
	c.SetParamNames("user_id", "task_id")
	c.SetParamValues("42", id)
	require.NoError(t, h.UpdateTask(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view TaskView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "Final Essay", view.Title)
	assert.Equal(t, "2025-06-20", view.DueDate)
	assert.Equal(t, "exam", view.Kind)
	assert.False(t, view.Notified)
}

func TestUpdateTaskValidationAndOwnership(t *testing.T) {
	h, db, _ := newTestHandler(t, &stubNotifier{})
	id := seedTask(t, db, "42", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	cases := []struct {
		user string
		body string
		code int
	}{
		{"42", `{"due_date":"2025-06-20"}`, http.StatusBadRequest},
		{"42", `{"title":"ab"}`, http.StatusBadRequest},
		{"42", `{}`, http.StatusBadRequest},
		{"7", `{"title":"Stolen essay"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		c, rec := newContext(http.MethodPatch, "/", tc.body)
		c.SetParamNames("user_id", "task_id")
		c.SetParamValues(tc.user, id)
		require.NoError(t, h.UpdateTask(c))
		assert.Equal(t, tc.code, rec.Code, tc.body)
	}

	task, err := db.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Essay", task.Title)
}

func TestRemindTask(t *testing.T) {
	notifier := &stubNotifier{}
	h, db, _ := newTestHandler(t, notifier)
	id := seedTask(t, db, "42", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	c, rec := newContext(http.MethodPost, "/", "")
	c.SetParamNames("user_id", "task_id")
	c.SetParamValues("7", id)
	require.NoError(t, h.RemindTask(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newContext(http.MethodPost, "/", "")
	c.SetParamNames("user_id", "task_id")
	c.SetParamValues("42", id)
	require.NoError(t, h.RemindTask(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"42"}, notifier.sent)

	notifier.err = gateway.ErrNotConnected
	c, rec = newContext(http.MethodPost, "/", "")
	c.SetParamNames("user_id", "task_id")
	c.SetParamValues("42", id)
	require.NoError(t, h.RemindTask(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
