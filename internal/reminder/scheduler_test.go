package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/domain"
	"github.com/xiaot623/studybuddy/internal/repository"
	"github.com/xiaot623/studybuddy/tests/helpers"
)

var now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu     sync.Mutex
	sent   map[string]int
	failTo map[string]bool
	// gate, when set, blocks every Send until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: map[string]int{}, failTo: map[string]bool{}, entered: make(chan struct{}, 16)}
}

func (n *fakeNotifier) Send(ctx context.Context, recipient, text string) error {
	n.entered <- struct{}{}
	if n.gate != nil {
		<-n.gate
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failTo[recipient] {
		return errors.New("recipient offline")
	}
	n.sent[recipient]++
	return nil
}

func (n *fakeNotifier) count(recipient string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[recipient]
}

type countingStore struct {
	repository.Store
	mu    sync.Mutex
	marks map[string]int
}

func (s *countingStore) MarkTaskNotified(ctx context.Context, id string, due time.Time) (bool, error) {
	s.mu.Lock()
	s.marks[id]++
	s.mu.Unlock()
	return s.Store.MarkTaskNotified(ctx, id, due)
}

func setup(t *testing.T) (*countingStore, *clock.Fake) {
	t.Helper()
	c := clock.NewFake(now)
	base := helpers.NewTestSQLiteStore(t, repository.WithClock(c))
	return &countingStore{Store: base, marks: map[string]int{}}, c
}

func seed(t *testing.T, store repository.Store, owner string, due time.Time) string {
	t.Helper()
	id, err := store.CreateTask(context.Background(), owner, domain.TaskKindAssignment, "Essay for "+owner, due)
	require.NoError(t, err)
	return id
}

// waitIdle waits until the startup scan has run and released the scan lock.
func waitIdle(t *testing.T, s *Scheduler, scans uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		if s.Status().ScansRun < scans || !s.scanMu.TryLock() {
			return false
		}
		s.scanMu.Unlock()
		return true
	}, time.Second, 5*time.Millisecond)
}

func TestNewValidatesInterval(t *testing.T) {
	store, c := setup(t)

	_, err := New(store, newFakeNotifier(), c, Options{Interval: 30 * time.Second})
	assert.ErrorIs(t, err, ErrIntervalTooShort)

	_, err = New(store, newFakeNotifier(), c, Options{Interval: 2 * time.Hour})
	assert.ErrorIs(t, err, ErrIntervalExceedsWindow)

	s, err := New(store, newFakeNotifier(), c, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, s.Status().Interval)
}

func TestWindowRoundsOutwardToDays(t *testing.T) {
	start, end := Window(now)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), end)

	// Window edge exactly at midnight stays exclusive.
	start, end = Window(time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), end)
}

func TestWindowEligibilityEndsWhenDueDayStarts(t *testing.T) {
	due := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	inWindow := func(at time.Time) bool {
		start, end := Window(at)
		return !due.Before(start) && due.Before(end)
	}

	assert.False(t, inWindow(due.Add(-25*time.Hour)))
	assert.True(t, inWindow(due.Add(-25*time.Hour+time.Second)))
	assert.True(t, inWindow(due.Add(-time.Second)))
	assert.False(t, inWindow(due))
}

func TestScanNotifiesTasksEnteringWindow(t *testing.T) {
	store, c := setup(t)
	notifier := newFakeNotifier()
	s, err := New(store, notifier, c, Options{})
	require.NoError(t, err)

	due := now.Add(24*time.Hour + 30*time.Minute)
	a := seed(t, store, "a", due)
	b := seed(t, store, "b", due)
	seed(t, store, "c", now.AddDate(0, 0, 5))

	res, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Found: 2, Sent: 2}, res)
	assert.Equal(t, 1, notifier.count("a"))
	assert.Equal(t, 1, notifier.count("b"))
	assert.Equal(t, 0, notifier.count("c"))

	for _, id := range []string{a, b} {
		task, err := store.GetTask(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, task.Notified)
	}
}

func TestScanIsolatesFailuresAndRetries(t *testing.T) {
	store, c := setup(t)
	notifier := newFakeNotifier()
	notifier.failTo["a"] = true
	s, err := New(store, notifier, c, Options{})
	require.NoError(t, err)

	due := now.Add(24*time.Hour + 30*time.Minute)
	a := seed(t, store, "a", due)
	b := seed(t, store, "b", due)

	res, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Found: 2, Sent: 1, Failed: 1}, res)

	task, err := store.GetTask(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, task.Notified)

	notifier.mu.Lock()
	notifier.failTo["a"] = false
	notifier.mu.Unlock()

	res, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Found: 1, Sent: 1}, res)

	// Later scans find nothing and never mark twice.
	c.Advance(10 * time.Minute)
	res, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Found)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.marks[a])
	assert.Equal(t, 1, store.marks[b])
}

func TestTicksAreSkippedWhileScanRuns(t *testing.T) {
	store, c := setup(t)
	notifier := newFakeNotifier()
	notifier.gate = make(chan struct{})
	s, err := New(store, notifier, c, Options{Interval: time.Minute})
	require.NoError(t, err)

	seed(t, store, "a", now.Add(24*time.Hour+30*time.Minute))

	require.NoError(t, s.Start(context.Background()))
	<-notifier.entered

	_, err = s.TriggerScan(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)

	c.Advance(time.Minute)
	require.Eventually(t, func() bool { return s.Status().TicksSkipped == 1 }, time.Second, 5*time.Millisecond)

	close(notifier.gate)
	s.Stop()

	assert.Equal(t, 1, notifier.count("a"))
	assert.Equal(t, uint64(1), s.Status().ScansRun)
}

func TestStartStopStatus(t *testing.T) {
	store, c := setup(t)
	s, err := New(store, newFakeNotifier(), c, Options{Interval: 15 * time.Minute})
	require.NoError(t, err)

	st := s.Status()
	assert.False(t, st.Running)
	assert.Nil(t, st.NextRun)

	// Stop before Start is a no-op.
	s.Stop()

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, c.Tickers())

	st = s.Status()
	assert.True(t, st.Running)
	require.NotNil(t, st.NextRun)
	assert.Equal(t, now.Add(15*time.Minute), *st.NextRun)

	s.Stop()
	s.Stop()

	st = s.Status()
	assert.False(t, st.Running)
	assert.Nil(t, st.NextRun)
	assert.Equal(t, 0, c.Tickers())
	assert.Equal(t, uint64(1), st.ScansRun)
}

func TestStopWaitsForTriggeredScan(t *testing.T) {
	store, c := setup(t)
	notifier := newFakeNotifier()
	notifier.gate = make(chan struct{})
	s, err := New(store, notifier, c, Options{})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	waitIdle(t, s, 1)

	id := seed(t, store, "a", now.Add(24*time.Hour+30*time.Minute))
	scanned := make(chan ScanResult, 1)
	go func() {
		res, _ := s.TriggerScan(context.Background())
		scanned <- res
	}()
	<-notifier.entered

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	assert.Never(t, func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, 100*time.Millisecond, 5*time.Millisecond)

	close(notifier.gate)
	<-stopped
	assert.Equal(t, ScanResult{Found: 1, Sent: 1}, <-scanned)

	task, err := store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, task.Notified)
}

func TestCancelledParentContextStopsScheduler(t *testing.T) {
	store, c := setup(t)
	s, err := New(store, newFakeNotifier(), c, Options{Interval: 15 * time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return !s.Status().Running }, time.Second, 5*time.Millisecond)
	assert.Nil(t, s.Status().NextRun)
	assert.Equal(t, 0, c.Tickers())

	// A later Start launches a fresh loop.
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.True(t, s.Status().Running)
	assert.Equal(t, 1, c.Tickers())
}

func TestScanDoesNotMarkTaskMovedDuringSend(t *testing.T) {
	store, c := setup(t)
	notifier := newFakeNotifier()
	notifier.gate = make(chan struct{})
	s, err := New(store, notifier, c, Options{})
	require.NoError(t, err)

	id := seed(t, store, "a", now.Add(24*time.Hour+30*time.Minute))
	scanned := make(chan ScanResult, 1)
	go func() {
		res, _ := s.Scan(context.Background())
		scanned <- res
	}()
	<-notifier.entered

	moved := now.AddDate(0, 0, 10)
	ok, err := store.UpdateTask(context.Background(), id, domain.TaskUpdate{DueDate: &moved})
	require.NoError(t, err)
	require.True(t, ok)

	close(notifier.gate)
	assert.Equal(t, ScanResult{Found: 1, Sent: 1}, <-scanned)

	task, err := store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, task.Notified)
}

func TestTickRunsScan(t *testing.T) {
	store, c := setup(t)
	notifier := newFakeNotifier()
	s, err := New(store, notifier, c, Options{Interval: time.Hour})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	waitIdle(t, s, 1)

	// Due on the 3rd: eligible once now+25h passes midnight of that day.
	seed(t, store, "late", time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	c.Set(time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC))
	c.Advance(30 * time.Minute)

	require.Eventually(t, func() bool { return notifier.count("late") == 1 }, time.Second, 5*time.Millisecond)
}

func TestSendTestReminderChecksOwnership(t *testing.T) {
	store, c := setup(t)
	notifier := newFakeNotifier()
	s, err := New(store, notifier, c, Options{})
	require.NoError(t, err)

	id := seed(t, store, "a", now.AddDate(0, 0, 3))

	assert.ErrorIs(t, s.SendTestReminder(context.Background(), "b", id), ErrTaskNotFound)
	assert.ErrorIs(t, s.SendTestReminder(context.Background(), "a", "task_missing"), ErrTaskNotFound)
	require.NoError(t, s.SendTestReminder(context.Background(), "a", id))
	assert.Equal(t, 1, notifier.count("a"))

	task, err := store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, task.Notified)
}
