// Package reminder periodically notifies owners about tasks that are due soon.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/domain"
	"github.com/xiaot623/studybuddy/internal/observability"
	"github.com/xiaot623/studybuddy/internal/render"
	"github.com/xiaot623/studybuddy/internal/repository"
)

const (
	// Lead is how far ahead of the due moment the window opens.
	Lead = 24 * time.Hour
	// WindowWidth is the nominal width of the notification window. The scan
	// period may not exceed it or tasks could fall between two scans.
	WindowWidth = time.Hour

	MinInterval        = time.Minute
	DefaultInterval    = time.Hour
	DefaultScanTimeout = 5 * time.Minute
)

var (
	ErrIntervalTooShort      = errors.New("reminder interval must be at least 1 minute")
	ErrIntervalExceedsWindow = errors.New("reminder interval must not exceed the notification window width")
	ErrScanInProgress        = errors.New("reminder scan already in progress")
	ErrTaskNotFound          = errors.New("task not found")
)

// Notifier delivers a reminder to the task owner.
type Notifier interface {
	Send(ctx context.Context, recipient, text string) error
}

type Options struct {
	Interval    time.Duration
	ScanTimeout time.Duration
	Logger      *slog.Logger
}

// ScanResult summarizes one scan.
type ScanResult struct {
	Found   int `json:"found" yaml:"found"`
	Sent    int `json:"sent" yaml:"sent"`
	Failed  int `json:"failed" yaml:"failed"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running      bool          `json:"running"`
	Interval     time.Duration `json:"interval"`
	NextRun      *time.Time    `json:"next_run,omitempty"`
	LastScan     *ScanResult   `json:"last_scan,omitempty"`
	LastScanAt   *time.Time    `json:"last_scan_at,omitempty"`
	ScansRun     uint64        `json:"scans_run"`
	TicksSkipped uint64        `json:"ticks_skipped"`
}

// Scheduler scans the store on a fixed period. Scans never overlap: a tick
// that arrives while a scan is running is dropped.
type Scheduler struct {
	store       repository.Store
	notifier    Notifier
	clock       clock.Clock
	interval    time.Duration
	scanTimeout time.Duration
	log         *slog.Logger

	// scanMu is held for the duration of a scan, whichever way it started.
	scanMu sync.Mutex

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	nextRun  time.Time
	last     *ScanResult
	lastAt   time.Time

	scansRun     atomic.Uint64
	ticksSkipped atomic.Uint64
}

// New validates the options and creates a stopped scheduler.
func New(store repository.Store, notifier Notifier, c clock.Clock, opts Options) (*Scheduler, error) {
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if err := ValidateInterval(opts.Interval); err != nil {
		return nil, err
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = DefaultScanTimeout
	}
	if c == nil {
		c = clock.New(nil)
	}
	l := opts.Logger
	if l == nil {
		l = observability.Logger()
	}
	return &Scheduler{
		store:       store,
		notifier:    notifier,
		clock:       c,
		interval:    opts.Interval,
		scanTimeout: opts.ScanTimeout,
		log:         l.With("component", "reminder"),
	}, nil
}

// ValidateInterval checks a scan period against the window.
func ValidateInterval(d time.Duration) error {
	if d < MinInterval {
		return ErrIntervalTooShort
	}
	if d > WindowWidth {
		return ErrIntervalExceedsWindow
	}
	return nil
}

// Window returns the date range [start, end) scanned at now. The nominal
// window (now+Lead, now+Lead+WindowWidth] is widened outward to whole days,
// so a task due on day D stays eligible from D-25h until D begins. Failed
// deliveries are retried only inside that span; once the due day starts the
// task is no longer reminded.
func Window(now time.Time) (start, end time.Time) {
	start = clock.Today(now.Add(Lead))
	edge := now.Add(Lead + WindowWidth)
	end = clock.Today(edge)
	if !end.Equal(edge) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// Start launches the ticker loop and one immediate scan.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("reminder scheduler already running")
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	ticker := s.clock.NewTicker(s.interval)
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.running = true
	s.nextRun = s.clock.Now().Add(s.interval)

	go s.loop(loopCtx, ticker, s.loopDone)
	s.dispatch(loopCtx, "startup")

	s.log.Info("reminder scheduler started", "interval", s.interval.String())
	return nil
}

// Stop ends the loop and waits for an in-flight scan, including one started
// through Scan or TriggerScan. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.loopDone
	s.mu.Unlock()

	cancel()
	<-done
	// Wait for any running scan.
	s.scanMu.Lock()
	s.scanMu.Unlock()
	s.log.Info("reminder scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, ticker clock.Ticker, done chan struct{}) {
	defer func() {
		// A cancelled parent context ends the loop without Stop.
		s.mu.Lock()
		if s.running && s.loopDone == done {
			s.running = false
			s.cancel()
			s.log.Info("reminder scheduler stopped", "reason", ctx.Err())
		}
		s.mu.Unlock()
		close(done)
	}()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.mu.Lock()
			s.nextRun = s.clock.Now().Add(s.interval)
			s.mu.Unlock()
			s.dispatch(ctx, "tick")
		}
	}
}

// dispatch starts a background scan unless one is running.
func (s *Scheduler) dispatch(ctx context.Context, trigger string) {
	if !s.scanMu.TryLock() {
		s.ticksSkipped.Add(1)
		s.log.Warn("previous reminder scan still running, skipping", "trigger", trigger)
		return
	}
	go func() {
		defer s.scanMu.Unlock()

		scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.scanTimeout)
		defer cancel()
		_, _ = s.scan(scanCtx)
	}()
}

// Scan runs one scan now, waiting for a running scan to finish first.
func (s *Scheduler) Scan(ctx context.Context) (ScanResult, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return s.scan(ctx)
}

// TriggerScan runs one scan now, or returns ErrScanInProgress.
func (s *Scheduler) TriggerScan(ctx context.Context) (ScanResult, error) {
	if !s.scanMu.TryLock() {
		return ScanResult{}, ErrScanInProgress
	}
	defer s.scanMu.Unlock()
	return s.scan(ctx)
}

func (s *Scheduler) scan(ctx context.Context) (ScanResult, error) {
	var res ScanResult
	now := s.clock.Now()
	start, end := Window(now)

	tasks, err := s.store.ListTasksDueForNotification(ctx, start, end)
	if err != nil {
		s.log.Error("reminder scan failed", "op", "list_due_tasks", "error", err)
		return res, fmt.Errorf("failed to list due tasks: %w", err)
	}
	res.Found = len(tasks)

	for i, task := range tasks {
		if ctx.Err() != nil {
			res.Skipped = len(tasks) - i
			break
		}
		if err := s.notify(ctx, task); err != nil {
			res.Failed++
			continue
		}
		res.Sent++
	}

	s.scansRun.Add(1)
	s.mu.Lock()
	s.last = &res
	s.lastAt = now
	s.mu.Unlock()

	s.log.Info("reminder scan complete",
		"window_start", start.Format("2006-01-02"),
		"window_end", end.Format("2006-01-02"),
		"found", res.Found, "sent", res.Sent, "failed", res.Failed, "skipped", res.Skipped)
	return res, nil
}

// notify sends one reminder and marks the task. A send failure leaves the
// task unmarked so a later scan retries it.
func (s *Scheduler) notify(ctx context.Context, task domain.Task) error {
	if err := s.notifier.Send(ctx, task.OwnerID, render.Reminder(task)); err != nil {
		s.log.Warn("failed to send reminder", "task_id", task.ID, "participant", task.OwnerID, "error", err)
		return err
	}

	marked, err := s.store.MarkTaskNotified(ctx, task.ID, task.DueDate)
	if err != nil {
		s.log.Error("reminder sent but not marked", "task_id", task.ID, "participant", task.OwnerID, "op", "mark_notified", "error", err)
		return nil
	}
	if !marked {
		s.log.Info("task changed during reminder", "task_id", task.ID)
	}
	return nil
}

// SendTestReminder sends the reminder for one of owner's tasks right away
// without marking it.
func (s *Scheduler) SendTestReminder(ctx context.Context, ownerID, taskID string) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil || task.OwnerID != ownerID {
		return ErrTaskNotFound
	}
	if err := s.notifier.Send(ctx, ownerID, render.Reminder(*task)); err != nil {
		return fmt.Errorf("failed to send test reminder: %w", err)
	}
	return nil
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:      s.running,
		Interval:     s.interval,
		ScansRun:     s.scansRun.Load(),
		TicksSkipped: s.ticksSkipped.Load(),
	}
	if s.running {
		next := s.nextRun
		st.NextRun = &next
	}
	if s.last != nil {
		last := *s.last
		at := s.lastAt
		st.LastScan = &last
		st.LastScanAt = &at
	}
	return st
}
