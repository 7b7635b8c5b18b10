// Package repository defines the task storage interface and its SQLite implementation.
package repository

import (
	"context"
	"time"

	"github.com/xiaot623/studybuddy/internal/domain"
)

// Store defines the interface for data persistence.
//
// Conflicting writes on one task are single statements, so a delete and a
// notified-marker update on the same row never interleave.
type Store interface {
	// Task operations
	CreateTask(ctx context.Context, ownerID string, kind domain.TaskKind, title string, dueDate time.Time) (string, error)
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	ListTasksForOwner(ctx context.Context, ownerID string, includePast bool) ([]domain.Task, error)
	ListUpcomingTasks(ctx context.Context, ownerID string, days int) ([]domain.Task, error)
	CountOpenTasks(ctx context.Context, ownerID string) (int, error)
	UpdateTask(ctx context.Context, taskID string, update domain.TaskUpdate) (bool, error)
	DeleteTaskIfOwned(ctx context.Context, ownerID, taskID string) (bool, error)

	// Reminder operations
	ListTasksDueForNotification(ctx context.Context, start, end time.Time) ([]domain.Task, error)
	MarkTaskNotified(ctx context.Context, taskID string, dueDate time.Time) (bool, error)

	// User operations
	UpsertUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// Lifecycle
	Close() error
}
