package domain

import "time"

// Task is a stored deadline item owned by one user.
type Task struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Kind      TaskKind  `json:"kind"`
	Title     string    `json:"title"`
	DueDate   time.Time `json:"due_date"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskUpdate carries the optional fields of an explicit task edit.
// Changing DueDate clears the notified marker.
type TaskUpdate struct {
	Kind    *TaskKind
	Title   *string
	DueDate *time.Time
}

// Empty reports whether the update changes nothing.
func (u TaskUpdate) Empty() bool {
	return u.Kind == nil && u.Title == nil && u.DueDate == nil
}

// User is a chat participant known to the store.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}
