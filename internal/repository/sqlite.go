package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/domain"
)

const dateLayout = "2006-01-02"

const taskColumns = `id, user_id, task_type, title, due_date, reminded, created_at`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	clock clock.Clock
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock sets the clock used for "today" and timestamps. Due dates are
// read back in the clock's location.
func WithClock(c clock.Clock) Option {
	return func(s *SQLiteStore) {
		s.clock = c
	}
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db, clock: clock.New(time.UTC)}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			username TEXT,
			first_name TEXT,
			created_at DATETIME NOT NULL,
			last_active DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			task_type TEXT NOT NULL,
			title TEXT NOT NULL,
			due_date TEXT NOT NULL,
			reminded INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id, due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_reminder ON tasks(reminded, due_date)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return s.ensureColumn("tasks", "reminded_at", "ALTER TABLE tasks ADD COLUMN reminded_at DATETIME")
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) today() string {
	return s.clock.Now().Format(dateLayout)
}

// CreateTask inserts a task and returns its generated ID.
func (s *SQLiteStore) CreateTask(ctx context.Context, ownerID string, kind domain.TaskKind, title string, dueDate time.Time) (string, error) {
	id := "task_" + uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, task_type, title, due_date, reminded, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)`,
		id, ownerID, kind, title, dueDate.Format(dateLayout), s.clock.Now())
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	task, err := s.scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasksForOwner returns the owner's tasks ordered by due date. Unless
// includePast is set, tasks due before today are left out.
func (s *SQLiteStore) ListTasksForOwner(ctx context.Context, ownerID string, includePast bool) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []interface{}{ownerID}
	if !includePast {
		query += ` AND due_date >= ?`
		args = append(args, s.today())
	}
	query += ` ORDER BY due_date ASC, rowid ASC`
	return s.queryTasks(ctx, query, args...)
}

// ListUpcomingTasks returns tasks due between today and today+days inclusive.
func (s *SQLiteStore) ListUpcomingTasks(ctx context.Context, ownerID string, days int) ([]domain.Task, error) {
	end := s.clock.Now().AddDate(0, 0, days).Format(dateLayout)
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND due_date >= ? AND due_date <= ? ORDER BY due_date ASC, rowid ASC`,
		ownerID, s.today(), end)
}

// CountOpenTasks counts the owner's tasks that are not yet past.
func (s *SQLiteStore) CountOpenTasks(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE user_id = ? AND due_date >= ?`,
		ownerID, s.today()).Scan(&n)
	return n, err
}

// UpdateTask applies the set fields of update. Changing the due date resets
// the reminder marker. Returns false if the task does not exist.
func (s *SQLiteStore) UpdateTask(ctx context.Context, taskID string, update domain.TaskUpdate) (bool, error) {
	if update.Empty() {
		task, err := s.GetTask(ctx, taskID)
		return task != nil, err
	}

	var sets []string
	var args []interface{}
	if update.Kind != nil {
		sets = append(sets, "task_type = ?")
		args = append(args, *update.Kind)
	}
	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.DueDate != nil {
		sets = append(sets, "due_date = ?", "reminded = 0", "reminded_at = NULL")
		args = append(args, update.DueDate.Format(dateLayout))
	}
	args = append(args, taskID)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE tasks SET %s WHERE id = ?`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteTaskIfOwned deletes the task only when it belongs to ownerID.
func (s *SQLiteStore) DeleteTaskIfOwned(ctx context.Context, ownerID, taskID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, taskID, ownerID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListTasksDueForNotification returns unreminded tasks with start <= due_date < end,
// compared at date granularity.
func (s *SQLiteStore) ListTasksDueForNotification(ctx context.Context, start, end time.Time) ([]domain.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE reminded = 0 AND due_date >= ? AND due_date < ? ORDER BY due_date ASC, rowid ASC`,
		start.Format(dateLayout), end.Format(dateLayout))
}

// MarkTaskNotified sets the reminder marker for the reminder sent about
// dueDate. It returns false when the task is gone, was already marked, or
// has been moved to another date since.
func (s *SQLiteStore) MarkTaskNotified(ctx context.Context, taskID string, dueDate time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET reminded = 1, reminded_at = ? WHERE id = ? AND reminded = 0 AND due_date = ?`,
		s.clock.Now(), taskID, dueDate.Format(dateLayout))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpsertUser creates the user or refreshes last_active and any non-empty names.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	now := s.clock.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name, created_at, last_active) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = COALESCE(NULLIF(excluded.username, ''), users.username),
			first_name = COALESCE(NULLIF(excluded.first_name, ''), users.first_name),
			last_active = excluded.last_active`,
		user.UserID, user.Username, user.FirstName, now, now)
	return err
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	var username, firstName sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, first_name, created_at, last_active FROM users WHERE user_id = ?`,
		userID).Scan(&user.UserID, &username, &firstName, &user.CreatedAt, &user.LastActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Username = username.String
	user.FirstName = firstName.String
	return &user, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStore) scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var dueDate string
	var reminded int
	if err := row.Scan(&task.ID, &task.OwnerID, &task.Kind, &task.Title, &dueDate, &reminded, &task.CreatedAt); err != nil {
		return nil, err
	}
	due, err := time.ParseInLocation(dateLayout, dueDate, s.clock.Now().Location())
	if err != nil {
		return nil, fmt.Errorf("failed to parse due date of task %s: %w", task.ID, err)
	}
	task.DueDate = due
	task.Notified = reminded != 0
	return &task, nil
}

func (s *SQLiteStore) queryTasks(ctx context.Context, query string, args ...interface{}) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}
