// Package store provides SQLite-backed persistence for taskmand.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"taskmand/internal/models"
)

// Sentinel errors surfaced by mutating operations. Callers translate
// these into domain faults; the store never speaks HTTP.
var (
	// ErrUsernameTaken indicates the username already has a row.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrTaskNotRunning indicates a kill lost the status guard: the row
	// exists but is no longer running.
	ErrTaskNotRunning = errors.New("task is not running")
)

// Store provides access to the taskmand SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		created_at DATETIME NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		parent_id TEXT,
		owner_id TEXT NOT NULL,
		FOREIGN KEY (parent_id) REFERENCES tasks(id),
		FOREIGN KEY (owner_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		task_id TEXT,
		outcome TEXT NOT NULL,
		detail TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);
	CREATE INDEX IF NOT EXISTS idx_audit_task ON audit_entries(task_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- User Operations ---

// CreateUser inserts a new user. The password must already be hashed.
func (s *Store) CreateUser(username, passwordHash string, isAdmin bool) (*models.User, error) {
	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
	}

	_, err := s.db.Exec(
		`INSERT INTO users (id, username, password_hash, is_admin, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, boolToInt(user.IsAdmin), user.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "unique constraint") {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username. Returns nil when no
// such user exists.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	user := &models.User{}
	var isAdmin int

	err := s.db.QueryRow(
		`SELECT id, username, password_hash, is_admin, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &isAdmin, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.IsAdmin = isAdmin != 0
	return user, nil
}

// --- Task Operations ---

// CreateTask inserts a new task owned by ownerID. Tasks start running
// immediately: started_at equals created_at and ended_at is null. A
// non-nil parentID links the new row to an existing task.
func (s *Store) CreateTask(ownerID, name string, parentID *string) (*models.Task, error) {
	now := time.Now().UTC()
	task := &models.Task{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    models.TaskStatusRunning,
		CreatedAt: now,
		StartedAt: now,
		ParentID:  parentID,
		OwnerID:   ownerID,
	}

	var parent sql.NullString
	if parentID != nil {
		parent = sql.NullString{String: *parentID, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO tasks (id, name, status, created_at, started_at, ended_at, parent_id, owner_id) VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
		task.ID, task.Name, task.Status, task.CreatedAt, task.StartedAt, parent, task.OwnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// GetTask retrieves a task by ID. Returns nil when no such row exists.
func (s *Store) GetTask(id string) (*models.Task, error) {
	row := s.db.QueryRow(
		`SELECT id, name, status, created_at, started_at, ended_at, parent_id, owner_id FROM tasks WHERE id = ?`,
		id,
	)
	task, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// KillTask transitions a running task to killed and stamps ended_at.
// The UPDATE is guarded on status so concurrent kills cannot both land:
// when the guard misses and the row still exists, ErrTaskNotRunning is
// returned.
func (s *Store) KillTask(id string) (*models.Task, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE tasks SET status = ?, ended_at = ? WHERE id = ? AND status = ?`,
		models.TaskStatusKilled, now, id, models.TaskStatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrTaskNotRunning
	}
	return s.GetTask(id)
}

// TaskFilter narrows and orders a ListTasks query. SortBy must already
// be whitelisted by the caller; the store maps it through a fixed
// column table regardless, so an unvetted value can never reach SQL.
type TaskFilter struct {
	ParentID *string
	Status   models.TaskStatus
	Search   string
	SortBy   string
	Order    string
	Limit    int
	Offset   int
}

// sortColumns is the closed set of sortable columns.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"ended_at":   "ended_at",
	"name":       "name",
	"status":     "status",
}

// SortableColumn reports whether name may be used as a sort target.
func SortableColumn(name string) bool {
	_, ok := sortColumns[name]
	return ok
}

// ListTasks returns the owner's tasks matching the filter together with
// the total match count before pagination. Results carry a secondary
// sort on id so pagination is deterministic when the sort column has
// duplicate values.
func (s *Store) ListTasks(ownerID string, f TaskFilter) ([]models.Task, int, error) {
	where := []string{"owner_id = ?"}
	args := []interface{}{ownerID}

	if f.ParentID != nil {
		where = append(where, "parent_id = ?")
		args = append(args, *f.ParentID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Search != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		dir = "ASC"
	}

	query := fmt.Sprintf(
		`SELECT id, name, status, created_at, started_at, ended_at, parent_id, owner_id FROM tasks WHERE %s ORDER BY %s %s, id ASC LIMIT ? OFFSET ?`,
		whereClause, column, dir,
	)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, total, rows.Err()
}

func scanTask(scan func(dest ...interface{}) error) (*models.Task, error) {
	task := &models.Task{}
	var endedAt sql.NullTime
	var parentID sql.NullString

	if err := scan(&task.ID, &task.Name, &task.Status, &task.CreatedAt, &task.StartedAt, &endedAt, &parentID, &task.OwnerID); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		task.EndedAt = &t
	}
	if parentID.Valid {
		p := parentID.String
		task.ParentID = &p
	}
	return task, nil
}

// --- Audit Operations ---

// AppendAudit writes an audit trail entry for a lifecycle operation.
func (s *Store) AppendAudit(action, actorID, taskID, outcome, detail string) (*models.AuditEntry, error) {
	now := time.Now().UTC()
	entry := &models.AuditEntry{
		ID:        uuid.New().String(),
		Action:    action,
		ActorID:   actorID,
		TaskID:    taskID,
		Outcome:   outcome,
		Detail:    detail,
		Timestamp: now,
	}

	_, err := s.db.Exec(
		`INSERT INTO audit_entries (id, action, actor_id, task_id, outcome, detail, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.ActorID, entry.TaskID, entry.Outcome, entry.Detail, entry.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return entry, nil
}

// AuditForTask returns the audit trail for one task, newest first.
func (s *Store) AuditForTask(taskID string) ([]models.AuditEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, action, actor_id, task_id, outcome, detail, timestamp FROM audit_entries WHERE task_id = ? ORDER BY timestamp DESC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var taskID sql.NullString
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &taskID, &e.Outcome, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if taskID.Valid {
			e.TaskID = taskID.String
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
