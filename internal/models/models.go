// Package models defines the core domain types for taskmand.
package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusKilled    TaskStatus = "killed"
)

// ValidStatus reports whether s is a member of the closed status set.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusRunning, TaskStatusCompleted, TaskStatusKilled:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status. EndedAt is non-nil
// exactly when the status is terminal.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusKilled
}

// Task represents one logical unit of work. Tasks are records only;
// nothing in taskmand executes them.
type Task struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	ParentID  *string    `json:"parent_id"`
	OwnerID   string     `json:"-"`
}

// User is an authenticated identity. The password is stored only as a
// bcrypt hash, never in plaintext.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditEntry records one lifecycle operation for the audit trail.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	TaskID    string    `json:"task_id,omitempty"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
