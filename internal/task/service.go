// Package task implements the task lifecycle and query engine.
//
// The engine is request-scoped and stateless between calls: all state
// lives in the store. Every operation runs under the caller's identity
// and checks existence before ownership, so a missing row is always
// reported as not found regardless of who owns it.
package task

import (
	"strings"

	"taskmand/internal/audit"
	"taskmand/internal/fault"
	"taskmand/internal/models"
	"taskmand/internal/store"
)

// Service provides task lifecycle and query operations.
type Service struct {
	store *store.Store
	audit *audit.Writer
}

// NewService creates a new task service.
func NewService(s *store.Store, aw *audit.Writer) *Service {
	return &Service{store: s, audit: aw}
}

// Create inserts a new running task owned by the caller.
func (s *Service) Create(owner *models.User, name string) (*models.Task, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fault.Unprocessable("Task name is required")
	}

	task, err := s.store.CreateTask(owner.ID, name, nil)
	if err != nil {
		return nil, err
	}

	s.audit.Record("task.create", owner.ID, task.ID, "success", "")
	return task, nil
}

// Fork creates a new running task copying the parent's name, linked via
// parent_id and owned by the caller. Only the caller's own tasks may be
// forked; the parent row is never mutated.
func (s *Service) Fork(owner *models.User, parentID string) (*models.Task, error) {
	parent, err := s.store.GetTask(parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fault.NotFound("Task with ID %s not found", parentID)
	}
	if parent.OwnerID != owner.ID {
		return nil, fault.Permission("Task %s is not owned by you", parentID)
	}

	child, err := s.store.CreateTask(owner.ID, parent.Name, &parent.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Record("task.fork", owner.ID, child.ID, "success", "parent="+parent.ID)
	return child, nil
}

// Kill transitions a running task to killed, stamping ended_at. Killing
// a task that is not running is rejected, not idempotent.
func (s *Service) Kill(owner *models.User, taskID string) (*models.Task, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fault.NotFound("Task with ID %s not found", taskID)
	}
	if task.OwnerID != owner.ID {
		return nil, fault.Permission("Task %s is not owned by you", taskID)
	}
	if task.Status != models.TaskStatusRunning {
		return nil, fault.InvalidState("Only running tasks can be killed")
	}

	killed, err := s.store.KillTask(taskID)
	if err == store.ErrTaskNotRunning {
		// Lost the race against a concurrent kill.
		return nil, fault.InvalidState("Only running tasks can be killed")
	}
	if err != nil {
		return nil, err
	}

	s.audit.Record("task.kill", owner.ID, taskID, "success", "")
	return killed, nil
}

// Get returns one of the caller's tasks by ID.
func (s *Service) Get(owner *models.User, taskID string) (*models.Task, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fault.NotFound("Task with ID %s not found", taskID)
	}
	if task.OwnerID != owner.ID {
		return nil, fault.Permission("Task %s is not owned by you", taskID)
	}
	return task, nil
}

// ListResult is a filtered page of tasks plus the total match count
// before pagination.
type ListResult struct {
	Total int
	Items []models.Task
}

// ListParams narrows and orders a List call.
type ListParams struct {
	ParentID *string
	Status   string
	Search   string
	SortBy   string
	Order    string
	Limit    int
	Offset   int
}

// List returns the caller's tasks matching params. The sort field must
// come from the fixed whitelist; status must be a member of the closed
// status set.
func (s *Service) List(owner *models.User, p ListParams) (*ListResult, error) {
	if !store.SortableColumn(p.SortBy) {
		return nil, fault.Validation("Invalid sort field '%s'. Must be one of created_at, ended_at, name, status", p.SortBy)
	}

	var status models.TaskStatus
	if p.Status != "" {
		status = models.TaskStatus(p.Status)
		if !models.ValidStatus(status) {
			return nil, fault.Validation("Invalid status '%s'. Must be one of running, completed, killed", p.Status)
		}
	}

	items, total, err := s.store.ListTasks(owner.ID, store.TaskFilter{
		ParentID: p.ParentID,
		Status:   status,
		Search:   p.Search,
		SortBy:   p.SortBy,
		Order:    p.Order,
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Task{}
	}
	return &ListResult{Total: total, Items: items}, nil
}
