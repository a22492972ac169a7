package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taskmand/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	user, err := s.CreateUser("alice", "hash-1", false)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == "" {
		t.Error("User ID should not be empty")
	}
	if user.IsAdmin {
		t.Error("Expected non-admin user")
	}

	got, err := s.GetUserByUsername("alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected user, got nil")
	}
	if got.PasswordHash != "hash-1" {
		t.Errorf("Expected hash-1, got %s", got.PasswordHash)
	}

	got, err = s.GetUserByUsername("nobody")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if got != nil {
		t.Error("Expected nil for unknown username")
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if _, err := s.CreateUser("bob", "hash-1", false); err != nil {
		t.Fatalf("First CreateUser failed: %v", err)
	}

	_, err := s.CreateUser("bob", "hash-2", true)
	if err != ErrUsernameTaken {
		t.Errorf("Expected ErrUsernameTaken, got %v", err)
	}
}

func TestTaskCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	owner := newTestUser(t, s, "alice")

	task, err := s.CreateTask(owner.ID, "Test Task", nil)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.ID == "" {
		t.Error("Task ID should not be empty")
	}
	if task.Status != models.TaskStatusRunning {
		t.Errorf("Expected status running, got %s", task.Status)
	}
	if !task.StartedAt.Equal(task.CreatedAt) {
		t.Error("Expected started_at to equal created_at")
	}
	if task.EndedAt != nil {
		t.Error("Expected ended_at to be nil for new task")
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected task, got nil")
	}
	if got.Name != "Test Task" {
		t.Errorf("Expected name 'Test Task', got %s", got.Name)
	}
	if got.OwnerID != owner.ID {
		t.Errorf("Expected owner %s, got %s", owner.ID, got.OwnerID)
	}

	got, err = s.GetTask("missing-id")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got != nil {
		t.Error("Expected nil for unknown task ID")
	}
}

func TestTaskParentLink(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	owner := newTestUser(t, s, "alice")

	parent, _ := s.CreateTask(owner.ID, "Parent", nil)
	child, err := s.CreateTask(owner.ID, "Parent", &parent.ID)
	if err != nil {
		t.Fatalf("CreateTask with parent failed: %v", err)
	}
	if child.ParentID == nil || *child.ParentID != parent.ID {
		t.Errorf("Expected parent_id %s, got %v", parent.ID, child.ParentID)
	}

	got, _ := s.GetTask(child.ID)
	if got.ParentID == nil || *got.ParentID != parent.ID {
		t.Error("Parent link not persisted")
	}
}

func TestKillTask(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	owner := newTestUser(t, s, "alice")
	task, _ := s.CreateTask(owner.ID, "Test", nil)

	killed, err := s.KillTask(task.ID)
	if err != nil {
		t.Fatalf("KillTask failed: %v", err)
	}
	if killed.Status != models.TaskStatusKilled {
		t.Errorf("Expected status killed, got %s", killed.Status)
	}
	if killed.EndedAt == nil {
		t.Error("Expected ended_at to be set after kill")
	}

	// Second kill must miss the status guard
	_, err = s.KillTask(task.ID)
	if err != ErrTaskNotRunning {
		t.Errorf("Expected ErrTaskNotRunning, got %v", err)
	}

	// Missing rows also report through the guard
	_, err = s.KillTask("missing-id")
	if err != ErrTaskNotRunning {
		t.Errorf("Expected ErrTaskNotRunning for missing task, got %v", err)
	}
}

func TestListTasks_OwnerScoped(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	alice := newTestUser(t, s, "alice")
	bob := newTestUser(t, s, "bob")

	s.CreateTask(alice.ID, "Alice Task", nil)
	s.CreateTask(bob.ID, "Bob Task 1", nil)
	s.CreateTask(bob.ID, "Bob Task 2", nil)

	tasks, total, err := s.ListTasks(alice.ID, TaskFilter{Limit: 100})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected total 1, got %d", total)
	}
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Name != "Alice Task" {
		t.Errorf("Expected Alice Task, got %s", tasks[0].Name)
	}

	_, total, _ = s.ListTasks(bob.ID, TaskFilter{Limit: 100})
	if total != 2 {
		t.Errorf("Expected total 2 for bob, got %d", total)
	}
}

func TestListTasks_Filters(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	owner := newTestUser(t, s, "alice")
	parent, _ := s.CreateTask(owner.ID, "deploy service", nil)
	s.CreateTask(owner.ID, "deploy service", &parent.ID)
	other, _ := s.CreateTask(owner.ID, "run backup", nil)
	s.KillTask(other.ID)

	// Status filter
	tasks, total, err := s.ListTasks(owner.ID, TaskFilter{Status: models.TaskStatusKilled, Limit: 100})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if total != 1 || len(tasks) != 1 {
		t.Errorf("Expected 1 killed task, got total=%d len=%d", total, len(tasks))
	}

	// Parent filter
	tasks, _, err = s.ListTasks(owner.ID, TaskFilter{ParentID: &parent.ID, Limit: 100})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("Expected 1 child task, got %d", len(tasks))
	}
	if tasks[0].ParentID == nil || *tasks[0].ParentID != parent.ID {
		t.Error("Child task does not reference parent")
	}

	// Search filter matches substrings
	tasks, total, err = s.ListTasks(owner.ID, TaskFilter{Search: "deploy", Limit: 100})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if total != 2 {
		t.Errorf("Expected 2 matches for 'deploy', got %d", total)
	}

	_, total, _ = s.ListTasks(owner.ID, TaskFilter{Search: "nothing", Limit: 100})
	if total != 0 {
		t.Errorf("Expected 0 matches, got %d", total)
	}
}

func TestListTasks_SearchCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	owner := newTestUser(t, s, "alice")
	if _, err := s.CreateTask(owner.ID, "Run Backup", nil); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	for _, term := range []string{"backup", "BACK", "run b", "Run Backup"} {
		tasks, total, err := s.ListTasks(owner.ID, TaskFilter{Search: term, Limit: 100})
		if err != nil {
			t.Fatalf("ListTasks(%q) failed: %v", term, err)
		}
		if total != 1 || len(tasks) != 1 {
			t.Errorf("Search %q: expected 1 match, got total=%d len=%d", term, total, len(tasks))
		}
	}
}

func TestListTasks_SortOrder(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	owner := newTestUser(t, s, "alice")
	for _, name := range []string{"banana", "apple", "cherry"} {
		if _, err := s.CreateTask(owner.ID, name, nil); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	tasks, _, err := s.ListTasks(owner.ID, TaskFilter{SortBy: "name", Order: "asc", Limit: 100})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	want := []string{"apple", "banana", "cherry"}
	for i, name := range want {
		if tasks[i].Name != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, tasks[i].Name)
		}
	}

	tasks, _, err = s.ListTasks(owner.ID, TaskFilter{SortBy: "name", Order: "desc", Limit: 100})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if tasks[0].Name != "cherry" {
		t.Errorf("Expected cherry first descending, got %s", tasks[0].Name)
	}
}

func TestListTasks_Pagination(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	owner := newTestUser(t, s, "alice")
	for i := 0; i < 5; i++ {
		if _, err := s.CreateTask(owner.ID, fmt.Sprintf("task-%d", i), nil); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	first, total, err := s.ListTasks(owner.ID, TaskFilter{SortBy: "name", Order: "asc", Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if total != 5 {
		t.Errorf("Expected total 5, got %d", total)
	}
	if len(first) != 2 {
		t.Fatalf("Expected 2 tasks on page, got %d", len(first))
	}

	second, total, err := s.ListTasks(owner.ID, TaskFilter{SortBy: "name", Order: "asc", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if total != 5 {
		t.Errorf("Expected total 5 on second page, got %d", total)
	}
	if len(second) != 2 {
		t.Fatalf("Expected 2 tasks on second page, got %d", len(second))
	}
	if first[0].ID == second[0].ID {
		t.Error("Pages should not overlap")
	}

	last, _, _ := s.ListTasks(owner.ID, TaskFilter{SortBy: "name", Order: "asc", Limit: 2, Offset: 4})
	if len(last) != 1 {
		t.Errorf("Expected 1 task on last page, got %d", len(last))
	}
}

func TestListTasks_StableTieBreak(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	owner := newTestUser(t, s, "alice")
	// Same name, so the secondary id sort decides the order
	for i := 0; i < 4; i++ {
		if _, err := s.CreateTask(owner.ID, "same", nil); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	var seen []string
	for offset := 0; offset < 4; offset += 2 {
		tasks, _, err := s.ListTasks(owner.ID, TaskFilter{SortBy: "name", Order: "asc", Limit: 2, Offset: offset})
		if err != nil {
			t.Fatalf("ListTasks failed: %v", err)
		}
		for _, task := range tasks {
			seen = append(seen, task.ID)
		}
	}

	if len(seen) != 4 {
		t.Fatalf("Expected 4 tasks across pages, got %d", len(seen))
	}
	unique := map[string]bool{}
	for _, id := range seen {
		if unique[id] {
			t.Errorf("Task %s appeared on more than one page", id)
		}
		unique[id] = true
	}
}

func TestSortableColumn(t *testing.T) {
	for _, name := range []string{"created_at", "ended_at", "name", "status"} {
		if !SortableColumn(name) {
			t.Errorf("Expected %s to be sortable", name)
		}
	}
	for _, name := range []string{"owner_id", "id; DROP TABLE tasks", ""} {
		if SortableColumn(name) {
			t.Errorf("Expected %s to be rejected", name)
		}
	}
}

func TestAudit(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	owner := newTestUser(t, s, "alice")
	task, _ := s.CreateTask(owner.ID, "Test", nil)

	entry, err := s.AppendAudit("task.kill", owner.ID, task.ID, "success", "")
	if err != nil {
		t.Fatalf("AppendAudit failed: %v", err)
	}
	if entry.ID == "" {
		t.Error("Audit entry ID should not be empty")
	}

	entries, err := s.AuditForTask(task.ID)
	if err != nil {
		t.Fatalf("AuditForTask failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].Action != "task.kill" {
		t.Errorf("Expected action task.kill, got %s", entries[0].Action)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func newTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func newTestUser(t *testing.T, s *Store, username string) *models.User {
	t.Helper()
	user, err := s.CreateUser(username, "hash", false)
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}
