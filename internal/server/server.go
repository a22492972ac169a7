// Package server provides the HTTP API for taskmand. It is the single
// layer that translates domain faults into status codes; no component
// below it constructs a status code.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskmand/internal/audit"
	"taskmand/internal/auth"
	"taskmand/internal/fault"
	"taskmand/internal/models"
	"taskmand/internal/store"
	"taskmand/internal/task"
)

// Version is stamped into the health response.
var Version = "0.2.0"

// Server provides the HTTP API for taskmand.
type Server struct {
	tasks  *task.Service
	gate   *auth.Gate
	audit  *audit.Writer
	store  *store.Store
	logger *slog.Logger
	addr   string
	server *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(tasks *task.Service, gate *auth.Gate, aw *audit.Writer, st *store.Store, logger *slog.Logger, addr string) *Server {
	return &Server{
		tasks:  tasks,
		gate:   gate,
		audit:  aw,
		store:  st,
		logger: logger,
		addr:   addr,
	}
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive the full stack through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/register", s.handleRegister)
	mux.HandleFunc("/auth/login", s.handleLogin)

	mux.HandleFunc("/tasks", s.withUser(s.handleTasks))
	mux.HandleFunc("/tasks/", s.withUser(s.handleTaskByID))

	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("starting taskmand API", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// --- Health ---

// HealthResponse is the /health body.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		health.OK = false
		health.DB = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	s.writeJSON(w, http.StatusOK, health)
}

// --- Auth endpoints ---

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	user, err := s.gate.Register(req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{"username": user.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	token, err := s.gate.IssueToken(req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// --- Task endpoints ---

// withUser authenticates the bearer token and hands the resolved user
// to the wrapped handler.
func (s *Server) withUser(next func(http.ResponseWriter, *http.Request, *models.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			s.writeDetail(w, http.StatusUnauthorized, "Missing Authorization header")
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 {
			s.writeDetail(w, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}
		if !strings.EqualFold(parts[0], "bearer") {
			s.writeDetail(w, http.StatusUnauthorized, "Invalid auth scheme")
			return
		}

		user, err := s.gate.Authenticate(parts[1])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r, user)
	}
}

// handleTasks handles GET /tasks and POST /tasks.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request, user *models.User) {
	switch r.Method {
	case http.MethodGet:
		s.listTasks(w, r, user)
	case http.MethodPost:
		s.createTask(w, r, user)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTaskByID handles /tasks/{id} and /tasks/{id}/fork.
func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request, user *models.User) {
	path := strings.TrimPrefix(r.URL.Path, "/tasks/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		s.writeDetail(w, http.StatusBadRequest, "Task ID required")
		return
	}
	if len(parts) > 2 {
		s.writeDetail(w, http.StatusNotFound, "Not found")
		return
	}

	taskID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getTask(w, r, user, taskID)
	case action == "" && r.Method == http.MethodDelete:
		s.killTask(w, r, user, taskID)
	case action == "fork" && r.Method == http.MethodPost:
		s.forkTask(w, r, user, taskID)
	case action == "audit" && r.Method == http.MethodGet:
		s.taskAudit(w, r, user, taskID)
	default:
		s.writeDetail(w, http.StatusNotFound, "Not found")
	}
}

type createTaskRequest struct {
	Name string `json:"name"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	created, err := s.tasks.Create(user, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("task created", "task_id", created.ID, "owner", user.Username)
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, user *models.User, taskID string) {
	t, err := s.tasks.Get(user, taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) forkTask(w http.ResponseWriter, r *http.Request, user *models.User, taskID string) {
	child, err := s.tasks.Fork(user, taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("task forked", "parent_id", taskID, "task_id", child.ID, "owner", user.Username)
	s.writeJSON(w, http.StatusCreated, child)
}

func (s *Server) killTask(w http.ResponseWriter, r *http.Request, user *models.User, taskID string) {
	killed, err := s.tasks.Kill(user, taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("task killed", "task_id", taskID, "owner", user.Username)
	s.writeJSON(w, http.StatusOK, killed)
}

// taskAudit returns the audit trail for a task. Admin only; admins may
// inspect any owner's tasks.
func (s *Server) taskAudit(w http.ResponseWriter, r *http.Request, user *models.User, taskID string) {
	if err := s.gate.RequireAdmin(user); err != nil {
		s.writeError(w, r, err)
		return
	}

	t, err := s.store.GetTask(taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if t == nil {
		s.writeError(w, r, fault.NotFound("Task with ID %s not found", taskID))
		return
	}

	entries, err := s.audit.ForTask(taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request, user *models.User) {
	params, err := parseListQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.tasks.List(user, params.ListParams)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, buildPage(result, params.Limit, params.Offset))
}
