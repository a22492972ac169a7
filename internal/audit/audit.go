// Package audit records lifecycle operations for later inspection.
package audit

import (
	"log/slog"

	"taskmand/internal/models"
	"taskmand/internal/store"
)

// Writer appends audit trail entries for state-mutating actions.
type Writer struct {
	store  *store.Store
	logger *slog.Logger
}

// NewWriter creates a new audit writer.
func NewWriter(s *store.Store, logger *slog.Logger) *Writer {
	return &Writer{store: s, logger: logger}
}

// Record writes an audit entry. Audit failures are logged, never
// surfaced: the operation being recorded has already happened.
func (w *Writer) Record(action, actorID, taskID, outcome, detail string) *models.AuditEntry {
	entry, err := w.store.AppendAudit(action, actorID, taskID, outcome, detail)
	if err != nil {
		w.logger.Warn("audit write failed", "action", action, "task_id", taskID, "error", err)
		return nil
	}
	return entry
}

// ForTask returns the audit trail for one task, newest first.
func (w *Writer) ForTask(taskID string) ([]models.AuditEntry, error) {
	return w.store.AuditForTask(taskID)
}
