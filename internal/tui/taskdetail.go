package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))
)

// TaskDetail represents detailed task info.
type TaskDetail struct {
	ID        string
	Name      string
	Status    string
	CreatedAt string
	StartedAt string
	EndedAt   string
	ParentID  string
}

// TaskDetailModel manages the task detail screen.
type TaskDetailModel struct {
	client  *Client
	taskID  string
	task    *TaskDetail
	width   int
	height  int
	loading bool
}

// NewTaskDetailModel creates a new task detail model.
func NewTaskDetailModel(client *Client) *TaskDetailModel {
	return &TaskDetailModel{
		client: client,
	}
}

// SetTask sets the task ID to display.
func (m *TaskDetailModel) SetTask(id string) {
	m.taskID = id
	m.task = nil
}

// SetSize sets the dimensions.
func (m *TaskDetailModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Refresh fetches task details.
func (m *TaskDetailModel) Refresh() tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		task, err := m.client.GetTask(m.taskID)
		if err != nil {
			return errMsg{err}
		}
		return taskDetailLoadedMsg{task}
	}
}

// Update handles messages.
func (m *TaskDetailModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case taskDetailLoadedMsg:
		m.loading = false
		m.task = msg.task
		return nil

	case tea.KeyMsg:
		if msg.String() == "r" {
			return m.Refresh()
		}
	}
	return nil
}

// View renders the task detail.
func (m *TaskDetailModel) View() string {
	if m.loading || m.task == nil {
		return "Loading task details..."
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render(m.task.Name))
	b.WriteString("\n\n")

	b.WriteString(renderField("ID", m.task.ID))
	b.WriteString(renderField("Status", formatStatus(m.task.Status)))
	b.WriteString(renderField("Created", m.task.CreatedAt))
	b.WriteString(renderField("Started", m.task.StartedAt))
	if m.task.EndedAt != "" {
		b.WriteString(renderField("Ended", m.task.EndedAt))
	}
	if m.task.ParentID != "" {
		b.WriteString(renderField("Parent", m.task.ParentID))
	}

	return b.String()
}

func renderField(label, value string) string {
	return fmt.Sprintf("%s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}
