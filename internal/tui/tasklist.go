package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	listTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // Cyan
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green
	statusKilled    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // Red
)

// TaskItem implements list.Item for the task list.
type TaskItem struct {
	ID       string
	TaskName string
	Status   string
	HasChild bool
}

func (i TaskItem) FilterValue() string { return i.TaskName }
func (i TaskItem) Title() string       { return i.TaskName }
func (i TaskItem) Description() string {
	status := formatStatus(i.Status)
	if i.HasChild {
		return fmt.Sprintf("%s • fork", status)
	}
	return status
}

func formatStatus(status string) string {
	switch status {
	case "running":
		return statusRunning.Render("● running")
	case "completed":
		return statusCompleted.Render("● completed")
	case "killed":
		return statusKilled.Render("● killed")
	default:
		return status
	}
}

// TaskListModel manages the task list screen.
type TaskListModel struct {
	client      *Client
	list        list.Model
	tasks       []TaskItem
	filter      string
	filterIndex int
	search      string
	total       int
	width       int
	height      int
	loading     bool
}

var filters = []string{"", "running", "completed", "killed"}
var filterLabels = []string{"all", "running", "completed", "killed"}

// NewTaskListModel creates a new task list model.
func NewTaskListModel(client *Client) *TaskListModel {
	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = "Tasks"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = listTitleStyle

	return &TaskListModel{
		client: client,
		list:   l,
	}
}

// Init initializes the task list.
func (m *TaskListModel) Init() tea.Cmd {
	return m.Refresh()
}

// SetSize sets the list dimensions.
func (m *TaskListModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.list.SetSize(w, h)
}

// SelectedTask returns the currently selected task.
func (m *TaskListModel) SelectedTask() *TaskItem {
	if item := m.list.SelectedItem(); item != nil {
		task := item.(TaskItem)
		return &task
	}
	return nil
}

// CycleFilter cycles through status filters.
func (m *TaskListModel) CycleFilter() {
	m.filterIndex = (m.filterIndex + 1) % len(filters)
	m.filter = filters[m.filterIndex]
	m.updateTitle()
}

// SetSearch sets a name substring filter applied server-side.
func (m *TaskListModel) SetSearch(term string) {
	m.search = term
	m.updateTitle()
}

func (m *TaskListModel) updateTitle() {
	title := fmt.Sprintf("Tasks [%s]", filterLabels[m.filterIndex])
	if m.search != "" {
		title += fmt.Sprintf(" /%s/", m.search)
	}
	m.list.Title = title
}

// Refresh fetches tasks from the API.
func (m *TaskListModel) Refresh() tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		tasks, total, err := m.client.ListTasks(m.filter, m.search)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks: tasks, total: total}
	}
}

// Update handles messages.
func (m *TaskListModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tasksLoadedMsg:
		m.loading = false
		m.tasks = msg.tasks
		m.total = msg.total
		items := make([]list.Item, len(m.tasks))
		for i, t := range m.tasks {
			items[i] = t
		}
		m.list.SetItems(items)
		return nil

	case tea.KeyMsg:
		if msg.String() == "r" {
			return m.Refresh()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

// View renders the task list.
func (m *TaskListModel) View() string {
	if m.loading {
		return "Loading tasks..."
	}
	return m.list.View()
}
