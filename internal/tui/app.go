// Package tui provides the interactive terminal task browser.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(lipgloss.Color("#F9FAFB")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Italic(true)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)
)

const (
	modeList   = "list"
	modeDetail = "detail"
	modeNew    = "new"
	modeSearch = "search"
)

// App is the main TUI application model.
type App struct {
	client   *Client
	taskList *TaskListModel
	detail   *TaskDetailModel
	input    textinput.Model
	mode     string
	message  string
	errText  string
	width    int
	height   int
}

// New creates a new TUI application.
func New(apiAddr, token string) *App {
	client := NewClient(apiAddr, token)

	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 60

	return &App{
		client:   client,
		taskList: NewTaskListModel(client),
		detail:   NewTaskDetailModel(client),
		input:    ti,
		mode:     modeList,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.taskList.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Text entry modes capture everything except submit/cancel.
		if a.mode == modeNew || a.mode == modeSearch {
			switch msg.String() {
			case "enter":
				value := strings.TrimSpace(a.input.Value())
				submitSearch := a.mode == modeSearch
				a.input.Blur()
				a.input.SetValue("")
				a.mode = modeList
				if submitSearch {
					a.taskList.SetSearch(value)
					return a, a.taskList.Refresh()
				}
				if value != "" {
					return a, a.createTask(value)
				}
				return a, nil
			case "esc", "ctrl+c":
				a.input.Blur()
				a.input.SetValue("")
				a.mode = modeList
				return a, nil
			}
			var cmd tea.Cmd
			a.input, cmd = a.input.Update(msg)
			return a, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.mode == modeDetail {
				a.mode = modeList
				return a, a.taskList.Refresh()
			}

		case "enter":
			if a.mode == modeList {
				if task := a.taskList.SelectedTask(); task != nil {
					a.mode = modeDetail
					a.detail.SetTask(task.ID)
					return a, a.detail.Refresh()
				}
			}

		case "tab":
			if a.mode == modeList {
				a.taskList.CycleFilter()
				return a, a.taskList.Refresh()
			}

		case "r":
			if a.mode == modeDetail {
				return a, a.detail.Refresh()
			}
			return a, a.taskList.Refresh()

		case "n":
			if a.mode == modeList {
				a.mode = modeNew
				a.input.Placeholder = "New task name"
				a.input.Focus()
				return a, textinput.Blink
			}

		case "/":
			if a.mode == modeList {
				a.mode = modeSearch
				a.input.Placeholder = "Search task names"
				a.input.Focus()
				return a, textinput.Blink
			}

		case "f":
			if id := a.currentTaskID(); id != "" {
				return a, a.forkTask(id)
			}

		case "x":
			if id := a.currentTaskID(); id != "" {
				return a, a.killTask(id)
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.taskList.SetSize(msg.Width, msg.Height-4)
		a.detail.SetSize(msg.Width, msg.Height-4)
		a.input.Width = msg.Width - 6

	case errMsg:
		a.errText = msg.err.Error()
		a.message = ""
		return a, nil

	case taskMutatedMsg:
		a.message = msg.note
		a.errText = ""
		if a.mode == modeDetail {
			return a, a.detail.Refresh()
		}
		return a, a.taskList.Refresh()
	}

	switch a.mode {
	case modeDetail:
		return a, a.detail.Update(msg)
	default:
		return a, a.taskList.Update(msg)
	}
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	switch a.mode {
	case modeDetail:
		b.WriteString(a.detail.View())
	case modeNew, modeSearch:
		b.WriteString(a.taskList.View())
		b.WriteString("\n")
		b.WriteString(inputBoxStyle.Render(a.input.View()))
	default:
		b.WriteString(a.taskList.View())
	}

	b.WriteString("\n")
	if a.errText != "" {
		b.WriteString(errorStyle.Render("✗ " + a.errText))
		b.WriteString("\n")
	} else if a.message != "" {
		b.WriteString(messageStyle.Render("✓ " + a.message))
		b.WriteString("\n")
	}
	b.WriteString(a.statusBar())

	return b.String()
}

func (a *App) statusBar() string {
	help := "enter detail • tab filter • n new • / search • f fork • x kill • r refresh • q quit"
	if a.mode == modeDetail {
		help = "esc back • f fork • x kill • r refresh • q quit"
	}
	return statusBarStyle.Render(helpStyle.Render(help))
}

func (a *App) currentTaskID() string {
	if a.mode == modeDetail {
		return a.detail.taskID
	}
	if task := a.taskList.SelectedTask(); task != nil {
		return task.ID
	}
	return ""
}

func (a *App) createTask(name string) tea.Cmd {
	return func() tea.Msg {
		id, err := a.client.CreateTask(name)
		if err != nil {
			return errMsg{err}
		}
		return taskMutatedMsg{note: "created " + shortID(id)}
	}
}

func (a *App) forkTask(id string) tea.Cmd {
	return func() tea.Msg {
		childID, err := a.client.ForkTask(id)
		if err != nil {
			return errMsg{err}
		}
		return taskMutatedMsg{note: "forked into " + shortID(childID)}
	}
}

func (a *App) killTask(id string) tea.Cmd {
	return func() tea.Msg {
		if err := a.client.KillTask(id); err != nil {
			return errMsg{err}
		}
		return taskMutatedMsg{note: "killed " + shortID(id)}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
