package tui

// Messages passed between the app model and async API commands.

type errMsg struct {
	err error
}

type tasksLoadedMsg struct {
	tasks []TaskItem
	total int
}

type taskDetailLoadedMsg struct {
	task *TaskDetail
}

type taskMutatedMsg struct {
	note string
}
