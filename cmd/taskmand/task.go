package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new task",
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskForkCmd = &cobra.Command{
	Use:   "fork [task-id]",
	Short: "Fork a task into a new child task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskFork,
}

var taskKillCmd = &cobra.Command{
	Use:   "kill [task-id]",
	Short: "Kill a running task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskKill,
}

var (
	taskName   string
	taskStatus string
	taskParent string
	taskSearch string
	taskSortBy string
	taskOrder  string
	taskLimit  int
	taskOffset int
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskForkCmd, taskKillCmd)

	taskAddCmd.Flags().StringVar(&taskName, "name", "", "Task name (required)")
	taskAddCmd.MarkFlagRequired("name")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (running, completed, killed)")
	taskListCmd.Flags().StringVar(&taskParent, "parent", "", "Filter by parent task ID")
	taskListCmd.Flags().StringVar(&taskSearch, "search", "", "Filter by name substring")
	taskListCmd.Flags().StringVar(&taskSortBy, "sort", "created_at", "Sort field (created_at, ended_at, name, status)")
	taskListCmd.Flags().StringVar(&taskOrder, "order", "desc", "Sort order (asc, desc)")
	taskListCmd.Flags().IntVar(&taskLimit, "limit", 100, "Max results to return")
	taskListCmd.Flags().IntVar(&taskOffset, "offset", 0, "How many items to skip")
}

// taskJSON mirrors the task payload of the API.
type taskJSON struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at"`
	ParentID  *string `json:"parent_id"`
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/tasks", map[string]string{"name": taskName})
	if err != nil {
		return err
	}

	var created taskJSON
	if err := json.Unmarshal(resp, &created); err != nil {
		return err
	}

	fmt.Printf("Created task: %s\n", created.ID)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if taskStatus != "" {
		q.Set("status", taskStatus)
	}
	if taskParent != "" {
		q.Set("parent", taskParent)
	}
	if taskSearch != "" {
		q.Set("search", taskSearch)
	}
	q.Set("sort_by", taskSortBy)
	q.Set("order", taskOrder)
	q.Set("limit", strconv.Itoa(taskLimit))
	q.Set("offset", strconv.Itoa(taskOffset))

	resp, err := apiGet("/tasks?" + q.Encode())
	if err != nil {
		return err
	}

	var page struct {
		Total      int        `json:"total"`
		Page       int        `json:"page"`
		TotalPages int        `json:"total_pages"`
		Items      []taskJSON `json:"items"`
	}
	if err := json.Unmarshal(resp, &page); err != nil {
		return err
	}

	if len(page.Items) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCREATED\tPARENT")
	for _, t := range page.Items {
		parent := "-"
		if t.ParentID != nil {
			parent = shortID(*t.ParentID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortID(t.ID), t.Name, t.Status, formatTime(t.CreatedAt), parent)
	}
	w.Flush()

	fmt.Printf("\nPage %d/%d (%d total)\n", page.Page, page.TotalPages, page.Total)
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tasks/" + args[0])
	if err != nil {
		return err
	}

	var t taskJSON
	if err := json.Unmarshal(resp, &t); err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", t.ID)
	fmt.Printf("Name:     %s\n", t.Name)
	fmt.Printf("Status:   %s\n", t.Status)
	fmt.Printf("Created:  %s\n", formatTime(t.CreatedAt))
	fmt.Printf("Started:  %s\n", formatTime(t.StartedAt))
	if t.EndedAt != nil {
		fmt.Printf("Ended:    %s\n", formatTime(*t.EndedAt))
	}
	if t.ParentID != nil {
		fmt.Printf("Parent:   %s\n", *t.ParentID)
	}
	return nil
}

func runTaskFork(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/tasks/"+args[0]+"/fork", nil)
	if err != nil {
		return err
	}

	var child taskJSON
	if err := json.Unmarshal(resp, &child); err != nil {
		return err
	}

	fmt.Printf("Forked task %s -> %s\n", args[0], child.ID)
	return nil
}

func runTaskKill(cmd *cobra.Command, args []string) error {
	resp, err := apiDelete("/tasks/" + args[0])
	if err != nil {
		return err
	}

	var killed taskJSON
	if err := json.Unmarshal(resp, &killed); err != nil {
		return err
	}

	fmt.Printf("Killed task %s (status=%s)\n", killed.ID, killed.Status)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format("2006-01-02 15:04")
}
