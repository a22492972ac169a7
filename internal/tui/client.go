package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps authenticated HTTP calls to the taskmand API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

type taskPayload struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at"`
	ParentID  *string `json:"parent_id"`
}

// ListTasks fetches one page of the caller's tasks.
func (c *Client) ListTasks(status, search string) ([]TaskItem, int, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if search != "" {
		q.Set("search", search)
	}
	q.Set("limit", "200")

	body, err := c.do(http.MethodGet, "/tasks?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}

	var page struct {
		Total int           `json:"total"`
		Items []taskPayload `json:"items"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, 0, err
	}

	items := make([]TaskItem, len(page.Items))
	for i, t := range page.Items {
		items[i] = TaskItem{
			ID:       t.ID,
			TaskName: t.Name,
			Status:   t.Status,
			HasChild: t.ParentID != nil,
		}
	}
	return items, page.Total, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(id string) (*TaskDetail, error) {
	body, err := c.do(http.MethodGet, "/tasks/"+id, nil)
	if err != nil {
		return nil, err
	}

	var t taskPayload
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, err
	}

	detail := &TaskDetail{
		ID:        t.ID,
		Name:      t.Name,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		StartedAt: t.StartedAt,
	}
	if t.EndedAt != nil {
		detail.EndedAt = *t.EndedAt
	}
	if t.ParentID != nil {
		detail.ParentID = *t.ParentID
	}
	return detail, nil
}

// CreateTask creates a new task and returns its ID.
func (c *Client) CreateTask(name string) (string, error) {
	body, err := c.do(http.MethodPost, "/tasks", map[string]string{"name": name})
	if err != nil {
		return "", err
	}

	var t taskPayload
	if err := json.Unmarshal(body, &t); err != nil {
		return "", err
	}
	return t.ID, nil
}

// ForkTask forks a task and returns the child ID.
func (c *Client) ForkTask(id string) (string, error) {
	body, err := c.do(http.MethodPost, "/tasks/"+id+"/fork", nil)
	if err != nil {
		return "", err
	}

	var t taskPayload
	if err := json.Unmarshal(body, &t); err != nil {
		return "", err
	}
	return t.ID, nil
}

// KillTask kills a running task.
func (c *Client) KillTask(id string) error {
	_, err := c.do(http.MethodDelete, "/tasks/"+id, nil)
	return err
}

func (c *Client) do(method, path string, data interface{}) ([]byte, error) {
	var reqBody io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &detail) == nil && detail.Detail != "" {
			return nil, fmt.Errorf("%s", detail.Detail)
		}
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}
