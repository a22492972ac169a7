package server

import (
	"net/http"
	"strconv"

	"taskmand/internal/fault"
	"taskmand/internal/models"
	"taskmand/internal/task"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// listQuery is the parsed GET /tasks query string.
type listQuery struct {
	task.ListParams
}

func parseListQuery(r *http.Request) (*listQuery, error) {
	q := r.URL.Query()

	params := task.ListParams{
		Status: q.Get("status"),
		Search: q.Get("search"),
		SortBy: "created_at",
		Order:  "desc",
		Limit:  defaultLimit,
	}

	if v := q.Get("parent"); v != "" {
		parent := v
		params.ParentID = &parent
	}
	if v := q.Get("sort_by"); v != "" {
		params.SortBy = v
	}
	if v := q.Get("order"); v != "" {
		if v != "asc" && v != "desc" {
			return nil, fault.Validation("Invalid order '%s'. Must be 'asc' or 'desc'", v)
		}
		params.Order = v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			return nil, fault.Validation("Invalid limit '%s'. Must be an integer between 1 and %d", v, maxLimit)
		}
		params.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fault.Validation("Invalid offset '%s'. Must be a non-negative integer", v)
		}
		params.Offset = n
	}

	return &listQuery{ListParams: params}, nil
}

// Page is the pagination descriptor wrapping a list result.
type Page struct {
	Total        int           `json:"total"`
	Page         int           `json:"page"`
	PageSize     int           `json:"page_size"`
	NextPage     *int          `json:"next_page"`
	PreviousPage *int          `json:"previous_page"`
	TotalPages   int           `json:"total_pages"`
	Items        []models.Task `json:"items"`
}

func buildPage(result *task.ListResult, limit, offset int) Page {
	page := offset/limit + 1
	totalPages := (result.Total + limit - 1) / limit

	p := Page{
		Total:      result.Total,
		Page:       page,
		PageSize:   limit,
		TotalPages: totalPages,
		Items:      result.Items,
	}
	if page > 1 {
		// An offset past the end yields a page beyond total_pages; the
		// previous page still has to be one that exists.
		prev := page - 1
		if prev > totalPages {
			prev = totalPages
		}
		if prev >= 1 {
			p.PreviousPage = &prev
		}
	}
	if page < totalPages {
		next := page + 1
		p.NextPage = &next
	}
	return p
}
