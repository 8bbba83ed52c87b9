package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskforge/taskify/internal/api"
	"github.com/taskforge/taskify/internal/auth"
	"github.com/taskforge/taskify/internal/models"
	"github.com/taskforge/taskify/internal/store"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// TaskStore defines the interface for task persistence and querying.
type TaskStore interface {
	Insert(ctx context.Context, task *models.Task) (*models.Task, error)
	List(ctx context.Context, userID string, f models.TaskFilter) ([]models.Task, int, error)
	Get(ctx context.Context, userID, id string) (*models.Task, error)
	Update(ctx context.Context, userID, id string, patch models.UpdateTaskRequest) (*models.Task, error)
	Delete(ctx context.Context, userID, id string) (*models.Task, error)
	BulkDelete(ctx context.Context, userID string, ids []string) (int, error)
	BulkSetStatus(ctx context.Context, userID string, ids []string, status string) (int, error)
	BulkSetPriority(ctx context.Context, userID string, ids []string, priority string) (int, error)
	StatusCounts(ctx context.Context, userID string) (models.TaskStats, error)
}

// Handler holds task HTTP handlers.
type Handler struct {
	tasks      TaskStore
	production bool
}

func NewHandler(tasks TaskStore, production bool) *Handler {
	return &Handler{tasks: tasks, production: production}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// List returns one page of the caller's tasks with filter, sort,
// pagination metadata and the per-status aggregate.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	filter := models.TaskFilter{
		Status:   r.URL.Query().Get("status"),
		Priority: r.URL.Query().Get("priority"),
		Search:   r.URL.Query().Get("search"),
		Sort:     r.URL.Query().Get("sort"),
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", defaultLimit),
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	list, total, err := h.tasks.List(r.Context(), user.ID, filter)
	if err != nil {
		api.WriteServerError(w, "Server error retrieving tasks", err, !h.production)
		return
	}

	stats, err := h.tasks.StatusCounts(r.Context(), user.ID)
	if err != nil {
		api.WriteServerError(w, "Server error retrieving tasks", err, !h.production)
		return
	}

	totalPages := (total + filter.Limit - 1) / filter.Limit
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Tasks retrieved successfully",
		"tasks":   list,
		"pagination": models.Pagination{
			CurrentPage: filter.Page,
			TotalPages:  totalPages,
			TotalTasks:  total,
			HasNextPage: filter.Page < totalPages,
			HasPrevPage: filter.Page > 1,
		},
		"stats": stats,
	})
}

// Get returns a single task. Tasks owned by other users are reported as
// missing.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	task, err := h.tasks.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteError(w, api.NewError(http.StatusNotFound, api.CodeTaskNotFound, "Task not found"))
			return
		}
		api.WriteServerError(w, "Server error retrieving task", err, !h.production)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Task retrieved successfully",
		"task":    task,
	})
}

// Create stores a new task owned by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	var req models.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeValidation, "Invalid request body"))
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if errs := api.Validate(req); errs != nil {
		api.WriteValidationErrors(w, errs)
		return
	}
	if req.DueDate != nil && req.DueDate.Before(time.Now()) {
		api.WriteValidationErrors(w, []api.FieldError{
			{Field: "dueDate", Message: "Due date cannot be in the past"},
		})
		return
	}

	task := &models.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Tags:        req.Tags,
		UserID:      user.ID,
	}
	if task.Status == "" {
		task.Status = models.StatusPending
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}

	created, err := h.tasks.Insert(r.Context(), task)
	if err != nil {
		api.WriteServerError(w, "Server error creating task", err, !h.production)
		return
	}

	api.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Task created successfully",
		"task":    created,
	})
}

// Update applies a partial patch to one of the caller's tasks.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	var req models.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeValidation, "Invalid request body"))
		return
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
	}
	if errs := api.Validate(req); errs != nil {
		api.WriteValidationErrors(w, errs)
		return
	}
	if req.DueDate.Set && req.DueDate.Value != nil && req.DueDate.Value.Before(time.Now()) {
		api.WriteValidationErrors(w, []api.FieldError{
			{Field: "dueDate", Message: "Due date cannot be in the past"},
		})
		return
	}

	task, err := h.tasks.Update(r.Context(), user.ID, chi.URLParam(r, "id"), req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteError(w, api.NewError(http.StatusNotFound, api.CodeTaskNotFound, "Task not found"))
			return
		}
		api.WriteServerError(w, "Server error updating task", err, !h.production)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Task updated successfully",
		"task":    task,
	})
}

// Delete removes one of the caller's tasks and echoes its id and title.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	task, err := h.tasks.Delete(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteError(w, api.NewError(http.StatusNotFound, api.CodeTaskNotFound, "Task not found"))
			return
		}
		api.WriteServerError(w, "Server error deleting task", err, !h.production)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Task deleted successfully",
		"task":    map[string]string{"id": task.ID.Hex(), "title": task.Title},
	})
}

// BulkUpdate applies one operation across multiple task ids. Ids owned by
// other users are silently skipped; the response reports how many tasks
// were actually affected.
func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	var req models.BulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeValidation, "Invalid request body"))
		return
	}
	if len(req.TaskIDs) == 0 {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeInvalidTaskIDs, "Task IDs array is required"))
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.WriteValidationErrors(w, errs)
		return
	}

	var (
		count int
		err   error
	)
	switch req.Operation {
	case models.BulkDelete:
		count, err = h.tasks.BulkDelete(r.Context(), user.ID, req.TaskIDs)
	case models.BulkStatus:
		if req.Data.Status == "" {
			api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeMissingStatus, "Status is required for bulk status update"))
			return
		}
		count, err = h.tasks.BulkSetStatus(r.Context(), user.ID, req.TaskIDs, req.Data.Status)
	case models.BulkPriority:
		if req.Data.Priority == "" {
			api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeMissingPriority, "Priority is required for bulk priority update"))
			return
		}
		count, err = h.tasks.BulkSetPriority(r.Context(), user.ID, req.TaskIDs, req.Data.Priority)
	default:
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeInvalidOperation, "Invalid bulk operation"))
		return
	}
	if err != nil {
		api.WriteServerError(w, "Server error during bulk operation", err, !h.production)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message":       "Bulk " + req.Operation + " operation completed",
		"modifiedCount": count,
		"operation":     req.Operation,
		"taskIds":       req.TaskIDs,
	})
}
