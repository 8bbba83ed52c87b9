package models

import (
	"bytes"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task is a single to-do item stored in MongoDB, owned by exactly one user.
// Completed and CompletedAt are derived from Status and kept consistent by
// the store on every write.
type Task struct {
	ID          primitive.ObjectID `json:"id"                    bson:"_id,omitempty"`
	Title       string             `json:"title"                 bson:"title"`
	Description string             `json:"description"           bson:"description"`
	Status      string             `json:"status"                bson:"status"`
	Priority    string             `json:"priority"              bson:"priority"`
	DueDate     *time.Time         `json:"dueDate,omitempty"     bson:"due_date,omitempty"`
	Tags        []string           `json:"tags"                  bson:"tags"`
	UserID      string             `json:"userId"                bson:"user_id"`
	Completed   bool               `json:"completed"             bson:"completed"`
	CompletedAt *time.Time         `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"             bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt"             bson:"updated_at"`
}

// CreateTaskRequest is the JSON body for POST /api/tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=100"`
	Description string     `json:"description" validate:"max=500"`
	Status      string     `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"dueDate"`
	Tags        []string   `json:"tags" validate:"dive,max=20"`
}

// UpdateTaskRequest is the JSON body for PUT /api/tasks/:id. Nil pointers
// mean "leave unchanged"; DueDate distinguishes omitted from explicit null.
type UpdateTaskRequest struct {
	Title       *string   `json:"title" validate:"omitempty,min=1,max=100"`
	Description *string   `json:"description" validate:"omitempty,max=500"`
	Status      *string   `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	Priority    *string   `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     OptTime   `json:"dueDate"`
	Tags        *[]string `json:"tags" validate:"omitempty,dive,max=20"`
}

// OptTime is a tri-state timestamp field: absent, explicitly cleared
// (null or ""), or set to a value.
type OptTime struct {
	Set   bool
	Value *time.Time
}

func (o *OptTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

func (o OptTime) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Bulk operations.
const (
	BulkDelete   = "delete"
	BulkStatus   = "status"
	BulkPriority = "priority"
)

// BulkUpdateRequest is the JSON body for POST /api/tasks/bulk.
type BulkUpdateRequest struct {
	TaskIDs   []string `json:"taskIds" validate:"required,min=1,dive,required"`
	Operation string   `json:"operation" validate:"required"`
	Data      BulkData `json:"data"`
}

// BulkData carries the payload for status/priority bulk operations.
type BulkData struct {
	Status   string `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// TaskFilter represents optional filters for listing tasks. Empty strings
// (or "all") mean filter not applied. Search is a case-insensitive
// substring match against title or description.
type TaskFilter struct {
	Status   string
	Priority string
	Search   string
	Sort     string
	Page     int
	Limit    int
}

// TaskStats is the per-status count aggregate over a user's tasks.
type TaskStats struct {
	Total      int `json:"total" bson:"total"`
	Pending    int `json:"pending" bson:"pending"`
	InProgress int `json:"in-progress" bson:"in_progress"`
	Completed  int `json:"completed" bson:"completed"`
}

// Pagination is the page metadata returned alongside task listings.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalTasks  int  `json:"totalTasks"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// UserOverview is the aggregate block returned by GET /api/users/stats.
type UserOverview struct {
	TotalTasks        int `json:"totalTasks"`
	CompletedTasks    int `json:"completedTasks"`
	OverdueTasks      int `json:"overdueTasks"`
	CompletionRate    int `json:"completionRate"`
	RecentTasks       int `json:"recentTasks"`
	RecentCompletions int `json:"recentCompletions"`
}
