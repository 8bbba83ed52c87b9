package tasks

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/taskforge/taskify/internal/models"
	"github.com/taskforge/taskify/internal/store"
)

// fakeTaskStore is an in-memory TaskStore mirroring the Mongo store's
// scoping, filtering and status-transition behavior.
type fakeTaskStore struct {
	tasks []*models.Task
}

func (f *fakeTaskStore) Insert(ctx context.Context, task *models.Task) (*models.Task, error) {
	now := time.Now()
	task.ID = primitive.NewObjectID()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Tags == nil {
		task.Tags = []string{}
	}
	if task.Status == models.StatusCompleted {
		task.Completed = true
		task.CompletedAt = &now
	}
	f.tasks = append(f.tasks, task)
	return task, nil
}

func (f *fakeTaskStore) matches(t *models.Task, userID string, filter models.TaskFilter) bool {
	if t.UserID != userID {
		return false
	}
	if filter.Status != "" && filter.Status != "all" && t.Status != filter.Status {
		return false
	}
	if filter.Priority != "" && filter.Priority != "all" && t.Priority != filter.Priority {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

func (f *fakeTaskStore) List(ctx context.Context, userID string, filter models.TaskFilter) ([]models.Task, int, error) {
	matched := []*models.Task{}
	for _, t := range f.tasks {
		if f.matches(t, userID, filter) {
			matched = append(matched, t)
		}
	}

	switch filter.Sort {
	case "title":
		sort.Slice(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })
	default: // newest-created-first, id as tie-break for a stable page order
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].ID.Hex() > matched[j].ID.Hex()
			}
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
	}

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}

	page := []models.Task{}
	for _, t := range matched[start:end] {
		page = append(page, *t)
	}
	return page, total, nil
}

func (f *fakeTaskStore) find(userID, id string) (*models.Task, error) {
	for _, t := range f.tasks {
		if t.ID.Hex() == id && t.UserID == userID {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeTaskStore) Get(ctx context.Context, userID, id string) (*models.Task, error) {
	t, err := f.find(userID, id)
	if err != nil {
		return nil, err
	}
	copy := *t
	return &copy, nil
}

func (f *fakeTaskStore) Update(ctx context.Context, userID, id string, patch models.UpdateTaskRequest) (*models.Task, error) {
	t, err := f.find(userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.Tags != nil {
		t.Tags = *patch.Tags
	}
	if patch.DueDate.Set {
		t.DueDate = patch.DueDate.Value
	}
	if patch.Status != nil && *patch.Status != t.Status {
		t.Status = *patch.Status
		if t.Status == models.StatusCompleted {
			now := time.Now()
			t.Completed = true
			t.CompletedAt = &now
		} else {
			t.Completed = false
			t.CompletedAt = nil
		}
	}
	t.UpdatedAt = time.Now()
	copy := *t
	return &copy, nil
}

func (f *fakeTaskStore) Delete(ctx context.Context, userID, id string) (*models.Task, error) {
	for i, t := range f.tasks {
		if t.ID.Hex() == id && t.UserID == userID {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeTaskStore) owned(userID string, ids []string) map[string]bool {
	set := map[string]bool{}
	for _, id := range ids {
		if _, err := f.find(userID, id); err == nil {
			set[id] = true
		}
	}
	return set
}

func (f *fakeTaskStore) BulkDelete(ctx context.Context, userID string, ids []string) (int, error) {
	set := f.owned(userID, ids)
	kept := f.tasks[:0]
	for _, t := range f.tasks {
		if set[t.ID.Hex()] && t.UserID == userID {
			continue
		}
		kept = append(kept, t)
	}
	count := len(f.tasks) - len(kept)
	f.tasks = kept
	return count, nil
}

func (f *fakeTaskStore) BulkSetStatus(ctx context.Context, userID string, ids []string, status string) (int, error) {
	set := f.owned(userID, ids)
	count := 0
	for _, t := range f.tasks {
		if !set[t.ID.Hex()] || t.UserID != userID {
			continue
		}
		t.Status = status
		if status == models.StatusCompleted {
			now := time.Now()
			t.Completed = true
			t.CompletedAt = &now
		} else {
			t.Completed = false
			t.CompletedAt = nil
		}
		t.UpdatedAt = time.Now()
		count++
	}
	return count, nil
}

func (f *fakeTaskStore) BulkSetPriority(ctx context.Context, userID string, ids []string, priority string) (int, error) {
	set := f.owned(userID, ids)
	count := 0
	for _, t := range f.tasks {
		if set[t.ID.Hex()] && t.UserID == userID {
			t.Priority = priority
			t.UpdatedAt = time.Now()
			count++
		}
	}
	return count, nil
}

func (f *fakeTaskStore) StatusCounts(ctx context.Context, userID string) (models.TaskStats, error) {
	var stats models.TaskStats
	for _, t := range f.tasks {
		if t.UserID != userID {
			continue
		}
		switch t.Status {
		case models.StatusPending:
			stats.Pending++
		case models.StatusInProgress:
			stats.InProgress++
		case models.StatusCompleted:
			stats.Completed++
		}
		stats.Total++
	}
	return stats, nil
}
