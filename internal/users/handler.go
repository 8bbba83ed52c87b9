package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskify/internal/api"
	"github.com/taskforge/taskify/internal/auth"
	"github.com/taskforge/taskify/internal/models"
	"github.com/taskforge/taskify/internal/store"
)

const (
	maxAvatarBytes = 2 << 20 // 2 MB
	avatarURL      = "/api/users/me/avatar"
	recentWindow   = 7 * 24 * time.Hour
)

// UserStore defines the user persistence operations this handler needs.
type UserStore interface {
	SetAvatar(ctx context.Context, id, key, profilePicture string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, page, limit int) ([]models.User, int, error)
}

// TaskStore defines the aggregate queries backing user statistics and the
// account-deletion cascade.
type TaskStore interface {
	StatusCounts(ctx context.Context, userID string) (models.TaskStats, error)
	CountOverdue(ctx context.Context, userID string) (int, error)
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error)
	DeleteByOwner(ctx context.Context, userID string) (int, error)
}

// AvatarStore defines the object storage operations for profile pictures.
type AvatarStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
}

// Handler holds user-scoped HTTP handlers.
type Handler struct {
	users      UserStore
	tasks      TaskStore
	avatars    AvatarStore
	production bool
}

func NewHandler(users UserStore, tasks TaskStore, avatars AvatarStore, production bool) *Handler {
	return &Handler{users: users, tasks: tasks, avatars: avatars, production: production}
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User profile retrieved successfully",
		"user":    auth.UserFrom(r.Context()),
	})
}

// Stats returns the per-status aggregate plus overview counts for the
// authenticated user.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	ctx := r.Context()

	taskStats, err := h.tasks.StatusCounts(ctx, user.ID)
	if err != nil {
		api.WriteServerError(w, "Server error retrieving user statistics", err, !h.production)
		return
	}
	overdue, err := h.tasks.CountOverdue(ctx, user.ID)
	if err != nil {
		api.WriteServerError(w, "Server error retrieving user statistics", err, !h.production)
		return
	}
	lastWeek := time.Now().Add(-recentWindow)
	recentTasks, err := h.tasks.CountCreatedSince(ctx, user.ID, lastWeek)
	if err != nil {
		api.WriteServerError(w, "Server error retrieving user statistics", err, !h.production)
		return
	}
	recentCompletions, err := h.tasks.CountCompletedSince(ctx, user.ID, lastWeek)
	if err != nil {
		api.WriteServerError(w, "Server error retrieving user statistics", err, !h.production)
		return
	}

	completionRate := 0
	if taskStats.Total > 0 {
		completionRate = int(math.Round(float64(taskStats.Completed) / float64(taskStats.Total) * 100))
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User statistics retrieved successfully",
		"stats": map[string]any{
			"tasks": taskStats,
			"overview": models.UserOverview{
				TotalTasks:        taskStats.Total,
				CompletedTasks:    taskStats.Completed,
				OverdueTasks:      overdue,
				CompletionRate:    completionRate,
				RecentTasks:       recentTasks,
				RecentCompletions: recentCompletions,
			},
			"user": map[string]any{
				"name":       user.Name,
				"email":      user.Email,
				"joinDate":   user.CreatedAt,
				"lastActive": time.Now(),
			},
		},
	})
}

// DeleteAccount removes all of the user's tasks, then the user record.
// The two deletes are not transactional; a crash in between leaves
// orphaned tasks.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	if _, err := h.tasks.DeleteByOwner(r.Context(), user.ID); err != nil {
		api.WriteServerError(w, "Server error deleting user account", err, !h.production)
		return
	}
	if err := h.users.DeleteUser(r.Context(), user.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		api.WriteServerError(w, "Server error deleting user account", err, !h.production)
		return
	}
	if user.AvatarKey != "" {
		if err := h.avatars.Remove(r.Context(), user.AvatarKey); err != nil {
			log.Printf("remove avatar %s: %v", user.AvatarKey, err)
		}
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "User account and all associated data deleted successfully",
	})
}

// UploadAvatar stores a profile picture in object storage and points the
// user's profilePicture at the avatar endpoint.
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	file, header, err := r.FormFile("avatar")
	if err != nil {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeValidation, "An image file named 'avatar' is required (max 2 MB)"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeValidation, "An image file named 'avatar' is required (max 2 MB)"))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeValidation, "Avatar must be an image"))
		return
	}

	key := fmt.Sprintf("avatars/%s/%s", user.ID, uuid.New().String())
	if err := h.avatars.Upload(r.Context(), key, data, contentType); err != nil {
		api.WriteServerError(w, "Server error uploading avatar", err, !h.production)
		return
	}

	updated, err := h.users.SetAvatar(r.Context(), user.ID, key, avatarURL)
	if err != nil {
		api.WriteServerError(w, "Server error uploading avatar", err, !h.production)
		return
	}

	if user.AvatarKey != "" && user.AvatarKey != key {
		if err := h.avatars.Remove(r.Context(), user.AvatarKey); err != nil {
			log.Printf("remove old avatar %s: %v", user.AvatarKey, err)
		}
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Avatar uploaded successfully",
		"user":    updated,
	})
}

// GetAvatar streams the stored profile picture.
func (h *Handler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	if user.AvatarKey == "" {
		api.WriteError(w, api.NewError(http.StatusNotFound, api.CodeAvatarNotFound, "No avatar uploaded"))
		return
	}

	data, contentType, err := h.avatars.Download(r.Context(), user.AvatarKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteError(w, api.NewError(http.StatusNotFound, api.CodeAvatarNotFound, "No avatar uploaded"))
			return
		}
		api.WriteServerError(w, "Server error retrieving avatar", err, !h.production)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// ListUsers returns one page of all users. Admin only.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := 1, 10
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	list, total, err := h.users.ListUsers(r.Context(), page, limit)
	if err != nil {
		api.WriteServerError(w, "Server error retrieving users", err, !h.production)
		return
	}

	totalPages := (total + limit - 1) / limit
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Users retrieved successfully",
		"users":   list,
		"pagination": map[string]any{
			"currentPage": page,
			"totalPages":  totalPages,
			"totalUsers":  total,
			"hasNextPage": page < totalPages,
			"hasPrevPage": page > 1,
		},
	})
}
