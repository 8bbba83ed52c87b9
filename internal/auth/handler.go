package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskforge/taskify/internal/api"
	"github.com/taskforge/taskify/internal/models"
	"github.com/taskforge/taskify/internal/store"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, hashedPw string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, name, bio, profilePicture *string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hashedPw string) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users      UserStore
	tokens     *TokenService
	production bool
}

func NewHandler(users UserStore, tokens *TokenService, production bool) *Handler {
	return &Handler{users: users, tokens: tokens, production: production}
}

func (h *Handler) setAuthCookie(w http.ResponseWriter, token string) {
	sameSite := http.SameSiteLaxMode
	if h.production {
		sameSite = http.SameSiteStrictMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.production,
		SameSite: sameSite,
		MaxAge:   int(TokenTTL / time.Second),
	})
}

func (h *Handler) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// Register creates a new user, issues a token and sets the auth cookie.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeValidation, "Invalid request body"))
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.WriteValidationErrors(w, errs)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		api.WriteServerError(w, "Server error during registration", err, !h.production)
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Name, req.Email, string(hashed))
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			api.WriteError(w, api.NewError(http.StatusConflict, api.CodeUserExists, "User already exists with this email"))
			return
		}
		api.WriteServerError(w, "Server error during registration", err, !h.production)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		api.WriteServerError(w, "Server error during registration", err, !h.production)
		return
	}
	h.setAuthCookie(w, token)

	api.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
	})
}

// Login authenticates a user and issues a fresh token. Unknown email and
// wrong password return the same error, to avoid user enumeration.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeValidation, "Invalid request body"))
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.WriteValidationErrors(w, errs)
		return
	}

	invalid := api.NewError(http.StatusUnauthorized, api.CodeInvalidCreds, "Invalid credentials")

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteError(w, invalid)
			return
		}
		api.WriteServerError(w, "Server error during login", err, !h.production)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		api.WriteError(w, invalid)
		return
	}

	if err := h.users.UpdateLastLogin(r.Context(), user.ID); err != nil {
		log.Printf("update last login: %v", err)
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		api.WriteServerError(w, "Server error during login", err, !h.production)
		return
	}
	h.setAuthCookie(w, token)

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// Profile returns the authenticated user.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Profile retrieved successfully",
		"user":    UserFrom(r.Context()),
	})
}

// UpdateProfile applies a partial patch to the user's profile fields.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeValidation, "Invalid request body"))
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.WriteValidationErrors(w, errs)
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), user.ID, req.Name, req.Bio, req.ProfilePicture)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteError(w, api.NewError(http.StatusNotFound, api.CodeUserNotFound, "User not found"))
			return
		}
		api.WriteServerError(w, "Server error updating profile", err, !h.production)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    updated,
	})
}

// ChangePassword verifies the current password and stores a new hash.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var req models.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeValidation, "Invalid request body"))
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.WriteValidationErrors(w, errs)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)) != nil {
		api.WriteError(w, api.NewError(http.StatusBadRequest, api.CodeInvalidPassword, "Current password is incorrect"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		api.WriteServerError(w, "Server error changing password", err, !h.production)
		return
	}
	if err := h.users.UpdatePassword(r.Context(), user.ID, string(hashed)); err != nil {
		api.WriteServerError(w, "Server error changing password", err, !h.production)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed successfully",
	})
}

// Logout clears the auth cookie. The token itself stays valid until
// natural expiry.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearAuthCookie(w)
	api.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}
