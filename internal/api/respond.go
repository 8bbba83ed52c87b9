package api

import (
	"encoding/json"
	"net/http"
)

// Error codes surfaced in the "error" field of failure responses.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeServerError       = "SERVER_ERROR"
	CodeUserExists        = "USER_EXISTS"
	CodeInvalidCreds      = "INVALID_CREDENTIALS"
	CodeNoToken           = "NO_TOKEN"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeInvalidUser       = "INVALID_USER"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeInvalidPassword   = "INVALID_CURRENT_PASSWORD"
	CodeTaskNotFound      = "TASK_NOT_FOUND"
	CodeInvalidTaskIDs    = "INVALID_TASK_IDS"
	CodeMissingStatus     = "MISSING_STATUS"
	CodeMissingPriority   = "MISSING_PRIORITY"
	CodeInvalidOperation  = "INVALID_OPERATION"
	CodeForbidden         = "INSUFFICIENT_PERMISSIONS"
	CodeAvatarNotFound    = "AVATAR_NOT_FOUND"
	CodeRateLimited       = "RATE_LIMITED"
)

// Error is a failure with a specific HTTP status and wire code.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds an Error for the given status and code.
func NewError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope {message, error}.
func WriteError(w http.ResponseWriter, err *Error) {
	WriteJSON(w, err.Status, err)
}

// WriteServerError hides internal detail unless dev mode is on.
func WriteServerError(w http.ResponseWriter, message string, err error, dev bool) {
	code := CodeServerError
	if dev && err != nil {
		code = err.Error()
	}
	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"message": message,
		"error":   code,
	})
}

// WriteValidationErrors writes the 400 envelope enumerating every
// offending field.
func WriteValidationErrors(w http.ResponseWriter, errs []FieldError) {
	WriteJSON(w, http.StatusBadRequest, map[string]any{
		"message": "Validation failed",
		"error":   CodeValidation,
		"errors":  errs,
	})
}
