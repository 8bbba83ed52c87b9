package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskforge/taskify/internal/models"
	"github.com/taskforge/taskify/internal/store"
)

type fakeUserStore struct {
	users  map[string]*models.User // by id
	nextID int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*models.User{}}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, name, email, hashedPw string) (*models.User, error) {
	email = strings.ToLower(email)
	for _, u := range f.users {
		if u.Email == email {
			return nil, store.ErrDuplicateEmail
		}
	}
	f.nextID++
	u := &models.User{
		ID:        fmt.Sprintf("u%d", f.nextID),
		Name:      name,
		Email:     email,
		Password:  hashedPw,
		Role:      models.RoleUser,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) UpdateProfile(ctx context.Context, id string, name, bio, profilePicture *string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if name != nil {
		u.Name = *name
	}
	if bio != nil {
		u.Bio = *bio
	}
	if profilePicture != nil {
		u.ProfilePicture = *profilePicture
	}
	return u, nil
}

func (f *fakeUserStore) UpdatePassword(ctx context.Context, id, hashedPw string) error {
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = hashedPw
	return nil
}

func (f *fakeUserStore) UpdateLastLogin(ctx context.Context, id string) error {
	if u, ok := f.users[id]; ok {
		now := time.Now()
		u.LastLogin = &now
	}
	return nil
}

func newTestHandler() (*Handler, *fakeUserStore) {
	users := newFakeUserStore()
	return NewHandler(users, NewTokenService("test-secret"), false), users
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestRegister(t *testing.T) {
	h, users := newTestHandler()

	rec := postJSON(t, h.Register, `{"name":"Alice","email":"Alice@Example.com","password":"Secret123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	body := decodeBody(t, rec)
	if body["token"] == nil || body["token"] == "" {
		t.Error("response missing token")
	}
	user, _ := body["user"].(map[string]any)
	if user == nil {
		t.Fatal("response missing user")
	}
	if user["email"] != "alice@example.com" {
		t.Errorf("email = %v, want lowercased", user["email"])
	}
	if _, leaked := user["password"]; leaked {
		t.Error("password must never be serialized")
	}

	// Cookie is set http-only.
	cookies := rec.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == TokenCookie && c.Value != "" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Error("auth cookie not set")
	}

	// Password stored as a hash, not plaintext.
	stored := users.users["u1"]
	if stored.Password == "Secret123" {
		t.Error("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("Secret123")) != nil {
		t.Error("stored hash does not match password")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, users := newTestHandler()

	first := postJSON(t, h.Register, `{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", first.Code)
	}
	second := postJSON(t, h.Register, `{"name":"Alice Again","email":"alice@example.com","password":"Secret123"}`)
	if second.Code != http.StatusConflict {
		t.Fatalf("second register status = %d, want 409", second.Code)
	}
	if body := decodeBody(t, second); body["error"] != "USER_EXISTS" {
		t.Errorf("error = %v, want USER_EXISTS", body["error"])
	}
	if len(users.users) != 1 {
		t.Errorf("user count = %d, want exactly 1", len(users.users))
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newTestHandler()

	rec := postJSON(t, h.Register, `{"name":"A","email":"nope","password":"weak"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	errs, _ := body["errors"].([]any)
	if len(errs) != 3 {
		t.Errorf("got %d field errors, want 3: %v", len(errs), errs)
	}
}

func TestLoginAfterRegister(t *testing.T) {
	h, _ := newTestHandler()

	postJSON(t, h.Register, `{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)

	rec := postJSON(t, h.Login, `{"email":"alice@example.com","password":"Secret123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("login response missing token")
	}

	// Issued token verifies back to the registered user.
	userID, err := NewTokenService("test-secret").Verify(token)
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if userID != "u1" {
		t.Errorf("token subject = %q, want u1", userID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h, _ := newTestHandler()
	postJSON(t, h.Register, `{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)

	// Unknown email and wrong password produce the same error code.
	for _, body := range []string{
		`{"email":"nobody@example.com","password":"Secret123"}`,
		`{"email":"alice@example.com","password":"Wrong123"}`,
	} {
		rec := postJSON(t, h.Login, body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("login status = %d, want 401", rec.Code)
		}
		if resp := decodeBody(t, rec); resp["error"] != "INVALID_CREDENTIALS" {
			t.Errorf("error = %v, want INVALID_CREDENTIALS", resp["error"])
		}
	}
}

func TestLoginUpdatesLastLogin(t *testing.T) {
	h, users := newTestHandler()
	postJSON(t, h.Register, `{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)

	postJSON(t, h.Login, `{"email":"alice@example.com","password":"Secret123"}`)
	if users.users["u1"].LastLogin == nil {
		t.Error("lastLogin not updated on login")
	}
}

func TestUpdateProfilePartialPatch(t *testing.T) {
	h, users := newTestHandler()
	postJSON(t, h.Register, `{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)
	user := users.users["u1"]

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"bio":"hello"}`))
	req = req.WithContext(WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if user.Bio != "hello" {
		t.Errorf("bio = %q, want %q", user.Bio, "hello")
	}
	if user.Name != "Alice" {
		t.Errorf("name = %q, omitted fields must stay unchanged", user.Name)
	}
}

func TestChangePassword(t *testing.T) {
	h, users := newTestHandler()
	postJSON(t, h.Register, `{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)
	user := users.users["u1"]

	// Wrong current password.
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(
		`{"currentPassword":"Wrong123","newPassword":"Newpass1"}`))
	req = req.WithContext(WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.ChangePassword(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "INVALID_CURRENT_PASSWORD" {
		t.Errorf("error = %v, want INVALID_CURRENT_PASSWORD", body["error"])
	}

	// Correct current password re-hashes.
	req = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(
		`{"currentPassword":"Secret123","newPassword":"Newpass1"}`))
	req = req.WithContext(WithUser(req.Context(), user))
	rec = httptest.NewRecorder()
	h.ChangePassword(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("Newpass1")) != nil {
		t.Error("new password hash not stored")
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	h, _ := newTestHandler()

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == TokenCookie && c.Value == "" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("auth cookie not cleared")
	}
}
