package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"lototrak/internal/storage"
)

func (s *fakeStore) CreateUser(ctx context.Context, user storage.User) error {
	s.users[user.ID] = &user
	return nil
}

func setupAuthRouter(t *testing.T, store *fakeStore) *gin.Engine {
	t.Helper()
	r := setupRouter(t, store)
	AuthRoutes(r.Group("/api/auth"))
	return r
}

func addPasswordUser(t *testing.T, store *fakeStore, id, password string, role storage.Role) *storage.User {
	t.Helper()
	user := store.addUser(id, role)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	require.NoError(t, err)
	user.PasswordHash = string(hash)
	return user
}

func TestSignup_CreatesPendingAccount(t *testing.T) {
	store := newFakeStore()
	r := setupAuthRouter(t, store)

	rec := doRequest(r, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    "worker@example.com",
		"password": "long-enough-pw",
		"name":     "Worker",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Message string         `json:"message"`
		User    map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "pending approval")
	assert.Equal(t, "PENDING", resp.User["role"])

	created, err := store.GetUserByEmail(context.Background(), "worker@example.com")
	require.NoError(t, err)
	assert.Equal(t, storage.RolePending, created.Role)
	assert.NotEqual(t, "long-enough-pw", created.PasswordHash, "password must be hashed")
}

func TestSignup_DuplicateEmail(t *testing.T) {
	store := newFakeStore()
	addPasswordUser(t, store, "u1", "password123", storage.RoleUser)
	r := setupAuthRouter(t, store)

	rec := doRequest(r, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    "u1@example.com",
		"password": "password123",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorStruct
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Code, "EMAIL_IN_USE")
}

func TestSignup_ShortPassword(t *testing.T) {
	store := newFakeStore()
	r := setupAuthRouter(t, store)

	rec := doRequest(r, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    "worker@example.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_IssuesWorkingToken(t *testing.T) {
	store := newFakeStore()
	addPasswordUser(t, store, "u1", "password123", storage.RoleUser)
	r := setupAuthRouter(t, store)

	rec := doRequest(r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "u1@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "u1", resp.User["id"])

	// The issued token authenticates
	status := doRequest(r, http.MethodGet, "/api/auth/status", "Bearer "+resp.Token, nil)
	assert.Equal(t, http.StatusOK, status.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newFakeStore()
	addPasswordUser(t, store, "u1", "password123", storage.RoleUser)
	r := setupAuthRouter(t, store)

	rec := doRequest(r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "u1@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_UnknownEmailSameErrorAsWrongPassword(t *testing.T) {
	store := newFakeStore()
	r := setupAuthRouter(t, store)

	rec := doRequest(r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "nobody@example.com",
		"password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_InvalidatesToken(t *testing.T) {
	store := newFakeStore()
	addPasswordUser(t, store, "u1", "password123", storage.RoleUser)
	r := setupAuthRouter(t, store)
	auth := bearerToken(t, "u1")

	rec := doRequest(r, http.MethodPost, "/api/auth/logout", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Consuming the jti nonce kills the token
	rec = doRequest(r, http.MethodGet, "/api/auth/status", auth, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
