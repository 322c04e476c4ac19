package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bookxchange/bookxchange/internal/auth"
	"github.com/bookxchange/bookxchange/internal/database"
	"github.com/bookxchange/bookxchange/internal/models"
)

func setupAuthTest(t *testing.T) (*gin.Engine, *MockDB) {
	gin.SetMode(gin.TestMode)
	auth.InitJWTKey([]byte("test-secret-key-for-auth-tests"))

	mockDB := new(MockDB)
	handler := NewAuthHandler(mockDB)

	router := gin.New()
	router.POST("/api/auth/register", handler.Register)
	router.POST("/api/auth/login", handler.Login)

	return router, mockDB
}

func TestRegister(t *testing.T) {
	router, mockDB := setupAuthTest(t)

	t.Run("successful registration", func(t *testing.T) {
		created := &models.User{
			ID:        1,
			Username:  "alice",
			Email:     "alice@example.com",
			Location:  "Springfield",
			CreatedAt: time.Now().UTC(),
		}
		mockDB.On("CreateUser", "alice", "alice@example.com", mock.AnythingOfType("string"), "Springfield").
			Return(created, nil).Once()

		body, _ := json.Marshal(map[string]string{
			"username": "alice",
			"email":    "alice@example.com",
			"password": "secret123",
			"location": "Springfield",
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp models.UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, created.ID, resp.ID)
		assert.Equal(t, "alice", resp.Username)
		// Password material never leaves the server
		assert.NotContains(t, w.Body.String(), "secret123")
		mockDB.AssertExpectations(t)
	})

	t.Run("duplicate user", func(t *testing.T) {
		mockDB.On("CreateUser", "alice", "alice@example.com", mock.AnythingOfType("string"), "").
			Return(nil, database.ErrUserAlreadyExists).Once()

		body, _ := json.Marshal(map[string]string{
			"username": "alice",
			"email":    "alice@example.com",
			"password": "secret123",
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid payload", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"username": "al", // too short
			"email":    "not-an-email",
			"password": "x",
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLogin(t *testing.T) {
	router, mockDB := setupAuthTest(t)

	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	stored := &models.User{
		ID:           1,
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	t.Run("successful login returns token", func(t *testing.T) {
		mockDB.On("GetUserByUsername", "alice").Return(stored, nil).Once()

		body, _ := json.Marshal(map[string]string{
			"username": "alice",
			"password": "secret123",
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Token string              `json:"token"`
			User  models.UserResponse `json:"user"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, stored.ID, resp.User.ID)

		claims, err := auth.ValidateToken(resp.Token)
		require.NoError(t, err)
		userID, err := auth.UserIDFromClaims(claims)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, userID)
	})

	t.Run("wrong password", func(t *testing.T) {
		mockDB.On("GetUserByUsername", "alice").Return(stored, nil).Once()

		body, _ := json.Marshal(map[string]string{
			"username": "alice",
			"password": "wrong",
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		mockDB.On("GetUserByUsername", "nobody").Return(nil, database.ErrUserNotFound).Once()

		body, _ := json.Marshal(map[string]string{
			"username": "nobody",
			"password": "whatever",
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
