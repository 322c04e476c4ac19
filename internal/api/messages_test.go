package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookxchange/bookxchange/internal/chat"
	"github.com/bookxchange/bookxchange/internal/database"
	"github.com/bookxchange/bookxchange/internal/models"
)

// recordingNotifier captures pushes that would go to the live channel
type recordingNotifier struct {
	receivers []int64
}

func (n *recordingNotifier) NotifyNewMessage(receiverID int64, msg *models.Message) {
	n.receivers = append(n.receivers, receiverID)
}

// messageTestEnv drives the message routes against a real in-memory
// store, switching the authenticated caller per request
type messageTestEnv struct {
	router   *gin.Engine
	db       *database.MemoryDB
	notifier *recordingNotifier
	callerID int64
}

func setupMessageTest(t *testing.T) *messageTestEnv {
	gin.SetMode(gin.TestMode)

	env := &messageTestEnv{
		db:       database.NewMemoryDB(),
		notifier: &recordingNotifier{},
	}

	handler := NewMessageHandler(chat.NewService(env.db, env.notifier))

	router := gin.New()
	group := router.Group("/api")
	group.Use(func(c *gin.Context) {
		c.Set(contextUserIDKey, env.callerID)
		c.Next()
	})
	group.POST("/messages", handler.SendMessage)
	group.GET("/conversations", handler.GetConversations)
	group.GET("/conversations/:id/messages", handler.GetConversationMessages)
	group.PATCH("/messages/:id/read", handler.MarkMessageAsRead)

	env.router = router
	return env
}

func (env *messageTestEnv) addUser(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := env.db.CreateUser(username, username+"@example.com", "hash", "")
	require.NoError(t, err)
	return user
}

func (env *messageTestEnv) sendMessage(t *testing.T, senderID int64, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	env.callerID = senderID
	payload, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/messages", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)
	return w
}

func TestSendMessage(t *testing.T) {
	env := setupMessageTest(t)
	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")

	t.Run("successful send", func(t *testing.T) {
		w := env.sendMessage(t, alice.ID, map[string]interface{}{
			"receiverId": bob.ID,
			"content":    "Is this available?",
		})

		assert.Equal(t, http.StatusCreated, w.Code)

		var msg models.Message
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
		assert.Equal(t, alice.ID, msg.SenderID)
		assert.Equal(t, bob.ID, msg.ReceiverID)
		assert.False(t, msg.Read)

		// The push went to the receiver before the response completed
		require.Len(t, env.notifier.receivers, 1)
		assert.Equal(t, bob.ID, env.notifier.receivers[0])
	})

	t.Run("unknown receiver", func(t *testing.T) {
		w := env.sendMessage(t, alice.ID, map[string]interface{}{
			"receiverId": 9999,
			"content":    "anyone there?",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown listing", func(t *testing.T) {
		w := env.sendMessage(t, alice.ID, map[string]interface{}{
			"receiverId": bob.ID,
			"listingId":  9999,
			"content":    "about that book",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing content", func(t *testing.T) {
		w := env.sendMessage(t, alice.ID, map[string]interface{}{
			"receiverId": bob.ID,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetConversations(t *testing.T) {
	env := setupMessageTest(t)
	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")

	w := env.sendMessage(t, alice.ID, map[string]interface{}{
		"receiverId": bob.ID,
		"content":    "hello bob",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	env.callerID = bob.ID
	w = httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/conversations", nil)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var summaries []models.ConversationSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	require.NotNil(t, summaries[0].OtherUser)
	assert.Equal(t, "alice", summaries[0].OtherUser.Username)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "hello bob", summaries[0].LastMessage.Content)
}

func TestGetConversationMessages(t *testing.T) {
	env := setupMessageTest(t)
	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	carol := env.addUser(t, "carol")

	w := env.sendMessage(t, alice.ID, map[string]interface{}{
		"receiverId": bob.ID,
		"content":    "first",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w = env.sendMessage(t, bob.ID, map[string]interface{}{
		"receiverId": alice.ID,
		"content":    "second",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	conv, err := env.db.GetConversationByUsers(alice.ID, bob.ID, nil)
	require.NoError(t, err)

	fetch := func(callerID, convID int64) *httptest.ResponseRecorder {
		env.callerID = callerID
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", convID), nil)
		env.router.ServeHTTP(w, req)
		return w
	}

	t.Run("participant gets ordered messages", func(t *testing.T) {
		w := fetch(alice.ID, conv.ID)
		assert.Equal(t, http.StatusOK, w.Code)

		var messages []models.Message
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &messages))
		require.Len(t, messages, 2)
		assert.Equal(t, "first", messages[0].Content)
		assert.Equal(t, "second", messages[1].Content)
	})

	t.Run("non-participant gets 403", func(t *testing.T) {
		w := fetch(carol.ID, conv.ID)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown conversation gets 404", func(t *testing.T) {
		w := fetch(alice.ID, 9999)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMarkMessageAsRead(t *testing.T) {
	env := setupMessageTest(t)
	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")

	w := env.sendMessage(t, alice.ID, map[string]interface{}{
		"receiverId": bob.ID,
		"content":    "read me",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var msg models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))

	markRead := func(callerID, messageID int64) *httptest.ResponseRecorder {
		env.callerID = callerID
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPatch, fmt.Sprintf("/api/messages/%d/read", messageID), nil)
		env.router.ServeHTTP(w, req)
		return w
	}

	t.Run("sender cannot mark their own message read", func(t *testing.T) {
		w := markRead(alice.ID, msg.ID)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("receiver marks read", func(t *testing.T) {
		w := markRead(bob.ID, msg.ID)
		assert.Equal(t, http.StatusNoContent, w.Code)

		stored, err := env.db.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.True(t, stored.Read)

		// Idempotent
		w = markRead(bob.ID, msg.ID)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unknown message", func(t *testing.T) {
		w := markRead(bob.ID, 9999)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
