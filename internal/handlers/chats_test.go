package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anaslahboub/app-microservice/internal/handlers/testutil"
)

type chatPayload struct {
	ID          int64  `json:"id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
}

type messagePayload struct {
	ID         int64  `json:"id"`
	ReceiverID string `json:"receiver_id"`
	Type       string `json:"type"`
	Content    string `json:"content"`
	MediaPath  string `json:"media_path"`
	State      string `json:"state"`
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func openChat(t *testing.T, env *testutil.Env, token, recipient string, wantStatus int) chatPayload {
	t.Helper()
	w := env.Request(http.MethodPost, "/api/v1/chats", map[string]any{"recipientId": recipient}, token)
	require.Equal(t, wantStatus, w.Code, w.Body.String())
	var chat chatPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &chat)
	return chat
}

func TestChatMessagingAndSeen(t *testing.T) {
	env := testutil.NewEnv(t)
	aliceToken := env.Token(testutil.Alice)
	bobToken := env.Token(testutil.Bob)

	chat := openChat(t, env, aliceToken, testutil.Bob.ID, http.StatusCreated)
	again := openChat(t, env, bobToken, testutil.Alice.ID, http.StatusOK)
	require.Equal(t, chat.ID, again.ID)

	w := env.Request(http.MethodPost, "/api/v1/chats", map[string]any{"recipientId": testutil.Alice.ID}, aliceToken)
	require.Equal(t, http.StatusBadRequest, w.Code)

	messagesPath := fmt.Sprintf("/api/v1/chats/%d/messages", chat.ID)
	for _, content := range []string{"one", "two", "three"} {
		w := env.Request(http.MethodPost, messagesPath, map[string]any{"content": content}, aliceToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = env.Request(http.MethodGet, fmt.Sprintf("/api/v1/chats/%d/unread", chat.ID), nil, bobToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"count":3}`, string(testutil.DecodeResponse(t, w).Data))

	w = env.Request(http.MethodPatch, fmt.Sprintf("/api/v1/chats/%d/seen", chat.ID), nil, bobToken)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.Request(http.MethodGet, messagesPath, nil, bobToken)
	require.Equal(t, http.StatusOK, w.Code)
	var messages []messagePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &messages)
	require.Len(t, messages, 3)
	require.Equal(t, "one", messages[0].Content)
	for _, message := range messages {
		require.Equal(t, "SEEN", message.State)
	}

	page, err := env.Inbox.List(t.Context(), testutil.Alice.ID, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "SEEN", page.Items[0].Type)

	w = env.Request(http.MethodGet, messagesPath, nil, env.Token(testutil.Carol))
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestChatMediaUpload(t *testing.T) {
	env := testutil.NewEnv(t)
	aliceToken := env.Token(testutil.Alice)
	chat := openChat(t, env, aliceToken, testutil.Bob.ID, http.StatusCreated)
	path := fmt.Sprintf("/api/v1/chats/%d/media", chat.ID)

	w := env.Upload(path, "pixel.png", pngHeader, aliceToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var message messagePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &message)
	require.Equal(t, "IMAGE", message.Type)
	require.Equal(t, testutil.Bob.ID, message.ReceiverID)
	require.NotEmpty(t, message.MediaPath)

	page, err := env.Inbox.List(t.Context(), testutil.Bob.ID, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "IMAGE", page.Items[0].Type)
	require.Equal(t, pngHeader, page.Items[0].Media)

	w = env.Request(http.MethodPost, path, nil, aliceToken)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Upload(path, "notes.txt", []byte("plain text"), aliceToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
