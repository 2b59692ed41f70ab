package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anaslahboub/app-microservice/internal/handlers/testutil"
)

type groupPayload struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

type memberPayload struct {
	UserID    string `json:"user_id"`
	IsAdmin   bool   `json:"is_admin"`
	IsCoAdmin bool   `json:"is_co_admin"`
	Status    string `json:"status"`
}

func TestGroupMembershipLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	aliceToken := env.Token(testutil.Alice)
	bobToken := env.Token(testutil.Bob)
	carolToken := env.Token(testutil.Carol)

	w := env.Request(http.MethodPost, "/api/v1/groups", map[string]any{"name": "Physics", "subject": "science"}, aliceToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var group groupPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &group)
	require.Equal(t, "Physics", group.Name)
	membersPath := fmt.Sprintf("/api/v1/groups/%d/members", group.ID)

	w = env.Request(http.MethodPost, membersPath, map[string]any{"userId": testutil.Bob.ID}, carolToken)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodPost, membersPath, map[string]any{"userId": testutil.Bob.ID}, aliceToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, membersPath, map[string]any{"userId": testutil.Bob.ID}, aliceToken)
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.Request(http.MethodPut, membersPath+"/bob/co-admin", nil, bobToken)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodPut, membersPath+"/bob/co-admin", nil, aliceToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var coAdmin memberPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &coAdmin)
	require.True(t, coAdmin.IsCoAdmin)

	// A co-admin may add members but never remove the admin.
	w = env.Request(http.MethodPost, membersPath, map[string]any{"userId": testutil.Carol.ID}, bobToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = env.Request(http.MethodDelete, membersPath+"/alice", nil, bobToken)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = env.Request(http.MethodDelete, membersPath+"/alice", nil, aliceToken)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodPost, fmt.Sprintf("/api/v1/groups/%d/leave", group.ID), nil, carolToken)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.Request(http.MethodDelete, membersPath+"/bob", nil, aliceToken)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.Request(http.MethodDelete, membersPath+"/bob", nil, aliceToken)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodGet, membersPath, nil, aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	var members []memberPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &members)
	statuses := make(map[string]string, len(members))
	for _, member := range members {
		statuses[member.UserID] = member.Status
	}
	require.Equal(t, map[string]string{"alice": "ACTIVE", "carol": "LEFT"}, statuses)

	page, err := env.Inbox.List(t.Context(), testutil.Bob.ID, 10, "")
	require.NoError(t, err)
	kinds := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		kinds = append(kinds, item.Type)
	}
	require.Equal(t, []string{"MEMBER_REMOVED", "CO_ADMIN_ASSIGNED", "MEMBER_ADDED"}, kinds)
}

func TestGroupArchiveAndDeleteAdminOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	aliceToken := env.Token(testutil.Alice)

	w := env.Request(http.MethodPost, "/api/v1/groups", map[string]any{"name": "Chemistry"}, aliceToken)
	require.Equal(t, http.StatusCreated, w.Code)
	var group groupPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &group)
	path := fmt.Sprintf("/api/v1/groups/%d", group.ID)

	w = env.Request(http.MethodPut, path+"/archive", nil, env.Token(testutil.Bob))
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodPut, path+"/archive", nil, aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	var archived groupPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &archived)
	require.True(t, archived.Archived)

	w = env.Request(http.MethodPost, path+"/members", map[string]any{"userId": testutil.Bob.ID}, aliceToken)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodDelete, path, nil, aliceToken)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.Request(http.MethodGet, path, nil, aliceToken)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodPost, "/api/v1/groups", map[string]any{}, aliceToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
