package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anaslahboub/app-microservice/internal/api"
	"github.com/anaslahboub/app-microservice/internal/handlers/testutil"
)

func TestNewRouterRejectsMissingDependencies(t *testing.T) {
	_, err := api.NewRouter(api.Dependencies{})
	require.Error(t, err)
}

func TestRouterServesOperationalEndpoints(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.True(t, resp.Success)

	w = env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "appms_api_latency_seconds")
}

func TestRouterUnknownRouteReturnsNotFound(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/v2/unknown", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestRouterAPIRequiresToken(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/v1/notifications", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodGet, "/api/v1/notifications", nil, "not-a-token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterReadinessReportsChecks(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"component":"database"`)

	w = env.Request(http.MethodGet, "/health/live", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"component":"realtime"`)
}
