package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/api"
	"github.com/anaslahboub/app-microservice/internal/app"
	iauth "github.com/anaslahboub/app-microservice/internal/auth"
	"github.com/anaslahboub/app-microservice/internal/cache"
	sharedtestutil "github.com/anaslahboub/app-microservice/internal/database/testutil"
	"github.com/anaslahboub/app-microservice/internal/realtime"
	"github.com/anaslahboub/app-microservice/internal/services"
	"github.com/anaslahboub/app-microservice/internal/userclient"
	"github.com/anaslahboub/app-microservice/pkg/response"
)

// Users known to the test directory.
var (
	Alice = userclient.User{ID: "alice", FirstName: "Alice", LastName: "Martin"}
	Bob   = userclient.User{ID: "bob", FirstName: "Bob", LastName: "Durand"}
	Carol = userclient.User{ID: "carol", FirstName: "Carol", LastName: "Petit"}
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Hub    *realtime.Hub
	Inbox  *services.InboxService
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	hub := realtime.NewHub()
	t.Cleanup(hub.Close)

	store, err := services.NewEventStore(db)
	require.NoError(t, err)
	inbox, err := services.NewInboxService(store, cache.NewDatabaseStore(db), time.Minute)
	require.NoError(t, err)

	dispatcher, err := services.NewDispatcher(db, services.DispatcherConfig{Workers: 2, QueueSize: 64},
		services.WithPublishers(hub),
		services.WithUnreadInvalidator(inbox),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dispatcher.Close(ctx)
	})

	core, err := services.NewCore(db, dispatcher, userclient.NewDirectory(Alice, Bob, Carol))
	require.NoError(t, err)
	toggles, err := services.NewToggleEngine(core, services.NewKeyedLock(4))
	require.NoError(t, err)
	posts, err := services.NewPostService(core)
	require.NoError(t, err)
	comments, err := services.NewCommentService(core)
	require.NoError(t, err)
	media, err := services.NewFileMediaStore(t.TempDir())
	require.NoError(t, err)
	chats, err := services.NewChatService(core, media, services.ChatConfig{MaxMediaBytes: 1 << 20, InlineMediaBytes: 1 << 10})
	require.NoError(t, err)
	groups, err := services.NewGroupService(core)
	require.NoError(t, err)

	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}

	router, err := api.NewRouter(api.Dependencies{
		DB:       db,
		JWT:      jwtSvc,
		Config:   cfg,
		Hub:      hub,
		Inbox:    inbox,
		Toggles:  toggles,
		Posts:    posts,
		Comments: comments,
		Chats:    chats,
		Groups:   groups,
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Hub:    hub,
		Inbox:  inbox,
	}
}

// Token issues an access token for user carrying the given realm roles.
func (e *Env) Token(user userclient.User, roles ...string) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:     user.ID,
		Roles:      roles,
		GivenName:  user.FirstName,
		FamilyName: user.LastName,
	})
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, token)
}

// RequestForm posts URL-encoded form fields.
func (e *Env) RequestForm(method, path string, form map[string]string, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	values := url.Values{}
	for key, value := range form {
		values.Set(key, value)
	}
	body := bytes.NewBufferString(values.Encode())

	req, err := http.NewRequest(method, path, body)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.serve(req, token)
}

// Upload posts data as the multipart field "file".
func (e *Env) Upload(path, filename string, data []byte, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(e.T, err)
	_, err = part.Write(data)
	require.NoError(e.T, err)
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, &body)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.serve(req, token)
}

func (e *Env) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
