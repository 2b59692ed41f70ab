package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/cache"
	"github.com/anaslahboub/app-microservice/internal/database/testutil"
	"github.com/anaslahboub/app-microservice/internal/models"
	"github.com/anaslahboub/app-microservice/internal/realtime"
	"github.com/anaslahboub/app-microservice/internal/userclient"
)

type publishedMessage struct {
	Route   realtime.Route
	Message realtime.Message
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(_ context.Context, route realtime.Route, message realtime.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{Route: route, Message: message})
	return p.err
}

func (p *recordingPublisher) snapshot() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

type testEnv struct {
	db         *gorm.DB
	users      *userclient.Directory
	publisher  *recordingPublisher
	dispatcher *Dispatcher
	core       *Core
	inbox      *InboxService
	toggles    *ToggleEngine
	posts      *PostService
	comments   *CommentService
	chats      *ChatService
	groups     *GroupService
}

var (
	alice = userclient.User{ID: "alice", FirstName: "Alice", LastName: "Martin"}
	bob   = userclient.User{ID: "bob", FirstName: "Bob", LastName: "Durand"}
	carol = userclient.User{ID: "carol", FirstName: "Carol", LastName: "Petit"}
	dave  = userclient.User{ID: "dave", FirstName: "Dave", LastName: "Roux"}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	users := userclient.NewDirectory(alice, bob, carol, dave)
	publisher := &recordingPublisher{}

	store, err := NewEventStore(db)
	require.NoError(t, err)
	inbox, err := NewInboxService(store, cache.NewDatabaseStore(db), time.Minute)
	require.NoError(t, err)

	dispatcher, err := NewDispatcher(db, DispatcherConfig{Workers: 4, QueueSize: 256},
		WithPublishers(publisher),
		WithUnreadInvalidator(inbox),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dispatcher.Close(ctx)
	})

	core, err := NewCore(db, dispatcher, users)
	require.NoError(t, err)
	toggles, err := NewToggleEngine(core, NewKeyedLock(8))
	require.NoError(t, err)
	posts, err := NewPostService(core)
	require.NoError(t, err)
	comments, err := NewCommentService(core)
	require.NoError(t, err)
	media, err := NewFileMediaStore(t.TempDir())
	require.NoError(t, err)
	chats, err := NewChatService(core, media, ChatConfig{MaxMediaBytes: 1 << 20, InlineMediaBytes: 1 << 10})
	require.NoError(t, err)
	groups, err := NewGroupService(core)
	require.NoError(t, err)

	return &testEnv{
		db:         db,
		users:      users,
		publisher:  publisher,
		dispatcher: dispatcher,
		core:       core,
		inbox:      inbox,
		toggles:    toggles,
		posts:      posts,
		comments:   comments,
		chats:      chats,
		groups:     groups,
	}
}

func (e *testEnv) seedPost(t *testing.T, post models.Post) *models.Post {
	t.Helper()
	if post.Status == "" {
		post.Status = models.PostStatusApproved
	}
	require.NoError(t, e.db.Create(&post).Error)
	return &post
}

func (e *testEnv) notificationsFor(t *testing.T, userID string) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, e.db.
		Where("audience = ? AND audience_key = ?", models.AudienceUser, userID).
		Order("id").
		Find(&rows).Error)
	return rows
}

func (e *testEnv) countNotifications(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.Notification{}).Count(&count).Error)
	return count
}

func (e *testEnv) waitForPublished(t *testing.T, n int) []publishedMessage {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(e.publisher.snapshot()) >= n
	}, 2*time.Second, 10*time.Millisecond)
	return e.publisher.snapshot()
}

func actorOf(user userclient.User, roles ...string) Actor {
	return Actor{ID: user.ID, Roles: roles}
}
