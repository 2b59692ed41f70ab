package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anaslahboub/app-microservice/internal/models"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
)

func seedInbox(t *testing.T, env *testEnv, userID string, count int) []models.Notification {
	t.Helper()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := make([]models.Notification, 0, count)
	for i := 0; i < count; i++ {
		n := models.Notification{
			Kind:        models.KindPostLiked,
			Audience:    models.AudienceUser,
			AudienceKey: userID,
			Message:     "notification " + strconv.Itoa(i),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, env.db.Create(&n).Error)
		rows = append(rows, n)
	}
	return rows
}

func TestInboxUnreadCountReadAllStaysZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedInbox(t, env, alice.ID, 4)
	seedInbox(t, env, bob.ID, 2)

	count, err := env.inbox.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 4, count)

	require.NoError(t, env.inbox.MarkAllRead(ctx, alice.ID))
	count, err = env.inbox.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, env.inbox.MarkAllRead(ctx, alice.ID))
	count, err = env.inbox.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	count, err = env.inbox.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestInboxUnreadCountIsInvalidatedByNewNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	post := env.seedPost(t, models.Post{AuthorID: alice.ID})

	count, err := env.inbox.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = env.toggles.ToggleLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	count, err = env.inbox.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestInboxMarkReadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rows := seedInbox(t, env, alice.ID, 2)

	require.NoError(t, env.inbox.MarkRead(ctx, alice.ID, rows[0].ID))

	var first models.Notification
	require.NoError(t, env.db.First(&first, rows[0].ID).Error)
	require.True(t, first.IsRead)
	require.NotNil(t, first.ReadAt)
	readAt := *first.ReadAt

	require.NoError(t, env.inbox.MarkRead(ctx, alice.ID, rows[0].ID))
	require.NoError(t, env.db.First(&first, rows[0].ID).Error)
	require.True(t, readAt.Equal(*first.ReadAt))

	// Missing ids and other users' notifications are left alone.
	require.NoError(t, env.inbox.MarkRead(ctx, alice.ID, 9999))
	require.NoError(t, env.inbox.MarkRead(ctx, bob.ID, rows[1].ID))

	count, err := env.inbox.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestInboxDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rows := seedInbox(t, env, alice.ID, 1)

	require.ErrorIs(t, env.inbox.Delete(ctx, bob.ID, rows[0].ID), apperrors.ErrNotFound)
	require.NoError(t, env.inbox.Delete(ctx, alice.ID, rows[0].ID))
	require.ErrorIs(t, env.inbox.Delete(ctx, alice.ID, rows[0].ID), apperrors.ErrNotFound)
}

func TestInboxListPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rows := seedInbox(t, env, alice.ID, 5)

	page, err := env.inbox.List(ctx, alice.ID, 2, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, rows[4].ID, page.Items[0].ID)
	require.Equal(t, rows[3].ID, page.Items[1].ID)
	require.Equal(t, strconv.FormatInt(rows[3].ID, 10), page.NextCursor)

	page, err = env.inbox.List(ctx, alice.ID, 2, page.NextCursor)
	require.NoError(t, err)
	require.Equal(t, []int64{rows[2].ID, rows[1].ID}, []int64{page.Items[0].ID, page.Items[1].ID})

	page, err = env.inbox.List(ctx, alice.ID, 2, page.NextCursor)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, rows[0].ID, page.Items[0].ID)
	require.Empty(t, page.NextCursor)

	_, err = env.inbox.List(ctx, alice.ID, 2, "not-a-cursor")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	page, err = env.inbox.List(ctx, alice.ID, 0, "")
	require.NoError(t, err)
	require.Equal(t, defaultInboxLimit, page.Limit)

	page, err = env.inbox.List(ctx, alice.ID, 1000, "")
	require.NoError(t, err)
	require.Equal(t, maxInboxLimit, page.Limit)
}

func TestInboxListUnread(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rows := seedInbox(t, env, alice.ID, 3)
	require.NoError(t, env.inbox.MarkRead(ctx, alice.ID, rows[1].ID))

	page, err := env.inbox.ListUnread(ctx, alice.ID, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	for _, item := range page.Items {
		require.False(t, item.IsRead)
		require.NotEqual(t, rows[1].ID, item.ID)
	}
}

func TestEventStoreDeleteReadOlderThan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rows := seedInbox(t, env, alice.ID, 3)
	require.NoError(t, env.inbox.MarkRead(ctx, alice.ID, rows[0].ID))
	require.NoError(t, env.inbox.MarkRead(ctx, alice.ID, rows[2].ID))

	pruned, err := env.core.Store().DeleteReadOlderThan(ctx, rows[1].CreatedAt)
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)

	var remaining int64
	require.NoError(t, env.db.Model(&models.Notification{}).Count(&remaining).Error)
	require.EqualValues(t, 2, remaining)
}

func TestMapNotificationDecodesMetadata(t *testing.T) {
	dto := MapNotification(models.Notification{
		ID:       7,
		Kind:     models.KindNewComment,
		Audience: models.AudienceUser,
		Message:  "Bob Durand commented on your post",
		Metadata: metadata(map[string]any{"comment_id": 3}),
	})
	require.Equal(t, "NEW_COMMENT", dto.Type)
	require.EqualValues(t, 3, dto.Metadata["comment_id"])
}
