package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anaslahboub/app-microservice/internal/models"
	"github.com/anaslahboub/app-microservice/internal/realtime"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
)

func TestToggleLikeRoundTripNotifiesAuthor(t *testing.T) {
	env := newTestEnv(t)
	post := env.seedPost(t, models.Post{AuthorID: alice.ID, Content: "Quiz on Monday", LikeCount: 7})

	result, err := env.toggles.ToggleLike(context.Background(), post.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, ToggleAdded, result.Action)
	require.True(t, result.Active())
	require.EqualValues(t, 8, result.Count())

	inbox := env.notificationsFor(t, alice.ID)
	require.Len(t, inbox, 1)
	require.Equal(t, models.KindPostLiked, inbox[0].Kind)
	require.Equal(t, "Bob Durand liked your post", inbox[0].Message)
	require.Equal(t, "Quiz on Monday", inbox[0].Content)
	require.Equal(t, bob.ID, inbox[0].OriginUserID)
	require.NotNil(t, inbox[0].PostID)
	require.Equal(t, post.ID, *inbox[0].PostID)

	published := env.waitForPublished(t, 1)
	require.Equal(t, realtime.ToUser(alice.ID, realtime.DestinationUserNotifications), published[0].Route)
	require.Equal(t, string(models.KindPostLiked), published[0].Message.Event)
	dto, ok := published[0].Message.Data.(NotificationDTO)
	require.True(t, ok)
	require.Equal(t, inbox[0].ID, dto.ID)

	result, err = env.toggles.ToggleLike(context.Background(), post.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, ToggleRemoved, result.Action)
	require.False(t, result.Active())
	require.EqualValues(t, 7, result.Count())
	require.Len(t, env.notificationsFor(t, alice.ID), 1)

	var likes int64
	require.NoError(t, env.db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likes).Error)
	require.Zero(t, likes)
}

func TestSelfEngagementDoesNotNotify(t *testing.T) {
	env := newTestEnv(t)
	post := env.seedPost(t, models.Post{AuthorID: carol.ID, Content: "My own post"})

	result, err := env.toggles.ToggleLike(context.Background(), post.ID, carol.ID)
	require.NoError(t, err)
	require.Equal(t, ToggleAdded, result.Action)
	require.EqualValues(t, 1, result.Count())

	_, err = env.toggles.ToggleBookmark(context.Background(), post.ID, carol.ID)
	require.NoError(t, err)
	_, err = env.toggles.ToggleVote(context.Background(), post.ID, carol.ID, true)
	require.NoError(t, err)

	require.Zero(t, env.countNotifications(t))
}

func TestToggleVoteFlipSwapsCounters(t *testing.T) {
	env := newTestEnv(t)
	post := env.seedPost(t, models.Post{AuthorID: alice.ID, Content: "Vote on the field trip", UpvoteCount: 5, DownvoteCount: 2})
	require.NoError(t, env.db.Create(&models.Vote{PostID: post.ID, UserID: bob.ID, Upvote: true}).Error)

	result, err := env.toggles.ToggleVote(context.Background(), post.ID, bob.ID, false)
	require.NoError(t, err)
	require.Equal(t, ToggleChanged, result.Action)
	require.NotNil(t, result.Upvote)
	require.False(t, *result.Upvote)
	require.NotNil(t, result.Record)
	require.False(t, *result.Record.Upvote)
	require.EqualValues(t, 4, result.Counters.Upvotes)
	require.EqualValues(t, 3, result.Counters.Downvotes)

	var votes []models.Vote
	require.NoError(t, env.db.Where("post_id = ?", post.ID).Find(&votes).Error)
	require.Len(t, votes, 1)
	require.False(t, votes[0].Upvote)

	inbox := env.notificationsFor(t, alice.ID)
	require.Len(t, inbox, 1)
	require.Equal(t, models.KindPostDownvoted, inbox[0].Kind)
	require.Equal(t, "Bob Durand downvoted your post", inbox[0].Message)
}

func TestToggleVoteSamePolarityWithdraws(t *testing.T) {
	env := newTestEnv(t)
	post := env.seedPost(t, models.Post{AuthorID: alice.ID})

	result, err := env.toggles.ToggleVote(context.Background(), post.ID, bob.ID, true)
	require.NoError(t, err)
	require.Equal(t, ToggleAdded, result.Action)
	require.EqualValues(t, 1, result.Counters.Upvotes)

	result, err = env.toggles.ToggleVote(context.Background(), post.ID, bob.ID, true)
	require.NoError(t, err)
	require.Equal(t, ToggleRemoved, result.Action)
	require.Nil(t, result.Record)
	require.Zero(t, result.Counters.Upvotes)
	require.Zero(t, result.Counters.Downvotes)
}

func TestToggleBookmarkDoubleToggleRestoresState(t *testing.T) {
	env := newTestEnv(t)
	post := env.seedPost(t, models.Post{AuthorID: alice.ID, BookmarkCount: 3})
	for i := 0; i < 3; i++ {
		require.NoError(t, env.db.Create(&models.Bookmark{PostID: post.ID, UserID: "seed-" + string(rune('a'+i))}).Error)
	}

	first, err := env.toggles.ToggleBookmark(context.Background(), post.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, ToggleAdded, first.Action)
	require.EqualValues(t, 4, first.Count())

	second, err := env.toggles.ToggleBookmark(context.Background(), post.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, ToggleRemoved, second.Action)
	require.EqualValues(t, 3, second.Count())

	view, drifted, err := env.core.Counters().Reconcile(context.Background(), post.ID)
	require.NoError(t, err)
	require.False(t, drifted)
	require.EqualValues(t, 3, view.Bookmarks)
}

func TestToggleErrors(t *testing.T) {
	env := newTestEnv(t)
	post := env.seedPost(t, models.Post{AuthorID: alice.ID})

	_, err := env.toggles.ToggleLike(context.Background(), post.ID+100, bob.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.toggles.ToggleLike(context.Background(), post.ID, "ghost")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.toggles.ToggleLike(context.Background(), post.ID, "")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	require.Zero(t, env.countNotifications(t))
}

func TestToggleUnderflowIsInvariantViolation(t *testing.T) {
	env := newTestEnv(t)
	post := env.seedPost(t, models.Post{AuthorID: alice.ID})
	// A record without its counter increment simulates drift.
	require.NoError(t, env.db.Create(&models.Like{PostID: post.ID, UserID: bob.ID}).Error)

	_, err := env.toggles.ToggleLike(context.Background(), post.ID, bob.ID)
	require.ErrorIs(t, err, apperrors.ErrInvariantViolation)

	var likes int64
	require.NoError(t, env.db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likes).Error)
	require.EqualValues(t, 1, likes)
}

func TestParallelTogglesSettleOnParity(t *testing.T) {
	for _, n := range []int{6, 7} {
		env := newTestEnv(t)
		post := env.seedPost(t, models.Post{AuthorID: alice.ID, LikeCount: 2})
		require.NoError(t, env.db.Create(&models.Like{PostID: post.ID, UserID: "x"}).Error)
		require.NoError(t, env.db.Create(&models.Like{PostID: post.ID, UserID: "y"}).Error)

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.toggles.ToggleLike(context.Background(), post.ID, bob.ID)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		view, err := env.core.Counters().Get(context.Background(), post.ID)
		require.NoError(t, err)

		var present int64
		require.NoError(t, env.db.Model(&models.Like{}).Where("post_id = ? AND user_id = ?", post.ID, bob.ID).Count(&present).Error)
		if n%2 == 1 {
			require.EqualValues(t, 1, present)
			require.EqualValues(t, 3, view.Likes)
		} else {
			require.Zero(t, present)
			require.EqualValues(t, 2, view.Likes)
		}
		require.Zero(t, env.toggles.locks.Len())
	}
}

func TestParallelOpposingVotesLeaveSingleDownvote(t *testing.T) {
	env := newTestEnv(t)
	post := env.seedPost(t, models.Post{AuthorID: alice.ID})

	const n = 5
	run := func(upvote bool) {
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.toggles.ToggleVote(context.Background(), post.ID, bob.ID, upvote)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
	}

	run(true)
	run(false)

	// Five up-votes leave an up-vote; the first down-vote flips it and the
	// remaining four alternate between withdrawing and casting.
	var votes []models.Vote
	require.NoError(t, env.db.Where("post_id = ?", post.ID).Find(&votes).Error)
	require.Len(t, votes, 1)
	require.False(t, votes[0].Upvote)

	view, err := env.core.Counters().Get(context.Background(), post.ID)
	require.NoError(t, err)
	require.Zero(t, view.Upvotes)
	require.EqualValues(t, 1, view.Downvotes)
}

func TestToggleTimesOutWaitingForLock(t *testing.T) {
	env := newTestEnv(t)
	post := env.seedPost(t, models.Post{AuthorID: alice.ID})

	unlock, err := env.toggles.locks.Lock(context.Background(), fmt.Sprintf("%d:%s:%s", post.ID, bob.ID, models.EngagementLike))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = env.toggles.ToggleLike(ctx, post.ID, bob.ID)
	require.ErrorIs(t, err, apperrors.ErrTimeout)
	unlock()

	var likes int64
	require.NoError(t, env.db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likes).Error)
	require.Zero(t, likes)
	require.Zero(t, env.countNotifications(t))

	result, err := env.toggles.ToggleLike(context.Background(), post.ID, bob.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, result.Count())
}
