package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/models"
	"github.com/anaslahboub/app-microservice/internal/userclient"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/logger"
	"github.com/anaslahboub/app-microservice/pkg/metrics"
)

// ToggleAction reports what a toggle did.
type ToggleAction string

const (
	ToggleAdded   ToggleAction = "added"
	ToggleRemoved ToggleAction = "removed"
	ToggleChanged ToggleAction = "changed"
)

// ToggleResult describes the state after a toggle.
type ToggleResult struct {
	Action   ToggleAction
	Kind     models.EngagementKind
	Record   *EngagementRecord
	Upvote   *bool
	Counters CounterView
}

// Active reports whether the user holds the relation after the toggle.
func (r ToggleResult) Active() bool {
	return r.Record != nil
}

// Count returns the counter backing the toggled relation.
func (r ToggleResult) Count() int64 {
	upvote := r.Upvote != nil && *r.Upvote
	return r.Counters.Value(CounterFor(r.Kind, upvote))
}

// ToggleEngine flips likes, bookmarks and votes. Each (post, user, relation)
// has a single writer inside this process; the unique indexes cover other
// instances.
type ToggleEngine struct {
	core  *Core
	locks *KeyedLock
	log   *zap.Logger
}

// NewToggleEngine constructs a ToggleEngine.
func NewToggleEngine(core *Core, locks *KeyedLock) (*ToggleEngine, error) {
	if core == nil {
		return nil, errors.New("toggle engine: core is required")
	}
	if locks == nil {
		locks = NewKeyedLock(0)
	}
	return &ToggleEngine{core: core, locks: locks, log: logger.WithModule("toggle")}, nil
}

// ToggleLike likes or unlikes a post.
func (e *ToggleEngine) ToggleLike(ctx context.Context, postID int64, userID string) (ToggleResult, error) {
	return e.toggle(ctx, postID, userID, models.EngagementLike, false)
}

// ToggleBookmark bookmarks or unbookmarks a post.
func (e *ToggleEngine) ToggleBookmark(ctx context.Context, postID int64, userID string) (ToggleResult, error) {
	return e.toggle(ctx, postID, userID, models.EngagementBookmark, false)
}

// ToggleVote casts, withdraws or flips a vote. Voting twice with the same
// polarity withdraws the vote.
func (e *ToggleEngine) ToggleVote(ctx context.Context, postID int64, userID string, upvote bool) (ToggleResult, error) {
	return e.toggle(ctx, postID, userID, models.EngagementVote, upvote)
}

func (e *ToggleEngine) toggle(ctx context.Context, postID int64, userID string, kind models.EngagementKind, upvote bool) (ToggleResult, error) {
	ctx = ensureContext(ctx)

	if _, err := e.core.loadPost(ctx, postID); err != nil {
		return ToggleResult{}, err
	}
	origin, err := e.core.lookupUser(ctx, userID)
	if err != nil {
		return ToggleResult{}, err
	}

	unlock, err := e.locks.Lock(ctx, fmt.Sprintf("%d:%s:%s", postID, origin.ID, kind))
	if err != nil {
		return ToggleResult{}, translateStoreError(err)
	}
	defer unlock()

	var result ToggleResult
	for attempt := 0; attempt < 2; attempt++ {
		result, err = e.toggleOnce(ctx, postID, origin, kind, upvote)
		if !errors.Is(err, apperrors.ErrConflict) {
			break
		}
		e.log.Debug("toggle raced with another writer",
			zap.Int64("post_id", postID),
			zap.String("user_id", origin.ID),
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return ToggleResult{}, err
	}

	metrics.EngagementToggles.WithLabelValues(string(kind), string(result.Action)).Inc()
	return result, nil
}

func (e *ToggleEngine) toggleOnce(ctx context.Context, postID int64, origin userclient.User, kind models.EngagementKind, upvote bool) (ToggleResult, error) {
	result := ToggleResult{Kind: kind}
	store := e.core.store
	counters := e.core.counters

	err := e.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		var post models.Post
		if err := tx.Take(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errPostNotFound
			}
			return err
		}

		existing, found, err := store.FindEngagement(tx, kind, postID, origin.ID)
		if err != nil {
			return err
		}

		switch {
		case !found:
			record, err := store.InsertEngagement(tx, kind, postID, origin.ID, upvote)
			if err != nil {
				return err
			}
			if err := counters.Adjust(tx, postID, CounterFor(kind, upvote), 1); err != nil {
				return err
			}
			result.Action = ToggleAdded
			result.Record = &record

		case kind != models.EngagementVote || *existing.Upvote == upvote:
			if err := store.DeleteEngagement(tx, kind, existing.ID); err != nil {
				return err
			}
			if err := counters.Adjust(tx, postID, CounterFor(kind, existing.Upvote != nil && *existing.Upvote), -1); err != nil {
				return err
			}
			result.Action = ToggleRemoved

		default:
			if err := store.UpdateVote(tx, existing.ID, upvote); err != nil {
				return err
			}
			if err := counters.Swap(tx, postID, CounterFor(kind, !upvote), CounterFor(kind, upvote)); err != nil {
				return err
			}
			existing.Upvote = &upvote
			result.Action = ToggleChanged
			result.Record = &existing
		}

		if kind == models.EngagementVote && result.Action != ToggleRemoved {
			polarity := upvote
			result.Upvote = &polarity
		}

		if result.Action != ToggleRemoved {
			if _, err := e.core.composer.Emit(tx, out, Event{
				Kind:   engagementNotification(kind, upvote),
				Origin: origin,
				Post:   &post,
			}); err != nil {
				return err
			}
		}

		view, err := counters.View(tx, postID)
		if err != nil {
			return err
		}
		result.Counters = view
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}
	return result, nil
}

func engagementNotification(kind models.EngagementKind, upvote bool) models.NotificationKind {
	switch kind {
	case models.EngagementLike:
		return models.KindPostLiked
	case models.EngagementBookmark:
		return models.KindPostBookmarked
	}
	if upvote {
		return models.KindPostUpvoted
	}
	return models.KindPostDownvoted
}
