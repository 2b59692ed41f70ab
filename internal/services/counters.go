package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anaslahboub/app-microservice/internal/models"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/logger"
	"github.com/anaslahboub/app-microservice/pkg/metrics"
)

// Counter names a denormalised post counter column.
type Counter string

const (
	CounterLikes     Counter = "like_count"
	CounterComments  Counter = "comment_count"
	CounterBookmarks Counter = "bookmark_count"
	CounterUpvotes   Counter = "upvote_count"
	CounterDownvotes Counter = "downvote_count"
)

func (c Counter) valid() bool {
	switch c {
	case CounterLikes, CounterComments, CounterBookmarks, CounterUpvotes, CounterDownvotes:
		return true
	}
	return false
}

// CounterFor returns the counter maintained for an engagement kind.
func CounterFor(kind models.EngagementKind, upvote bool) Counter {
	switch kind {
	case models.EngagementLike:
		return CounterLikes
	case models.EngagementBookmark:
		return CounterBookmarks
	case models.EngagementVote:
		if upvote {
			return CounterUpvotes
		}
		return CounterDownvotes
	}
	return ""
}

// CounterView is a snapshot of a post's counters.
type CounterView struct {
	PostID    int64 `json:"post_id"`
	Likes     int64 `json:"like_count"`
	Comments  int64 `json:"comment_count"`
	Bookmarks int64 `json:"bookmark_count"`
	Upvotes   int64 `json:"upvote_count"`
	Downvotes int64 `json:"downvote_count"`
}

// Value returns the counter named c.
func (v CounterView) Value(c Counter) int64 {
	switch c {
	case CounterLikes:
		return v.Likes
	case CounterComments:
		return v.Comments
	case CounterBookmarks:
		return v.Bookmarks
	case CounterUpvotes:
		return v.Upvotes
	case CounterDownvotes:
		return v.Downvotes
	}
	return 0
}

func counterView(post models.Post) CounterView {
	return CounterView{
		PostID:    post.ID,
		Likes:     post.LikeCount,
		Comments:  post.CommentCount,
		Bookmarks: post.BookmarkCount,
		Upvotes:   post.UpvoteCount,
		Downvotes: post.DownvoteCount,
	}
}

// CounterManager maintains post counters with guarded single-statement updates.
type CounterManager struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewCounterManager constructs a CounterManager.
func NewCounterManager(db *gorm.DB) (*CounterManager, error) {
	if db == nil {
		return nil, errors.New("counter manager: db is required")
	}
	return &CounterManager{db: db, log: logger.WithModule("counters")}, nil
}

// Adjust adds delta to counter on the post inside tx. An update that would
// drive the counter below zero changes nothing and reports an invariant violation.
func (m *CounterManager) Adjust(tx *gorm.DB, postID int64, counter Counter, delta int64) error {
	if !counter.valid() {
		return fmt.Errorf("counter manager: unknown counter %q", counter)
	}
	if delta == 0 {
		return nil
	}

	column := string(counter)
	result := tx.Model(&models.Post{}).
		Where("id = ? AND "+column+" + ? >= 0", postID, delta).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("counter manager: adjust %s: %w", column, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var exists int64
	if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&exists).Error; err != nil {
		return fmt.Errorf("counter manager: check post: %w", err)
	}
	if exists == 0 {
		return apperrors.NewNotFound("post not found")
	}

	metrics.InvariantViolations.WithLabelValues("counter_non_negative").Inc()
	m.log.Error("counter underflow rejected",
		zap.Int64("post_id", postID),
		zap.String("counter", column),
		zap.Int64("delta", delta))
	return apperrors.NewInvariantViolation(fmt.Sprintf("%s would become negative", column))
}

// Swap moves one unit from one counter to another, as a vote flip does.
func (m *CounterManager) Swap(tx *gorm.DB, postID int64, from, to Counter) error {
	if err := m.Adjust(tx, postID, from, -1); err != nil {
		return err
	}
	return m.Adjust(tx, postID, to, 1)
}

// View reads the counters of a post through tx.
func (m *CounterManager) View(tx *gorm.DB, postID int64) (CounterView, error) {
	var post models.Post
	if err := tx.Select("id", "like_count", "comment_count", "bookmark_count", "upvote_count", "downvote_count").
		Take(&post, postID).Error; err != nil {
		return CounterView{}, fmt.Errorf("counter manager: load counters: %w", translateStoreError(err))
	}
	return counterView(post), nil
}

// Get returns the current counters of a post.
func (m *CounterManager) Get(ctx context.Context, postID int64) (CounterView, error) {
	return m.View(m.db.WithContext(ensureContext(ctx)), postID)
}

// Reconcile recomputes every counter of the post from its records and reports
// whether the stored values had drifted.
func (m *CounterManager) Reconcile(ctx context.Context, postID int64) (CounterView, bool, error) {
	ctx = ensureContext(ctx)

	var (
		view    CounterView
		drifted bool
	)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&post, postID).Error; err != nil {
			return translateStoreError(err)
		}

		actual, err := countRecords(tx, postID)
		if err != nil {
			return err
		}

		if actual == counterView(post) {
			view = actual
			return nil
		}

		drifted = true
		view = actual
		return tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumns(map[string]any{
			string(CounterLikes):     actual.Likes,
			string(CounterComments):  actual.Comments,
			string(CounterBookmarks): actual.Bookmarks,
			string(CounterUpvotes):   actual.Upvotes,
			string(CounterDownvotes): actual.Downvotes,
		}).Error
	})
	if err != nil {
		return CounterView{}, false, fmt.Errorf("counter manager: reconcile: %w", err)
	}

	if drifted {
		metrics.InvariantViolations.WithLabelValues("counter_drift").Inc()
		m.log.Warn("post counters drifted from records", zap.Int64("post_id", postID))
	}
	return view, drifted, nil
}

// ReconcileAll reconciles every post and returns how many had drifted.
func (m *CounterManager) ReconcileAll(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)

	var ids []int64
	if err := m.db.WithContext(ctx).Model(&models.Post{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("counter manager: list posts: %w", err)
	}

	corrected := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return corrected, err
		}
		_, drifted, err := m.Reconcile(ctx, id)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return corrected, err
		}
		if drifted {
			corrected++
		}
	}
	return corrected, nil
}

func countRecords(tx *gorm.DB, postID int64) (CounterView, error) {
	view := CounterView{PostID: postID}
	counts := []struct {
		model any
		where string
		args  []any
		dest  *int64
	}{
		{&models.Like{}, "post_id = ?", []any{postID}, &view.Likes},
		{&models.Comment{}, "post_id = ?", []any{postID}, &view.Comments},
		{&models.Bookmark{}, "post_id = ?", []any{postID}, &view.Bookmarks},
		{&models.Vote{}, "post_id = ? AND upvote = ?", []any{postID, true}, &view.Upvotes},
		{&models.Vote{}, "post_id = ? AND upvote = ?", []any{postID, false}, &view.Downvotes},
	}
	for _, c := range counts {
		if err := tx.Model(c.model).Where(c.where, c.args...).Count(c.dest).Error; err != nil {
			return CounterView{}, err
		}
	}
	return view, nil
}
