package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/models"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
)

const (
	defaultInboxLimit = 25
	maxInboxLimit     = 100
)

// InboxQuery selects a page of a user's inbox.
type InboxQuery struct {
	UserID     string
	OnlyUnread bool
	Limit      int
	Cursor     string
}

// InboxPage is one page of inbox notifications, newest first.
type InboxPage struct {
	Items      []models.Notification
	Limit      int
	NextCursor string
}

// EngagementRecord is the kind-independent view of a like, bookmark or vote.
type EngagementRecord struct {
	ID        int64                 `json:"id"`
	Kind      models.EngagementKind `json:"kind"`
	PostID    int64                 `json:"post_id"`
	UserID    string                `json:"user_id"`
	Upvote    *bool                 `json:"upvote,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// EventStore persists notifications and engagement records.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore constructs an EventStore.
func NewEventStore(db *gorm.DB) (*EventStore, error) {
	if db == nil {
		return nil, errors.New("event store: db is required")
	}
	return &EventStore{db: db}, nil
}

// AppendNotification inserts n inside tx, assigning its id and timestamps.
func (s *EventStore) AppendNotification(tx *gorm.DB, n *models.Notification) error {
	if n == nil {
		return errors.New("event store: notification is required")
	}
	n.IsRead = false
	n.ReadAt = nil
	if err := tx.Create(n).Error; err != nil {
		return fmt.Errorf("event store: append notification: %w", err)
	}
	return nil
}

// ListForUser returns a page of the user's inbox ordered by created_at DESC, id DESC.
// The cursor is the id of the last notification of the previous page.
func (s *EventStore) ListForUser(ctx context.Context, query InboxQuery) (InboxPage, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return InboxPage{}, apperrors.NewBadRequest("user id is required")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	if limit > maxInboxLimit {
		limit = maxInboxLimit
	}

	stmt := s.inbox(ctx, userID)
	if query.OnlyUnread {
		stmt = stmt.Where("is_read = ?", false)
	}

	if cursor := strings.TrimSpace(query.Cursor); cursor != "" {
		cursorID, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil || cursorID <= 0 {
			return InboxPage{}, apperrors.NewBadRequest("invalid cursor")
		}
		var anchor models.Notification
		err = s.inbox(ctx, userID).Select("id", "created_at").Take(&anchor, cursorID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InboxPage{}, apperrors.NewBadRequest("invalid cursor")
		}
		if err != nil {
			return InboxPage{}, fmt.Errorf("event store: load cursor: %w", translateStoreError(err))
		}
		stmt = stmt.Where("(created_at < ? OR (created_at = ? AND id < ?))", anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
	}

	var rows []models.Notification
	if err := stmt.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error; err != nil {
		return InboxPage{}, fmt.Errorf("event store: list notifications: %w", translateStoreError(err))
	}

	page := InboxPage{Limit: limit}
	if len(rows) > limit {
		rows = rows[:limit]
		page.NextCursor = strconv.FormatInt(rows[len(rows)-1].ID, 10)
	}
	page.Items = rows
	return page, nil
}

// CountUnreadForUser counts unread notifications in the user's inbox.
func (s *EventStore) CountUnreadForUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := s.inbox(ensureContext(ctx), userID).
		Where("is_read = ?", false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("event store: count unread: %w", translateStoreError(err))
	}
	return count, nil
}

// MarkRead flips a single unread notification. Read or missing rows are left untouched.
func (s *EventStore) MarkRead(ctx context.Context, userID string, id int64) (bool, error) {
	now := time.Now().UTC()
	result := s.inbox(ensureContext(ctx), userID).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return false, fmt.Errorf("event store: mark read: %w", translateStoreError(result.Error))
	}
	return result.RowsAffected > 0, nil
}

// MarkAllRead flips every unread notification of the user in one statement.
func (s *EventStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	now := time.Now().UTC()
	result := s.inbox(ensureContext(ctx), userID).
		Where("is_read = ?", false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return 0, fmt.Errorf("event store: mark all read: %w", translateStoreError(result.Error))
	}
	return result.RowsAffected, nil
}

// Delete removes a notification from the user's inbox.
func (s *EventStore) Delete(ctx context.Context, userID string, id int64) error {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("id = ? AND audience = ? AND audience_key = ?", id, models.AudienceUser, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("event store: delete notification: %w", translateStoreError(result.Error))
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("notification not found")
	}
	return nil
}

// DeleteReadOlderThan prunes read notifications created before cutoff.
func (s *EventStore) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("event store: prune notifications: %w", translateStoreError(result.Error))
	}
	return result.RowsAffected, nil
}

// FindEngagement loads the user's record of kind on the post, if any.
func (s *EventStore) FindEngagement(tx *gorm.DB, kind models.EngagementKind, postID int64, userID string) (EngagementRecord, bool, error) {
	var (
		record EngagementRecord
		err    error
	)
	switch kind {
	case models.EngagementLike:
		var like models.Like
		err = tx.Where("post_id = ? AND user_id = ?", postID, userID).Take(&like).Error
		record = likeRecord(like)
	case models.EngagementBookmark:
		var bookmark models.Bookmark
		err = tx.Where("post_id = ? AND user_id = ?", postID, userID).Take(&bookmark).Error
		record = bookmarkRecord(bookmark)
	case models.EngagementVote:
		var vote models.Vote
		err = tx.Where("post_id = ? AND user_id = ?", postID, userID).Take(&vote).Error
		record = voteRecord(vote)
	default:
		return EngagementRecord{}, false, fmt.Errorf("event store: unknown engagement kind %q", kind)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return EngagementRecord{}, false, nil
	}
	if err != nil {
		return EngagementRecord{}, false, fmt.Errorf("event store: find %s: %w", kind, err)
	}
	return record, true, nil
}

// InsertEngagement creates a record of kind. upvote is only used for votes.
func (s *EventStore) InsertEngagement(tx *gorm.DB, kind models.EngagementKind, postID int64, userID string, upvote bool) (EngagementRecord, error) {
	var (
		record EngagementRecord
		err    error
	)
	switch kind {
	case models.EngagementLike:
		like := models.Like{PostID: postID, UserID: userID}
		err = tx.Create(&like).Error
		record = likeRecord(like)
	case models.EngagementBookmark:
		bookmark := models.Bookmark{PostID: postID, UserID: userID}
		err = tx.Create(&bookmark).Error
		record = bookmarkRecord(bookmark)
	case models.EngagementVote:
		vote := models.Vote{PostID: postID, UserID: userID, Upvote: upvote}
		err = tx.Create(&vote).Error
		record = voteRecord(vote)
	default:
		return EngagementRecord{}, fmt.Errorf("event store: unknown engagement kind %q", kind)
	}
	if err != nil {
		return EngagementRecord{}, fmt.Errorf("event store: insert %s: %w", kind, err)
	}
	return record, nil
}

// DeleteEngagement removes a record of kind by id.
func (s *EventStore) DeleteEngagement(tx *gorm.DB, kind models.EngagementKind, id int64) error {
	var model any
	switch kind {
	case models.EngagementLike:
		model = &models.Like{}
	case models.EngagementBookmark:
		model = &models.Bookmark{}
	case models.EngagementVote:
		model = &models.Vote{}
	default:
		return fmt.Errorf("event store: unknown engagement kind %q", kind)
	}
	if err := tx.Where("id = ?", id).Delete(model).Error; err != nil {
		return fmt.Errorf("event store: delete %s: %w", kind, err)
	}
	return nil
}

// UpdateVote flips the polarity of an existing vote in place.
func (s *EventStore) UpdateVote(tx *gorm.DB, id int64, upvote bool) error {
	if err := tx.Model(&models.Vote{}).
		Where("id = ?", id).
		Updates(map[string]any{"upvote": upvote, "updated_at": time.Now().UTC()}).Error; err != nil {
		return fmt.Errorf("event store: update vote: %w", err)
	}
	return nil
}

func (s *EventStore) inbox(ctx context.Context, userID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("audience = ? AND audience_key = ?", models.AudienceUser, userID)
}

func likeRecord(like models.Like) EngagementRecord {
	return EngagementRecord{ID: like.ID, Kind: models.EngagementLike, PostID: like.PostID, UserID: like.UserID, CreatedAt: like.CreatedAt}
}

func bookmarkRecord(bookmark models.Bookmark) EngagementRecord {
	return EngagementRecord{ID: bookmark.ID, Kind: models.EngagementBookmark, PostID: bookmark.PostID, UserID: bookmark.UserID, CreatedAt: bookmark.CreatedAt}
}

func voteRecord(vote models.Vote) EngagementRecord {
	upvote := vote.Upvote
	return EngagementRecord{ID: vote.ID, Kind: models.EngagementVote, PostID: vote.PostID, UserID: vote.UserID, Upvote: &upvote, CreatedAt: vote.CreatedAt}
}
