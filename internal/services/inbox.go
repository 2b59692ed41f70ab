package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anaslahboub/app-microservice/internal/cache"
	"github.com/anaslahboub/app-microservice/internal/models"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/logger"
	"github.com/anaslahboub/app-microservice/pkg/metrics"
)

const defaultUnreadTTL = 10 * time.Minute

// NotificationDTO is the API and realtime representation of a notification.
type NotificationDTO struct {
	ID             int64          `json:"id"`
	Type           string         `json:"type"`
	Audience       string         `json:"audience"`
	OriginUserID   string         `json:"originUserId,omitempty"`
	OriginUserName string         `json:"originUserName,omitempty"`
	SubjectType    string         `json:"subjectType,omitempty"`
	SubjectID      int64          `json:"subjectId,omitempty"`
	PostID         *int64         `json:"postId,omitempty"`
	ChatID         *int64         `json:"chatId,omitempty"`
	GroupID        *int64         `json:"groupId,omitempty"`
	GroupName      string         `json:"groupName,omitempty"`
	ChatName       string         `json:"chatName,omitempty"`
	MessageType    string         `json:"messageType,omitempty"`
	Content        string         `json:"content,omitempty"`
	Message        string         `json:"message"`
	Media          []byte         `json:"media,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IsRead         bool           `json:"isRead"`
	ReadAt         *time.Time     `json:"readAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// MapNotification converts a stored notification into its DTO.
func MapNotification(n models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:             n.ID,
		Type:           string(n.Kind),
		Audience:       string(n.Audience),
		OriginUserID:   n.OriginUserID,
		OriginUserName: n.OriginUserName,
		SubjectType:    n.SubjectType,
		SubjectID:      n.SubjectID,
		PostID:         n.PostID,
		ChatID:         n.ChatID,
		GroupID:        n.GroupID,
		GroupName:      n.GroupName,
		ChatName:       n.ChatName,
		MessageType:    n.MessageType,
		Content:        n.Content,
		Message:        n.Message,
		Media:          n.Media,
		IsRead:         n.IsRead,
		ReadAt:         n.ReadAt,
		CreatedAt:      n.CreatedAt,
	}
	if len(n.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(n.Metadata, &meta); err == nil {
			dto.Metadata = meta
		}
	}
	return dto
}

// MapNotifications converts a slice of notifications.
func MapNotifications(rows []models.Notification) []NotificationDTO {
	out := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, MapNotification(row))
	}
	return out
}

// NotificationPage is a page of inbox DTOs.
type NotificationPage struct {
	Items      []NotificationDTO
	Limit      int
	NextCursor string
}

// InboxService serves a user's notification inbox and its cached unread count.
type InboxService struct {
	store *EventStore
	cache cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewInboxService constructs an InboxService. A nil cache disables caching.
func NewInboxService(store *EventStore, cacheStore cache.Store, ttl time.Duration) (*InboxService, error) {
	if store == nil {
		return nil, errors.New("inbox service: event store is required")
	}
	if ttl <= 0 {
		ttl = defaultUnreadTTL
	}
	return &InboxService{
		store: store,
		cache: cacheStore,
		ttl:   ttl,
		log:   logger.WithModule("inbox"),
	}, nil
}

// List returns a page of the user's notifications, newest first.
func (s *InboxService) List(ctx context.Context, userID string, limit int, cursor string) (NotificationPage, error) {
	return s.list(ctx, InboxQuery{UserID: userID, Limit: limit, Cursor: cursor})
}

// ListUnread returns a page of the user's unread notifications.
func (s *InboxService) ListUnread(ctx context.Context, userID string, limit int, cursor string) (NotificationPage, error) {
	return s.list(ctx, InboxQuery{UserID: userID, OnlyUnread: true, Limit: limit, Cursor: cursor})
}

func (s *InboxService) list(ctx context.Context, query InboxQuery) (NotificationPage, error) {
	page, err := s.store.ListForUser(ctx, query)
	if err != nil {
		return NotificationPage{}, err
	}
	return NotificationPage{
		Items:      MapNotifications(page.Items),
		Limit:      page.Limit,
		NextCursor: page.NextCursor,
	}, nil
}

// UnreadCount returns the user's unread count, reading through the cache.
func (s *InboxService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, apperrors.NewBadRequest("user id is required")
	}

	key := unreadCacheKey(userID)
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.log.Warn("unread cache read failed", zap.String("user_id", userID), zap.Error(err))
		case ok:
			if count, parseErr := strconv.ParseInt(string(raw), 10, 64); parseErr == nil {
				metrics.UnreadCacheLookups.WithLabelValues("hit").Inc()
				return count, nil
			}
		}
		metrics.UnreadCacheLookups.WithLabelValues("miss").Inc()
	}

	count, err := s.store.CountUnreadForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, []byte(strconv.FormatInt(count, 10)), s.ttl); err != nil {
			s.log.Warn("unread cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return count, nil
}

// MarkRead marks one notification read. Unknown or already read ids are a no-op.
func (s *InboxService) MarkRead(ctx context.Context, userID string, id int64) error {
	flipped, err := s.store.MarkRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if flipped {
		s.invalidate(ctx, userID)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read.
func (s *InboxService) MarkAllRead(ctx context.Context, userID string) error {
	flipped, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return err
	}
	if flipped > 0 {
		s.invalidate(ctx, userID)
	}
	return nil
}

// Delete removes a notification from the user's inbox.
func (s *InboxService) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// InvalidateUnread drops the cached unread count of the user.
func (s *InboxService) InvalidateUnread(ctx context.Context, userID string) error {
	if s.cache == nil || userID == "" {
		return nil
	}
	if err := s.cache.Delete(ensureContext(ctx), unreadCacheKey(userID)); err != nil {
		return fmt.Errorf("inbox service: invalidate unread: %w", err)
	}
	return nil
}

func (s *InboxService) invalidate(ctx context.Context, userID string) {
	if err := s.InvalidateUnread(ctx, userID); err != nil {
		s.log.Warn("failed to invalidate unread count", zap.String("user_id", userID), zap.Error(err))
	}
}

func unreadCacheKey(userID string) string {
	return "notifications:user:" + userID + ":unread"
}
