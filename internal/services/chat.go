package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/models"
	"github.com/anaslahboub/app-microservice/internal/userclient"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/logger"
)

const (
	defaultMediaMaxBytes    = 10 << 20
	defaultInlineMediaBytes = 256 << 10
)

// SendMessageInput captures a text message.
type SendMessageInput struct {
	Content string
	Type    string
}

// UploadMediaInput captures an attachment upload.
type UploadMediaInput struct {
	Filename string
	Reader   io.Reader
}

// ChatConfig limits attachment sizes.
type ChatConfig struct {
	MaxMediaBytes    int64
	InlineMediaBytes int64
}

// ChatService manages one-to-one chats, their messages and the seen state.
type ChatService struct {
	core  *Core
	media MediaStore
	cfg   ChatConfig
	log   *zap.Logger
}

// NewChatService constructs a ChatService. Uploads are rejected without a media store.
func NewChatService(core *Core, media MediaStore, cfg ChatConfig) (*ChatService, error) {
	if core == nil {
		return nil, errors.New("chat service: core is required")
	}
	if cfg.MaxMediaBytes <= 0 {
		cfg.MaxMediaBytes = defaultMediaMaxBytes
	}
	if cfg.InlineMediaBytes <= 0 {
		cfg.InlineMediaBytes = defaultInlineMediaBytes
	}
	return &ChatService{core: core, media: media, cfg: cfg, log: logger.WithModule("chat")}, nil
}

// Open returns the chat between the actor and recipient, creating it when absent.
// The boolean reports whether a chat was created.
func (s *ChatService) Open(ctx context.Context, actor Actor, recipientID string) (*models.Chat, bool, error) {
	ctx = ensureContext(ctx)
	recipientID = trimmed(recipientID)
	if recipientID == "" {
		return nil, false, apperrors.NewBadRequest("recipient is required")
	}
	if recipientID == actor.ID {
		return nil, false, apperrors.NewBadRequest("cannot open a chat with yourself")
	}
	if _, err := s.core.lookupUser(ctx, recipientID); err != nil {
		return nil, false, err
	}

	var (
		chat    models.Chat
		created bool
	)
	err := s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, _ *Outbox) error {
		err := tx.Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			actor.ID, recipientID, recipientID, actor.ID).
			Order("id").
			Take(&chat).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("chat service: find chat: %w", err)
		}
		chat = models.Chat{SenderID: actor.ID, RecipientID: recipientID}
		if err := tx.Create(&chat).Error; err != nil {
			return fmt.Errorf("chat service: create chat: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &chat, created, nil
}

// Get loads a chat the actor takes part in.
func (s *ChatService) Get(ctx context.Context, actor Actor, chatID int64) (*models.Chat, error) {
	var chat models.Chat
	if err := s.core.db.WithContext(ensureContext(ctx)).Take(&chat, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errChatNotFound
		}
		return nil, translateStoreError(err)
	}
	if !chat.HasParticipant(actor.ID) {
		return nil, apperrors.NewForbidden("not a participant of this chat")
	}
	return &chat, nil
}

// SendMessage stores a message for the other participant and notifies them.
func (s *ChatService) SendMessage(ctx context.Context, actor Actor, chatID int64, input SendMessageInput) (*models.Message, error) {
	ctx = ensureContext(ctx)
	content := trimmed(input.Content)
	if content == "" {
		return nil, apperrors.NewBadRequest("message content is required")
	}
	kind, ok := models.ParseMessageType(input.Type)
	if !ok {
		return nil, apperrors.NewBadRequest("invalid message type")
	}

	chat, err := s.Get(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	sender, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	receiver, _ := chat.OtherParticipant(actor.ID)

	message := models.Message{
		ChatID:     chat.ID,
		SenderID:   sender.ID,
		ReceiverID: receiver,
		Type:       kind,
		Content:    content,
		State:      models.MessageSent,
	}
	if err := s.deliver(ctx, chat, sender, &message, models.KindMessage, nil); err != nil {
		return nil, err
	}
	return &message, nil
}

// UploadMedia stores an attachment and sends it as a message. Small
// attachments travel inline with the notification.
func (s *ChatService) UploadMedia(ctx context.Context, actor Actor, chatID int64, input UploadMediaInput) (*models.Message, error) {
	ctx = ensureContext(ctx)
	if s.media == nil {
		return nil, apperrors.NewBadRequest("media uploads are disabled")
	}
	if input.Reader == nil {
		return nil, apperrors.NewBadRequest("file is required")
	}

	chat, err := s.Get(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(input.Reader, s.cfg.MaxMediaBytes+1))
	if err != nil {
		return nil, apperrors.NewBadRequest("failed to read file").WithInternal(err)
	}
	if len(data) == 0 {
		return nil, apperrors.NewBadRequest("file is empty")
	}
	if int64(len(data)) > s.cfg.MaxMediaBytes {
		return nil, apperrors.NewBadRequest("file exceeds the maximum size")
	}

	kind, ok := mediaMessageType(data)
	if !ok {
		return nil, apperrors.NewBadRequest("unsupported media type")
	}

	sender, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	path, err := s.media.Save(ctx, filepath.Ext(input.Filename), data)
	if err != nil {
		return nil, err
	}

	receiver, _ := chat.OtherParticipant(actor.ID)
	message := models.Message{
		ChatID:     chat.ID,
		SenderID:   sender.ID,
		ReceiverID: receiver,
		Type:       kind,
		Content:    filepath.Base(trimmed(input.Filename)),
		MediaPath:  path,
		State:      models.MessageSent,
	}

	var inline []byte
	if int64(len(data)) <= s.cfg.InlineMediaBytes {
		inline = data
	}
	notification := models.KindMessage
	if kind == models.MessageImage {
		notification = models.KindImage
	}

	if err := s.deliver(ctx, chat, sender, &message, notification, inline); err != nil {
		if removeErr := s.media.Remove(context.WithoutCancel(ctx), path); removeErr != nil {
			s.log.Warn("failed to remove orphaned media", zap.String("path", path), zap.Error(removeErr))
		}
		return nil, err
	}
	return &message, nil
}

func (s *ChatService) deliver(ctx context.Context, chat *models.Chat, sender userclient.User, message *models.Message, kind models.NotificationKind, media []byte) error {
	return s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("chat service: create message: %w", err)
		}
		_, err := s.core.composer.Emit(tx, out, Event{
			Kind:      kind,
			Origin:    sender,
			Recipient: message.ReceiverID,
			Chat:      chat,
			Message:   message,
			Media:     media,
		})
		return err
	})
}

// ListMessages returns the chat's messages, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, actor Actor, chatID int64) ([]models.Message, error) {
	ctx = ensureContext(ctx)
	if _, err := s.Get(ctx, actor, chatID); err != nil {
		return nil, err
	}

	var messages []models.Message
	if err := s.core.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("chat service: list messages: %w", translateStoreError(err))
	}
	return messages, nil
}

// SetChatSeen marks every message addressed to the viewer as SEEN and, when
// any changed, tells the other participant once.
func (s *ChatService) SetChatSeen(ctx context.Context, actor Actor, chatID int64) (int64, error) {
	ctx = ensureContext(ctx)
	chat, err := s.Get(ctx, actor, chatID)
	if err != nil {
		return 0, err
	}
	viewer, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return 0, err
	}
	other, _ := chat.OtherParticipant(actor.ID)

	var flipped int64
	err = s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		result := tx.Model(&models.Message{}).
			Where("chat_id = ? AND receiver_id = ? AND state <> ?", chat.ID, viewer.ID, models.MessageSeen).
			Update("state", models.MessageSeen)
		if result.Error != nil {
			return fmt.Errorf("chat service: mark seen: %w", result.Error)
		}
		flipped = result.RowsAffected
		if flipped == 0 {
			return nil
		}
		_, err := s.core.composer.Emit(tx, out, Event{
			Kind:      models.KindSeen,
			Origin:    viewer,
			Recipient: other,
			Chat:      chat,
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return flipped, nil
}

// UnreadCount counts messages addressed to the viewer that are not yet SEEN.
func (s *ChatService) UnreadCount(ctx context.Context, actor Actor, chatID int64) (int64, error) {
	ctx = ensureContext(ctx)
	if _, err := s.Get(ctx, actor, chatID); err != nil {
		return 0, err
	}

	var count int64
	if err := s.core.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ? AND receiver_id = ? AND state <> ?", chatID, actor.ID, models.MessageSeen).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("chat service: count unread: %w", translateStoreError(err))
	}
	return count, nil
}

func mediaMessageType(data []byte) (models.MessageType, bool) {
	contentType := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MessageImage, true
	case strings.HasPrefix(contentType, "video/"):
		return models.MessageVideo, true
	case strings.HasPrefix(contentType, "audio/"), contentType == "application/ogg":
		return models.MessageAudio, true
	}
	return "", false
}
