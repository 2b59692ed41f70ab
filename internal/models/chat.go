package models

import "strings"

// MessageState tracks delivery of a chat message.
type MessageState string

const (
	MessageSent      MessageState = "SENT"
	MessageDelivered MessageState = "DELIVERED"
	MessageSeen      MessageState = "SEEN"
)

// CanTransitionTo reports whether moving from s to next follows SENT → DELIVERED → SEEN.
// DELIVERED is optional so SENT may jump straight to SEEN.
func (s MessageState) CanTransitionTo(next MessageState) bool {
	switch s {
	case MessageSent:
		return next == MessageDelivered || next == MessageSeen
	case MessageDelivered:
		return next == MessageSeen
	}
	return false
}

// MessageType classifies message content.
type MessageType string

const (
	MessageText  MessageType = "TEXT"
	MessageImage MessageType = "IMAGE"
	MessageVideo MessageType = "VIDEO"
	MessageAudio MessageType = "AUDIO"
)

// ParseMessageType normalises user supplied message types, defaulting to TEXT.
func ParseMessageType(raw string) (MessageType, bool) {
	switch MessageType(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", MessageText:
		return MessageText, true
	case MessageImage:
		return MessageImage, true
	case MessageVideo:
		return MessageVideo, true
	case MessageAudio:
		return MessageAudio, true
	}
	return "", false
}

// Chat is a one-to-one conversation between two users.
type Chat struct {
	BaseModel

	SenderID    string `gorm:"type:varchar(64);not null;index" json:"sender_id"`
	RecipientID string `gorm:"type:varchar(64);not null;index" json:"recipient_id"`
}

// HasParticipant reports whether userID takes part in the chat.
func (c Chat) HasParticipant(userID string) bool {
	return userID != "" && (c.SenderID == userID || c.RecipientID == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c Chat) OtherParticipant(userID string) (string, bool) {
	switch userID {
	case c.SenderID:
		return c.RecipientID, true
	case c.RecipientID:
		return c.SenderID, true
	}
	return "", false
}

// Message is a single chat message.
type Message struct {
	BaseModel

	ChatID     int64        `gorm:"not null;index:idx_messages_chat_receiver,priority:1" json:"chat_id"`
	SenderID   string       `gorm:"type:varchar(64);not null" json:"sender_id"`
	ReceiverID string       `gorm:"type:varchar(64);not null;index:idx_messages_chat_receiver,priority:2" json:"receiver_id"`
	Type       MessageType  `gorm:"type:varchar(16);not null;default:'TEXT'" json:"type"`
	Content    string       `gorm:"type:text" json:"content"`
	MediaPath  string       `gorm:"type:varchar(512)" json:"media_path,omitempty"`
	State      MessageState `gorm:"type:varchar(16);not null;default:'SENT';index:idx_messages_chat_receiver,priority:3" json:"state"`
}
