package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationKind is the tag of the notification variant.
type NotificationKind string

const (
	KindNewPost         NotificationKind = "NEW_POST"
	KindPostLiked       NotificationKind = "POST_LIKED"
	KindPostBookmarked  NotificationKind = "POST_BOOKMARKED"
	KindPostUpvoted     NotificationKind = "POST_UPVOTED"
	KindPostDownvoted   NotificationKind = "POST_DOWNVOTED"
	KindNewComment      NotificationKind = "NEW_COMMENT"
	KindPostApproved    NotificationKind = "POST_APPROVED"
	KindMessage         NotificationKind = "MESSAGE"
	KindSeen            NotificationKind = "SEEN"
	KindImage           NotificationKind = "IMAGE"
	KindMemberAdded     NotificationKind = "MEMBER_ADDED"
	KindMemberRemoved   NotificationKind = "MEMBER_REMOVED"
	KindMemberLeft      NotificationKind = "MEMBER_LEFT"
	KindCoAdminAssigned NotificationKind = "CO_ADMIN_ASSIGNED"
	KindGroupCreated    NotificationKind = "GROUP_CREATED"
	KindGroupDeleted    NotificationKind = "GROUP_DELETED"
	KindGroupArchived   NotificationKind = "GROUP_ARCHIVED"
)

// Audience describes who a notification is routed to.
type Audience string

const (
	AudienceUser  Audience = "user"
	AudienceTopic Audience = "topic"
	AudienceGroup Audience = "group"
)

// Notification is a durable user-facing event record. Kind specific payload
// fields are optional; anything else lives in Metadata.
type Notification struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Kind        NotificationKind `gorm:"type:varchar(32);not null;index" json:"kind"`
	Audience    Audience         `gorm:"type:varchar(16);not null;index:idx_notifications_inbox,priority:1" json:"audience"`
	AudienceKey string           `gorm:"type:varchar(128);not null;index:idx_notifications_inbox,priority:2" json:"audience_key"`

	OriginUserID   string `gorm:"type:varchar(64);index" json:"origin_user_id"`
	OriginUserName string `gorm:"type:varchar(255)" json:"origin_user_name,omitempty"`

	SubjectType string `gorm:"type:varchar(32)" json:"subject_type,omitempty"`
	SubjectID   int64  `json:"subject_id,omitempty"`

	PostID      *int64 `json:"post_id,omitempty"`
	ChatID      *int64 `json:"chat_id,omitempty"`
	GroupID     *int64 `json:"group_id,omitempty"`
	GroupName   string `gorm:"type:varchar(255)" json:"group_name,omitempty"`
	ChatName    string `gorm:"type:varchar(255)" json:"chat_name,omitempty"`
	MessageType string `gorm:"type:varchar(16)" json:"message_type,omitempty"`
	Content     string `gorm:"type:text" json:"content,omitempty"`
	Message     string `gorm:"type:text" json:"message"`
	Media       []byte `json:"media,omitempty"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`

	IsRead    bool       `gorm:"not null;default:false;index:idx_notifications_inbox,priority:3" json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
