package models

import "time"

// EngagementKind names a user's unary relation to a post.
type EngagementKind string

const (
	EngagementLike     EngagementKind = "like"
	EngagementBookmark EngagementKind = "bookmark"
	EngagementVote     EngagementKind = "vote"
)

// Like records that a user likes a post.
type Like struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64     `gorm:"not null;uniqueIndex:idx_likes_post_user" json:"post_id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_likes_post_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Bookmark records that a user saved a post.
type Bookmark struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64     `gorm:"not null;uniqueIndex:idx_bookmarks_post_user" json:"post_id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_bookmarks_post_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Vote records a user's up or down vote on a post.
type Vote struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64     `gorm:"not null;uniqueIndex:idx_votes_post_user" json:"post_id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_votes_post_user" json:"user_id"`
	Upvote    bool      `gorm:"not null" json:"upvote"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
