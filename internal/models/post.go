package models

// PostStatus tracks moderation state.
type PostStatus string

const (
	PostStatusPending  PostStatus = "PENDING"
	PostStatusApproved PostStatus = "APPROVED"
	PostStatusRejected PostStatus = "REJECTED"
)

// Valid reports whether the status is one of the known values.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusPending, PostStatusApproved, PostStatusRejected:
		return true
	}
	return false
}

// Post is a social post with denormalised engagement counters.
type Post struct {
	BaseModel

	Content  string     `gorm:"type:text" json:"content"`
	ImageURL string     `gorm:"type:varchar(512)" json:"image_url,omitempty"`
	AuthorID string     `gorm:"type:varchar(64);not null;index" json:"author_id"`
	Status   PostStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	Pinned   bool       `gorm:"not null;default:false" json:"pinned"`
	GroupID  *int64     `gorm:"index" json:"group_id,omitempty"`

	LikeCount     int64 `gorm:"not null;default:0" json:"like_count"`
	CommentCount  int64 `gorm:"not null;default:0" json:"comment_count"`
	BookmarkCount int64 `gorm:"not null;default:0" json:"bookmark_count"`
	UpvoteCount   int64 `gorm:"not null;default:0" json:"upvote_count"`
	DownvoteCount int64 `gorm:"not null;default:0" json:"downvote_count"`
}

// Summary returns the truncated content used in notifications.
func (p Post) Summary() string {
	return Preview(p.Content)
}
