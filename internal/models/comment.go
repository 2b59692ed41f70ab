package models

// Comment is a post comment; replies reference their parent comment.
type Comment struct {
	BaseModel

	PostID          int64  `gorm:"not null;index" json:"post_id"`
	AuthorID        string `gorm:"type:varchar(64);not null;index" json:"author_id"`
	ParentCommentID *int64 `gorm:"index" json:"parent_comment_id"`
	Content         string `gorm:"type:text;not null" json:"content"`
	Approved        bool   `gorm:"not null" json:"approved"`
}

// IsReply reports whether the comment answers another comment.
func (c Comment) IsReply() bool {
	return c.ParentCommentID != nil
}
