package models

// Member status values.
const (
	MemberStatusActive = "ACTIVE"
	MemberStatusLeft   = "LEFT"
)

// Group is an educational group.
type Group struct {
	BaseModel

	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Subject     string `gorm:"type:varchar(255)" json:"subject"`
	Archived    bool   `gorm:"not null;default:false" json:"archived"`
	CreatedBy   string `gorm:"type:varchar(64);not null" json:"created_by"`
}

// GroupMember links a user to a group with a role.
type GroupMember struct {
	BaseModel

	GroupID   int64  `gorm:"not null;uniqueIndex:idx_group_members_group_user" json:"group_id"`
	UserID    string `gorm:"type:varchar(64);not null;uniqueIndex:idx_group_members_group_user" json:"user_id"`
	IsAdmin   bool   `gorm:"not null;default:false" json:"is_admin"`
	IsCoAdmin bool   `gorm:"not null;default:false" json:"is_co_admin"`
	Status    string `gorm:"type:varchar(16);not null;default:'ACTIVE'" json:"status"`
}

// CanManageMembers reports whether the member may add or remove other members.
func (m GroupMember) CanManageMembers() bool {
	return m.Status == MemberStatusActive && (m.IsAdmin || m.IsCoAdmin)
}
