package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/models"
	"github.com/anaslahboub/app-microservice/internal/realtime"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
)

// CreateGroupInput captures a new group.
type CreateGroupInput struct {
	Name        string
	Description string
	Subject     string
}

// GroupService manages groups, their members and member roles.
type GroupService struct {
	core *Core
}

// NewGroupService constructs a GroupService.
func NewGroupService(core *Core) (*GroupService, error) {
	if core == nil {
		return nil, errors.New("group service: core is required")
	}
	return &GroupService{core: core}, nil
}

// Create creates a group administered by the actor and announces it.
func (s *GroupService) Create(ctx context.Context, actor Actor, input CreateGroupInput) (*models.Group, error) {
	ctx = ensureContext(ctx)
	name := trimmed(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("group name is required")
	}
	creator, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	group := models.Group{
		Name:        name,
		Description: trimmed(input.Description),
		Subject:     trimmed(input.Subject),
		CreatedBy:   creator.ID,
	}
	err = s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		if err := tx.Create(&group).Error; err != nil {
			return fmt.Errorf("group service: create group: %w", err)
		}
		admin := models.GroupMember{GroupID: group.ID, UserID: creator.ID, IsAdmin: true, Status: models.MemberStatusActive}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("group service: add admin: %w", err)
		}
		_, err := s.core.composer.Emit(tx, out, Event{Kind: models.KindGroupCreated, Origin: creator, Group: &group})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// Get loads a group.
func (s *GroupService) Get(ctx context.Context, groupID int64) (*models.Group, error) {
	var group models.Group
	if err := s.core.db.WithContext(ensureContext(ctx)).Take(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errGroupNotFound
		}
		return nil, translateStoreError(err)
	}
	return &group, nil
}

// Members lists every membership of a group, including members who left.
func (s *GroupService) Members(ctx context.Context, groupID int64) ([]models.GroupMember, error) {
	ctx = ensureContext(ctx)
	if _, err := s.Get(ctx, groupID); err != nil {
		return nil, err
	}
	var members []models.GroupMember
	if err := s.core.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("id").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("group service: list members: %w", translateStoreError(err))
	}
	return members, nil
}

// Delete removes a group and its memberships. Only the admin may delete.
func (s *GroupService) Delete(ctx context.Context, actor Actor, groupID int64) error {
	ctx = ensureContext(ctx)
	origin, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return err
	}

	return s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		group, err := loadGroup(tx, groupID)
		if err != nil {
			return err
		}
		if err := requireAdmin(tx, groupID, origin.ID); err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
			return fmt.Errorf("group service: delete members: %w", err)
		}
		if err := tx.Delete(&models.Group{}, groupID).Error; err != nil {
			return fmt.Errorf("group service: delete group: %w", err)
		}
		_, err = s.core.composer.Emit(tx, out, Event{Kind: models.KindGroupDeleted, Origin: origin, Group: group})
		return err
	})
}

// Archive archives a group. Archiving an archived group changes nothing.
func (s *GroupService) Archive(ctx context.Context, actor Actor, groupID int64) (*models.Group, error) {
	ctx = ensureContext(ctx)
	origin, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	var group *models.Group
	err = s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		if group, err = loadGroup(tx, groupID); err != nil {
			return err
		}
		if err := requireAdmin(tx, groupID, origin.ID); err != nil {
			return err
		}
		if group.Archived {
			return nil
		}
		if err := tx.Model(&models.Group{}).Where("id = ?", groupID).Update("archived", true).Error; err != nil {
			return fmt.Errorf("group service: archive group: %w", err)
		}
		group.Archived = true
		_, err := s.core.composer.Emit(tx, out, Event{Kind: models.KindGroupArchived, Origin: origin, Group: group})
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// AddMember adds a user to the group, reactivating a member who left.
// Admins and co-admins may add members.
func (s *GroupService) AddMember(ctx context.Context, actor Actor, groupID int64, userID string) (*models.GroupMember, error) {
	ctx = ensureContext(ctx)
	origin, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	target, err := s.core.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var member models.GroupMember
	err = s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		group, err := loadGroup(tx, groupID)
		if err != nil {
			return err
		}
		if group.Archived {
			return apperrors.NewBadRequest("group is archived")
		}
		if err := requireManager(tx, groupID, origin.ID); err != nil {
			return err
		}

		err = tx.Where("group_id = ? AND user_id = ?", groupID, target.ID).Take(&member).Error
		switch {
		case err == nil && member.Status == models.MemberStatusActive:
			return apperrors.NewConflict("user is already a member of this group")
		case err == nil:
			member.Status = models.MemberStatusActive
			member.IsAdmin = false
			member.IsCoAdmin = false
			if err := tx.Model(&models.GroupMember{}).Where("id = ?", member.ID).
				Updates(map[string]any{"status": member.Status, "is_admin": false, "is_co_admin": false, "updated_at": time.Now().UTC()}).Error; err != nil {
				return fmt.Errorf("group service: reactivate member: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			member = models.GroupMember{GroupID: groupID, UserID: target.ID, Status: models.MemberStatusActive}
			if err := tx.Create(&member).Error; err != nil {
				return fmt.Errorf("group service: add member: %w", err)
			}
		default:
			return fmt.Errorf("group service: load member: %w", err)
		}

		_, err = s.core.composer.Emit(tx, out, Event{Kind: models.KindMemberAdded, Origin: origin, Recipient: target.ID, Group: group})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// RemoveMember removes a member. Admins and co-admins may remove members,
// co-admins cannot remove the admin and the admin cannot remove themselves.
func (s *GroupService) RemoveMember(ctx context.Context, actor Actor, groupID int64, userID string) error {
	ctx = ensureContext(ctx)
	userID = trimmed(userID)
	origin, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return err
	}

	return s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		group, err := loadGroup(tx, groupID)
		if err != nil {
			return err
		}
		manager, err := activeMember(tx, groupID, origin.ID)
		if err != nil {
			return err
		}
		if manager == nil || !manager.CanManageMembers() {
			return apperrors.NewForbidden("only group admins can remove members")
		}
		if userID == origin.ID && manager.IsAdmin {
			return apperrors.NewForbidden("the group admin cannot remove themselves")
		}

		member, err := activeMember(tx, groupID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperrors.NewNotFound("member not found")
		}
		if member.IsAdmin && !manager.IsAdmin {
			return apperrors.NewForbidden("co-admins cannot remove the group admin")
		}

		if err := tx.Delete(&models.GroupMember{}, member.ID).Error; err != nil {
			return fmt.Errorf("group service: remove member: %w", err)
		}
		_, err = s.core.composer.Emit(tx, out, Event{Kind: models.KindMemberRemoved, Origin: origin, Recipient: userID, Group: group})
		return err
	})
}

// Leave marks the actor as having left the group and tells the group.
func (s *GroupService) Leave(ctx context.Context, actor Actor, groupID int64) error {
	ctx = ensureContext(ctx)
	origin, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return err
	}

	return s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		group, err := loadGroup(tx, groupID)
		if err != nil {
			return err
		}
		member, err := activeMember(tx, groupID, origin.ID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperrors.NewNotFound("not a member of this group")
		}
		if err := tx.Model(&models.GroupMember{}).Where("id = ?", member.ID).
			Updates(map[string]any{"status": models.MemberStatusLeft, "is_co_admin": false, "updated_at": time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("group service: leave group: %w", err)
		}
		_, err = s.core.composer.Emit(tx, out, Event{Kind: models.KindMemberLeft, Origin: origin, Group: group})
		return err
	})
}

// AssignCoAdmin designates an active member as co-admin. Only the admin may assign.
func (s *GroupService) AssignCoAdmin(ctx context.Context, actor Actor, groupID int64, userID string) (*models.GroupMember, error) {
	ctx = ensureContext(ctx)
	userID = trimmed(userID)
	origin, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	var member *models.GroupMember
	err = s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		group, err := loadGroup(tx, groupID)
		if err != nil {
			return err
		}
		if err := requireAdmin(tx, groupID, origin.ID); err != nil {
			return err
		}
		if member, err = activeMember(tx, groupID, userID); err != nil {
			return err
		}
		if member == nil {
			return apperrors.NewNotFound("member not found")
		}
		if member.IsCoAdmin {
			return nil
		}
		if err := tx.Model(&models.GroupMember{}).Where("id = ?", member.ID).Update("is_co_admin", true).Error; err != nil {
			return fmt.Errorf("group service: assign co-admin: %w", err)
		}
		member.IsCoAdmin = true
		_, err = s.core.composer.Emit(tx, out, Event{Kind: models.KindCoAdminAssigned, Origin: origin, Recipient: userID, Group: group})
		return err
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// IsActiveMember reports whether the user is an active member of the group.
func (s *GroupService) IsActiveMember(ctx context.Context, groupID int64, userID string) (bool, error) {
	member, err := activeMember(s.core.db.WithContext(ensureContext(ctx)), groupID, userID)
	if err != nil {
		return false, translateStoreError(err)
	}
	return member != nil, nil
}

// AuthorizeSubscription admits active members to their group topic.
func (s *GroupService) AuthorizeSubscription(ctx context.Context, userID, destination string) error {
	groupID, ok := realtime.GroupIDFromDestination(destination)
	if !ok {
		return realtime.ErrUnknownDestination
	}
	member, err := s.IsActiveMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return realtime.ErrForbiddenDestination
	}
	return nil
}

func loadGroup(tx *gorm.DB, groupID int64) (*models.Group, error) {
	var group models.Group
	if err := tx.Take(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errGroupNotFound
		}
		return nil, fmt.Errorf("group service: load group: %w", err)
	}
	return &group, nil
}

func activeMember(tx *gorm.DB, groupID int64, userID string) (*models.GroupMember, error) {
	var member models.GroupMember
	err := tx.Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, models.MemberStatusActive).
		Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("group service: load member: %w", err)
	}
	return &member, nil
}

func requireAdmin(tx *gorm.DB, groupID int64, userID string) error {
	member, err := activeMember(tx, groupID, userID)
	if err != nil {
		return err
	}
	if member == nil || !member.IsAdmin {
		return apperrors.NewForbidden("only the group admin can perform this action")
	}
	return nil
}

func requireManager(tx *gorm.DB, groupID int64, userID string) error {
	member, err := activeMember(tx, groupID, userID)
	if err != nil {
		return err
	}
	if member == nil || !member.CanManageMembers() {
		return apperrors.NewForbidden("only group admins and co-admins can manage members")
	}
	return nil
}
