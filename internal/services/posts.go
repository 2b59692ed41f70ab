package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/models"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
)

// CreatePostInput captures a new post.
type CreatePostInput struct {
	Content  string
	ImageURL string
	GroupID  *int64
}

// PostService manages the post lifecycle.
type PostService struct {
	core *Core
}

// NewPostService constructs a PostService.
func NewPostService(core *Core) (*PostService, error) {
	if core == nil {
		return nil, errors.New("post service: core is required")
	}
	return &PostService{core: core}, nil
}

// Create publishes a post. Moderators publish directly; other posts wait for approval.
func (s *PostService) Create(ctx context.Context, actor Actor, input CreatePostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)
	content := trimmed(input.Content)
	imageURL := trimmed(input.ImageURL)
	if content == "" && imageURL == "" {
		return nil, apperrors.NewBadRequest("post content is required")
	}

	author, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	post := models.Post{
		Content:  content,
		ImageURL: imageURL,
		AuthorID: author.ID,
		Status:   models.PostStatusPending,
		GroupID:  input.GroupID,
	}
	if actor.IsModerator() {
		post.Status = models.PostStatusApproved
	}

	err = s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		if post.GroupID != nil {
			if err := requireActiveMember(tx, *post.GroupID, author.ID); err != nil {
				return err
			}
		}
		if err := tx.Create(&post).Error; err != nil {
			return fmt.Errorf("post service: create post: %w", err)
		}
		if post.Status != models.PostStatusApproved {
			return nil
		}
		_, err := s.core.composer.Emit(tx, out, Event{Kind: models.KindNewPost, Origin: author, Post: &post})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Get loads a post.
func (s *PostService) Get(ctx context.Context, postID int64) (*models.Post, error) {
	return s.core.loadPost(ctx, postID)
}

// UpdateStatus moderates a post. Approving a post notifies its author and
// announces it to everyone.
func (s *PostService) UpdateStatus(ctx context.Context, actor Actor, postID int64, status models.PostStatus) (*models.Post, error) {
	ctx = ensureContext(ctx)
	if !actor.IsModerator() {
		return nil, apperrors.NewForbidden("only moderators can change post status")
	}
	if !status.Valid() {
		return nil, apperrors.NewBadRequest("invalid post status")
	}

	post, err := s.core.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status == status {
		return post, nil
	}

	moderator, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	approving := status == models.PostStatusApproved
	author := moderator
	if approving && post.AuthorID != moderator.ID {
		if author, err = s.core.lookupUser(ctx, post.AuthorID); err != nil {
			return nil, err
		}
	}

	previous := post.Status
	err = s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		result := tx.Model(&models.Post{}).
			Where("id = ? AND status = ?", postID, previous).
			Update("status", status)
		if result.Error != nil {
			return fmt.Errorf("post service: update status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.NewConflict("post status changed concurrently")
		}
		post.Status = status
		if !approving {
			return nil
		}

		if _, err := s.core.composer.Emit(tx, out, Event{Kind: models.KindPostApproved, Origin: moderator, Post: post}); err != nil {
			return err
		}
		_, err := s.core.composer.Emit(tx, out, Event{Kind: models.KindNewPost, Origin: author, Post: post})
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// SetPinned pins or unpins a post.
func (s *PostService) SetPinned(ctx context.Context, actor Actor, postID int64, pinned bool) (*models.Post, error) {
	ctx = ensureContext(ctx)
	if !actor.IsModerator() {
		return nil, apperrors.NewForbidden("only moderators can pin posts")
	}

	result := s.core.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Update("pinned", pinned)
	if result.Error != nil {
		return nil, fmt.Errorf("post service: pin post: %w", translateStoreError(result.Error))
	}
	if result.RowsAffected == 0 {
		return nil, errPostNotFound
	}
	return s.core.loadPost(ctx, postID)
}

// Delete removes a post together with its engagement records and comments.
func (s *PostService) Delete(ctx context.Context, actor Actor, postID int64) error {
	ctx = ensureContext(ctx)
	post, err := s.core.loadPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.ID {
		return apperrors.NewForbidden("only the author can delete a post")
	}

	return s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, _ *Outbox) error {
		for _, model := range []any{&models.Like{}, &models.Bookmark{}, &models.Vote{}, &models.Comment{}} {
			if err := tx.Where("post_id = ?", postID).Delete(model).Error; err != nil {
				return fmt.Errorf("post service: delete post records: %w", err)
			}
		}
		if err := tx.Delete(&models.Post{}, postID).Error; err != nil {
			return fmt.Errorf("post service: delete post: %w", err)
		}
		return nil
	})
}

// HasLiked reports whether the user likes the post.
func (s *PostService) HasLiked(ctx context.Context, postID int64, userID string) (bool, error) {
	ctx = ensureContext(ctx)
	if _, err := s.core.loadPost(ctx, postID); err != nil {
		return false, err
	}

	var count int64
	if err := s.core.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("post service: check like: %w", translateStoreError(err))
	}
	return count > 0, nil
}

// Counters returns the post's counters.
func (s *PostService) Counters(ctx context.Context, postID int64) (CounterView, error) {
	return s.core.counters.Get(ctx, postID)
}

// Reconcile recomputes the post's counters from its records.
func (s *PostService) Reconcile(ctx context.Context, actor Actor, postID int64) (CounterView, error) {
	if !actor.IsModerator() {
		return CounterView{}, apperrors.NewForbidden("only moderators can reconcile counters")
	}
	view, _, err := s.core.counters.Reconcile(ctx, postID)
	return view, err
}

func requireActiveMember(tx *gorm.DB, groupID int64, userID string) error {
	var count int64
	if err := tx.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, models.MemberStatusActive).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check group membership: %w", err)
	}
	if count == 0 {
		return apperrors.NewForbidden("not a member of this group")
	}
	return nil
}
