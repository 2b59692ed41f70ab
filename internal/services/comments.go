package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/models"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
)

// CreateCommentInput captures a comment or reply.
type CreateCommentInput struct {
	PostID          int64
	Content         string
	ParentCommentID *int64
}

// CommentNode is a comment with its replies.
type CommentNode struct {
	models.Comment
	Replies []CommentNode `json:"replies"`
}

// CommentService manages post comments and the comment counter.
type CommentService struct {
	core *Core
}

// NewCommentService constructs a CommentService.
func NewCommentService(core *Core) (*CommentService, error) {
	if core == nil {
		return nil, errors.New("comment service: core is required")
	}
	return &CommentService{core: core}, nil
}

// Create adds a comment, or a reply when ParentCommentID is set.
func (s *CommentService) Create(ctx context.Context, actor Actor, input CreateCommentInput) (*models.Comment, error) {
	ctx = ensureContext(ctx)
	content := trimmed(input.Content)
	if content == "" {
		return nil, apperrors.NewBadRequest("comment content is required")
	}

	if _, err := s.core.loadPost(ctx, input.PostID); err != nil {
		return nil, err
	}
	origin, err := s.core.lookupUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		PostID:          input.PostID,
		AuthorID:        origin.ID,
		ParentCommentID: input.ParentCommentID,
		Content:         content,
		Approved:        true,
	}

	err = s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, out *Outbox) error {
		var post models.Post
		if err := tx.Take(&post, input.PostID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errPostNotFound
			}
			return err
		}

		if comment.ParentCommentID != nil {
			var parents int64
			if err := tx.Model(&models.Comment{}).
				Where("id = ? AND post_id = ?", *comment.ParentCommentID, post.ID).
				Count(&parents).Error; err != nil {
				return fmt.Errorf("comment service: load parent: %w", err)
			}
			if parents == 0 {
				return apperrors.NewNotFound("parent comment not found")
			}
		}

		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("comment service: create comment: %w", err)
		}
		if err := s.core.counters.Adjust(tx, post.ID, CounterComments, 1); err != nil {
			return err
		}
		_, err := s.core.composer.Emit(tx, out, Event{
			Kind:    models.KindNewComment,
			Origin:  origin,
			Post:    &post,
			Comment: &comment,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListTree returns the post's comments as a tree. Top level comments are
// newest first; replies are oldest first.
func (s *CommentService) ListTree(ctx context.Context, postID int64) ([]CommentNode, error) {
	ctx = ensureContext(ctx)
	if _, err := s.core.loadPost(ctx, postID); err != nil {
		return nil, err
	}

	var rows []models.Comment
	if err := s.core.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("comment service: list comments: %w", translateStoreError(err))
	}

	children := make(map[int64][]models.Comment)
	var roots []models.Comment
	for _, row := range rows {
		if row.ParentCommentID == nil {
			roots = append(roots, row)
			continue
		}
		children[*row.ParentCommentID] = append(children[*row.ParentCommentID], row)
	}

	sort.SliceStable(roots, func(i, j int) bool {
		if roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].ID > roots[j].ID
		}
		return roots[i].CreatedAt.After(roots[j].CreatedAt)
	})

	tree := make([]CommentNode, 0, len(roots))
	for _, root := range roots {
		tree = append(tree, buildCommentNode(root, children))
	}
	return tree, nil
}

func buildCommentNode(comment models.Comment, children map[int64][]models.Comment) CommentNode {
	node := CommentNode{Comment: comment, Replies: []CommentNode{}}
	for _, child := range children[comment.ID] {
		node.Replies = append(node.Replies, buildCommentNode(child, children))
	}
	return node
}

// Delete removes a comment and its replies. Only the comment author may delete it.
func (s *CommentService) Delete(ctx context.Context, actor Actor, postID, commentID int64) error {
	ctx = ensureContext(ctx)

	return s.core.dispatcher.WithTransaction(ctx, func(tx *gorm.DB, _ *Outbox) error {
		var comment models.Comment
		if err := tx.Where("id = ? AND post_id = ?", commentID, postID).Take(&comment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("comment not found")
			}
			return err
		}
		if comment.AuthorID != actor.ID {
			return apperrors.NewForbidden("only the author can delete a comment")
		}

		ids := []int64{comment.ID}
		frontier := []int64{comment.ID}
		for len(frontier) > 0 {
			var next []int64
			if err := tx.Model(&models.Comment{}).
				Where("parent_comment_id IN ?", frontier).
				Pluck("id", &next).Error; err != nil {
				return fmt.Errorf("comment service: load replies: %w", err)
			}
			ids = append(ids, next...)
			frontier = next
		}

		result := tx.Where("id IN ?", ids).Delete(&models.Comment{})
		if result.Error != nil {
			return fmt.Errorf("comment service: delete comments: %w", result.Error)
		}
		return s.core.counters.Adjust(tx, postID, CounterComments, -result.RowsAffected)
	})
}
