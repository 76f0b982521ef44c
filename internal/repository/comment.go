package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"postapp/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations. Writes keep
// posts.comments_count in step with the comment rows in the same transaction.
type CommentRepository interface {
	Add(ctx context.Context, postID, userID uint, content string) (*models.Comment, error)
	Remove(ctx context.Context, postID, commentID, userID uint) error
	ListByPost(ctx context.Context, postID, viewerID uint) ([]*models.Comment, error)
}

type commentRepository struct {
	base
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB, timeout time.Duration) CommentRepository {
	return &commentRepository{base: newBase(db, "comments", timeout)}
}

// requireVisiblePost loads the id, owner and status of a post viewerID can
// read, or fails with ErrNotFoundOrForbidden.
func requireVisiblePost(db *gorm.DB, postID, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := db.Select("posts.id", "posts.user_id", "posts.status").
		Scopes(visibleTo(viewerID)).
		Where("posts.id = ?", postID).
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("check post %d: %w", postID, err)
	}
	return &post, nil
}

func (r *commentRepository) Add(ctx context.Context, postID, userID uint, content string) (_ *models.Comment, err error) {
	ctx, finish := r.begin(ctx, "Add")
	defer func() { finish(err) }()

	comment := &models.Comment{PostID: postID, UserID: userID, Content: content}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := requireVisiblePost(tx, postID, userID)
		if err != nil {
			return err
		}
		comment.Post = post
		if err := tx.Omit("Author", "Post").Create(comment).Error; err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		if err := adjustComments(tx, postID, 1); err != nil {
			return err
		}
		var author models.User
		if err := tx.Select(models.PublicUserColumns).First(&author, userID).Error; err != nil {
			return fmt.Errorf("load comment author: %w", err)
		}
		comment.Author = &author
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.LogCreate(ctx, map[string]any{"id": comment.ID, "post_id": postID, "user_id": userID})
	return comment, nil
}

// Remove deletes the comment only when it belongs to both postID and userID.
func (r *commentRepository) Remove(ctx context.Context, postID, commentID, userID uint) (err error) {
	ctx, finish := r.begin(ctx, "Remove")
	defer func() { finish(err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ? AND post_id = ?", commentID, userID, postID).
			Delete(&models.Comment{})
		if res.Error != nil {
			return fmt.Errorf("delete comment %d: %w", commentID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFoundOrForbidden
		}
		return adjustComments(tx, postID, -1)
	})
	if err != nil {
		return err
	}

	r.log.LogDelete(ctx, map[string]any{"id": commentID, "post_id": postID, "user_id": userID})
	return nil
}

// ListByPost returns the comments of a post visible to viewerID, oldest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID, viewerID uint) (comments []*models.Comment, err error) {
	ctx, finish := r.begin(ctx, "ListByPost")
	defer func() { finish(err) }()

	db := r.db.WithContext(ctx)
	if _, err := requireVisiblePost(db, postID, viewerID); err != nil {
		return nil, err
	}

	comments = make([]*models.Comment, 0)
	err = db.Scopes(withPublicAuthor).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
