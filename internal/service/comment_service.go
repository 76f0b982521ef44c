package service

import (
	"context"

	"postapp/internal/auth"
	"postapp/internal/models"
	"postapp/internal/observability"
	"postapp/internal/repository"
	"postapp/internal/validation"
)

type CommentService struct {
	commentRepo repository.CommentRepository
}

func NewCommentService(commentRepo repository.CommentRepository) *CommentService {
	return &CommentService{commentRepo: commentRepo}
}

// AddComment validates payload and attaches a comment to a post actor can see.
func (s *CommentService) AddComment(ctx context.Context, actor auth.Identity, postID uint, payload validation.Payload) (*models.Comment, error) {
	content, err := validation.ValidateComment(payload)
	if err != nil {
		return nil, err
	}

	comment, err := s.commentRepo.Add(ctx, postID, actor.UserID, content)
	if err != nil {
		return nil, storageError(err, "Post")
	}
	observability.CommentEvents.WithLabelValues("created").Inc()
	return comment, nil
}

// RemoveComment deletes actor's own comment from postID.
func (s *CommentService) RemoveComment(ctx context.Context, actor auth.Identity, postID, commentID uint) error {
	if err := s.commentRepo.Remove(ctx, postID, commentID, actor.UserID); err != nil {
		return storageError(err, "Comment")
	}
	observability.CommentEvents.WithLabelValues("deleted").Inc()
	return nil
}

func (s *CommentService) ListComments(ctx context.Context, postID, viewerID uint) ([]*models.Comment, error) {
	comments, err := s.commentRepo.ListByPost(ctx, postID, viewerID)
	if err != nil {
		return nil, storageError(err, "Post")
	}
	return comments, nil
}
