package service

import (
	"context"
	"log/slog"

	"postapp/internal/auth"
	"postapp/internal/models"
	"postapp/internal/observability"
	"postapp/internal/repository"
	"postapp/internal/validation"
)

// ProfileInvalidator drops cached profile data whose posts_count may have
// changed.
type ProfileInvalidator interface {
	InvalidateProfile(ctx context.Context, username string)
}

type PostService struct {
	postRepo repository.PostRepository
	profiles ProfileInvalidator
}

type ListPostsInput struct {
	ViewerID uint
	AuthorID *uint
	Page     int
	Limit    int
}

// NewPostService wires a PostService. profiles may be nil.
func NewPostService(postRepo repository.PostRepository, profiles ProfileInvalidator) *PostService {
	return &PostService{postRepo: postRepo, profiles: profiles}
}

// CreatePost validates payload and stores a post owned by actor. The owner
// always comes from the identity, never from the payload.
func (s *PostService) CreatePost(ctx context.Context, actor auth.Identity, payload validation.Payload) (*models.Post, error) {
	draft, err := validation.ValidatePostCreate(payload)
	if err != nil {
		return nil, err
	}

	post := draft.Post(actor.UserID)
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, storageError(err, "Post")
	}

	observability.PostEvents.WithLabelValues("created").Inc()
	if post.Status.Public() {
		s.invalidateProfile(ctx, actor.Username)
	}
	return post, nil
}

// ListPosts returns a page of posts visible to the viewer with its metadata.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, models.Pagination, error) {
	in.Page = repository.ClampPage(in.Page)
	in.Limit = repository.ClampPageSize(in.Limit)

	posts, total, err := s.postRepo.List(ctx, models.PostFilter{
		ViewerID: in.ViewerID,
		AuthorID: in.AuthorID,
		Page:     in.Page,
		Limit:    in.Limit,
	})
	if err != nil {
		return nil, models.Pagination{}, storageError(err, "Post")
	}
	return posts, models.NewPagination(in.Page, in.Limit, total), nil
}

// GetPost returns a visible post and counts the view. A failed increment is
// logged and the read still succeeds with the stored count.
func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetVisible(ctx, id, viewerID)
	if err != nil {
		return nil, storageError(err, "Post")
	}

	if err := s.postRepo.IncrementViews(ctx, id); err != nil {
		slog.WarnContext(ctx, "failed to increment post views",
			slog.Uint64("post_id", uint64(id)),
			slog.String("error", err.Error()))
		return post, nil
	}
	post.Views++
	observability.PostEvents.WithLabelValues("viewed").Inc()
	return post, nil
}

// UpdatePost applies the allow-listed fields of payload to a post actor owns.
func (s *PostService) UpdatePost(ctx context.Context, actor auth.Identity, id uint, payload validation.Payload) (*models.Post, error) {
	patch, err := validation.ValidatePostUpdate(payload)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, models.NewNoOpError(noValidFieldsMessage)
	}

	post, err := s.postRepo.UpdateOwned(ctx, id, actor.UserID, patch)
	if err != nil {
		return nil, storageError(err, "Post")
	}

	observability.PostEvents.WithLabelValues("updated").Inc()
	if patch.Status.Set {
		s.invalidateProfile(ctx, actor.Username)
	}
	return post, nil
}

// DeletePost removes a post actor owns, together with its comments.
func (s *PostService) DeletePost(ctx context.Context, actor auth.Identity, id uint) error {
	if err := s.postRepo.DeleteOwned(ctx, id, actor.UserID); err != nil {
		return storageError(err, "Post")
	}
	observability.PostEvents.WithLabelValues("deleted").Inc()
	s.invalidateProfile(ctx, actor.Username)
	return nil
}

func (s *PostService) invalidateProfile(ctx context.Context, username string) {
	if s.profiles != nil && username != "" {
		s.profiles.InvalidateProfile(ctx, username)
	}
}
