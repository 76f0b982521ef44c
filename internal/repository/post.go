// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"postapp/internal/models"

	"gorm.io/gorm"
)

// Page bounds applied by List. MaxPage keeps the row offset within int32 at
// the largest page size.
const (
	MinPageSize = 1
	MaxPageSize = 100
	MaxPage     = math.MaxInt32 / MaxPageSize
)

// PostRepository defines the interface for post data operations. Every
// read applies the visibility rule: published posts are readable by anyone,
// other states only by their owner.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	List(ctx context.Context, filter models.PostFilter) ([]*models.Post, int64, error)
	GetVisible(ctx context.Context, id, viewerID uint) (*models.Post, error)
	IncrementViews(ctx context.Context, id uint) error
	UpdateOwned(ctx context.Context, id, ownerID uint, patch models.PostPatch) (*models.Post, error)
	DeleteOwned(ctx context.Context, id, ownerID uint) error
	AdjustComments(ctx context.Context, tx *gorm.DB, id uint, delta int) error
	CountPublishedByUser(ctx context.Context, userID uint) (int64, error)
}

type postRepository struct {
	base
}

// NewPostRepository creates a new PostRepository. A zero timeout falls back
// to DefaultQueryTimeout.
func NewPostRepository(db *gorm.DB, timeout time.Duration) PostRepository {
	return &postRepository{base: newBase(db, "posts", timeout)}
}

// visibleTo restricts a posts query to rows viewerID may read. viewerID 0 is
// anonymous.
func visibleTo(viewerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if viewerID == 0 {
			return db.Where("posts.status = ?", models.PostStatusPublished)
		}
		return db.Where("(posts.status = ? OR posts.user_id = ?)", models.PostStatusPublished, viewerID)
	}
}

func withPublicAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", func(tx *gorm.DB) *gorm.DB {
		return tx.Select(models.PublicUserColumns)
	})
}

// ClampPageSize bounds limit to [MinPageSize, MaxPageSize].
func ClampPageSize(limit int) int {
	switch {
	case limit < MinPageSize:
		return MinPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// ClampPage bounds page to [1, MaxPage].
func ClampPage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > MaxPage:
		return MaxPage
	default:
		return page
	}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (err error) {
	ctx, finish := r.begin(ctx, "Create")
	defer func() { finish(err) }()

	if post.Status == "" {
		post.Status = models.PostStatusDraft
	}
	post.Views, post.LikesCount, post.CommentsCount = 0, 0, 0

	if err := r.db.WithContext(ctx).Omit("Author").Create(post).Error; err != nil {
		return fmt.Errorf("create post: %w", err)
	}

	var author models.User
	if err := r.db.WithContext(ctx).Select(models.PublicUserColumns).First(&author, post.UserID).Error; err != nil {
		return fmt.Errorf("load post author: %w", err)
	}
	post.Author = &author

	r.log.LogCreate(ctx, map[string]any{"id": post.ID, "user_id": post.UserID, "status": post.Status})
	return nil
}

func (r *postRepository) List(ctx context.Context, filter models.PostFilter) (posts []*models.Post, total int64, err error) {
	ctx, finish := r.begin(ctx, "List")
	defer func() { finish(err) }()

	filter.Limit = ClampPageSize(filter.Limit)
	if filter.Page < 1 {
		filter.Page = 1
	}

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Scopes(visibleTo(filter.ViewerID))
		if filter.AuthorID != nil {
			db = db.Where("posts.user_id = ?", *filter.AuthorID)
		}
		return db
	}

	if err := r.db.WithContext(ctx).Model(&models.Post{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	posts = make([]*models.Post, 0, filter.Limit)
	err = r.db.WithContext(ctx).
		Scopes(scope, withPublicAuthor).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset()).
		Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	return posts, total, nil
}

func (r *postRepository) GetVisible(ctx context.Context, id, viewerID uint) (_ *models.Post, err error) {
	ctx, finish := r.begin(ctx, "GetVisible")
	defer func() { finish(err) }()

	return r.getVisible(r.db.WithContext(ctx), id, viewerID)
}

func (r *postRepository) getVisible(db *gorm.DB, id, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := db.Scopes(visibleTo(viewerID), withPublicAuthor).
		Where("posts.id = ?", id).
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return &post, nil
}

// IncrementViews bumps the counter in a single statement so concurrent reads
// never lose an increment. updated_at is left alone.
func (r *postRepository) IncrementViews(ctx context.Context, id uint) (err error) {
	ctx, finish := r.begin(ctx, "IncrementViews")
	defer func() { finish(err) }()

	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment views: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFoundOrForbidden
	}
	return nil
}

// UpdateOwned applies patch only if ownerID owns the post. The ownership
// check and the write are one statement.
func (r *postRepository) UpdateOwned(ctx context.Context, id, ownerID uint, patch models.PostPatch) (_ *models.Post, err error) {
	ctx, finish := r.begin(ctx, "UpdateOwned")
	defer func() { finish(err) }()

	cols := patch.Columns()
	if len(cols) == 0 {
		return nil, ErrNoOp
	}
	cols["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		UpdateColumns(cols)
	if res.Error != nil {
		return nil, fmt.Errorf("update post %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFoundOrForbidden
	}

	r.log.LogUpdate(ctx, map[string]any{"id": id, "user_id": ownerID, "fields": len(cols) - 1})
	return r.getVisible(r.db.WithContext(ctx), id, ownerID)
}

// DeleteOwned removes the post only if ownerID owns it. Comments go with it
// through the foreign key cascade.
func (r *postRepository) DeleteOwned(ctx context.Context, id, ownerID uint) (err error) {
	ctx, finish := r.begin(ctx, "DeleteOwned")
	defer func() { finish(err) }()

	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&models.Post{})
	if res.Error != nil {
		return fmt.Errorf("delete post %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFoundOrForbidden
	}

	r.log.LogDelete(ctx, map[string]any{"id": id, "user_id": ownerID})
	return nil
}

// AdjustComments moves comments_count by delta inside tx (or the pool when tx
// is nil). The counter never goes below zero.
func (r *postRepository) AdjustComments(ctx context.Context, tx *gorm.DB, id uint, delta int) (err error) {
	ctx, finish := r.begin(ctx, "AdjustComments")
	defer func() { finish(err) }()

	if tx == nil {
		tx = r.db
	}
	return adjustComments(tx.WithContext(ctx), id, delta)
}

func adjustComments(db *gorm.DB, id uint, delta int) error {
	if delta == 0 {
		return nil
	}
	expr := gorm.Expr("comments_count + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN comments_count >= ? THEN comments_count - ? ELSE 0 END", -delta, -delta)
	}
	res := db.Model(&models.Post{}).Where("id = ?", id).UpdateColumn("comments_count", expr)
	if res.Error != nil {
		return fmt.Errorf("adjust comments_count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFoundOrForbidden
	}
	return nil
}

func (r *postRepository) CountPublishedByUser(ctx context.Context, userID uint) (n int64, err error) {
	ctx, finish := r.begin(ctx, "CountPublishedByUser")
	defer func() { finish(err) }()

	err = r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("user_id = ? AND status = ?", userID, models.PostStatusPublished).
		Count(&n).Error
	return n, err
}
