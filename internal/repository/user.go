package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"postapp/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetProfile(ctx context.Context, username string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, id uint, patch models.ProfilePatch) (*models.User, error)
}

type userRepository struct {
	base
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB, timeout time.Duration) UserRepository {
	return &userRepository{base: newBase(db, "users", timeout)}
}

// Create inserts user. A taken username or email yields ErrDuplicate.
func (r *userRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, finish := r.begin(ctx, "Create")
	defer func() { finish(err) }()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	r.log.LogCreate(ctx, map[string]any{"id": user.ID, "username": user.Username})
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (_ *models.User, err error) {
	ctx, finish := r.begin(ctx, "GetByID")
	defer func() { finish(err) }()

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

// GetByLogin finds a user by username or, when login contains '@', by email.
func (r *userRepository) GetByLogin(ctx context.Context, login string) (_ *models.User, err error) {
	ctx, finish := r.begin(ctx, "GetByLogin")
	defer func() { finish(err) }()

	q := r.db.WithContext(ctx)
	if strings.Contains(login, "@") {
		q = q.Where("email = ?", strings.ToLower(login))
	} else {
		q = q.Where("username = ?", login)
	}

	var user models.User
	if err := q.Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by login: %w", err)
	}
	return &user, nil
}

// GetProfile returns the public profile for username with its count of
// published posts.
func (r *userRepository) GetProfile(ctx context.Context, username string) (_ *models.UserProfile, err error) {
	ctx, finish := r.begin(ctx, "GetProfile")
	defer func() { finish(err) }()

	var profile models.UserProfile
	res := r.db.WithContext(ctx).
		Table("users").
		Select(`users.id, users.username, users.full_name, users.bio, users.profile_image, users.created_at,
			(SELECT COUNT(*) FROM posts WHERE posts.user_id = users.id AND posts.status = ?) AS posts_count`,
			models.PostStatusPublished).
		Where("users.username = ?", username).
		Limit(1).
		Scan(&profile)
	if res.Error != nil {
		return nil, fmt.Errorf("get profile %q: %w", username, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &profile, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uint, patch models.ProfilePatch) (_ *models.User, err error) {
	ctx, finish := r.begin(ctx, "UpdateProfile")
	defer func() { finish(err) }()

	cols := patch.Columns()
	if len(cols) == 0 {
		return nil, ErrNoOp
	}
	cols["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumns(cols)
	if res.Error != nil {
		return nil, fmt.Errorf("update profile %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("reload user %d: %w", id, err)
	}
	r.log.LogUpdate(ctx, map[string]any{"id": id, "fields": len(cols) - 1})
	return &user, nil
}
