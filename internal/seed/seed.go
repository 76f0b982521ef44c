package seed

import (
	"context"
	"fmt"
	"log/slog"

	"postapp/internal/models"

	"gorm.io/gorm"
)

// Summary counts what a seeding run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d posts, %d comments", s.Users, s.Posts, s.Comments)
}

// Demo fills the database with generated users, posts and comments.
// Comments only land on published posts or on the commenter's own posts.
func Demo(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	if opts.Users <= 0 {
		opts.Users = DefaultOptions().Users
	}
	slog.InfoContext(ctx, "seeding demo data",
		"users", opts.Users,
		"posts_per_user", opts.PostsPerUser,
		"comments_per_post", opts.CommentsPerPost,
		"dry_run", opts.DryRun)

	if opts.Clean && !opts.DryRun {
		if err := Clean(ctx, db); err != nil {
			return nil, err
		}
	}

	f := NewFactory(db, opts)
	summary := &Summary{}

	users := make([]*models.User, 0, opts.Users)
	for range opts.Users {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return summary, err
		}
		users = append(users, u)
	}
	summary.Users = len(users)

	posts := make([]*models.Post, 0, opts.Users*opts.PostsPerUser)
	for _, u := range users {
		for range opts.PostsPerUser {
			posts = append(posts, f.BuildPost(u))
		}
	}
	if err := f.CreatePostsBatch(ctx, posts); err != nil {
		return summary, err
	}
	summary.Posts = len(posts)

	for _, p := range posts {
		for range opts.CommentsPerPost {
			commenter := users[f.faker.Number(0, len(users)-1)]
			if !p.Status.Public() && commenter.ID != p.UserID {
				continue
			}
			if _, err := f.CreateComment(ctx, commenter, p); err != nil {
				return summary, err
			}
			summary.Comments++
		}
	}

	slog.InfoContext(ctx, "demo data seeded", "summary", summary.String())
	return summary, nil
}

// Clean deletes all comments, posts and users.
func Clean(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []any{&models.Comment{}, &models.Post{}, &models.User{}} {
		if err := tx.Delete(m).Error; err != nil {
			return fmt.Errorf("clean %T: %w", m, err)
		}
	}
	return nil
}

// HasUsers reports whether any account exists; demo seeding at startup is
// skipped for non-empty databases.
func HasUsers(ctx context.Context, db *gorm.DB) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.User{}).Limit(1).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}
