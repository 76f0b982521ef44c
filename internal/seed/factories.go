// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"postapp/internal/models"
	"postapp/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "password123"

var nonUsernameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Options controls how much demo data is generated.
type Options struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	// MaxDays spreads created_at over the last MaxDays days.
	MaxDays int
	// Seed makes the generated data reproducible. Zero picks a random seed.
	Seed int64
	// Clean removes existing users, posts and comments first.
	Clean bool
	// DryRun builds entities with synthetic IDs and writes nothing.
	DryRun bool
	// FastHash hashes passwords at bcrypt.MinCost.
	FastHash bool
}

// DefaultOptions is the preset used by SEED_DEMO_DATA.
func DefaultOptions() Options {
	return Options{
		Users:           8,
		PostsPerUser:    4,
		CommentsPerPost: 3,
		MaxDays:         60,
	}
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db       *gorm.DB
	opts     Options
	faker    *gofakeit.Faker
	comments repository.CommentRepository
	// synthetic ID counter when running in DryRun mode
	nextID uint
	// username suffix counter
	seq int
}

// NewFactory creates a new Factory bound to db. db may be nil in DryRun mode.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	f := &Factory{
		db:     db,
		opts:   opts,
		faker:  gofakeit.New(opts.Seed),
		nextID: 1000,
	}
	if db != nil {
		f.comments = repository.NewCommentRepository(db, 0)
	}
	return f
}

func (f *Factory) hash(password string) (string, error) {
	cost := bcrypt.DefaultCost
	if f.opts.FastHash {
		cost = bcrypt.MinCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// createdAt returns a random time within the configured window.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

// username derives a valid, unique username from a fake one.
func (f *Factory) username() string {
	f.seq++
	base := strings.ToLower(nonUsernameChars.ReplaceAllString(f.faker.Username(), ""))
	if len(base) < 3 {
		base = "user"
	}
	suffix := fmt.Sprintf("_%d", f.seq)
	if len(base)+len(suffix) > 50 {
		base = base[:50-len(suffix)]
	}
	return base + suffix
}

// BuildUser returns an unsaved user. The password field holds a bcrypt hash
// of DefaultPassword.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.hash(DefaultPassword)
	if err != nil {
		return nil, err
	}
	username := f.username()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		Password:     hash,
		FullName:     f.faker.FirstName() + " " + f.faker.LastName(),
		Bio:          truncate(f.faker.HipsterSentence(10), 500),
		ProfileImage: "https://i.pravatar.cc/150?u=" + f.faker.UUID(),
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		slog.Debug("[dry-run] CreateUser", "username", user.Username)
		return user, nil
	}

	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user %q: %w", user.Username, err)
	}
	return user, nil
}

// randomStatus yields mostly published posts with some drafts and private
// ones.
func (f *Factory) randomStatus() models.PostStatus {
	switch n := f.faker.Number(1, 10); {
	case n <= 7:
		return models.PostStatusPublished
	case n <= 9:
		return models.PostStatusDraft
	default:
		return models.PostStatusPrivate
	}
}

// BuildPost constructs an unsaved post for user.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		UserID:    user.ID,
		Title:     truncate(strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), "."), 200),
		Content:   f.faker.Paragraph(f.faker.Number(1, 3), 4, 12, "\n\n"),
		Status:    f.randomStatus(),
		CreatedAt: f.createdAt(),
	}
	post.UpdatedAt = post.CreatedAt

	tags := make(models.Tags, 0, 3)
	for range f.faker.Number(0, 3) {
		tags = append(tags, strings.ToLower(f.faker.Word()))
	}
	post.Tags = tags

	if f.faker.Bool() {
		img := fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID())
		post.ImageURL = &img
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists posts in batches.
func (f *Factory) CreatePostsBatch(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		slog.Debug("[dry-run] CreatePostsBatch", "posts", len(posts))
		return nil
	}
	if err := f.db.WithContext(ctx).Omit("Author").CreateInBatches(posts, 100).Error; err != nil {
		return fmt.Errorf("create posts: %w", err)
	}
	return nil
}

// CreateComment adds a comment through the comment repository so the post's
// comments_count stays in step.
func (f *Factory) CreateComment(ctx context.Context, user *models.User, post *models.Post) (*models.Comment, error) {
	content := f.faker.Sentence(f.faker.Number(4, 14))

	if f.opts.DryRun {
		f.nextID++
		post.CommentsCount++
		return &models.Comment{ID: f.nextID, PostID: post.ID, UserID: user.ID, Content: content}, nil
	}

	comment, err := f.comments.Add(ctx, post.ID, user.ID, content)
	if err != nil {
		return nil, fmt.Errorf("comment on post %d: %w", post.ID, err)
	}
	post.CommentsCount++
	return comment, nil
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:maxRunes]))
}
