package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"postapp/internal/models"
	"postapp/internal/testutil"
	"postapp/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_BuildUserIsValid(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, FastHash: true, Seed: 42})

	seen := map[string]bool{}
	for range 20 {
		u, err := f.BuildUser()
		require.NoError(t, err)
		assert.NoError(t, validation.ValidateUsername(u.Username), u.Username)
		assert.NoError(t, validation.ValidateEmail(u.Email), u.Email)
		assert.False(t, seen[u.Username], "duplicate username %s", u.Username)
		seen[u.Username] = true
		assert.NotEqual(t, DefaultPassword, u.Password)
	}
}

func TestFactory_BuildPost(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, MaxDays: 30, Seed: 7})
	user := &models.User{ID: 1}

	for range 50 {
		p := f.BuildPost(user)
		assert.Equal(t, uint(1), p.UserID)
		assert.True(t, p.Status.Valid())
		assert.NotEmpty(t, p.Title)
		assert.LessOrEqual(t, len([]rune(p.Title)), 200)
		assert.Less(t, time.Since(p.CreatedAt), 31*24*time.Hour)
		if p.ImageURL != nil {
			assert.True(t, strings.HasPrefix(*p.ImageURL, "https://"))
		}
	}
}

func TestDemo_DryRun(t *testing.T) {
	summary, err := Demo(context.Background(), nil, Options{
		Users: 3, PostsPerUser: 2, CommentsPerPost: 0, DryRun: true, FastHash: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Users)
	assert.Equal(t, 6, summary.Posts)
	assert.Equal(t, 0, summary.Comments)
}

func TestDemo_SQLite(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	has, err := HasUsers(ctx, db)
	require.NoError(t, err)
	assert.False(t, has)

	summary, err := Demo(ctx, db, Options{
		Users: 4, PostsPerUser: 3, CommentsPerPost: 2, FastHash: true, Seed: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Users)
	assert.Equal(t, 12, summary.Posts)

	var comments int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	assert.Equal(t, int64(summary.Comments), comments)

	// comments_count matches the rows on every post
	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	for _, p := range posts {
		var n int64
		require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&n).Error)
		assert.Equal(t, n, p.CommentsCount, "post %d", p.ID)
	}

	has, err = HasUsers(ctx, db)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, Clean(ctx, db))
	has, err = HasUsers(ctx, db)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDemoFixtures_Valid(t *testing.T) {
	fx, err := DemoFixtures()
	require.NoError(t, err)
	require.NoError(t, fx.Validate())
	assert.Len(t, fx.Users, 3)
	assert.Len(t, fx.Posts, 4)
}

func TestParseFixtures_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseFixtures(strings.NewReader("users:\n  - username: alice\n    nickname: al\n"))
	assert.Error(t, err)
}

func TestFixtures_ValidateReportsEverything(t *testing.T) {
	fx, err := ParseFixtures(strings.NewReader(`
users:
  - username: al
    email: not-an-email
    password: password123
  - username: bob
    email: bob@example.com
    password: password123
posts:
  - author: nobody
    title: ""
    content: body
  - author: bob
    title: Secret
    content: body
    status: private
    comments:
      - author: al
        content: hi
`))
	require.NoError(t, err)

	err = fx.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "users[0]")
	assert.Contains(t, msg, `unknown author "nobody"`)
	assert.Contains(t, msg, "posts[0]")
	assert.Contains(t, msg, "cannot see a private post")
}

func TestApplyFixtures_Idempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	fx, err := DemoFixtures()
	require.NoError(t, err)

	summary, err := ApplyFixtures(ctx, db, fx, Options{FastHash: true})
	require.NoError(t, err)
	assert.Equal(t, Summary{Users: 3, Posts: 4, Comments: 4}, *summary)

	var post models.Post
	require.NoError(t, db.Where("title = ?", "Pagination that tells the truth").Take(&post).Error)
	assert.Equal(t, models.PostStatusPublished, post.Status)
	assert.Equal(t, int64(2), post.CommentsCount)
	assert.Equal(t, models.Tags{"go", "sql"}, post.Tags)

	again, err := ApplyFixtures(ctx, db, fx, Options{FastHash: true})
	require.NoError(t, err)
	assert.Equal(t, Summary{}, *again)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(3), users)
}
