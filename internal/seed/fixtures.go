package seed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"postapp/internal/models"
	"postapp/internal/repository"
	"postapp/internal/validation"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures/demo.yml
var demoFixtures []byte

// Fixtures is a hand-written data set: named users, their posts and the
// comments on them.
type Fixtures struct {
	Users []UserFixture `yaml:"users"`
	Posts []PostFixture `yaml:"posts"`
}

type UserFixture struct {
	Username     string `yaml:"username"`
	Email        string `yaml:"email"`
	Password     string `yaml:"password"`
	FullName     string `yaml:"full_name"`
	Bio          string `yaml:"bio"`
	ProfileImage string `yaml:"profile_image"`
}

type PostFixture struct {
	Author   string           `yaml:"author"`
	Title    string           `yaml:"title"`
	Content  string           `yaml:"content"`
	Status   string           `yaml:"status"`
	Tags     []string         `yaml:"tags"`
	ImageURL string           `yaml:"image_url"`
	Comments []CommentFixture `yaml:"comments"`
}

type CommentFixture struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

// ParseFixtures decodes YAML fixtures. Unknown keys are an error.
func ParseFixtures(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixtures
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return &fx, nil
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &fx, nil
}

// LoadFixtureFile reads fixtures from path.
func LoadFixtureFile(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return ParseFixtures(f)
}

// DemoFixtures returns the built-in fixture set.
func DemoFixtures() (*Fixtures, error) {
	return ParseFixtures(bytes.NewReader(demoFixtures))
}

// draft runs the post through the same validation as the HTTP API.
func (p PostFixture) draft() (validation.PostDraft, error) {
	body := map[string]any{"title": p.Title, "content": p.Content}
	if p.Status != "" {
		body["status"] = p.Status
	}
	if p.Tags != nil {
		body["tags"] = p.Tags
	}
	if p.ImageURL != "" {
		body["image_url"] = p.ImageURL
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return validation.PostDraft{}, err
	}
	payload, err := validation.ParsePayload(raw)
	if err != nil {
		return validation.PostDraft{}, err
	}
	return validation.ValidatePostCreate(payload)
}

func (c CommentFixture) content() (string, error) {
	raw, err := json.Marshal(map[string]string{"content": c.Content})
	if err != nil {
		return "", err
	}
	payload, err := validation.ParsePayload(raw)
	if err != nil {
		return "", err
	}
	return validation.ValidateComment(payload)
}

// Validate checks every entry against the API's rules and reports all
// problems at once.
func (fx *Fixtures) Validate() error {
	var errs []error
	known := make(map[string]bool, len(fx.Users))

	for i, u := range fx.Users {
		for _, err := range []error{
			validation.ValidateUsername(u.Username),
			validation.ValidateEmail(u.Email),
			validation.ValidatePassword(u.Password),
		} {
			if err != nil {
				errs = append(errs, fmt.Errorf("users[%d] %q: %w", i, u.Username, err))
			}
		}
		if known[u.Username] {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username))
		}
		known[u.Username] = true
	}

	for i, p := range fx.Posts {
		if !known[p.Author] {
			errs = append(errs, fmt.Errorf("posts[%d]: unknown author %q", i, p.Author))
		}
		draft, err := p.draft()
		if err != nil {
			errs = append(errs, fmt.Errorf("posts[%d] %q: %w", i, p.Title, err))
			continue
		}
		for j, c := range p.Comments {
			if !known[c.Author] {
				errs = append(errs, fmt.Errorf("posts[%d].comments[%d]: unknown author %q", i, j, c.Author))
			}
			if _, err := c.content(); err != nil {
				errs = append(errs, fmt.Errorf("posts[%d].comments[%d]: %w", i, j, err))
			}
			if !draft.Status.Public() && c.Author != p.Author {
				errs = append(errs, fmt.Errorf("posts[%d].comments[%d]: %q cannot see a %s post",
					i, j, c.Author, draft.Status))
			}
		}
	}
	return errors.Join(errs...)
}

// ApplyFixtures writes fx in one transaction. Existing users (by username)
// and posts (by author and title) are reused, so applying the same file twice
// adds nothing.
func ApplyFixtures(ctx context.Context, db *gorm.DB, fx *Fixtures, opts Options) (*Summary, error) {
	if err := fx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	if opts.Clean {
		if err := Clean(ctx, db); err != nil {
			return nil, err
		}
	}

	f := NewFactory(db, opts)
	posts := repository.NewPostRepository(db, 0)
	summary := &Summary{}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make(map[string]*models.User, len(fx.Users))
		for _, uf := range fx.Users {
			u, created, err := upsertUser(tx, f, uf)
			if err != nil {
				return err
			}
			users[uf.Username] = u
			if created {
				summary.Users++
			}
		}

		for _, pf := range fx.Posts {
			author := users[pf.Author]
			draft, err := pf.draft()
			if err != nil {
				return err
			}

			var existing int64
			if err := tx.Model(&models.Post{}).
				Where("user_id = ? AND title = ?", author.ID, draft.Title).
				Count(&existing).Error; err != nil {
				return fmt.Errorf("look up post %q: %w", draft.Title, err)
			}
			if existing > 0 {
				continue
			}

			post := draft.Post(author.ID)
			if err := tx.Omit("Author").Create(post).Error; err != nil {
				return fmt.Errorf("create post %q: %w", draft.Title, err)
			}
			summary.Posts++

			for _, cf := range pf.Comments {
				content, err := cf.content()
				if err != nil {
					return err
				}
				comment := &models.Comment{PostID: post.ID, UserID: users[cf.Author].ID, Content: content}
				if err := tx.Omit("Author", "Post").Create(comment).Error; err != nil {
					return fmt.Errorf("create comment on %q: %w", draft.Title, err)
				}
				if err := posts.AdjustComments(ctx, tx, post.ID, 1); err != nil {
					return err
				}
				summary.Comments++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func upsertUser(tx *gorm.DB, f *Factory, uf UserFixture) (*models.User, bool, error) {
	var user models.User
	err := tx.Where("username = ?", uf.Username).Take(&user).Error
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("look up user %q: %w", uf.Username, err)
	}

	hash, err := f.hash(uf.Password)
	if err != nil {
		return nil, false, err
	}
	user = models.User{
		Username:     uf.Username,
		Email:        validation.NormalizeEmail(uf.Email),
		Password:     hash,
		FullName:     uf.FullName,
		Bio:          uf.Bio,
		ProfileImage: uf.ProfileImage,
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, false, fmt.Errorf("create user %q: %w", uf.Username, err)
	}
	return &user, true, nil
}
