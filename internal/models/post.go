// Package models contains data structures for the application's domain models.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// PostStatus is the visibility state of a post. Only published posts are
// readable by callers other than the owner.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusPrivate   PostStatus = "private"
)

// Valid reports whether s is one of the enumerated states.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusPrivate:
		return true
	}
	return false
}

// Public reports whether a post in this state is visible to everyone.
func (s PostStatus) Public() bool {
	return s == PostStatusPublished
}

// Tags is an ordered list of strings persisted as a JSON array.
// A nil Tags is stored as NULL, an empty one as "[]".
type Tags []string

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("tags: unsupported scan type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*t = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	*t = out
	return nil
}

// GormDataType implements schema.GormDataTypeInterface.
func (Tags) GormDataType() string { return "json" }

// GormDBDataType picks the column type per dialect.
func (Tags) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "TEXT"
}

// Post is a blog entry owned by exactly one user.
type Post struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	Title         string     `gorm:"size:200;not null" json:"title"`
	Content       string     `gorm:"type:text;not null" json:"content"`
	Status        PostStatus `gorm:"size:16;not null;default:draft;index:idx_posts_status_created,priority:1" json:"status"`
	Tags          Tags       `json:"tags"`
	ImageURL      *string    `gorm:"size:2048" json:"image_url"`
	Views         int64      `gorm:"not null;default:0" json:"views"`
	LikesCount    int64      `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int64      `gorm:"not null;default:0" json:"comments_count"`
	Author        *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	CreatedAt     time.Time  `gorm:"index:idx_posts_status_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Optional marks whether a field was supplied in a partial update.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a set Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// PostPatch is a partial update of the owner-editable post fields. Each field
// maps to exactly one column; nothing outside this list can be written.
type PostPatch struct {
	Title    Optional[string]
	Content  Optional[string]
	Status   Optional[PostStatus]
	Tags     Optional[Tags]
	ImageURL Optional[*string]
}

// Columns returns the column assignments for the fields that were supplied.
func (p PostPatch) Columns() map[string]any {
	cols := make(map[string]any, 5)
	if p.Title.Set {
		cols["title"] = p.Title.Value
	}
	if p.Content.Set {
		cols["content"] = p.Content.Value
	}
	if p.Status.Set {
		cols["status"] = p.Status.Value
	}
	if p.Tags.Set {
		cols["tags"] = p.Tags.Value
	}
	if p.ImageURL.Set {
		cols["image_url"] = p.ImageURL.Value
	}
	return cols
}

// Empty reports whether no field was supplied.
func (p PostPatch) Empty() bool {
	return len(p.Columns()) == 0
}

// PostFilter selects a page of posts visible to ViewerID (0 for anonymous).
type PostFilter struct {
	ViewerID uint
	AuthorID *uint
	Page     int
	Limit    int
}

// Offset derives the row offset from the 1-based page. It saturates at
// math.MaxInt32 so an oversized page reads past the end instead of wrapping.
func (f PostFilter) Offset() int {
	if f.Page < 1 || f.Limit < 1 {
		return 0
	}
	if f.Page-1 > math.MaxInt32/f.Limit {
		return math.MaxInt32
	}
	return (f.Page - 1) * f.Limit
}

// Pagination describes the page returned by a list call.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// NewPagination computes page metadata from a true row count.
func NewPagination(page, limit int, total int64) Pagination {
	p := Pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.TotalPages = (total + int64(limit) - 1) / int64(limit)
	}
	return p
}
