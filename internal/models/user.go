package models

import "time"

// User is an account that owns posts and comments.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email,omitempty"`
	Password     string    `gorm:"not null" json:"-"`
	FullName     string    `gorm:"size:100" json:"full_name"`
	Bio          string    `gorm:"size:500" json:"bio"`
	ProfileImage string    `gorm:"size:2048" json:"profile_image"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUserColumns are the user columns safe to embed in posts and comments.
var PublicUserColumns = []string{"id", "username", "full_name", "bio", "profile_image", "created_at", "updated_at"}

// UserProfile is the public view of a user returned by profile lookups.
type UserProfile struct {
	ID           uint      `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	Bio          string    `json:"bio"`
	ProfileImage string    `json:"profile_image"`
	CreatedAt    time.Time `json:"created_at"`
	PostsCount   int64     `json:"posts_count"`
}

// ProfilePatch is a partial update of the profile fields.
type ProfilePatch struct {
	FullName     Optional[string]
	Bio          Optional[string]
	ProfileImage Optional[string]
}

// Columns returns the column assignments for the fields that were supplied.
func (p ProfilePatch) Columns() map[string]any {
	cols := make(map[string]any, 3)
	if p.FullName.Set {
		cols["full_name"] = p.FullName.Value
	}
	if p.Bio.Set {
		cols["bio"] = p.Bio.Value
	}
	if p.ProfileImage.Set {
		cols["profile_image"] = p.ProfileImage.Value
	}
	return cols
}
