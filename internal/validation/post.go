package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"postapp/internal/models"
)

const (
	// MaxTitleLength is measured in runes.
	MaxTitleLength   = 200
	MaxCommentLength = 10000
)

// PostDraft is a validated create payload.
type PostDraft struct {
	Title    string
	Content  string
	Status   models.PostStatus
	Tags     models.Tags
	ImageURL *string
}

// Post builds the row to insert for owner userID.
func (d PostDraft) Post(userID uint) *models.Post {
	return &models.Post{
		UserID:   userID,
		Title:    d.Title,
		Content:  d.Content,
		Status:   d.Status,
		Tags:     d.Tags,
		ImageURL: d.ImageURL,
	}
}

// ValidatePostCreate checks a create payload. Title and content are required;
// status defaults to draft.
func ValidatePostCreate(p Payload) (PostDraft, error) {
	var v violations
	draft := PostDraft{Status: models.PostStatusDraft}

	if title, ok := checkTitle(p, &v, true); ok {
		draft.Title = title
	}
	if content, ok := checkContent(p, &v, true); ok {
		draft.Content = content
	}
	if status, ok := checkStatus(p, &v); ok {
		draft.Status = status
	}
	if tags, ok := checkTags(p, &v); ok {
		draft.Tags = tags
	}
	if img, ok := checkImageURL(p, &v); ok {
		draft.ImageURL = img
	}

	if err := v.Err(); err != nil {
		return PostDraft{}, err
	}
	return draft, nil
}

// ValidatePostUpdate checks a partial update payload. Unknown fields are
// ignored; an update with no recognized field is left for the caller to reject.
func ValidatePostUpdate(p Payload) (models.PostPatch, error) {
	var v violations
	var patch models.PostPatch

	if title, ok := checkTitle(p, &v, false); ok {
		patch.Title = models.Some(title)
	}
	if content, ok := checkContent(p, &v, false); ok {
		patch.Content = models.Some(content)
	}
	if status, ok := checkStatus(p, &v); ok {
		patch.Status = models.Some(status)
	}
	if tags, ok := checkTags(p, &v); ok {
		patch.Tags = models.Some(tags)
	}
	if img, ok := checkImageURL(p, &v); ok {
		patch.ImageURL = models.Some(img)
	}

	if err := v.Err(); err != nil {
		return models.PostPatch{}, err
	}
	return patch, nil
}

// ValidateComment returns the trimmed comment text, read from "content" or
// its alias "comment".
func ValidateComment(p Payload) (string, error) {
	var v violations
	field := "content"
	if !p.has(field) && p.has("comment") {
		field = "comment"
	}

	text, ok := p.str(field)
	text = trimmed(text)
	switch {
	case !p.has(field):
		v.add("content", "Comment content is required")
	case !ok:
		v.add("content", "Comment content must be a string")
	case text == "":
		v.add("content", "Comment content cannot be empty")
	case runeLen(text) > MaxCommentLength:
		v.add("content", fmt.Sprintf("Comment too long (max %d characters)", MaxCommentLength))
	}

	if err := v.Err(); err != nil {
		return "", err
	}
	return text, nil
}

func checkTitle(p Payload, v *violations, required bool) (string, bool) {
	if !p.has("title") {
		if required {
			v.add("title", "Title is required")
		}
		return "", false
	}
	title, ok := p.str("title")
	if !ok {
		v.add("title", "Title must be a string")
		return "", false
	}
	title = trimmed(title)
	if n := runeLen(title); n < 1 || n > MaxTitleLength {
		v.add("title", fmt.Sprintf("Title must be between 1 and %d characters", MaxTitleLength))
		return "", false
	}
	return title, true
}

func checkContent(p Payload, v *violations, required bool) (string, bool) {
	if !p.has("content") {
		if required {
			v.add("content", "Content is required")
		}
		return "", false
	}
	content, ok := p.str("content")
	if !ok {
		v.add("content", "Content must be a string")
		return "", false
	}
	content = trimmed(content)
	if content == "" {
		v.add("content", "Content cannot be empty")
		return "", false
	}
	return content, true
}

// checkStatus accepts the enumerated status, or the boolean is_private variant
// when status is absent.
func checkStatus(p Payload, v *violations) (models.PostStatus, bool) {
	if p.has("status") {
		raw, ok := p.str("status")
		status := models.PostStatus(raw)
		if !ok || !status.Valid() {
			v.add("status", "Status must be one of draft, published, private")
			return "", false
		}
		return status, true
	}
	if p.has("is_private") {
		private, ok := p.boolean("is_private")
		if !ok {
			v.add("is_private", "is_private must be a boolean")
			return "", false
		}
		if private {
			return models.PostStatusPrivate, true
		}
		return models.PostStatusPublished, true
	}
	return "", false
}

func checkTags(p Payload, v *violations) (models.Tags, bool) {
	if !p.has("tags") {
		return nil, false
	}
	if p.isNull("tags") {
		return nil, true
	}
	var raw []*string
	if err := json.Unmarshal(p["tags"], &raw); err != nil || raw == nil {
		v.add("tags", "Tags must be an array of strings")
		return nil, false
	}
	tags := make(models.Tags, 0, len(raw))
	for _, tag := range raw {
		if tag == nil || strings.TrimSpace(*tag) == "" {
			v.add("tags", "Tags must be non-empty strings")
			return nil, false
		}
		tags = append(tags, *tag)
	}
	return tags, true
}

func checkImageURL(p Payload, v *violations) (*string, bool) {
	if !p.has("image_url") {
		return nil, false
	}
	if p.isNull("image_url") {
		return nil, true
	}
	raw, ok := p.str("image_url")
	if !ok {
		v.add("image_url", "Image URL must be a string")
		return nil, false
	}
	raw = trimmed(raw)
	if raw == "" {
		return nil, true
	}
	if !ValidURL(raw) {
		v.add("image_url", "Image URL must be a valid URL")
		return nil, false
	}
	return &raw, true
}
