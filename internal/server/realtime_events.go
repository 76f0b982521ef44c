package server

import (
	"context"
	"encoding/json"
	"time"

	"postapp/internal/featureflags"
	"postapp/internal/middleware"
	"postapp/internal/models"
)

// Event type constants prevent typos in event names.
const (
	EventPostCreated    = "post_created"
	EventPostUpdated    = "post_updated"
	EventPostDeleted    = "post_deleted"
	EventCommentCreated = "comment_created"
	EventCommentDeleted = "comment_deleted"
)

const publishTimeout = 2 * time.Second

type feedEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// realtimeOn reports whether actorID's writes produce feed events.
func (s *Server) realtimeOn(actorID uint) bool {
	return s.featureFlags.Enabled(featureflags.RealtimeFeed, actorID)
}

// publishPostEvent sends created and updated events. Published posts go to
// everyone; drafts and private posts only reach their owner.
func (s *Server) publishPostEvent(ctx context.Context, eventType string, post *models.Post) {
	if post == nil || !s.realtimeOn(post.UserID) {
		return
	}
	payload := postSummary(post)
	if post.Status.Public() {
		s.publishBroadcastEvent(ctx, eventType, payload)
		return
	}
	s.publishUserEvent(ctx, post.UserID, eventType, payload)
}

// publishPostDeleted tells the owner only; the post may never have been
// public.
func (s *Server) publishPostDeleted(ctx context.Context, ownerID, postID uint) {
	if !s.realtimeOn(ownerID) {
		return
	}
	s.publishUserEvent(ctx, ownerID, EventPostDeleted, map[string]any{
		"post_id":    postID,
		"deleted_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// publishCommentCreated follows the visibility of the parent post.
func (s *Server) publishCommentCreated(ctx context.Context, comment *models.Comment) {
	if comment == nil || !s.realtimeOn(comment.UserID) {
		return
	}
	payload := map[string]any{
		"comment_id": comment.ID,
		"post_id":    comment.PostID,
		"user_id":    comment.UserID,
		"content":    comment.Content,
		"author":     userSummary(comment.Author),
		"created_at": comment.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	if comment.Post == nil || comment.Post.Status.Public() {
		s.publishBroadcastEvent(ctx, EventCommentCreated, payload)
		return
	}
	s.publishUserEvent(ctx, comment.Post.UserID, EventCommentCreated, payload)
}

func (s *Server) publishCommentDeleted(ctx context.Context, actorID, postID, commentID uint) {
	if !s.realtimeOn(actorID) {
		return
	}
	s.publishUserEvent(ctx, actorID, EventCommentDeleted, map[string]any{
		"comment_id": commentID,
		"post_id":    postID,
	})
}

// publishUserEvent goes through Redis when it is available so every
// instance's hub sees it once; otherwise straight to the local hub.
func (s *Server) publishUserEvent(ctx context.Context, userID uint, eventType string, payload map[string]any) {
	message, ok := encodeEvent(ctx, eventType, payload)
	if !ok {
		return
	}

	if s.notifier.Active() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.notifier.PublishUser(pctx, userID, message); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish user event",
				"event", eventType, "user_id", userID, "error", err)
		}
		return
	}
	s.hub.Broadcast(userID, message)
}

func (s *Server) publishBroadcastEvent(ctx context.Context, eventType string, payload map[string]any) {
	message, ok := encodeEvent(ctx, eventType, payload)
	if !ok {
		return
	}

	if s.notifier.Active() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.notifier.PublishBroadcast(pctx, message); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish broadcast event",
				"event", eventType, "error", err)
		}
		return
	}
	s.hub.BroadcastAll(message)
}

func encodeEvent(ctx context.Context, eventType string, payload map[string]any) (string, bool) {
	raw, err := json.Marshal(feedEvent{Type: eventType, Payload: payload})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal event", "event", eventType, "error", err)
		return "", false
	}
	return string(raw), true
}

func postSummary(post *models.Post) map[string]any {
	return map[string]any{
		"post_id":    post.ID,
		"user_id":    post.UserID,
		"title":      post.Title,
		"status":     post.Status,
		"tags":       post.Tags,
		"author":     userSummary(post.Author),
		"updated_at": post.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func userSummary(user *models.User) map[string]any {
	if user == nil {
		return nil
	}
	return map[string]any{
		"id":            user.ID,
		"username":      user.Username,
		"profile_image": user.ProfileImage,
	}
}
