package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"postapp/internal/config"
	"postapp/internal/models"
	"postapp/internal/notifications"
	"postapp/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, c *notifications.Client) feedEvent {
	t.Helper()
	select {
	case raw := <-c.Send:
		var ev feedEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return feedEvent{}
	}
}

func assertNoEvent(t *testing.T, c *notifications.Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected event: %s", raw)
	default:
	}
}

func TestRealtime_LocalHubRouting(t *testing.T) {
	env := newTestEnv(t, nil)
	alice, aliceToken := env.login(t, "alice")
	bob, bobToken := env.login(t, "bob")

	aliceConn, err := env.srv.hub.Register(alice.ID, nil)
	require.NoError(t, err)
	bobConn, err := env.srv.hub.Register(bob.ID, nil)
	require.NoError(t, err)
	anonConn, err := env.srv.hub.Register(0, nil)
	require.NoError(t, err)

	// Drafts only reach their owner.
	status, body := env.do(t, http.MethodPost, "/api/posts", aliceToken, map[string]any{
		"title": "Work in progress", "content": "...",
	})
	require.Equal(t, http.StatusCreated, status)
	ev := nextEvent(t, aliceConn)
	assert.Equal(t, EventPostCreated, ev.Type)
	assert.Equal(t, "Work in progress", ev.Payload["title"])
	assertNoEvent(t, bobConn)
	assertNoEvent(t, anonConn)

	// Publishing it reaches everyone, anonymous viewers included.
	path := fmt.Sprintf("/api/posts/%v", object(t, body, "post")["id"])
	status, _ = env.do(t, http.MethodPut, path, aliceToken, map[string]any{"status": "published"})
	require.Equal(t, http.StatusOK, status)
	for _, c := range []*notifications.Client{aliceConn, bobConn, anonConn} {
		ev := nextEvent(t, c)
		assert.Equal(t, EventPostUpdated, ev.Type)
		assert.Equal(t, "published", ev.Payload["status"])
	}

	status, body = env.do(t, http.MethodPost, path+"/comments", bobToken, map[string]any{"content": "First!"})
	require.Equal(t, http.StatusCreated, status)
	for _, c := range []*notifications.Client{aliceConn, bobConn, anonConn} {
		ev := nextEvent(t, c)
		assert.Equal(t, EventCommentCreated, ev.Type)
		assert.Equal(t, "First!", ev.Payload["content"])
	}

	commentPath := fmt.Sprintf("%s/comments/%v", path, object(t, body, "comment")["id"])
	status, _ = env.do(t, http.MethodDelete, commentPath, bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, EventCommentDeleted, nextEvent(t, bobConn).Type)
	assertNoEvent(t, aliceConn)

	status, _ = env.do(t, http.MethodDelete, path, aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, EventPostDeleted, nextEvent(t, aliceConn).Type)
	assertNoEvent(t, bobConn)
	assertNoEvent(t, anonConn)
}

func TestRealtime_CommentOnPrivatePostGoesToOwner(t *testing.T) {
	env := newTestEnv(t, nil)
	alice, aliceToken := env.login(t, "alice")
	post := testutil.CreatePost(t, env.db, alice.ID, "Diary", models.PostStatusPrivate)

	aliceConn, err := env.srv.hub.Register(alice.ID, nil)
	require.NoError(t, err)
	anonConn, err := env.srv.hub.Register(0, nil)
	require.NoError(t, err)

	status, _ := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", post.ID), aliceToken,
		map[string]any{"content": "Dear diary"})
	require.Equal(t, http.StatusCreated, status)

	assert.Equal(t, EventCommentCreated, nextEvent(t, aliceConn).Type)
	assertNoEvent(t, anonConn)
}

func TestRealtime_FlagOff(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.Config) { c.FeatureFlags = "realtime_feed=off" })
	_, token := env.login(t, "alice")

	anonConn, err := env.srv.hub.Register(0, nil)
	require.NoError(t, err)

	status, _ := env.do(t, http.MethodPost, "/api/posts", token, map[string]any{
		"title": "Quiet", "content": "Nobody hears this", "status": "published",
	})
	require.Equal(t, http.StatusCreated, status)
	assertNoEvent(t, anonConn)
}

func TestRealtime_PublishesThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t, rdb)
	_, token := env.login(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub := rdb.Subscribe(ctx, notifications.BroadcastChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	// With Redis the local hub is fed by the subscriber, not directly.
	anonConn, err := env.srv.hub.Register(0, nil)
	require.NoError(t, err)

	status, _ := env.do(t, http.MethodPost, "/api/posts", token, map[string]any{
		"title": "Shared", "content": "Across instances", "status": "published",
	})
	require.Equal(t, http.StatusCreated, status)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var ev feedEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	assert.Equal(t, EventPostCreated, ev.Type)
	assert.Equal(t, "Shared", ev.Payload["title"])
	assertNoEvent(t, anonConn)

	status, body := env.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", object(t, body, "checks")["redis"])
}

func TestRateLimit_Register(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t, rdb, func(c *config.Config) { c.RateLimitEnabled = true })

	for i := range 5 {
		status, _ := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
			"username": fmt.Sprintf("user_%d", i),
			"email":    fmt.Sprintf("user_%d@example.com", i),
			"password": "password1",
		})
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "user_5", "email": "user_5@example.com", "password": "password1",
	})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, false, body["success"])
}
