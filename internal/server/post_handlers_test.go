package server

import (
	"fmt"
	"net/http"
	"testing"

	"postapp/internal/models"
	"postapp/internal/repository"
	"postapp/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	alice, aliceToken := env.login(t, "alice")
	_, bobToken := env.login(t, "bob")

	status, body := env.do(t, http.MethodPost, "/api/posts", aliceToken, map[string]any{
		"title":   "First post",
		"content": "Hello there",
		"status":  "published",
		"tags":    []string{"intro"},
		"user_id": 999,
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Post created successfully", body["message"])
	post := object(t, body, "post")
	assert.EqualValues(t, alice.ID, post["user_id"])
	assert.EqualValues(t, 0, post["views"])
	assert.Equal(t, "published", post["status"])
	path := fmt.Sprintf("/api/posts/%v", post["id"])

	status, body = env.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, object(t, body, "post")["views"])

	status, body = env.do(t, http.MethodPut, path, bobToken, map[string]any{"title": "Hijacked"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFoundOrForbidden, body["code"])

	status, _ = env.do(t, http.MethodDelete, path, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, http.MethodPut, path, aliceToken, map[string]any{"title": "Renamed"})
	require.Equal(t, http.StatusOK, status, body)
	updated := object(t, body, "post")
	assert.Equal(t, "Renamed", updated["title"])
	assert.Equal(t, "Hello there", updated["content"])

	status, body = env.do(t, http.MethodPut, path, aliceToken, map[string]any{"nickname": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeNoOp, body["code"])
	assert.Equal(t, "No valid fields to update", body["message"])

	status, body = env.do(t, http.MethodDelete, path, aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Post deleted successfully", body["message"])

	status, _ = env.do(t, http.MethodGet, path, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPostVisibility(t *testing.T) {
	env := newTestEnv(t, nil)
	alice, aliceToken := env.login(t, "alice")
	_, bobToken := env.login(t, "bob")

	draft := testutil.CreatePost(t, env.db, alice.ID, "Unfinished", models.PostStatusDraft)
	private := testutil.CreatePost(t, env.db, alice.ID, "Diary", models.PostStatusPrivate)
	testutil.CreatePost(t, env.db, alice.ID, "Out in the open", models.PostStatusPublished)

	for _, p := range []*models.Post{draft, private} {
		path := fmt.Sprintf("/api/posts/%d", p.ID)

		status, body := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, status, p.Title)
		assert.Equal(t, models.CodeNotFoundOrForbidden, body["code"])

		status, _ = env.do(t, http.MethodGet, path, bobToken, nil)
		assert.Equal(t, http.StatusNotFound, status, p.Title)

		status, _ = env.do(t, http.MethodGet, path, aliceToken, nil)
		assert.Equal(t, http.StatusOK, status, p.Title)
	}

	status, body := env.do(t, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["posts"], 1)
	assert.EqualValues(t, 1, object(t, body, "pagination")["total"])

	status, body = env.do(t, http.MethodGet, "/api/posts", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["posts"], 3)

	// A stale or forged token on an optional route reads as anonymous.
	status, body = env.do(t, http.MethodGet, "/api/posts", "not-a-token", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["posts"], 1)

	status, body = env.do(t, http.MethodPost, "/api/posts", "not-a-token", map[string]any{"title": "x", "content": "y"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.CodeUnauthenticated, body["code"])
}

func TestListPosts_Pagination(t *testing.T) {
	env := newTestEnv(t, nil)
	alice, _ := env.login(t, "alice")
	bob, _ := env.login(t, "bob")

	for i := range 3 {
		testutil.CreatePost(t, env.db, alice.ID, fmt.Sprintf("alice %d", i), models.PostStatusPublished)
	}
	testutil.CreatePost(t, env.db, bob.ID, "bob 0", models.PostStatusPublished)

	status, body := env.do(t, http.MethodGet, "/api/posts?limit=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["posts"], 2)
	pagination := object(t, body, "pagination")
	assert.EqualValues(t, 1, pagination["page"])
	assert.EqualValues(t, 2, pagination["limit"])
	assert.EqualValues(t, 4, pagination["total"])
	assert.EqualValues(t, 2, pagination["total_pages"])

	status, body = env.do(t, http.MethodGet, "/api/posts?limit=2&page=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["posts"], 2)

	status, body = env.do(t, http.MethodGet, "/api/posts?limit=1000&page=-3", "", nil)
	require.Equal(t, http.StatusOK, status)
	pagination = object(t, body, "pagination")
	assert.EqualValues(t, 1, pagination["page"])
	assert.EqualValues(t, 100, pagination["limit"])

	// A page far past the end is empty, not page 1 again.
	status, body = env.do(t, http.MethodGet, "/api/posts?limit=100&page=100000000000000000", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["posts"])
	pagination = object(t, body, "pagination")
	assert.EqualValues(t, repository.MaxPage, pagination["page"])
	assert.EqualValues(t, 4, pagination["total"])

	status, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/posts?user_id=%d", bob.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["posts"], 1)
	first := body["posts"].([]any)[0].(map[string]any)
	assert.Equal(t, "bob 0", first["title"])
	assert.Equal(t, "bob", first["author"].(map[string]any)["username"])

	status, body = env.do(t, http.MethodGet, "/api/posts?user_id=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid user_id", body["message"])
}

func TestCreatePost_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.login(t, "alice")

	status, body := env.do(t, http.MethodPost, "/api/posts", "", map[string]any{"title": "x", "content": "y"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = env.do(t, http.MethodPost, "/api/posts", token, map[string]any{"title": "", "status": "archived"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidationFailed, body["code"])
	fields := map[string]bool{}
	for _, e := range body["errors"].([]any) {
		fields[e.(map[string]any)["field"].(string)] = true
	}
	assert.True(t, fields["title"])
	assert.True(t, fields["content"])
	assert.True(t, fields["status"])

	status, body = env.do(t, http.MethodPost, "/api/posts", token, "{not json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidationFailed, body["code"])
	require.Len(t, body["errors"], 1)
	assert.Equal(t, "body", body["errors"].([]any)[0].(map[string]any)["field"])

	status, body = env.do(t, http.MethodGet, "/api/posts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid post ID", body["message"])
}
