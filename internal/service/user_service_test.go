package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"postapp/internal/auth"
	"postapp/internal/cache"
	"postapp/internal/featureflags"
	"postapp/internal/models"
	"postapp/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createFn        func(context.Context, *models.User) error
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByLoginFn    func(context.Context, string) (*models.User, error)
	getProfileFn    func(context.Context, string) (*models.UserProfile, error)
	updateProfileFn func(context.Context, uint, models.ProfilePatch) (*models.User, error)
}

func (s *userRepoStub) Create(ctx context.Context, u *models.User) error { return s.createFn(ctx, u) }
func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return s.getByLoginFn(ctx, login)
}
func (s *userRepoStub) GetProfile(ctx context.Context, username string) (*models.UserProfile, error) {
	return s.getProfileFn(ctx, username)
}
func (s *userRepoStub) UpdateProfile(ctx context.Context, id uint, patch models.ProfilePatch) (*models.User, error) {
	return s.updateProfileFn(ctx, id, patch)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		getByIDFn:    func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByLoginFn: func(context.Context, string) (*models.User, error) { return nil, repository.ErrNotFound },
		getProfileFn: func(_ context.Context, username string) (*models.UserProfile, error) {
			return &models.UserProfile{ID: 1, Username: username}, nil
		},
		updateProfileFn: func(_ context.Context, id uint, _ models.ProfilePatch) (*models.User, error) {
			return &models.User{ID: id, Username: "alice"}, nil
		},
	}
}

func testTokens() *auth.Tokens {
	return auth.NewTokens("test-secret-that-is-long-enough-123", "postapp-api", "postapp-client", time.Hour)
}

func TestUserService_Register(t *testing.T) {
	t.Parallel()

	t.Run("hashes password and issues token", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		var saved *models.User
		repo.createFn = func(_ context.Context, u *models.User) error {
			u.ID = 3
			saved = u
			return nil
		}
		tokens := testTokens()
		res, err := NewUserService(repo, tokens, nil, nil).Register(context.Background(),
			payload(t, `{"username":"alice","email":" Alice@Example.com ","password":"secret1"}`))
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "alice@example.com", saved.Email)
		assert.NotEqual(t, "secret1", saved.Password)
		assert.True(t, auth.CheckPassword(saved.Password, "secret1"))

		id, err := tokens.Verify(res.Token)
		require.NoError(t, err)
		assert.Equal(t, uint(3), id.UserID)
		assert.Equal(t, "alice", id.Username)
	})

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.createFn = func(context.Context, *models.User) error { return repository.ErrDuplicate }
		_, err := NewUserService(repo, testTokens(), nil, nil).Register(context.Background(),
			payload(t, `{"username":"alice","email":"a@example.com","password":"secret1"}`))
		appErr := requireAppError(t, err, models.CodeConflict)
		assert.Equal(t, "Username or email already exists", appErr.Message)
	})

	t.Run("invalid fields", func(t *testing.T) {
		t.Parallel()
		_, err := NewUserService(noopUserRepo(), testTokens(), nil, nil).Register(context.Background(),
			payload(t, `{"username":"a","email":"nope","password":"1"}`))
		appErr := requireAppError(t, err, models.CodeValidationFailed)
		assert.Len(t, appErr.Fields, 3)
	})
}

func TestUserService_Login(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)
	repo := noopUserRepo()
	repo.getByLoginFn = func(_ context.Context, login string) (*models.User, error) {
		if login == "alice" || login == "alice@example.com" {
			return &models.User{ID: 1, Username: "alice", Password: hash}, nil
		}
		return nil, repository.ErrNotFound
	}
	svc := NewUserService(repo, testTokens(), nil, nil)

	tests := []struct {
		name    string
		body    string
		errCode string
	}{
		{"username", `{"login":"alice","password":"secret1"}`, ""},
		{"email", `{"login":"alice@example.com","password":"secret1"}`, ""},
		{"legacy username field", `{"username":"alice","password":"secret1"}`, ""},
		{"wrong password", `{"login":"alice","password":"nope12"}`, models.CodeUnauthenticated},
		{"unknown user", `{"login":"bob","password":"secret1"}`, models.CodeUnauthenticated},
		{"missing fields", `{}`, models.CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := svc.Login(context.Background(), payload(t, tt.body))
			if tt.errCode != "" {
				requireAppError(t, err, tt.errCode)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, "alice", res.User.Username)
		})
	}
}

func TestUserService_Me(t *testing.T) {
	t.Parallel()
	repo := noopUserRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		if id == 1 {
			return &models.User{ID: 1, Username: "alice"}, nil
		}
		return nil, repository.ErrNotFound
	}
	svc := NewUserService(repo, testTokens(), nil, nil)

	u, err := svc.Me(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = svc.Me(context.Background(), 2)
	appErr := requireAppError(t, err, models.CodeNotFoundOrForbidden)
	assert.Equal(t, "User not found or access denied", appErr.Message)
}

func newProfileCache(t *testing.T) (*miniredis.Miniredis, *cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, cache.New(rdb, "profile")
}

func TestUserService_GetProfile_Cache(t *testing.T) {
	t.Parallel()

	t.Run("served from cache when flag is on", func(t *testing.T) {
		t.Parallel()
		mr, c := newProfileCache(t)
		calls := 0
		repo := noopUserRepo()
		repo.getProfileFn = func(_ context.Context, username string) (*models.UserProfile, error) {
			calls++
			return &models.UserProfile{ID: 1, Username: username, PostsCount: 2}, nil
		}
		svc := NewUserService(repo, testTokens(), c, featureflags.NewManager("profile_cache=on"))

		for i := 0; i < 3; i++ {
			p, err := svc.GetProfile(context.Background(), "alice")
			require.NoError(t, err)
			assert.Equal(t, int64(2), p.PostsCount)
		}
		assert.Equal(t, 1, calls)
		assert.True(t, mr.Exists(cache.UserProfileKey("alice")))
		assert.Equal(t, cache.UserProfileTTL, mr.TTL(cache.UserProfileKey("alice")))

		svc.InvalidateProfile(context.Background(), "alice")
		assert.False(t, mr.Exists(cache.UserProfileKey("alice")))
		_, err := svc.GetProfile(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("bypassed when flag is off", func(t *testing.T) {
		t.Parallel()
		mr, c := newProfileCache(t)
		calls := 0
		repo := noopUserRepo()
		repo.getProfileFn = func(_ context.Context, username string) (*models.UserProfile, error) {
			calls++
			return &models.UserProfile{Username: username}, nil
		}
		svc := NewUserService(repo, testTokens(), c, featureflags.NewManager("profile_cache=off"))

		for i := 0; i < 2; i++ {
			_, err := svc.GetProfile(context.Background(), "alice")
			require.NoError(t, err)
		}
		assert.Equal(t, 2, calls)
		assert.False(t, mr.Exists(cache.UserProfileKey("alice")))
	})

	t.Run("not found is not cached", func(t *testing.T) {
		t.Parallel()
		mr, c := newProfileCache(t)
		repo := noopUserRepo()
		repo.getProfileFn = func(context.Context, string) (*models.UserProfile, error) {
			return nil, repository.ErrNotFound
		}
		svc := NewUserService(repo, testTokens(), c, featureflags.NewManager("profile_cache=on"))

		_, err := svc.GetProfile(context.Background(), "ghost")
		requireAppError(t, err, models.CodeNotFoundOrForbidden)
		assert.False(t, mr.Exists(cache.UserProfileKey("ghost")))
	})
}

func TestUserService_UpdateProfile(t *testing.T) {
	t.Parallel()

	t.Run("invalidates cached profile", func(t *testing.T) {
		t.Parallel()
		mr, c := newProfileCache(t)
		require.NoError(t, mr.Set(cache.UserProfileKey("alice"), `{"id":1}`))
		repo := noopUserRepo()
		var gotPatch models.ProfilePatch
		repo.updateProfileFn = func(_ context.Context, id uint, patch models.ProfilePatch) (*models.User, error) {
			gotPatch = patch
			return &models.User{ID: id, Username: "alice", Bio: patch.Bio.Value}, nil
		}
		svc := NewUserService(repo, testTokens(), c, featureflags.NewManager("profile_cache=on"))

		u, err := svc.UpdateProfile(context.Background(), alice, payload(t, `{"bio":"hello"}`))
		require.NoError(t, err)
		assert.Equal(t, "hello", u.Bio)
		assert.True(t, gotPatch.Bio.Set)
		assert.False(t, gotPatch.FullName.Set)
		assert.False(t, mr.Exists(cache.UserProfileKey("alice")))
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.updateProfileFn = func(context.Context, uint, models.ProfilePatch) (*models.User, error) {
			return nil, repository.ErrNoOp
		}
		_, err := NewUserService(repo, testTokens(), nil, nil).UpdateProfile(context.Background(), alice, payload(t, `{}`))
		appErr := requireAppError(t, err, models.CodeNoOp)
		assert.Equal(t, "No fields to update", appErr.Message)
	})

	t.Run("storage failure", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.updateProfileFn = func(context.Context, uint, models.ProfilePatch) (*models.User, error) {
			return nil, errors.New("db down")
		}
		_, err := NewUserService(repo, testTokens(), nil, nil).UpdateProfile(context.Background(), alice, payload(t, `{"bio":"x"}`))
		requireAppError(t, err, models.CodeStorageFailure)
	})
}
