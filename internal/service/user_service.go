package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"postapp/internal/auth"
	"postapp/internal/cache"
	"postapp/internal/featureflags"
	"postapp/internal/models"
	"postapp/internal/repository"
	"postapp/internal/validation"
)

// TokenIssuer mints access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uint, username string) (string, error)
}

// FlagSource answers whether a global flag is switched on.
type FlagSource interface {
	On(name string) bool
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type UserService struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
	profiles *cache.Cache
	flags    FlagSource
}

// dummyHash keeps failed logins for unknown users as slow as wrong passwords.
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("postapp-timing-equalizer")
	return h
})

// NewUserService wires a UserService. profiles and flags may be nil, which
// disables the profile cache.
func NewUserService(userRepo repository.UserRepository, tokens TokenIssuer, profiles *cache.Cache, flags FlagSource) *UserService {
	return &UserService{
		userRepo: userRepo,
		tokens:   tokens,
		profiles: profiles,
		flags:    flags,
	}
}

// Register creates an account and signs the new user in.
func (s *UserService) Register(ctx context.Context, payload validation.Payload) (*AuthResult, error) {
	reg, err := validation.ValidateRegistration(payload)
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: reg.Username,
		Email:    reg.Email,
		Password: hash,
		FullName: reg.FullName,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewConflictError("Username or email already exists")
		}
		return nil, storageError(err, "User")
	}

	return s.issue(user)
}

// Login checks credentials given as username or email.
func (s *UserService) Login(ctx context.Context, payload validation.Payload) (*AuthResult, error) {
	in, err := validation.ValidateLogin(payload)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByLogin(ctx, in.Identifier)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		auth.CheckPassword(dummyHash(), in.Password)
		return nil, models.NewUnauthorizedError("Invalid credentials")
	case err != nil:
		return nil, storageError(err, "User")
	}

	if !auth.CheckPassword(user.Password, in.Password) {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Me returns the account behind the current identity.
func (s *UserService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storageError(err, "User")
	}
	return user, nil
}

// GetProfile returns the public profile of username, served from Redis when
// the profile_cache flag is on.
func (s *UserService) GetProfile(ctx context.Context, username string) (*models.UserProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewNotFoundError("User")
	}

	fetch := func(dest *models.UserProfile) error {
		profile, err := s.userRepo.GetProfile(ctx, username)
		if err != nil {
			return storageError(err, "User")
		}
		*dest = *profile
		return nil
	}

	var profile models.UserProfile
	if !s.cacheEnabled() {
		if err := fetch(&profile); err != nil {
			return nil, err
		}
		return &profile, nil
	}

	err := s.profiles.Aside(ctx, cache.UserProfileKey(username), &profile, cache.UserProfileTTL, func() error {
		return fetch(&profile)
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile applies a partial profile update for actor.
func (s *UserService) UpdateProfile(ctx context.Context, actor auth.Identity, payload validation.Payload) (*models.User, error) {
	patch, err := validation.ValidateProfile(payload)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.UpdateProfile(ctx, actor.UserID, patch)
	if errors.Is(err, repository.ErrNoOp) {
		return nil, models.NewNoOpError("No fields to update")
	}
	if err != nil {
		return nil, storageError(err, "User")
	}

	s.InvalidateProfile(ctx, user.Username)
	return user, nil
}

// InvalidateProfile drops the cached profile of username.
func (s *UserService) InvalidateProfile(ctx context.Context, username string) {
	if s.profiles.Enabled() {
		s.profiles.Invalidate(ctx, cache.UserProfileKey(username))
	}
}

func (s *UserService) cacheEnabled() bool {
	return s.profiles.Enabled() && s.flags != nil && s.flags.On(featureflags.ProfileCache)
}
