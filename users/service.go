// Package users manages the signed-in user's account: the profile page and its
// edits, the profile picture, the follow graph and account deletion.
package users

import (
	"context"
	"errors"
	"log/slog"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/forms"
	"github.com/user/socialapp/store"
)

// ImageStore removes files that are no longer referenced.
type ImageStore interface {
	Remove(name string) error
}

// UserService implements the account operations.
type UserService struct {
	store  store.Store
	images ImageStore
}

// NewUserService creates a new UserService.
func NewUserService(s store.Store, images ImageStore) *UserService {
	return &UserService{store: s, images: images}
}

// GetProfile resolves the posts of user.
func (s *UserService) GetProfile(ctx context.Context, user *store.User) (*Profile, error) {
	posts, err := s.store.PostsByIDs(ctx, user.Posts)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to load posts", err)
	}
	return &Profile{User: user, Posts: posts}, nil
}

// UpdateProfile overwrites the profile fields and returns the updated user. The
// caller reissues the session when the email changed.
func (s *UserService) UpdateProfile(ctx context.Context, user *store.User, req UpdateProfileRequest) (*store.User, error) {
	if err := forms.Validate(req); err != nil {
		return nil, err
	}
	age, err := forms.Age(req.Age)
	if err != nil {
		return nil, err
	}

	upd := store.ProfileUpdate{Name: req.Name, Username: req.Username, Email: req.Email, Age: age}
	if err := s.store.UpdateProfile(ctx, user.ID, upd); err != nil {
		return nil, mapUserError("failed to update profile", err)
	}

	updated := *user
	updated.Name, updated.Username, updated.Email, updated.Age = upd.Name, upd.Username, upd.Email, upd.Age
	return &updated, nil
}

// SetProfileImage points the user's profile at a saved upload and removes the
// previous custom image.
func (s *UserService) SetProfileImage(ctx context.Context, user *store.User, image string) error {
	if err := s.store.SetProfileImage(ctx, user.ID, image); err != nil {
		return mapUserError("failed to update profile image", err)
	}
	if user.HasCustomImage() && user.ProfileImage != image {
		if err := s.images.Remove(user.ProfileImage); err != nil {
			slog.Warn("failed to remove old profile image", "user_id", user.ID, "error", err)
		}
	}
	return nil
}

// DeleteAccount removes the user, their posts and their follow edges, then the
// files they uploaded.
func (s *UserService) DeleteAccount(ctx context.Context, user *store.User) error {
	posts, err := s.store.PostsByIDs(ctx, user.Posts)
	if err != nil {
		return apperror.NewDatabaseError("failed to load posts", err)
	}
	if err := s.store.DeleteUser(ctx, user.ID); err != nil {
		return mapUserError("failed to delete account", err)
	}
	slog.Info("account deleted", "user_id", user.ID, "posts", len(posts))

	files := make([]string, 0, len(posts)+1)
	if user.HasCustomImage() {
		files = append(files, user.ProfileImage)
	}
	for _, p := range posts {
		files = append(files, p.Image)
	}
	for _, name := range files {
		if err := s.images.Remove(name); err != nil {
			slog.Warn("failed to remove upload of deleted account", "user_id", user.ID, "file", name, "error", err)
		}
	}
	return nil
}

// Follow makes user follow the account named username.
func (s *UserService) Follow(ctx context.Context, user *store.User, username string) error {
	target, err := s.followTarget(ctx, user, username)
	if err != nil {
		return err
	}
	if err := s.store.Follow(ctx, user.ID, target.ID); err != nil {
		return mapUserError("failed to follow user", err)
	}
	return nil
}

// Unfollow removes the follow edge from user to username.
func (s *UserService) Unfollow(ctx context.Context, user *store.User, username string) error {
	target, err := s.followTarget(ctx, user, username)
	if err != nil {
		return err
	}
	if err := s.store.Unfollow(ctx, user.ID, target.ID); err != nil {
		return mapUserError("failed to unfollow user", err)
	}
	return nil
}

func (s *UserService) followTarget(ctx context.Context, user *store.User, username string) (*store.User, error) {
	target, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		return nil, mapUserError("failed to get user", err)
	}
	if target.ID == user.ID {
		return nil, apperror.NewBadRequestError("you cannot follow yourself", nil)
	}
	return target, nil
}

func mapUserError(message string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperror.NewNotFoundError("user not found", err)
	case errors.Is(err, store.ErrDuplicate):
		return apperror.NewConflictError("email or username already taken", err)
	}
	return apperror.NewDatabaseError(message, err)
}
