// Package posts holds the post lifecycle: creating, editing, deleting and liking
// posts, plus the explore feed and search.
package posts

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/forms"
	"github.com/user/socialapp/store"
)

// ImageStore is where post images go.
type ImageStore interface {
	Save(r io.Reader) (string, error)
	Remove(name string) error
}

// ContentRequest is the post body submitted on create and edit.
type ContentRequest struct {
	Content string `form:"content" validate:"required,max=5000"`
}

// SearchResults is what a search query matched.
type SearchResults struct {
	Query string
	Users []store.User
	Posts []store.PostView
}

// PostService implements the post operations on top of a store.
type PostService struct {
	store  store.Store
	images ImageStore
}

// NewPostService creates a PostService.
func NewPostService(s store.Store, images ImageStore) *PostService {
	return &PostService{store: s, images: images}
}

// Create stores a post owned by owner. image is an already saved upload name or
// empty.
func (s *PostService) Create(ctx context.Context, owner *store.User, req ContentRequest, image string) (*store.Post, error) {
	if err := forms.Validate(req); err != nil {
		return nil, err
	}
	post := &store.Post{UserID: owner.ID, Content: req.Content, Image: image}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, apperror.NewDatabaseError("failed to create post", err)
	}
	return post, nil
}

// Owned loads a post and checks that user owns it.
func (s *PostService) Owned(ctx context.Context, user *store.User, postID string) (*store.Post, error) {
	post, err := s.store.PostByID(ctx, postID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewNotFoundError("post not found", err)
	}
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to get post", err)
	}
	if post.UserID != user.ID {
		return nil, apperror.NewForbiddenError("you can only change your own posts", nil)
	}
	return post, nil
}

// UpdateContent overwrites the content of a post user owns.
func (s *PostService) UpdateContent(ctx context.Context, user *store.User, postID string, req ContentRequest) error {
	if err := forms.Validate(req); err != nil {
		return err
	}
	if _, err := s.Owned(ctx, user, postID); err != nil {
		return err
	}
	if err := s.store.UpdatePostContent(ctx, postID, req.Content); err != nil {
		return mapStoreError("failed to update post", err)
	}
	return nil
}

// Delete removes a post user owns together with its image.
func (s *PostService) Delete(ctx context.Context, user *store.User, postID string) error {
	post, err := s.Owned(ctx, user, postID)
	if err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		return mapStoreError("failed to delete post", err)
	}
	if err := s.images.Remove(post.Image); err != nil {
		slog.Warn("failed to remove post image", "post_id", postID, "error", err)
	}
	return nil
}

// ToggleLike likes or unlikes a post for user and reports the new state.
func (s *PostService) ToggleLike(ctx context.Context, user *store.User, postID string) (bool, error) {
	liked, err := s.store.ToggleLike(ctx, postID, user.ID)
	if err != nil {
		return false, mapStoreError("failed to toggle like", err)
	}
	return liked, nil
}

// Explore lists every post with its owner, newest first.
func (s *PostService) Explore(ctx context.Context) ([]store.PostView, error) {
	views, err := s.store.ListPosts(ctx)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list posts", err)
	}
	return views, nil
}

// Search matches query against user names, usernames and post content. A blank
// query matches nothing.
func (s *PostService) Search(ctx context.Context, query string) (*SearchResults, error) {
	results := &SearchResults{Query: query, Users: []store.User{}, Posts: []store.PostView{}}
	if query == "" {
		return results, nil
	}

	users, err := s.store.SearchUsers(ctx, query)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to search users", err)
	}
	posts, err := s.store.SearchPosts(ctx, query)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to search posts", err)
	}
	results.Users = users
	results.Posts = posts
	return results, nil
}

func mapStoreError(message string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NewNotFoundError("post not found", err)
	}
	return apperror.NewDatabaseError(message, err)
}
