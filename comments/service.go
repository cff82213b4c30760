// Package comments appends comments to posts. Comments are immutable once
// written and carry the author's email as plain text.
package comments

import (
	"context"
	"errors"
	"time"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/forms"
	"github.com/user/socialapp/store"
)

// CommentService defines the comment operations.
type CommentService interface {
	AddComment(ctx context.Context, postID string, author *store.User, req NewCommentRequest) (*store.Comment, error)
}

// CommentStore is the part of store.Store comments need.
type CommentStore interface {
	AddComment(ctx context.Context, postID string, c store.Comment) error
}

type commentServiceImpl struct {
	store CommentStore
	now   func() time.Time
}

// NewCommentService creates a new CommentService.
func NewCommentService(s CommentStore) CommentService {
	return &commentServiceImpl{store: s, now: time.Now}
}

// AddComment validates req and appends it to the post, stamped with the
// author's email and the current time.
func (s *commentServiceImpl) AddComment(ctx context.Context, postID string, author *store.User, req NewCommentRequest) (*store.Comment, error) {
	if err := forms.Validate(req); err != nil {
		return nil, err
	}

	comment := store.Comment{
		Author:    author.Email,
		Text:      req.Text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AddComment(ctx, postID, comment); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NewNotFoundError("post not found", err)
		}
		return nil, apperror.NewDatabaseError("failed to add comment", err)
	}
	return &comment, nil
}
