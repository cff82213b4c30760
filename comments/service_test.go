package comments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/store"
	"github.com/user/socialapp/store/memstore"
	"github.com/user/socialapp/store/storetest"
)

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	alice := storetest.NewUser("alice")
	require.NoError(t, s.CreateUser(ctx, alice))
	post := &store.Post{UserID: alice.ID, Content: "hello"}
	require.NoError(t, s.CreatePost(ctx, post))

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := &commentServiceImpl{store: s, now: func() time.Time { return fixed }}

	c, err := svc.AddComment(ctx, post.ID, alice, NewCommentRequest{Text: "nice"})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", c.Author)

	got, err := s.PostByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, store.Comment{Author: "alice@x.com", Text: "nice", CreatedAt: fixed}, got.Comments[0])

	_, err = svc.AddComment(ctx, post.ID, alice, NewCommentRequest{Text: ""})
	assert.True(t, apperror.IsValidationError(err))

	_, err = svc.AddComment(ctx, "missing", alice, NewCommentRequest{Text: "x"})
	assert.True(t, apperror.IsNotFound(err))
}
