package posts

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/store"
	"github.com/user/socialapp/store/memstore"
	"github.com/user/socialapp/store/storetest"
)

type fakeImages struct {
	removed []string
}

func (f *fakeImages) Save(r io.Reader) (string, error) { return "saved.png", nil }

func (f *fakeImages) Remove(name string) error {
	if name != "" {
		f.removed = append(f.removed, name)
	}
	return nil
}

func setup(t *testing.T) (*PostService, *memstore.Store, *fakeImages, *store.User, *store.User) {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()
	alice, bob := storetest.NewUser("alice"), storetest.NewUser("bob")
	require.NoError(t, s.CreateUser(ctx, alice))
	require.NoError(t, s.CreateUser(ctx, bob))
	images := &fakeImages{}
	return NewPostService(s, images), s, images, alice, bob
}

func TestCreate(t *testing.T) {
	svc, s, _, alice, _ := setup(t)
	ctx := context.Background()

	post, err := svc.Create(ctx, alice, ContentRequest{Content: "hello"}, "pic.png")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, post.UserID)
	assert.Equal(t, "pic.png", post.Image)

	owner, err := s.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{post.ID}, owner.Posts)

	_, err = svc.Create(ctx, alice, ContentRequest{}, "")
	assert.True(t, apperror.IsValidationError(err))

	_, err = svc.Create(ctx, alice, ContentRequest{Content: strings.Repeat("x", 5001)}, "")
	assert.True(t, apperror.IsValidationError(err))
}

func TestOwnershipChecks(t *testing.T) {
	svc, s, images, alice, bob := setup(t)
	ctx := context.Background()

	post, err := svc.Create(ctx, alice, ContentRequest{Content: "mine"}, "pic.png")
	require.NoError(t, err)

	err = svc.UpdateContent(ctx, bob, post.ID, ContentRequest{Content: "theirs"})
	assert.True(t, apperror.IsForbidden(err))
	err = svc.Delete(ctx, bob, post.ID)
	assert.True(t, apperror.IsForbidden(err))
	_, err = svc.Owned(ctx, alice, "missing")
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, svc.UpdateContent(ctx, alice, post.ID, ContentRequest{Content: "edited"}))
	got, err := s.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)

	require.NoError(t, svc.Delete(ctx, alice, post.ID))
	assert.Equal(t, []string{"pic.png"}, images.removed)
	_, err = s.PostByID(ctx, post.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestToggleLike(t *testing.T) {
	svc, _, _, alice, bob := setup(t)
	ctx := context.Background()
	post, err := svc.Create(ctx, alice, ContentRequest{Content: "like me"}, "")
	require.NoError(t, err)

	liked, err := svc.ToggleLike(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = svc.ToggleLike(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	_, err = svc.ToggleLike(ctx, bob, "missing")
	assert.True(t, apperror.IsNotFound(err))
}

func TestSearch(t *testing.T) {
	svc, _, _, alice, _ := setup(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, alice, ContentRequest{Content: "Learning Go"}, "")
	require.NoError(t, err)

	empty, err := svc.Search(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty.Users)
	assert.Empty(t, empty.Posts)

	res, err := svc.Search(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, "go", res.Query)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, "alice", res.Posts[0].Author.Username)

	res, err = svc.Search(ctx, "ALI")
	require.NoError(t, err)
	require.Len(t, res.Users, 1)
	assert.Equal(t, alice.ID, res.Users[0].ID)
}
