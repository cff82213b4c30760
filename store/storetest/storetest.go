// Package storetest holds the behavioral suite every store.Store backend must pass.
// Backends call Run from their own tests with a constructor returning an empty store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/socialapp/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the full suite against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndLookupUser", testCreateAndLookupUser},
		{"DuplicateUser", testDuplicateUser},
		{"UpdateProfile", testUpdateProfile},
		{"SetProfileImage", testSetProfileImage},
		{"CreatePostAppendsToOwner", testCreatePostAppendsToOwner},
		{"DeletePostPullsFromOwner", testDeletePostPullsFromOwner},
		{"UpdatePostContent", testUpdatePostContent},
		{"ToggleLike", testToggleLike},
		{"AddComment", testAddComment},
		{"FollowRoundTrip", testFollowRoundTrip},
		{"ListPostsNewestFirst", testListPostsNewestFirst},
		{"Search", testSearch},
		{"DeleteUserCascades", testDeleteUserCascades},
		{"NotFound", testNotFound},
		{"ReconcileConsistentData", testReconcileConsistentData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// NewUser builds a user with the fields registration fills in.
func NewUser(username string) *store.User {
	return &store.User{
		Name:         username,
		Username:     username,
		Email:        username + "@x.com",
		PasswordHash: "$2a$10$notarealhashnotarealhashnotarealhashnotarealhashnot",
		Age:          30,
		ProfileImage: store.DefaultProfileImage,
		Posts:        []string{},
		Followers:    []string{},
		Following:    []string{},
	}
}

func mustCreateUser(t *testing.T, s store.Store, username string) *store.User {
	t.Helper()
	u := NewUser(username)
	require.NoError(t, s.CreateUser(context.Background(), u))
	require.NotEmpty(t, u.ID)
	return u
}

func mustCreatePost(t *testing.T, s store.Store, owner *store.User, content string) *store.Post {
	t.Helper()
	p := &store.Post{UserID: owner.ID, Content: content}
	require.NoError(t, s.CreatePost(context.Background(), p))
	require.NotEmpty(t, p.ID)
	return p
}

func testCreateAndLookupUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")

	byID, err := s.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", byID.Email)
	assert.Equal(t, 30, byID.Age)
	assert.Equal(t, store.DefaultProfileImage, byID.ProfileImage)
	assert.Empty(t, byID.Posts)
	assert.Empty(t, byID.Followers)
	assert.Empty(t, byID.Following)

	byEmail, err := s.UserByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)
	assert.Equal(t, alice.PasswordHash, byEmail.PasswordHash)

	byUsername, err := s.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byUsername.ID)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func testDuplicateUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateUser(t, s, "alice")

	sameEmail := NewUser("alice2")
	sameEmail.Email = "alice@x.com"
	assert.ErrorIs(t, s.CreateUser(ctx, sameEmail), store.ErrDuplicate)

	sameUsername := NewUser("alice")
	sameUsername.Email = "other@x.com"
	assert.ErrorIs(t, s.CreateUser(ctx, sameUsername), store.ErrDuplicate)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func testUpdateProfile(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	mustCreateUser(t, s, "bob")

	err := s.UpdateProfile(ctx, alice.ID, store.ProfileUpdate{
		Name: "Alice A.", Username: "alicea", Email: "alicea@x.com", Age: 31,
	})
	require.NoError(t, err)

	got, err := s.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", got.Name)
	assert.Equal(t, "alicea", got.Username)
	assert.Equal(t, "alicea@x.com", got.Email)
	assert.Equal(t, 31, got.Age)

	// Keeping one's own email is not a conflict.
	err = s.UpdateProfile(ctx, alice.ID, store.ProfileUpdate{
		Name: "Alice", Username: "alicea", Email: "alicea@x.com", Age: 32,
	})
	require.NoError(t, err)

	err = s.UpdateProfile(ctx, alice.ID, store.ProfileUpdate{
		Name: "Alice", Username: "alicea", Email: "bob@x.com", Age: 32,
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	err = s.UpdateProfile(ctx, alice.ID, store.ProfileUpdate{
		Name: "Alice", Username: "bob", Email: "alicea@x.com", Age: 32,
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func testSetProfileImage(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")

	require.NoError(t, s.SetProfileImage(ctx, alice.ID, "abc.png"))
	got, err := s.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc.png", got.ProfileImage)
	assert.True(t, got.HasCustomImage())
}

func testCreatePostAppendsToOwner(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")

	first := mustCreatePost(t, s, alice, "hello")
	second := mustCreatePost(t, s, alice, "again")
	assert.False(t, first.CreatedAt.IsZero())

	got, err := s.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, got.Posts)

	posts, err := s.PostsByIDs(ctx, got.Posts)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "hello", posts[0].Content)
	assert.Equal(t, "again", posts[1].Content)
	assert.Equal(t, alice.ID, posts[0].UserID)
	assert.Empty(t, posts[0].Likes)
	assert.Empty(t, posts[0].Comments)

	orphan := &store.Post{UserID: "missing", Content: "x"}
	assert.ErrorIs(t, s.CreatePost(ctx, orphan), store.ErrNotFound)
}

func testDeletePostPullsFromOwner(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	keep := mustCreatePost(t, s, alice, "keep")
	drop := mustCreatePost(t, s, alice, "drop")

	require.NoError(t, s.DeletePost(ctx, drop.ID))

	_, err := s.PostByID(ctx, drop.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, got.Posts)

	assert.ErrorIs(t, s.DeletePost(ctx, drop.ID), store.ErrNotFound)
}

func testUpdatePostContent(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	p := mustCreatePost(t, s, alice, "draft")
	_, err := s.ToggleLike(ctx, p.ID, alice.ID)
	require.NoError(t, err)

	require.NoError(t, s.UpdatePostContent(ctx, p.ID, "final"))

	got, err := s.PostByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Content)
	assert.Equal(t, []string{alice.ID}, got.Likes, "only the content changes")
}

func testToggleLike(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	bob := mustCreateUser(t, s, "bob")
	p := mustCreatePost(t, s, alice, "hello")

	liked, err := s.ToggleLike(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	got, err := s.PostByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, got.Likes)
	assert.True(t, got.LikedBy(bob.ID))

	liked, err = s.ToggleLike(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	got, err = s.PostByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Likes)

	_, err = s.ToggleLike(ctx, "missing", bob.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testAddComment(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	p := mustCreatePost(t, s, alice, "hello")

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.AddComment(ctx, p.ID, store.Comment{Author: "bob@x.com", Text: "first", CreatedAt: at}))
	require.NoError(t, s.AddComment(ctx, p.ID, store.Comment{Author: "carol@x.com", Text: "second", CreatedAt: at.Add(time.Minute)}))

	got, err := s.PostByID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "bob@x.com", got.Comments[0].Author)
	assert.Equal(t, "first", got.Comments[0].Text)
	assert.True(t, at.Equal(got.Comments[0].CreatedAt))
	assert.Equal(t, "second", got.Comments[1].Text)

	assert.ErrorIs(t, s.AddComment(ctx, "missing", store.Comment{Text: "x"}), store.ErrNotFound)
}

func testFollowRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustCreateUser(t, s, "alice")
	b := mustCreateUser(t, s, "bob")

	require.NoError(t, s.Follow(ctx, a.ID, b.ID))
	require.NoError(t, s.Follow(ctx, a.ID, b.ID), "second follow is a no-op")

	gotA, err := s.UserByID(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := s.UserByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, gotA.Following)
	assert.Equal(t, []string{a.ID}, gotB.Followers)
	assert.Empty(t, gotA.Followers)
	assert.Empty(t, gotB.Following)

	require.NoError(t, s.Unfollow(ctx, a.ID, b.ID))
	require.NoError(t, s.Unfollow(ctx, a.ID, b.ID), "second unfollow is a no-op")

	gotA, err = s.UserByID(ctx, a.ID)
	require.NoError(t, err)
	gotB, err = s.UserByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, gotA.Following)
	assert.Empty(t, gotB.Followers)

	assert.ErrorIs(t, s.Follow(ctx, a.ID, "missing"), store.ErrNotFound)
}

func testListPostsNewestFirst(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	bob := mustCreateUser(t, s, "bob")

	mustCreatePost(t, s, alice, "one")
	time.Sleep(2 * time.Millisecond)
	mustCreatePost(t, s, bob, "two")
	time.Sleep(2 * time.Millisecond)
	mustCreatePost(t, s, alice, "three")

	views, err := s.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "three", views[0].Content)
	assert.Equal(t, "two", views[1].Content)
	assert.Equal(t, "one", views[2].Content)
	require.NotNil(t, views[1].Author)
	assert.Equal(t, "bob", views[1].Author.Username)
}

func testSearch(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	bob := mustCreateUser(t, s, "bob")
	require.NoError(t, s.UpdateProfile(ctx, bob.ID, store.ProfileUpdate{
		Name: "Robert Alison", Username: "bob", Email: "bob@x.com", Age: 40,
	}))
	mustCreatePost(t, s, alice, "Hello World")
	mustCreatePost(t, s, bob, "goodbye")
	mustCreatePost(t, s, bob, "100% sure (a.b)")

	users, err := s.SearchUsers(ctx, "ALI")
	require.NoError(t, err)
	assert.Len(t, users, 2, "matches alice by username and bob by name")

	posts, err := s.SearchPosts(ctx, "world")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Hello World", posts[0].Content)
	require.NotNil(t, posts[0].Author)
	assert.Equal(t, "alice", posts[0].Author.Username)

	// Query text is literal, not a pattern.
	posts, err = s.SearchPosts(ctx, "(a.b)")
	require.NoError(t, err)
	assert.Len(t, posts, 1)
	posts, err = s.SearchPosts(ctx, "0%")
	require.NoError(t, err)
	assert.Len(t, posts, 1)
	posts, err = s.SearchPosts(ctx, ".*")
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func testDeleteUserCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	bob := mustCreateUser(t, s, "bob")
	alicePost := mustCreatePost(t, s, alice, "mine")
	bobPost := mustCreatePost(t, s, bob, "bob's")
	require.NoError(t, s.Follow(ctx, alice.ID, bob.ID))
	require.NoError(t, s.Follow(ctx, bob.ID, alice.ID))
	_, err := s.ToggleLike(ctx, bobPost.ID, alice.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, alice.ID))

	_, err = s.UserByID(ctx, alice.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.PostByID(ctx, alicePost.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	gotBob, err := s.UserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, gotBob.Followers)
	assert.Empty(t, gotBob.Following)

	gotPost, err := s.PostByID(ctx, bobPost.ID)
	require.NoError(t, err)
	assert.Empty(t, gotPost.Likes)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.UserByID(ctx, "not-an-id")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UserByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.PostByID(ctx, "not-an-id")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.UpdatePostContent(ctx, "not-an-id", "x"), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, "not-an-id"), store.ErrNotFound)

	posts, err := s.PostsByIDs(ctx, []string{"not-an-id"})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func testReconcileConsistentData(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	bob := mustCreateUser(t, s, "bob")
	mustCreatePost(t, s, alice, "hello")
	require.NoError(t, s.Follow(ctx, alice.ID, bob.ID))

	report, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Total(), "data written through the store is already consistent")
}
