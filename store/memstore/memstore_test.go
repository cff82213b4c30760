package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/socialapp/store"
	"github.com/user/socialapp/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := storetest.NewUser("alice")
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	got.Following = append(got.Following, "someone")
	got.Name = "changed"

	again, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Following)
	assert.Equal(t, "alice", again.Name)
}

func TestCreatePostTimestampsAreStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	s := New()
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	u := storetest.NewUser("alice")
	require.NoError(t, s.CreateUser(ctx, u))
	a := &store.Post{UserID: u.ID, Content: "a"}
	b := &store.Post{UserID: u.ID, Content: "b"}
	require.NoError(t, s.CreatePost(ctx, a))
	require.NoError(t, s.CreatePost(ctx, b))

	assert.True(t, b.CreatedAt.After(a.CreatedAt))
	views, err := s.ListPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", views[0].Content)
}

func TestReconcileRepairsLegacyData(t *testing.T) {
	ctx := context.Background()
	s := New()

	alice := storetest.NewUser("alice")
	bob := storetest.NewUser("bob")
	require.NoError(t, s.CreateUser(ctx, alice))
	require.NoError(t, s.CreateUser(ctx, bob))
	post := &store.Post{UserID: alice.ID, Content: "hello"}
	require.NoError(t, s.CreatePost(ctx, post))

	// Simulate the half-written records an interrupted two-step write leaves behind.
	s.users[alice.ID].Following = []string{bob.ID, "deleted-user"}
	s.users[bob.ID].Followers = []string{}
	s.users[bob.ID].Following = []string{}
	s.users[alice.ID].Followers = []string{bob.ID}
	s.users[alice.ID].Posts = []string{"deleted-post"}

	report, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.RepairReport{
		FollowEdgesAdded:      1,
		DanglingEdgesRemoved:  1,
		StaleFollowersRemoved: 1,
		PostRefsAdded:         1,
		PostRefsRemoved:       1,
	}, report)

	gotAlice, err := s.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	gotBob, err := s.UserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, gotAlice.Following)
	assert.Equal(t, []string{alice.ID}, gotBob.Followers)
	assert.Empty(t, gotBob.Following, "an interrupted unfollow stays undone")
	assert.Empty(t, gotAlice.Followers)
	assert.Equal(t, []string{post.ID}, gotAlice.Posts)

	again, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Total())
}
