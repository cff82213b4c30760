//go:build integration

package mongostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/user/socialapp/config"
	"github.com/user/socialapp/db"
	"github.com/user/socialapp/store"
	"github.com/user/socialapp/store/storetest"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	// Transactions need a replica set.
	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err, "failed to start MongoDB container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := db.NewMongoClient(ctx, &config.MongoConfig{URI: uri, Database: "socialapp_test"})
	require.NoError(t, err)

	s, err := New(ctx, client, "socialapp_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStoreContract(t *testing.T) {
	s := setupStore(t)

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		_, err := s.users.DeleteMany(ctx, bson.M{})
		require.NoError(t, err)
		_, err = s.posts.DeleteMany(ctx, bson.M{})
		require.NoError(t, err)
		return s
	})
}

func TestEmailLookupIgnoresCase(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	u := storetest.NewUser("alice")
	u.Email = "Alice@X.com"
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.UserByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	dup := storetest.NewUser("alice2")
	dup.Email = "ALICE@x.com"
	assert.ErrorIs(t, s.CreateUser(ctx, dup), store.ErrDuplicate)
}

func TestReconcileRepairsLegacyDocuments(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	alice := storetest.NewUser("alice")
	bob := storetest.NewUser("bob")
	require.NoError(t, s.CreateUser(ctx, alice))
	require.NoError(t, s.CreateUser(ctx, bob))
	post := &store.Post{UserID: alice.ID, Content: "hello"}
	require.NoError(t, s.CreatePost(ctx, post))

	aliceID, _ := primitive.ObjectIDFromHex(alice.ID)
	bobID, _ := primitive.ObjectIDFromHex(bob.ID)
	ghost := primitive.NewObjectID()

	// One-sided follow, a dangling follow and a lost post reference.
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": aliceID}, bson.M{"$set": bson.M{
		"following": bson.A{bobID, ghost},
		"posts":     bson.A{},
	}})
	require.NoError(t, err)

	report, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.RepairReport{
		FollowEdgesAdded:     1,
		DanglingEdgesRemoved: 1,
		PostRefsAdded:        1,
	}, report)

	gotAlice, err := s.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	gotBob, err := s.UserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, gotAlice.Following)
	assert.Equal(t, []string{post.ID}, gotAlice.Posts)
	assert.Equal(t, []string{alice.ID}, gotBob.Followers)

	again, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Total())
}
