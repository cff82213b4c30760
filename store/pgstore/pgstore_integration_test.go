//go:build integration

package pgstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/user/socialapp/db"
	"github.com/user/socialapp/store"
	"github.com/user/socialapp/store/storetest"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("socialapp"),
		postgres.WithUsername("socialapp"),
		postgres.WithPassword("socialapp"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.RunMigrations(dsn))
	require.NoError(t, db.RunMigrations(dsn), "migrations are idempotent")

	pool, err := db.NewPoolFromDSN(ctx, dsn, 5)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return New(pool)
}

func TestStoreContract(t *testing.T) {
	s := setupStore(t)

	storetest.Run(t, func(t *testing.T) store.Store {
		_, err := s.pool.Exec(context.Background(), "TRUNCATE users, posts, post_likes, comments, follows CASCADE")
		require.NoError(t, err)
		return s
	})
}

func TestSelfFollowIsRejectedBySchema(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	u := storetest.NewUser("alice")
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Error(t, s.Follow(ctx, u.ID, u.ID))
}
