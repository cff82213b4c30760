package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/socialapp/store"
	"github.com/user/socialapp/store/memstore"
)

type countingRepairer struct {
	calls  atomic.Int32
	report store.RepairReport
	err    error
}

func (c *countingRepairer) Reconcile(ctx context.Context) (store.RepairReport, error) {
	c.calls.Add(1)
	return c.report, c.err
}

func TestRunReconcile(t *testing.T) {
	r := &countingRepairer{report: store.RepairReport{FollowEdgesAdded: 2}}
	report, err := RunReconcile(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total())

	boom := errors.New("boom")
	_, err = RunReconcile(context.Background(), &countingRepairer{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestRunReconcileOnConsistentStore(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	a, b := &store.User{Username: "a", Email: "a@x.com"}, &store.User{Username: "b", Email: "b@x.com"}
	require.NoError(t, s.CreateUser(ctx, a))
	require.NoError(t, s.CreateUser(ctx, b))
	require.NoError(t, s.Follow(ctx, a.ID, b.ID))
	require.NoError(t, s.CreatePost(ctx, &store.Post{UserID: a.ID, Content: "hi"}))

	report, err := RunReconcile(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, report.Total())
}

func TestReconcilerServiceRunsUntilStopped(t *testing.T) {
	r := &countingRepairer{}
	stop := make(chan struct{})
	done := StartReconcilerService(r, 5*time.Millisecond, stop)

	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}

func TestReconcilerServiceDisabled(t *testing.T) {
	r := &countingRepairer{}
	done := StartReconcilerService(r, 0, make(chan struct{}))

	select {
	case <-done:
	default:
		t.Fatal("disabled service should report done immediately")
	}
	assert.Zero(t, r.calls.Load())
}
