// Package background runs maintenance work outside the request cycle.
//
// The reconciler periodically asks the store to repair references that older
// deployments could leave half-written: one-sided follow edges, follow entries
// for deleted users, and post lists that disagree with the posts collection.
package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/socialapp/store"
)

// reconcileTimeout bounds a single repair pass.
const reconcileTimeout = 5 * time.Minute

// Repairer is the part of store.Store the reconciler needs.
type Repairer interface {
	Reconcile(ctx context.Context) (store.RepairReport, error)
}

// RunReconcile performs one repair pass and logs the outcome.
func RunReconcile(ctx context.Context, r Repairer) (store.RepairReport, error) {
	start := time.Now()
	report, err := r.Reconcile(ctx)
	if err != nil {
		slog.Error("reconcile failed", "error", err, "elapsed", time.Since(start))
		return report, err
	}

	attrs := []any{
		"follow_edges_added", report.FollowEdgesAdded,
		"dangling_edges_removed", report.DanglingEdgesRemoved,
		"stale_followers_removed", report.StaleFollowersRemoved,
		"post_refs_added", report.PostRefsAdded,
		"post_refs_removed", report.PostRefsRemoved,
		"elapsed", time.Since(start),
	}
	if report.Total() > 0 {
		slog.Warn("reconcile repaired inconsistent references", attrs...)
	} else {
		slog.Debug("reconcile found nothing to repair", attrs...)
	}
	return report, nil
}

// StartReconcilerService runs a repair pass every interval until stopChan is
// closed. The returned channel is closed once the service has exited; a pass in
// progress is cancelled on stop. A non-positive interval disables the service and
// returns an already closed channel.
func StartReconcilerService(r Repairer, interval time.Duration, stopChan <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		slog.Info("background reconciler disabled")
		close(done)
		return done
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stopChan
		cancel()
	}()

	go func() {
		defer close(done)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.Info("background reconciler started", "interval", interval)
		for {
			select {
			case <-ticker.C:
				passCtx, passCancel := context.WithTimeout(ctx, reconcileTimeout)
				_, _ = RunReconcile(passCtx, r)
				passCancel()
			case <-stopChan:
				slog.Info("background reconciler stopped")
				return
			}
		}
	}()
	return done
}
