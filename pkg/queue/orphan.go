package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// orphanState tracks orphan-reclaim metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanReclaim periodically resets items stuck in 'processing' back to
// 'pending'. All pods run this independently — ReclaimStaleProcessingItems
// is idempotent, so concurrent sweeps from multiple pods are harmless.
func (p *WorkerPool) runOrphanReclaim(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reclaimOrphans(ctx)
		}
	}
}

// reclaimOrphans resets stale processing rows, typically left behind by a
// worker that crashed mid-batch after LeaseQueueBatch flipped them to
// processing but before it reached CompleteQueueItem/FailQueueItem.
func (p *WorkerPool) reclaimOrphans(ctx context.Context) {
	n, err := p.gw.ReclaimStaleProcessingItems(ctx, p.config.OrphanThreshold)
	if err != nil {
		slog.Error("queue: orphan reclaim failed", "error", err)
		return
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += n
	p.orphans.mu.Unlock()

	if n > 0 {
		slog.Warn("queue: reclaimed stale processing items", "count", n)
	}
}
