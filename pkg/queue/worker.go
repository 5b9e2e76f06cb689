package queue

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fcamachol/chatflow/pkg/config"
	"github.com/fcamachol/chatflow/pkg/models"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes batches of
// action_queue_items.
type Worker struct {
	id       string
	gw       Gateway
	config   *config.QueueConfig
	executor ItemExecutor
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	currentQueueID int64
	itemsProcessed int
	lastActivity   time.Time
}

// NewWorker creates a new queue worker.
func NewWorker(id string, gw Gateway, cfg *config.QueueConfig, executor ItemExecutor) *Worker {
	return &Worker{
		id:           id,
		gw:           gw,
		config:       cfg,
		executor:     executor,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         string(w.status),
		CurrentQueueID: w.currentQueueID,
		ItemsProcessed: w.itemsProcessed,
		LastActivity:   w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("queue: worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("queue: worker shutting down")
			return
		case <-ctx.Done():
			log.Info("queue: context cancelled, worker shutting down")
			return
		default:
			n, err := w.pollAndProcess(ctx)
			if err != nil {
				log.Error("queue: poll failed", "error", err)
				w.sleep(time.Second) // brief backoff on error
				continue
			}
			if n == 0 {
				w.sleep(w.pollInterval())
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess leases a batch of pending items and executes them
// sequentially, returning how many were leased.
func (w *Worker) pollAndProcess(ctx context.Context) (int, error) {
	items, err := w.gw.LeaseQueueBatch(ctx, w.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	w.setStatus(WorkerStatusWorking, 0)
	defer w.setStatus(WorkerStatusIdle, 0)

	for _, item := range items {
		w.processItem(ctx, item)
	}
	return len(items), nil
}

// processItem runs the executor on one leased item and applies its
// terminal outcome: complete, or retry with backoff.
func (w *Worker) processItem(ctx context.Context, item models.ActionQueueItem) {
	log := slog.With("queue_id", item.QueueID, "event_type", item.EventType, "worker_id", w.id)
	w.setStatus(WorkerStatusWorking, item.QueueID)

	result := w.executor.Execute(ctx, item)

	if result.Completed {
		if err := w.gw.CompleteQueueItem(ctx, item.QueueID, result.Substatus); err != nil {
			log.Error("queue: failed to mark item completed", "error", err)
		}
	} else {
		errMsg := "unknown error"
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
		if err := w.gw.FailQueueItem(ctx, item.QueueID, errMsg, int(w.config.RetryBackoffCap.Seconds())); err != nil {
			log.Error("queue: failed to record item failure", "error", err)
		}
	}

	w.mu.Lock()
	w.itemsProcessed++
	w.mu.Unlock()
}

// pollInterval returns the poll duration with jitter, so a burst of idle
// workers doesn't hammer the database in lockstep.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	d := base - jitter + offset
	if d < 0 {
		return base
	}
	return d
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, queueID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentQueueID = queueID
	w.lastActivity = time.Now()
}
