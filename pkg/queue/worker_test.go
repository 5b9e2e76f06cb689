package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcamachol/chatflow/pkg/config"
	"github.com/fcamachol/chatflow/pkg/models"
)

// fakeQueueGateway is an in-memory stand-in for Gateway.
type fakeQueueGateway struct {
	mu        sync.Mutex
	batches   [][]models.ActionQueueItem
	batchIdx  int
	completed []int64
	failed    map[int64]string
	reclaimed int
}

func (f *fakeQueueGateway) LeaseQueueBatch(ctx context.Context, limit int) ([]models.ActionQueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchIdx >= len(f.batches) {
		return nil, nil
	}
	b := f.batches[f.batchIdx]
	f.batchIdx++
	return b, nil
}

func (f *fakeQueueGateway) CompleteQueueItem(ctx context.Context, queueID int64, substatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, queueID)
	return nil
}

func (f *fakeQueueGateway) FailQueueItem(ctx context.Context, queueID int64, errMsg string, backoffCapSeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = map[int64]string{}
	}
	f.failed[queueID] = errMsg
	return nil
}

func (f *fakeQueueGateway) ReclaimStaleProcessingItems(ctx context.Context, olderThan time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reclaimed++
	return 0, nil
}

// fakeExecutor always returns a preset ItemResult, recording every item it saw.
type fakeExecutor struct {
	mu     sync.Mutex
	seen   []int64
	result func(item models.ActionQueueItem) ItemResult
}

func (e *fakeExecutor) Execute(ctx context.Context, item models.ActionQueueItem) ItemResult {
	e.mu.Lock()
	e.seen = append(e.seen, item.QueueID)
	e.mu.Unlock()
	return e.result(item)
}

func testQueueConfig() *config.QueueConfig {
	return &config.QueueConfig{
		WorkerCount:             1,
		BatchSize:               10,
		PollInterval:            10 * time.Millisecond,
		PollIntervalJitter:      0,
		RetryBackoffCap:         30 * time.Second,
		OrphanDetectionInterval: time.Hour,
		OrphanThreshold:         5 * time.Minute,
	}
}

func TestWorker_ProcessItem_CompletedMarksQueueItemComplete(t *testing.T) {
	gw := &fakeQueueGateway{}
	executor := &fakeExecutor{result: func(models.ActionQueueItem) ItemResult { return Completed("") }}
	w := NewWorker("w-1", gw, testQueueConfig(), executor)

	w.processItem(context.Background(), models.ActionQueueItem{QueueID: 1})

	assert.Equal(t, []int64{1}, gw.completed)
	assert.Empty(t, gw.failed)
}

func TestWorker_ProcessItem_RetryRecordsFailure(t *testing.T) {
	gw := &fakeQueueGateway{}
	executor := &fakeExecutor{result: func(models.ActionQueueItem) ItemResult {
		return Retry(fmt.Errorf("boom"))
	}}
	w := NewWorker("w-1", gw, testQueueConfig(), executor)

	w.processItem(context.Background(), models.ActionQueueItem{QueueID: 2})

	assert.Empty(t, gw.completed)
	assert.Equal(t, "boom", gw.failed[2])
}

func TestWorker_PollAndProcess_ProcessesEntireLeasedBatch(t *testing.T) {
	gw := &fakeQueueGateway{
		batches: [][]models.ActionQueueItem{
			{{QueueID: 1}, {QueueID: 2}, {QueueID: 3}},
		},
	}
	executor := &fakeExecutor{result: func(models.ActionQueueItem) ItemResult { return Completed("") }}
	w := NewWorker("w-1", gw, testQueueConfig(), executor)

	n, err := w.pollAndProcess(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, []int64{1, 2, 3}, executor.seen)
	assert.ElementsMatch(t, []int64{1, 2, 3}, gw.completed)
}

func TestWorker_PollAndProcess_EmptyBatchReturnsZero(t *testing.T) {
	gw := &fakeQueueGateway{}
	executor := &fakeExecutor{result: func(models.ActionQueueItem) ItemResult { return Completed("") }}
	w := NewWorker("w-1", gw, testQueueConfig(), executor)

	n, err := w.pollAndProcess(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWorker_Health_ReflectsIdleAfterProcessing(t *testing.T) {
	gw := &fakeQueueGateway{}
	executor := &fakeExecutor{result: func(models.ActionQueueItem) ItemResult { return Completed("") }}
	w := NewWorker("w-1", gw, testQueueConfig(), executor)

	w.processItem(context.Background(), models.ActionQueueItem{QueueID: 9})

	health := w.Health()
	assert.Equal(t, "w-1", health.ID)
	assert.Equal(t, 1, health.ItemsProcessed)
}

func TestWorker_StartStop_StopsCleanlyWithNoWorkAvailable(t *testing.T) {
	gw := &fakeQueueGateway{}
	executor := &fakeExecutor{result: func(models.ActionQueueItem) ItemResult { return Completed("") }}
	w := NewWorker("w-1", gw, testQueueConfig(), executor)

	ctx := context.Background()
	w.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	w.Stop()

	assert.NotPanics(t, func() { w.Stop() }, "Stop must be safe to call twice")
}
