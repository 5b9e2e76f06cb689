package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcamachol/chatflow/pkg/config"
	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/webhook"
)

type fakeRecoveryGateway struct {
	pending       []models.FailedEvent
	resolved      []int64
	backoffCalls  []int64
	deadLetter    []models.ActionQueueItem
	reprocessed   []int64
}

func (f *fakeRecoveryGateway) ListPendingFailedEvents(ctx context.Context, limit int) ([]models.FailedEvent, error) {
	return f.pending, nil
}

func (f *fakeRecoveryGateway) BackoffFailedEvent(ctx context.Context, id int64, backoffCapSeconds int) error {
	f.backoffCalls = append(f.backoffCalls, id)
	return nil
}

func (f *fakeRecoveryGateway) ResolveFailedEvent(ctx context.Context, id int64) error {
	f.resolved = append(f.resolved, id)
	return nil
}

func (f *fakeRecoveryGateway) ListDeadLetterItems(ctx context.Context, eventType models.QueueEventType) ([]models.ActionQueueItem, error) {
	if eventType == "" {
		return f.deadLetter, nil
	}
	var out []models.ActionQueueItem
	for _, item := range f.deadLetter {
		if item.EventType == eventType {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeRecoveryGateway) ReprocessDeadLetterItem(ctx context.Context, queueID int64) error {
	f.reprocessed = append(f.reprocessed, queueID)
	return nil
}

type fakeReplayer struct {
	failFor map[string]bool
}

func (f *fakeReplayer) ProcessIncomingEvent(ctx context.Context, instanceID string, env webhook.Envelope) error {
	if f.failFor[instanceID] {
		return errors.New("translation failed")
	}
	return nil
}

func TestSweeper_SweepFailedEvents_ResolvesOnSuccessAndBacksOffOnFailure(t *testing.T) {
	gw := &fakeRecoveryGateway{
		pending: []models.FailedEvent{
			{FailedEventID: 1, InstanceID: "ok-instance", EventType: "messages.upsert"},
			{FailedEventID: 2, InstanceID: "bad-instance", EventType: "messages.upsert"},
		},
	}
	replayer := &fakeReplayer{failFor: map[string]bool{"bad-instance": true}}
	s := NewSweeper(gw, replayer, config.RecoveryConfig{MaxBackoff: time.Minute}, nil)

	s.sweepFailedEvents(context.Background())

	assert.Equal(t, []int64{1}, gw.resolved)
	assert.Equal(t, []int64{2}, gw.backoffCalls)
}

func TestSweeper_SweepDeadLetter_ReportsBacklogSize(t *testing.T) {
	gw := &fakeRecoveryGateway{
		deadLetter: []models.ActionQueueItem{{QueueID: 1}, {QueueID: 2}, {QueueID: 3}},
	}
	var gauged int
	s := NewSweeper(gw, &fakeReplayer{}, config.RecoveryConfig{}, func(count int) { gauged = count })

	s.sweepDeadLetter(context.Background())

	assert.Equal(t, 3, gauged)
}

func TestSweeper_Reprocess_FiltersByEventTypeAndResetsEach(t *testing.T) {
	gw := &fakeRecoveryGateway{
		deadLetter: []models.ActionQueueItem{
			{QueueID: 1, EventType: models.QueueEventReaction},
			{QueueID: 2, EventType: models.QueueEventMessage},
			{QueueID: 3, EventType: models.QueueEventReaction},
		},
	}
	s := NewSweeper(gw, &fakeReplayer{}, config.RecoveryConfig{}, nil)

	n, err := s.Reprocess(context.Background(), models.QueueEventReaction)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []int64{1, 3}, gw.reprocessed)
}
