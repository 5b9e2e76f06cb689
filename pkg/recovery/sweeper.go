package recovery

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/fcamachol/chatflow/pkg/config"
	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/webhook"
)

// failedEventBatchSize bounds how many due failed_events one sweep tick
// retries, so a large backlog does not block the scheduler goroutine.
const failedEventBatchSize = 100

// Sweeper runs the two background sweeps spec §4.8 describes: a
// failed-event retry sweep (capped exponential backoff against the
// original webhook translation) and a dead-letter queue size sweep
// (reported, not auto-retried — dead-letter items exhausted their own
// retry budget already and need an operator decision).
type Sweeper struct {
	gw       Gateway
	replayer Replayer
	cfg      config.RecoveryConfig
	cron     *cron.Cron
	logger   *slog.Logger

	deadLetterGauge func(count int)
}

// NewSweeper builds a Sweeper. deadLetterGauge, if non-nil, is called with
// the current dead-letter backlog size at the end of each dead-letter
// sweep tick (pkg/metrics wires its gauge in here).
func NewSweeper(gw Gateway, replayer Replayer, cfg config.RecoveryConfig, deadLetterGauge func(count int)) *Sweeper {
	return &Sweeper{
		gw:              gw,
		replayer:        replayer,
		cfg:             cfg,
		deadLetterGauge: deadLetterGauge,
		logger:          slog.Default().With("component", "recovery-sweeper"),
	}
}

// Start schedules both sweeps and begins running them. Safe to call once.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithSeconds())

	if _, err := s.cron.AddFunc(s.cfg.FailedEventSweepCron, func() { s.sweepFailedEvents(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.DeadLetterSweepCron, func() { s.sweepDeadLetter(ctx) }); err != nil {
		return err
	}

	s.logger.Info("recovery: sweeper starting",
		"failed_event_cron", s.cfg.FailedEventSweepCron,
		"dead_letter_cron", s.cfg.DeadLetterSweepCron)
	s.cron.Start()
	return nil
}

// Stop cancels future sweep ticks and waits for any in-flight tick to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	s.logger.Info("recovery: sweeper stopping")
	<-s.cron.Stop().Done()
	s.logger.Info("recovery: sweeper stopped")
}

// sweepFailedEvents retries every due failed_events row against its
// original webhook translation, resolving it on success and backing it
// off (capped exponential, per spec §4.8) on a repeat failure.
func (s *Sweeper) sweepFailedEvents(ctx context.Context) {
	due, err := s.gw.ListPendingFailedEvents(ctx, failedEventBatchSize)
	if err != nil {
		s.logger.Error("recovery: list pending failed events failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	retried, resolved := 0, 0
	for _, fe := range due {
		retried++
		env := webhook.Envelope{Event: webhook.EventType(fe.EventType), Data: fe.RawPayload}
		if err := s.replayer.ProcessIncomingEvent(ctx, fe.InstanceID, env); err != nil {
			s.logger.Warn("recovery: failed event retry failed", "failed_event_id", fe.FailedEventID, "error", err)
			if backoffErr := s.gw.BackoffFailedEvent(ctx, fe.FailedEventID, int(s.cfg.MaxBackoff.Seconds())); backoffErr != nil {
				s.logger.Error("recovery: backoff update failed", "failed_event_id", fe.FailedEventID, "error", backoffErr)
			}
			continue
		}
		if err := s.gw.ResolveFailedEvent(ctx, fe.FailedEventID); err != nil {
			s.logger.Error("recovery: resolve failed event failed", "failed_event_id", fe.FailedEventID, "error", err)
			continue
		}
		resolved++
	}
	s.logger.Info("recovery: failed event sweep complete", "retried", retried, "resolved", resolved)
}

// sweepDeadLetter reports the current dead-letter backlog size. Spec §4.8
// treats manual reprocessing as an operator-initiated admin action
// (§6 POST /admin/reprocess), not something the background sweep decides
// on its own — exhausting max_attempts means the item's own retry budget
// already failed, so blind auto-retry here would just repeat that.
func (s *Sweeper) sweepDeadLetter(ctx context.Context) {
	items, err := s.gw.ListDeadLetterItems(ctx, "")
	if err != nil {
		s.logger.Error("recovery: list dead letter items failed", "error", err)
		return
	}
	s.logger.Info("recovery: dead letter sweep", "backlog_size", len(items))
	if s.deadLetterGauge != nil {
		s.deadLetterGauge(len(items))
	}
}

// Reprocess resets dead-letter items back to pending with a fresh attempt
// budget (spec §4.8's manual reprocess hook, surfaced at
// POST /admin/reprocess), optionally filtered to one event type. It
// returns the number of items reset.
func (s *Sweeper) Reprocess(ctx context.Context, eventType models.QueueEventType) (int, error) {
	items, err := s.gw.ListDeadLetterItems(ctx, eventType)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, item := range items {
		if err := s.gw.ReprocessDeadLetterItem(ctx, item.QueueID); err != nil {
			s.logger.Error("recovery: reprocess dead letter item failed", "queue_id", item.QueueID, "error", err)
			continue
		}
		reset++
	}
	return reset, nil
}
