package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/storage"
)

// pollTimeout bounds how long the receive loop blocks waiting for a NOTIFY
// before it wakes up anyway and drains — the fallback that makes a missed
// or dropped NOTIFY non-fatal.
const pollTimeout = 2 * time.Second

// Consumer owns a dedicated Postgres connection LISTENing on
// storage.ChangeCaptureChannel and drains entity_changes into the action
// queue. Unlike pkg/fanout's NotifyListener, there is exactly one channel
// to watch, so there is no dynamic subscribe/unsubscribe bookkeeping.
type Consumer struct {
	gw         Gateway
	connString string
	batchSize  int

	running    atomic.Bool
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// NewConsumer creates a Consumer. batchSize bounds how many pending changes
// a single drain processes.
func NewConsumer(gw Gateway, connString string, batchSize int) *Consumer {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Consumer{gw: gw, connString: connString, batchSize: batchSize}
}

// Start connects, issues LISTEN, drains whatever is already pending, and
// begins the background receive loop.
func (c *Consumer) Start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, c.connString)
	if err != nil {
		return fmt.Errorf("connect for LISTEN: %w", err)
	}

	sanitized := pgx.Identifier{storage.ChangeCaptureChannel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+sanitized); err != nil {
		_ = conn.Close(ctx)
		return fmt.Errorf("LISTEN %s: %w", sanitized, err)
	}

	c.running.Store(true)
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancelLoop = cancel
	c.loopDone = make(chan struct{})

	c.drain(ctx) // catch up anything committed before Start ran

	go func() {
		defer close(c.loopDone)
		c.receiveLoop(loopCtx, conn)
	}()

	slog.Info("changefeed: consumer started")
	return nil
}

// Stop halts the receive loop and closes the LISTEN connection.
func (c *Consumer) Stop(ctx context.Context) {
	c.running.Store(false)
	if c.cancelLoop != nil {
		c.cancelLoop()
	}
	if c.loopDone != nil {
		<-c.loopDone
	}
}

func (c *Consumer) receiveLoop(ctx context.Context, conn *pgx.Conn) {
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(context.Background())
			return
		default:
		}

		waitCtx, cancel := context.WithTimeout(ctx, pollTimeout)
		_, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(context.Background())
				return
			}
			if waitCtx.Err() != nil {
				c.drain(ctx) // poll fallback — no NOTIFY arrived this interval
				continue
			}
			slog.Error("changefeed: NOTIFY receive error", "error", err)
			conn = c.reconnect(ctx)
			if conn == nil {
				return
			}
			continue
		}

		// Re-query rather than trust the NOTIFY payload: it is truncated by
		// Postgres past 8000 bytes and may not even name every change if
		// several committed between Start and the first WaitForNotification.
		c.drain(ctx)
	}
}

func (c *Consumer) reconnect(ctx context.Context) *pgx.Conn {
	backoff := time.Second
	sanitized := pgx.Identifier{storage.ChangeCaptureChannel}.Sanitize()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		conn, err := pgx.Connect(ctx, c.connString)
		if err != nil {
			slog.Error("changefeed: reconnect failed", "error", err, "backoff", backoff)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		if _, err := conn.Exec(ctx, "LISTEN "+sanitized); err != nil {
			slog.Error("changefeed: re-LISTEN failed", "error", err)
			_ = conn.Close(ctx)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}

		slog.Info("changefeed: reconnected")
		return conn
	}
}

// drain processes every currently-pending change row, translating each
// into an ActionQueueItem and marking it processed, or recording the
// failure for retry on the next drain.
func (c *Consumer) drain(ctx context.Context) {
	changes, err := c.gw.ListPendingChanges(ctx, c.batchSize)
	if err != nil {
		slog.Error("changefeed: list pending changes", "error", err)
		return
	}

	for _, ch := range changes {
		if err := c.translate(ctx, ch); err != nil {
			slog.Error("changefeed: translate failed", "change_id", ch.ChangeID,
				"table", ch.TableName, "error", err)
			if merr := c.gw.MarkChangeFailed(ctx, ch.ChangeID, err.Error()); merr != nil {
				slog.Error("changefeed: mark change failed", "change_id", ch.ChangeID, "error", merr)
			}
			continue
		}
		if err := c.gw.MarkChangeProcessed(ctx, ch.ChangeID); err != nil {
			slog.Error("changefeed: mark change processed", "change_id", ch.ChangeID, "error", err)
		}
	}
}

// translate enqueues the ActionQueueItem(s) a change should produce, if
// any. Tables with no rule-trigger meaning (e.g. message_status_updates)
// are simply marked processed with no queue item.
func (c *Consumer) translate(ctx context.Context, ch models.EntityChange) error {
	switch ch.TableName {
	case "message_reactions":
		return c.translateReaction(ctx, ch)
	case "messages":
		return c.translateMessage(ctx, ch)
	default:
		return nil
	}
}

func (c *Consumer) translateReaction(ctx context.Context, ch models.EntityChange) error {
	var r models.MessageReaction
	if err := json.Unmarshal(ch.NewData, &r); err != nil {
		return fmt.Errorf("unmarshal reaction: %w", err)
	}
	if r.ReactionEmoji == "" {
		return nil // removal, not a trigger (spec §4.1)
	}

	payload, err := json.Marshal(models.ReactionEventData{
		MessageID:  r.MessageID,
		InstanceID: r.InstanceID,
		ReactorJID: r.ReactorJID,
		Emoji:      r.ReactionEmoji,
	})
	if err != nil {
		return fmt.Errorf("marshal reaction event data: %w", err)
	}

	priority := models.PriorityNormal
	if urgentEmojis[r.ReactionEmoji] {
		priority = models.PriorityHigh
	}

	_, _, err = c.gw.EnqueueItem(ctx, models.ActionQueueItem{
		EventType:      models.QueueEventReaction,
		EventData:      payload,
		Priority:       priority,
		IdempotencyKey: fmt.Sprintf("reaction:%s:%s:%s", r.InstanceID, r.MessageID, r.ReactorJID),
	})
	return err
}

func (c *Consumer) translateMessage(ctx context.Context, ch models.EntityChange) error {
	if ch.Operation != models.OpInsert {
		return nil // edits/revocations don't re-trigger hashtag rules
	}

	var m models.Message
	if err := json.Unmarshal(ch.NewData, &m); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}

	payload, err := json.Marshal(models.MessageEventData{
		MessageID:  m.MessageID,
		InstanceID: m.InstanceID,
		SenderJID:  m.SenderJID,
	})
	if err != nil {
		return fmt.Errorf("marshal message event data: %w", err)
	}

	_, _, err = c.gw.EnqueueItem(ctx, models.ActionQueueItem{
		EventType:      models.QueueEventMessage,
		EventData:      payload,
		Priority:       models.PriorityNormal,
		IdempotencyKey: fmt.Sprintf("message:%s:%s", m.InstanceID, m.MessageID),
	})
	return err
}
