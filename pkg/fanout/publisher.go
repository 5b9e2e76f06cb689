package fanout

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Publisher broadcasts fan-out events via Postgres NOTIFY. It holds no
// buffer of its own — spec §4.7 is explicit that delivery is best-effort
// with no server-side buffering beyond the current event.
type Publisher struct {
	db *sql.DB
}

// NewPublisher builds a Publisher over an already-migrated connection pool.
func NewPublisher(db *sql.DB) *Publisher {
	return &Publisher{db: db}
}

// PublishNewMessage broadcasts a new_message event (spec §4.7).
func (p *Publisher) PublishNewMessage(ctx context.Context, instanceID string, payload NewMessagePayload) error {
	payload.Type = EventNewMessage
	payload.InstanceID = instanceID
	return p.publish(ctx, instanceID, payload)
}

// PublishNewReaction broadcasts a new_reaction event.
func (p *Publisher) PublishNewReaction(ctx context.Context, instanceID string, payload NewReactionPayload) error {
	payload.Type = EventNewReaction
	payload.InstanceID = instanceID
	return p.publish(ctx, instanceID, payload)
}

// PublishEntityCreated broadcasts an entity_created event, fired by the
// action executor after it commits a task/calendar_event/bill/note.
func (p *Publisher) PublishEntityCreated(ctx context.Context, instanceID string, payload EntityCreatedPayload) error {
	payload.Type = EventEntityCreated
	payload.InstanceID = instanceID
	return p.publish(ctx, instanceID, payload)
}

// PublishRuleExecuted broadcasts a rule_executed event.
func (p *Publisher) PublishRuleExecuted(ctx context.Context, instanceID string, payload RuleExecutedPayload) error {
	payload.Type = EventRuleExecuted
	payload.InstanceID = instanceID
	return p.publish(ctx, instanceID, payload)
}

func (p *Publisher) publish(ctx context.Context, instanceID string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal fan-out payload: %w", err)
	}
	notifyPayload, err := truncateIfNeeded(payloadJSON)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, InstanceChannel(instanceID), notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// truncateIfNeeded returns payloadJSON as-is if it fits within Postgres's
// 8000-byte NOTIFY limit, otherwise a minimal envelope carrying only the
// routing fields a subscriber needs to know something happened.
func truncateIfNeeded(payloadJSON []byte) (string, error) {
	if len(payloadJSON) <= 7900 {
		return string(payloadJSON), nil
	}

	var routing struct {
		Type       string `json:"type"`
		InstanceID string `json:"instance_id"`
	}
	if err := json.Unmarshal(payloadJSON, &routing); err != nil {
		return "", fmt.Errorf("extract routing fields for truncation: %w", err)
	}
	truncBytes, err := json.Marshal(map[string]any{
		"type":        routing.Type,
		"instance_id": routing.InstanceID,
		"truncated":   true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}
