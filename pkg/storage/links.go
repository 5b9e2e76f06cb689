package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fcamachol/chatflow/pkg/models"
)

// FindTaskTriggerLink looks up the trigger-type MessageTaskLink for
// (messageID, ruleID) if one exists — the idempotency anchor the action
// executor uses to recognize a repeat reaction as an update rather than a
// re-create (spec §4.3b, §4.6, §8 property 5).
func (g *Gateway) FindTaskTriggerLink(ctx context.Context, messageID, instanceID, ruleID string) (*models.MessageTaskLink, error) {
	const op = "storage.FindTaskTriggerLink"
	row := g.db.QueryRowContext(ctx, `
		SELECT link_id, message_id, instance_id, task_id, rule_id, link_type, created_at
		FROM message_task_links
		WHERE message_id = $1 AND instance_id = $2 AND rule_id = $3 AND link_type = 'trigger'`,
		messageID, instanceID, ruleID)

	var l models.MessageTaskLink
	if err := row.Scan(&l.LinkID, &l.MessageID, &l.InstanceID, &l.TaskID, &l.RuleID,
		&l.LinkType, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(op, err)
	}
	return &l, nil
}

// CreateTaskLink inserts a MessageTaskLink. Trigger-type links are unique per
// (message_id, instance_id, rule_id) — a conflict here means a concurrent
// worker beat this one to the create, which the caller treats as "already
// handled" rather than a hard failure.
func (g *Gateway) CreateTaskLink(ctx context.Context, l models.MessageTaskLink) error {
	const op = "storage.CreateTaskLink"
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO message_task_links (message_id, instance_id, task_id, rule_id, link_type, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		l.MessageID, l.InstanceID, l.TaskID, l.RuleID, l.LinkType)
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// FindEventTriggerLink is the calendar-event analog of FindTaskTriggerLink.
func (g *Gateway) FindEventTriggerLink(ctx context.Context, messageID, instanceID, ruleID string) (*models.MessageEventLink, error) {
	const op = "storage.FindEventTriggerLink"
	row := g.db.QueryRowContext(ctx, `
		SELECT link_id, message_id, instance_id, event_id, rule_id, link_type, created_at
		FROM message_event_links
		WHERE message_id = $1 AND instance_id = $2 AND rule_id = $3 AND link_type = 'trigger'`,
		messageID, instanceID, ruleID)

	var l models.MessageEventLink
	if err := row.Scan(&l.LinkID, &l.MessageID, &l.InstanceID, &l.EventID, &l.RuleID,
		&l.LinkType, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(op, err)
	}
	return &l, nil
}

// CreateEventLink inserts a MessageEventLink.
func (g *Gateway) CreateEventLink(ctx context.Context, l models.MessageEventLink) error {
	const op = "storage.CreateEventLink"
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO message_event_links (message_id, instance_id, event_id, rule_id, link_type, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		l.MessageID, l.InstanceID, l.EventID, l.RuleID, l.LinkType)
	if err != nil {
		return classify(op, err)
	}
	return nil
}
