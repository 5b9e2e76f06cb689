// Package action is the C6 Action Executor (spec §4.6): per-action-type
// handlers that turn a matched rule plus its NLP parse (if any) into a
// created task/calendar_event/bill/note, link rows, a best-effort
// confirmation message, and a real-time fan-out event.
package action

import (
	"context"
	"time"

	"github.com/fcamachol/chatflow/pkg/models"
)

// Gateway is the subset of storage.Gateway the action executor depends on.
type Gateway interface {
	GetInstance(ctx context.Context, instanceID string) (*models.Instance, error)
	GetMessage(ctx context.Context, messageID, instanceID string) (*models.Message, error)
	GetContact(ctx context.Context, jid, instanceID string) (*models.Contact, error)

	CreateTask(ctx context.Context, t models.Task) (*models.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID, newStatus string) error
	CreateCalendarEvent(ctx context.Context, e models.CalendarEvent) (*models.CalendarEvent, error)
	CreateBill(ctx context.Context, b models.Bill) (*models.Bill, error)
	CreateNote(ctx context.Context, n models.Note) (*models.Note, error)

	FindTaskTriggerLink(ctx context.Context, messageID, instanceID, ruleID string) (*models.MessageTaskLink, error)
	CreateTaskLink(ctx context.Context, l models.MessageTaskLink) error
	FindEventTriggerLink(ctx context.Context, messageID, instanceID, ruleID string) (*models.MessageEventLink, error)
	CreateEventLink(ctx context.Context, l models.MessageEventLink) error

	RecordExecution(ctx context.Context, log models.ActionExecutionLog) error
}

// Fanout is the subset of fanout.Publisher the action executor depends on.
type Fanout interface {
	PublishEntityCreated(ctx context.Context, instanceID string, payload EntityCreatedPayload) error
	PublishRuleExecuted(ctx context.Context, instanceID string, payload RuleExecutedPayload) error
}

// EntityCreatedPayload and RuleExecutedPayload mirror fanout's own payload
// shapes structurally so this package does not import fanout just to name
// two field sets; the Fanout wiring at startup constructs the real
// fanout.EntityCreatedPayload/fanout.RuleExecutedPayload values from these.
type EntityCreatedPayload struct {
	EntityType string
	EntityID   string
}

type RuleExecutedPayload struct {
	RuleID string
	Status string
}

// Provider is the outbound chat-platform API client the confirmation
// message and error-surfacing steps depend on (spec §4.6, §1's "external
// collaborator").
type Provider interface {
	SendText(ctx context.Context, instance *models.Instance, chatID, text string) error
}

// Calendar is the external calendar-provider collaborator (spec §4.6):
// resolving a conferencing URL when a calendar event's location is the
// videocall sentinel.
type Calendar interface {
	ResolveConferenceURL(ctx context.Context, instance *models.Instance, provider string) (string, error)
}

// Clock abstracts "now" so tests can pin execution time.
type Clock func() time.Time
