package action

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/nlp"
)

// actionOutcome names the entity a handler created, for fan-out and
// execution logging.
type actionOutcome struct {
	EntityType string
	EntityID   string
}

// handleCreateTask builds and inserts a task from a task parse, links it
// to its trigger (and context, if quoted) message, per spec §4.6.
func (e *Executor) handleCreateTask(ctx context.Context, rc ruleContext, data nlp.TaskData) (actionOutcome, error) {
	task := models.Task{
		TaskID:      uuid.NewString(),
		SpaceID:     rc.rule.Config.SpaceID,
		Title:       data.Title,
		Description: data.Description,
		Priority:    data.Priority,
		DueDate:     data.DueDate,
		Tags:        data.Tags,
		Assignee:    data.Assignee,
		Status:      "open",
		SourceMetadata: models.TaskSourceMetadata{
			Source:    rc.source,
			Emoji:     rc.emoji,
			RuleID:    rc.rule.RuleID,
			MessageID: rc.messageID,
		},
	}

	created, err := e.gw.CreateTask(ctx, task)
	if err != nil {
		return actionOutcome{}, fmt.Errorf("create task: %w", err)
	}

	if err := e.gw.CreateTaskLink(ctx, models.MessageTaskLink{
		MessageID: rc.messageID, InstanceID: rc.instanceID, TaskID: created.TaskID,
		RuleID: rc.rule.RuleID, LinkType: models.LinkTrigger,
	}); err != nil {
		return actionOutcome{}, fmt.Errorf("link task trigger: %w", err)
	}
	if rc.quotedMessageID != "" {
		if err := e.gw.CreateTaskLink(ctx, models.MessageTaskLink{
			MessageID: rc.quotedMessageID, InstanceID: rc.instanceID, TaskID: created.TaskID,
			RuleID: rc.rule.RuleID, LinkType: models.LinkContext,
		}); err != nil {
			return actionOutcome{}, fmt.Errorf("link task context: %w", err)
		}
	}

	return actionOutcome{EntityType: "task", EntityID: created.TaskID}, nil
}

// handleCreateCalendarEvent resolves start/end from the parse, synchronously
// resolving a conferencing URL when the detected location is the videocall
// sentinel (spec §4.6).
func (e *Executor) handleCreateCalendarEvent(ctx context.Context, rc ruleContext, data nlp.CalendarData) (actionOutcome, error) {
	event := models.CalendarEvent{
		EventID:    uuid.NewString(),
		SpaceID:    rc.rule.Config.SpaceID,
		Title:      data.Title,
		StartTime:  data.DateTime,
		EndTime:    data.DateTime.Add(time.Duration(data.DurationMinutes) * time.Minute),
		Attendees:  data.Attendees,
		Recurrence: data.Recurrence,
	}

	if data.Location == nlp.VideocallSentinel {
		instance, err := e.gw.GetInstance(ctx, rc.instanceID)
		if err != nil {
			return actionOutcome{}, fmt.Errorf("load instance for conference resolution: %w", err)
		}
		url, err := e.calendar.ResolveConferenceURL(ctx, instance, data.Platform)
		if err != nil {
			return actionOutcome{}, fmt.Errorf("resolve conference url: %w", err)
		}
		event.ConferenceURL = url
	} else {
		event.Location = data.Location
	}

	created, err := e.gw.CreateCalendarEvent(ctx, event)
	if err != nil {
		return actionOutcome{}, fmt.Errorf("create calendar event: %w", err)
	}

	if err := e.gw.CreateEventLink(ctx, models.MessageEventLink{
		MessageID: rc.messageID, InstanceID: rc.instanceID, EventID: created.EventID,
		RuleID: rc.rule.RuleID, LinkType: models.LinkTrigger,
	}); err != nil {
		return actionOutcome{}, fmt.Errorf("link event trigger: %w", err)
	}

	return actionOutcome{EntityType: "calendar_event", EntityID: created.EventID}, nil
}

// handleCreateBill inserts one bill, or several when the parse produced a
// MultipleBillsData (spec §4.6's multi_bill branch), applying the rule's
// recurrence/auto-pay configuration to each.
func (e *Executor) handleCreateBill(ctx context.Context, rc ruleContext, data any) (actionOutcome, error) {
	var raw []nlp.BillData
	switch v := data.(type) {
	case nlp.BillData:
		raw = []nlp.BillData{v}
	case nlp.MultipleBillsData:
		raw = v.Bills
	default:
		return actionOutcome{}, fmt.Errorf("create bill: unexpected parse data type %T", data)
	}

	var firstID string
	for _, b := range raw {
		bill := models.Bill{
			BillID:             uuid.NewString(),
			SpaceID:            rc.rule.Config.SpaceID,
			Vendor:             b.Vendor,
			Amount:             billAmountString(b.Amount),
			Currency:           b.Currency,
			DueDate:            b.DueDate,
			Category:           b.Category,
			IsRecurring:        rc.rule.Config.IsRecurring,
			RecurrenceType:     rc.rule.Config.RecurrenceType,
			RecurrenceInterval: rc.rule.Config.RecurrenceInterval,
			RecurrenceEndDate:  rc.rule.Config.RecurrenceEndDate,
			NextDueDate:        b.DueDate,
			AutoPayEnabled:     rc.rule.Config.AutoPayEnabled,
			Priority:           b.Priority,
			Tags:               b.Tags,
		}
		created, err := e.gw.CreateBill(ctx, bill)
		if err != nil {
			return actionOutcome{}, fmt.Errorf("create bill: %w", err)
		}
		if firstID == "" {
			firstID = created.BillID
		}
	}

	return actionOutcome{EntityType: "bill", EntityID: firstID}, nil
}

func billAmountString(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// handleCreateNote inserts a note (spec §4.6: "straightforward insertion
// with title/content templating").
func (e *Executor) handleCreateNote(ctx context.Context, rc ruleContext, data nlp.NoteData) (actionOutcome, error) {
	note := models.Note{
		NoteID:  uuid.NewString(),
		SpaceID: rc.rule.Config.SpaceID,
		Title:   data.Title,
		Content: data.Content,
		Tags:    data.Tags,
	}
	created, err := e.gw.CreateNote(ctx, note)
	if err != nil {
		return actionOutcome{}, fmt.Errorf("create note: %w", err)
	}
	return actionOutcome{EntityType: "note", EntityID: created.NoteID}, nil
}

// handleUpdateTaskStatus requires an existing trigger link from a prior
// create_task invocation on the same message (spec §4.6).
func (e *Executor) handleUpdateTaskStatus(ctx context.Context, rc ruleContext) (actionOutcome, error) {
	link, err := e.gw.FindTaskTriggerLink(ctx, rc.messageID, rc.instanceID, rc.rule.RuleID)
	if err != nil {
		return actionOutcome{}, fmt.Errorf("find task trigger link: %w", err)
	}
	if link == nil {
		return actionOutcome{}, errNoExistingTaskLink
	}
	if err := e.gw.UpdateTaskStatus(ctx, link.TaskID, rc.rule.Config.NewStatus); err != nil {
		return actionOutcome{}, fmt.Errorf("update task status: %w", err)
	}
	return actionOutcome{EntityType: "task", EntityID: link.TaskID}, nil
}
