package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fcamachol/chatflow/pkg/dberrors"
	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/nlp"
	"github.com/fcamachol/chatflow/pkg/queue"
	"github.com/fcamachol/chatflow/pkg/rules"
)

// errNoExistingTaskLink signals update_task_status ran against a message
// with no prior create_task trigger link — a permanent, non-retryable
// outcome (spec §4.6).
var errNoExistingTaskLink = errors.New("update_task_status: no existing task link for this message")

// ruleContext carries the per-invocation values handlers.go's action
// handlers need beyond the parse result itself.
type ruleContext struct {
	rule            models.ActionRule
	instanceID      string
	messageID       string
	quotedMessageID string
	source          string // "whatsapp_reaction" | "whatsapp_hashtag"
	emoji           string
}

// Executor implements queue.ItemExecutor (spec §4.3b, §4.6): it resolves
// the triggering message, matches rules, dispatches NLP parsing when the
// rule requires it, runs the matching action handler, links the result,
// sends a best-effort confirmation, and fans out a real-time event.
type Executor struct {
	gw       Gateway
	fan      Fanout
	provider Provider
	calendar Calendar
	rules    *rules.Engine
	nlp      *nlp.Service
	logger   *slog.Logger
	now      Clock
}

// NewExecutor builds an Executor. now defaults to time.Now when nil.
func NewExecutor(gw Gateway, fan Fanout, provider Provider, calendar Calendar, re *rules.Engine, ns *nlp.Service, now Clock) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{
		gw: gw, fan: fan, provider: provider, calendar: calendar,
		rules: re, nlp: ns, now: now,
		logger: slog.Default().With("component", "action-executor"),
	}
}

var _ queue.ItemExecutor = (*Executor)(nil)

// Execute processes one leased queue item to completion (spec §4.3b).
func (e *Executor) Execute(ctx context.Context, item models.ActionQueueItem) queue.ItemResult {
	switch item.EventType {
	case models.QueueEventReaction:
		return e.executeReaction(ctx, item)
	case models.QueueEventMessage:
		return e.executeHashtagMessage(ctx, item)
	default:
		// Any other event type, including entity_change (which the
		// change-capture consumer does not enqueue), completes with no
		// action.
		return queue.Completed("")
	}
}

func (e *Executor) executeReaction(ctx context.Context, item models.ActionQueueItem) queue.ItemResult {
	var data models.ReactionEventData
	if err := json.Unmarshal(item.EventData, &data); err != nil {
		return queue.Completed(models.SubstatusParseFailed)
	}

	mc := rules.MatchContext{InstanceID: data.InstanceID, ContactJID: data.ReactorJID, Timestamp: e.now()}
	matched, err := e.rules.FindMatchingRules(ctx, models.TriggerReaction, data.Emoji, mc)
	if err != nil {
		return retryOrFail(err)
	}
	if len(matched) == 0 {
		return queue.Completed(models.SubstatusNoRules)
	}

	return e.runRules(ctx, item.QueueID, matched, data.InstanceID, data.MessageID, "whatsapp_reaction", data.Emoji)
}

func (e *Executor) executeHashtagMessage(ctx context.Context, item models.ActionQueueItem) queue.ItemResult {
	var data models.MessageEventData
	if err := json.Unmarshal(item.EventData, &data); err != nil {
		return queue.Completed(models.SubstatusParseFailed)
	}

	msg, err := e.gw.GetMessage(ctx, data.MessageID, data.InstanceID)
	if err != nil {
		return retryOrFail(err)
	}

	hashtags := nlp.ExtractHashtags(msg.Content)
	if len(hashtags) == 0 {
		return queue.Completed(models.SubstatusNoRules)
	}

	var all []models.ActionRule
	mc := rules.MatchContext{InstanceID: data.InstanceID, ContactJID: data.SenderJID, Timestamp: e.now()}
	for _, tag := range hashtags {
		matched, err := e.rules.FindMatchingRules(ctx, models.TriggerHashtag, tag, mc)
		if err != nil {
			return retryOrFail(err)
		}
		all = append(all, matched...)
	}
	if len(all) == 0 {
		return queue.Completed(models.SubstatusNoRules)
	}

	all, err = e.filterHashtagScope(ctx, all, data.InstanceID, data.SenderJID)
	if err != nil {
		return retryOrFail(err)
	}
	if len(all) == 0 {
		return queue.Completed(models.SubstatusNoRules)
	}

	return e.runRules(ctx, item.QueueID, all, data.InstanceID, data.MessageID, "whatsapp_hashtag", "")
}

// filterHashtagScope drops rules whose hashtag_scan_scope is "owner_only"
// when the message did not come from the instance's own number (spec §9:
// a rule-level flag, not a global default, so "all" rules always pass
// through and the owner lookup only runs when at least one matched rule
// asks for it).
func (e *Executor) filterHashtagScope(ctx context.Context, matched []models.ActionRule, instanceID, senderJID string) ([]models.ActionRule, error) {
	needsOwnerCheck := false
	for _, rule := range matched {
		if rule.Config.HashtagScanScope == "owner_only" {
			needsOwnerCheck = true
			break
		}
	}
	if !needsOwnerCheck {
		return matched, nil
	}

	inst, err := e.gw.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.ActionRule, 0, len(matched))
	for _, rule := range matched {
		if rule.Config.HashtagScanScope == "owner_only" && senderJID != inst.OwnerJID {
			continue
		}
		filtered = append(filtered, rule)
	}
	return filtered, nil
}

// runRules executes every matched rule for one queue item. A transient
// infrastructure error on any rule aborts the batch for retry; everything
// else (parse failure, permanent errors, successful completion) is
// folded into the item's final substatus.
func (e *Executor) runRules(ctx context.Context, queueID int64, matched []models.ActionRule, instanceID, messageID, source, emoji string) queue.ItemResult {
	substatus := ""
	for _, rule := range matched {
		rc := ruleContext{rule: rule, instanceID: instanceID, messageID: messageID, source: source, emoji: emoji}

		msg, err := e.gw.GetMessage(ctx, messageID, instanceID)
		if err != nil {
			if dberrors.IsRetryable(err) {
				return queue.Retry(err)
			}
			e.logger.Error("load triggering message failed", "rule_id", rule.RuleID, "error", err)
			continue
		}
		if msg.QuotedMessageID != nil {
			rc.quotedMessageID = *msg.QuotedMessageID
		}

		outcome, ranSubstatus, err := e.runRule(ctx, rc, msg)
		if err != nil {
			if dberrors.IsRetryable(err) {
				return queue.Retry(err)
			}
			e.logger.Error("action execution failed", "rule_id", rule.RuleID, "error", err)
			substatus = ranSubstatus
			e.publishRuleExecuted(ctx, instanceID, rule.RuleID, "error")
			continue
		}

		if err := e.rules.RecordExecution(ctx, rule.RuleID); err != nil {
			e.logger.Warn("record rule execution failed", "rule_id", rule.RuleID, "error", err)
		}
		e.recordExecutionLog(ctx, rule.RuleID, queueID, "success", outcome)
		e.publishEntityCreated(ctx, instanceID, outcome)
		e.publishRuleExecuted(ctx, instanceID, rule.RuleID, "success")
		if ranSubstatus != "" {
			substatus = ranSubstatus
		}
	}
	return queue.Completed(substatus)
}

// runRule dispatches one rule to its action handler, optionally via NLP
// parsing first, and sends the best-effort confirmation/error message.
func (e *Executor) runRule(ctx context.Context, rc ruleContext, msg *models.Message) (actionOutcome, string, error) {
	text := msg.Content
	if rc.quotedMessageID != "" {
		if quoted, err := e.gw.GetMessage(ctx, rc.quotedMessageID, rc.instanceID); err == nil && quoted != nil {
			text = quoted.Content + "\n" + text
		}
	}

	tc := e.baseTemplateContext(ctx, rc, msg)

	if rc.rule.RuleType == models.RuleNLPAction {
		parserType := nlp.ParserType(rc.rule.Config.NLPParser)
		result, err := e.nlp.Parse(ctx, text, parserType, "auto", rc.rule.Config, e.now())
		if err != nil {
			return actionOutcome{}, "", fmt.Errorf("nlp parse: %w", err)
		}
		if !result.Success {
			tc.Content = result.Error
			e.sendBestEffort(ctx, rc.instanceID, msg.ChatID, rc.rule.Config.MessageTemplate, tc)
			return actionOutcome{}, models.SubstatusParseFailed, nil
		}
		return e.dispatchAction(ctx, rc, result, tc, msg)
	}

	return e.dispatchAction(ctx, rc, nlp.ParseResult{Success: true}, tc, msg)
}

func (e *Executor) dispatchAction(ctx context.Context, rc ruleContext, result nlp.ParseResult, tc TemplateContext, msg *models.Message) (actionOutcome, string, error) {
	var outcome actionOutcome
	var err error

	switch rc.rule.ActionType {
	case models.ActionCreateTask:
		data, _ := result.Data.(nlp.TaskData)
		outcome, err = e.handleCreateTask(ctx, rc, data)
	case models.ActionCreateCalendarEvent:
		data, _ := result.Data.(nlp.CalendarData)
		outcome, err = e.handleCreateCalendarEvent(ctx, rc, data)
	case models.ActionCreateBill:
		outcome, err = e.handleCreateBill(ctx, rc, result.Data)
	case models.ActionCreateNote:
		data, _ := result.Data.(nlp.NoteData)
		outcome, err = e.handleCreateNote(ctx, rc, data)
	case models.ActionUpdateTaskStatus:
		outcome, err = e.handleUpdateTaskStatus(ctx, rc)
	case models.ActionSendMessage:
		e.sendBestEffort(ctx, rc.instanceID, msg.ChatID, rc.rule.Config.MessageTemplate, tc)
		return actionOutcome{EntityType: "message", EntityID: rc.messageID}, "", nil
	default:
		return actionOutcome{}, "", fmt.Errorf("unsupported action_type %q", rc.rule.ActionType)
	}
	if err != nil {
		return actionOutcome{}, "", err
	}

	e.sendBestEffort(ctx, rc.instanceID, msg.ChatID, rc.rule.Config.MessageTemplate, tc)
	return outcome, "", nil
}

func (e *Executor) baseTemplateContext(ctx context.Context, rc ruleContext, msg *models.Message) TemplateContext {
	sender := msg.SenderJID
	if contact, err := e.gw.GetContact(ctx, msg.SenderJID, rc.instanceID); err == nil && contact != nil && contact.PushName != "" {
		sender = contact.PushName
	}
	return TemplateContext{
		Sender:   sender,
		Content:  msg.Content,
		Reaction: rc.emoji,
		Chat:     msg.ChatID,
		Date:     e.now().Format("2006-01-02"),
		RuleName: rc.rule.RuleName,
	}
}

// sendBestEffort renders and sends a confirmation/error template. Its
// failure never fails the action — the entity is already created (spec
// §4.6 "Confirmation side-effects").
func (e *Executor) sendBestEffort(ctx context.Context, instanceID, chatID, template string, tc TemplateContext) {
	if template == "" {
		return
	}
	instance, err := e.gw.GetInstance(ctx, instanceID)
	if err != nil {
		e.logger.Warn("confirmation send skipped: instance lookup failed", "error", err)
		return
	}
	text := renderTemplate(template, tc)
	if err := e.provider.SendText(ctx, instance, chatID, text); err != nil {
		e.logger.Warn("confirmation send failed", "instance_id", instanceID, "chat_id", chatID, "error", err)
	}
}

func (e *Executor) recordExecutionLog(ctx context.Context, ruleID string, queueItemID int64, status string, outcome actionOutcome) {
	err := e.gw.RecordExecution(ctx, models.ActionExecutionLog{
		RuleID:      ruleID,
		QueueItemID: queueItemID,
		Status:      status,
		CreatedEntityRefs: []models.EntityRef{
			{EntityType: outcome.EntityType, EntityID: outcome.EntityID},
		},
	})
	if err != nil {
		e.logger.Warn("record execution log failed", "rule_id", ruleID, "error", err)
	}
}

func (e *Executor) publishEntityCreated(ctx context.Context, instanceID string, outcome actionOutcome) {
	if outcome.EntityID == "" {
		return
	}
	if err := e.fan.PublishEntityCreated(ctx, instanceID, EntityCreatedPayload{EntityType: outcome.EntityType, EntityID: outcome.EntityID}); err != nil {
		e.logger.Warn("fan-out entity_created failed", "error", err)
	}
}

func (e *Executor) publishRuleExecuted(ctx context.Context, instanceID, ruleID, status string) {
	if err := e.fan.PublishRuleExecuted(ctx, instanceID, RuleExecutedPayload{RuleID: ruleID, Status: status}); err != nil {
		e.logger.Warn("fan-out rule_executed failed", "error", err)
	}
}

// retryOrFail feeds a retryable infrastructure error back to the queue's
// attempts/backoff counter; anything else terminates the item (it will
// never succeed on replay).
func retryOrFail(err error) queue.ItemResult {
	if dberrors.IsRetryable(err) {
		return queue.Retry(err)
	}
	return queue.Completed("")
}
