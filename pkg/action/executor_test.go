package action

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/nlp"
	"github.com/fcamachol/chatflow/pkg/queue"
	"github.com/fcamachol/chatflow/pkg/rules"
)

type fakeActionGateway struct {
	instances map[string]models.Instance
	messages  map[string]models.Message
	contacts  map[string]models.Contact

	tasks     []models.Task
	events    []models.CalendarEvent
	bills     []models.Bill
	notes     []models.Note
	taskLinks []models.MessageTaskLink
	eventLinks []models.MessageEventLink

	taskStatusUpdates map[string]string
	executionLogs     []models.ActionExecutionLog
}

func newFakeActionGateway() *fakeActionGateway {
	return &fakeActionGateway{
		instances:         map[string]models.Instance{},
		messages:          map[string]models.Message{},
		contacts:          map[string]models.Contact{},
		taskStatusUpdates: map[string]string{},
	}
}

func (f *fakeActionGateway) GetInstance(ctx context.Context, instanceID string) (*models.Instance, error) {
	inst, ok := f.instances[instanceID]
	if !ok {
		return &models.Instance{InstanceID: instanceID}, nil
	}
	return &inst, nil
}

func (f *fakeActionGateway) GetMessage(ctx context.Context, messageID, instanceID string) (*models.Message, error) {
	m, ok := f.messages[messageID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *fakeActionGateway) GetContact(ctx context.Context, jid, instanceID string) (*models.Contact, error) {
	c, ok := f.contacts[jid]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeActionGateway) CreateTask(ctx context.Context, t models.Task) (*models.Task, error) {
	f.tasks = append(f.tasks, t)
	return &t, nil
}

func (f *fakeActionGateway) UpdateTaskStatus(ctx context.Context, taskID, newStatus string) error {
	f.taskStatusUpdates[taskID] = newStatus
	return nil
}

func (f *fakeActionGateway) CreateCalendarEvent(ctx context.Context, e models.CalendarEvent) (*models.CalendarEvent, error) {
	f.events = append(f.events, e)
	return &e, nil
}

func (f *fakeActionGateway) CreateBill(ctx context.Context, b models.Bill) (*models.Bill, error) {
	f.bills = append(f.bills, b)
	return &b, nil
}

func (f *fakeActionGateway) CreateNote(ctx context.Context, n models.Note) (*models.Note, error) {
	f.notes = append(f.notes, n)
	return &n, nil
}

func (f *fakeActionGateway) FindTaskTriggerLink(ctx context.Context, messageID, instanceID, ruleID string) (*models.MessageTaskLink, error) {
	for _, l := range f.taskLinks {
		if l.MessageID == messageID && l.InstanceID == instanceID && l.RuleID == ruleID && l.LinkType == models.LinkTrigger {
			return &l, nil
		}
	}
	return nil, nil
}

func (f *fakeActionGateway) CreateTaskLink(ctx context.Context, l models.MessageTaskLink) error {
	f.taskLinks = append(f.taskLinks, l)
	return nil
}

func (f *fakeActionGateway) FindEventTriggerLink(ctx context.Context, messageID, instanceID, ruleID string) (*models.MessageEventLink, error) {
	for _, l := range f.eventLinks {
		if l.MessageID == messageID && l.InstanceID == instanceID && l.RuleID == ruleID && l.LinkType == models.LinkTrigger {
			return &l, nil
		}
	}
	return nil, nil
}

func (f *fakeActionGateway) CreateEventLink(ctx context.Context, l models.MessageEventLink) error {
	f.eventLinks = append(f.eventLinks, l)
	return nil
}

func (f *fakeActionGateway) RecordExecution(ctx context.Context, log models.ActionExecutionLog) error {
	f.executionLogs = append(f.executionLogs, log)
	return nil
}

type fakeFanout struct {
	entityCreated []EntityCreatedPayload
	ruleExecuted  []RuleExecutedPayload
}

func (f *fakeFanout) PublishEntityCreated(ctx context.Context, instanceID string, payload EntityCreatedPayload) error {
	f.entityCreated = append(f.entityCreated, payload)
	return nil
}

func (f *fakeFanout) PublishRuleExecuted(ctx context.Context, instanceID string, payload RuleExecutedPayload) error {
	f.ruleExecuted = append(f.ruleExecuted, payload)
	return nil
}

type fakeProvider struct {
	sent    []string
	failing bool
}

func (f *fakeProvider) SendText(ctx context.Context, instance *models.Instance, chatID, text string) error {
	if f.failing {
		return assert.AnError
	}
	f.sent = append(f.sent, text)
	return nil
}

type fakeCalendar struct{}

func (f *fakeCalendar) ResolveConferenceURL(ctx context.Context, instance *models.Instance, provider string) (string, error) {
	return "https://meet.example.com/generated", nil
}

type fakeActionRulesGateway struct {
	rulesByTrigger map[string][]models.ActionRule
}

func (f *fakeActionRulesGateway) FindRulesByTrigger(ctx context.Context, triggerType models.TriggerType, triggerValue string) ([]models.ActionRule, error) {
	return f.rulesByTrigger[string(triggerType)+triggerValue], nil
}
func (f *fakeActionRulesGateway) CreateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error) {
	return &r, nil
}
func (f *fakeActionRulesGateway) UpdateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error) {
	return &r, nil
}
func (f *fakeActionRulesGateway) SoftDeleteRule(ctx context.Context, ruleID string) error { return nil }
func (f *fakeActionRulesGateway) CheckRuleConflict(ctx context.Context, triggerType models.TriggerType, triggerValue, scope, excludeRuleID string) error {
	return nil
}
func (f *fakeActionRulesGateway) RecordRuleExecution(ctx context.Context, ruleID string) error { return nil }
func (f *fakeActionRulesGateway) CountRuleExecutionsToday(ctx context.Context, ruleID string) (int, error) {
	return 0, nil
}

type fakeActionNLPGateway struct {
	logs []models.NLPParseLog
}

func (f *fakeActionNLPGateway) InsertNLPParseLog(ctx context.Context, l models.NLPParseLog) error {
	f.logs = append(f.logs, l)
	return nil
}

func newTestExecutor(gw *fakeActionGateway, fan *fakeFanout, provider Provider, rulesByTrigger map[string][]models.ActionRule) *Executor {
	rgw := &fakeActionRulesGateway{rulesByTrigger: rulesByTrigger}
	re := rules.NewEngine(rgw, time.Minute, time.Minute)
	ns := nlp.NewService(&fakeActionNLPGateway{})
	now := func() time.Time { return time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC) }
	return NewExecutor(gw, fan, provider, &fakeCalendar{}, re, ns, now)
}

func reactionQueueItem(t *testing.T, instanceID, messageID, reactorJID, emoji string) models.ActionQueueItem {
	t.Helper()
	data, err := json.Marshal(models.ReactionEventData{
		MessageID: messageID, InstanceID: instanceID, ReactorJID: reactorJID, Emoji: emoji,
	})
	require.NoError(t, err)
	return models.ActionQueueItem{QueueID: 1, EventType: models.QueueEventReaction, EventData: data}
}

func TestExecutor_Execute_ReactionCreatesTaskAndLinksTrigger(t *testing.T) {
	gw := newFakeActionGateway()
	gw.messages["m1"] = models.Message{MessageID: "m1", InstanceID: "inst-1", ChatID: "chat-1", SenderJID: "sender@s.whatsapp.net", Content: "task: call the plumber tomorrow"}

	rule := models.ActionRule{
		RuleID: "r1", RuleName: "Task on fire", RuleType: models.RuleNLPAction,
		TriggerType: models.TriggerReaction, TriggerValue: "🔥", Active: true,
		ActionType: models.ActionCreateTask,
		Config:     models.RuleConfig{NLPParser: "task"},
	}
	fan := &fakeFanout{}
	exec := newTestExecutor(gw, fan, &fakeProvider{}, map[string][]models.ActionRule{"reaction🔥": {rule}})

	result := exec.Execute(context.Background(), reactionQueueItem(t, "inst-1", "m1", "sender@s.whatsapp.net", "🔥"))

	require.True(t, result.Completed)
	require.Nil(t, result.Err)
	require.Len(t, gw.tasks, 1)
	assert.NotEmpty(t, gw.tasks[0].Title)
	require.Len(t, gw.taskLinks, 1)
	assert.Equal(t, models.LinkTrigger, gw.taskLinks[0].LinkType)
	require.Len(t, fan.entityCreated, 1)
	assert.Equal(t, "task", fan.entityCreated[0].EntityType)
}

func hashtagQueueItem(t *testing.T, instanceID, messageID, senderJID string) models.ActionQueueItem {
	t.Helper()
	data, err := json.Marshal(models.MessageEventData{
		MessageID: messageID, InstanceID: instanceID, SenderJID: senderJID,
	})
	require.NoError(t, err)
	return models.ActionQueueItem{QueueID: 1, EventType: models.QueueEventMessage, EventData: data}
}

func TestExecutor_Execute_OwnerOnlyHashtagRuleSkipsNonOwnerSender(t *testing.T) {
	gw := newFakeActionGateway()
	gw.instances["inst-1"] = models.Instance{InstanceID: "inst-1", OwnerJID: "owner@s.whatsapp.net"}
	gw.messages["m1"] = models.Message{MessageID: "m1", InstanceID: "inst-1", ChatID: "chat-1", SenderJID: "other@s.whatsapp.net", Content: "#budget buy milk"}

	rule := models.ActionRule{
		RuleID: "r1", RuleName: "Private budget notes", RuleType: models.RuleNLPAction,
		TriggerType: models.TriggerHashtag, TriggerValue: "budget", Active: true,
		ActionType: models.ActionCreateTask,
		Config:     models.RuleConfig{NLPParser: "task", HashtagScanScope: "owner_only"},
	}
	exec := newTestExecutor(gw, &fakeFanout{}, &fakeProvider{}, map[string][]models.ActionRule{"hashtagbudget": {rule}})

	result := exec.Execute(context.Background(), hashtagQueueItem(t, "inst-1", "m1", "other@s.whatsapp.net"))

	require.True(t, result.Completed)
	assert.Equal(t, models.SubstatusNoRules, result.Substatus)
	assert.Empty(t, gw.tasks)
}

func TestExecutor_Execute_OwnerOnlyHashtagRuleRunsForOwnerSender(t *testing.T) {
	gw := newFakeActionGateway()
	gw.instances["inst-1"] = models.Instance{InstanceID: "inst-1", OwnerJID: "owner@s.whatsapp.net"}
	gw.messages["m1"] = models.Message{MessageID: "m1", InstanceID: "inst-1", ChatID: "chat-1", SenderJID: "owner@s.whatsapp.net", Content: "#budget buy milk"}

	rule := models.ActionRule{
		RuleID: "r1", RuleName: "Private budget notes", RuleType: models.RuleNLPAction,
		TriggerType: models.TriggerHashtag, TriggerValue: "budget", Active: true,
		ActionType: models.ActionCreateTask,
		Config:     models.RuleConfig{NLPParser: "task", HashtagScanScope: "owner_only"},
	}
	exec := newTestExecutor(gw, &fakeFanout{}, &fakeProvider{}, map[string][]models.ActionRule{"hashtagbudget": {rule}})

	result := exec.Execute(context.Background(), hashtagQueueItem(t, "inst-1", "m1", "owner@s.whatsapp.net"))

	require.True(t, result.Completed)
	require.Len(t, gw.tasks, 1)
}

func TestExecutor_Execute_NoMatchingRulesCompletesWithNoRulesSubstatus(t *testing.T) {
	gw := newFakeActionGateway()
	gw.messages["m1"] = models.Message{MessageID: "m1", InstanceID: "inst-1", ChatID: "chat-1", SenderJID: "sender@s.whatsapp.net", Content: "hello"}

	exec := newTestExecutor(gw, &fakeFanout{}, &fakeProvider{}, map[string][]models.ActionRule{})

	result := exec.Execute(context.Background(), reactionQueueItem(t, "inst-1", "m1", "sender@s.whatsapp.net", "👍"))

	require.True(t, result.Completed)
	assert.Equal(t, models.SubstatusNoRules, result.Substatus)
	assert.Empty(t, gw.tasks)
}

func TestExecutor_Execute_ParseFailureMarksCompletedParseFailed(t *testing.T) {
	gw := newFakeActionGateway()
	gw.messages["m1"] = models.Message{MessageID: "m1", InstanceID: "inst-1", ChatID: "chat-1", SenderJID: "sender@s.whatsapp.net", Content: "no title indicator here"}

	rule := models.ActionRule{
		RuleID: "r1", RuleType: models.RuleNLPAction,
		TriggerType: models.TriggerReaction, TriggerValue: "📝", Active: true,
		ActionType: models.ActionCreateCalendarEvent,
		Config:     models.RuleConfig{NLPParser: "calendar"},
	}
	exec := newTestExecutor(gw, &fakeFanout{}, &fakeProvider{}, map[string][]models.ActionRule{"reaction📝": {rule}})

	result := exec.Execute(context.Background(), reactionQueueItem(t, "inst-1", "m1", "sender@s.whatsapp.net", "📝"))

	require.True(t, result.Completed)
	assert.Equal(t, models.SubstatusParseFailed, result.Substatus)
	assert.Empty(t, gw.events)
}

func TestExecutor_Execute_UpdateTaskStatusRequiresExistingLink(t *testing.T) {
	gw := newFakeActionGateway()
	gw.messages["m1"] = models.Message{MessageID: "m1", InstanceID: "inst-1", ChatID: "chat-1", SenderJID: "sender@s.whatsapp.net", Content: "done"}

	rule := models.ActionRule{
		RuleID: "r1", RuleType: models.RuleSimpleAction,
		TriggerType: models.TriggerReaction, TriggerValue: "✅", Active: true,
		ActionType: models.ActionUpdateTaskStatus,
		Config:     models.RuleConfig{NewStatus: "done"},
	}
	exec := newTestExecutor(gw, &fakeFanout{}, &fakeProvider{}, map[string][]models.ActionRule{"reaction✅": {rule}})

	result := exec.Execute(context.Background(), reactionQueueItem(t, "inst-1", "m1", "sender@s.whatsapp.net", "✅"))

	require.True(t, result.Completed)
	assert.Empty(t, gw.taskStatusUpdates)

	gw.taskLinks = append(gw.taskLinks, models.MessageTaskLink{MessageID: "m1", InstanceID: "inst-1", TaskID: "task-1", RuleID: "r1", LinkType: models.LinkTrigger})
	result = exec.Execute(context.Background(), reactionQueueItem(t, "inst-1", "m1", "sender@s.whatsapp.net", "✅"))
	require.True(t, result.Completed)
	assert.Equal(t, "done", gw.taskStatusUpdates["task-1"])
}

func TestExecutor_Execute_ConfirmationFailureDoesNotFailAction(t *testing.T) {
	gw := newFakeActionGateway()
	gw.messages["m1"] = models.Message{MessageID: "m1", InstanceID: "inst-1", ChatID: "chat-1", SenderJID: "sender@s.whatsapp.net", Content: "note: remember the milk"}

	rule := models.ActionRule{
		RuleID: "r1", RuleType: models.RuleNLPAction,
		TriggerType: models.TriggerReaction, TriggerValue: "📌", Active: true,
		ActionType: models.ActionCreateNote,
		Config:     models.RuleConfig{NLPParser: "note", MessageTemplate: "saved: {{content}}"},
	}
	exec := newTestExecutor(gw, &fakeFanout{}, &fakeProvider{failing: true}, map[string][]models.ActionRule{"reaction📌": {rule}})

	result := exec.Execute(context.Background(), reactionQueueItem(t, "inst-1", "m1", "sender@s.whatsapp.net", "📌"))

	require.True(t, result.Completed)
	require.Nil(t, result.Err)
	assert.Len(t, gw.notes, 1)
}

var _ = queue.ItemExecutor(nil)
