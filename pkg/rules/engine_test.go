package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcamachol/chatflow/pkg/dberrors"
	"github.com/fcamachol/chatflow/pkg/models"
)

type fakeRulesGateway struct {
	rulesByTrigger map[string][]models.ActionRule
	findCalls      int
	conflicts      map[string]bool
	created        []models.ActionRule
	updated        []models.ActionRule
	deleted        []string
	executions     map[string]int
	executionsToday map[string]int
}

func newFakeRulesGateway() *fakeRulesGateway {
	return &fakeRulesGateway{
		rulesByTrigger:  map[string][]models.ActionRule{},
		conflicts:       map[string]bool{},
		executions:      map[string]int{},
		executionsToday: map[string]int{},
	}
}

func (f *fakeRulesGateway) FindRulesByTrigger(ctx context.Context, triggerType models.TriggerType, triggerValue string) ([]models.ActionRule, error) {
	f.findCalls++
	return f.rulesByTrigger[string(triggerType)+triggerValue], nil
}

func (f *fakeRulesGateway) CreateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error) {
	f.created = append(f.created, r)
	return &r, nil
}

func (f *fakeRulesGateway) UpdateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error) {
	f.updated = append(f.updated, r)
	return &r, nil
}

func (f *fakeRulesGateway) SoftDeleteRule(ctx context.Context, ruleID string) error {
	f.deleted = append(f.deleted, ruleID)
	return nil
}

func (f *fakeRulesGateway) CheckRuleConflict(ctx context.Context, triggerType models.TriggerType, triggerValue, scope, excludeRuleID string) error {
	if f.conflicts[string(triggerType)+triggerValue+scope] {
		return dberrors.Conflict("storage.CheckRuleConflict", nil)
	}
	return nil
}

func (f *fakeRulesGateway) RecordRuleExecution(ctx context.Context, ruleID string) error {
	f.executions[ruleID]++
	return nil
}

func (f *fakeRulesGateway) CountRuleExecutionsToday(ctx context.Context, ruleID string) (int, error) {
	return f.executionsToday[ruleID], nil
}

func testRule(ruleID string) models.ActionRule {
	return models.ActionRule{
		RuleID:       ruleID,
		TriggerType:  models.TriggerReaction,
		TriggerValue: "🔥",
		Active:       true,
	}
}

func TestFindMatchingRules_ReturnsCandidateOnFirstLookup(t *testing.T) {
	gw := newFakeRulesGateway()
	gw.rulesByTrigger["reaction🔥"] = []models.ActionRule{testRule("r1")}
	e := NewEngine(gw, time.Minute, time.Minute)

	rules, err := e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", MatchContext{InstanceID: "inst-1", Timestamp: time.Now()})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "r1", rules[0].RuleID)
}

func TestFindMatchingRules_CachesAcrossCallsForSameKey(t *testing.T) {
	gw := newFakeRulesGateway()
	gw.rulesByTrigger["reaction🔥"] = []models.ActionRule{testRule("r1")}
	e := NewEngine(gw, time.Minute, time.Minute)

	mc := MatchContext{InstanceID: "inst-1", Timestamp: time.Now()}
	_, err := e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", mc)
	require.NoError(t, err)
	_, err = e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", mc)
	require.NoError(t, err)

	assert.Equal(t, 1, gw.findCalls, "second lookup for the same trigger_value+instance must hit the cache")
}

func TestFindMatchingRules_InstanceExcludeFiltersOutRule(t *testing.T) {
	gw := newFakeRulesGateway()
	r := testRule("r1")
	r.Conditions.InstanceExclude = []string{"inst-1"}
	gw.rulesByTrigger["reaction🔥"] = []models.ActionRule{r}
	e := NewEngine(gw, time.Minute, time.Minute)

	rules, err := e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", MatchContext{InstanceID: "inst-1", Timestamp: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestFindMatchingRules_ContactIncludeAdmitsOnlyListedReactor(t *testing.T) {
	gw := newFakeRulesGateway()
	r := testRule("r1")
	r.Conditions.ContactInclude = []string{"allowed@s.whatsapp.net"}
	gw.rulesByTrigger["reaction🔥"] = []models.ActionRule{r}
	e := NewEngine(gw, time.Minute, time.Minute)

	matched, err := e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", MatchContext{InstanceID: "inst-1", ContactJID: "allowed@s.whatsapp.net", Timestamp: time.Now()})
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	unmatched, err := e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", MatchContext{InstanceID: "inst-1", ContactJID: "other@s.whatsapp.net", Timestamp: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, unmatched)
}

func TestFindMatchingRules_CooldownNotElapsedExcludesRule(t *testing.T) {
	gw := newFakeRulesGateway()
	r := testRule("r1")
	r.CooldownMinutes = 30
	last := time.Now().Add(-5 * time.Minute)
	r.LastExecutedAt = &last
	gw.rulesByTrigger["reaction🔥"] = []models.ActionRule{r}
	e := NewEngine(gw, time.Minute, time.Minute)

	rules, err := e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", MatchContext{InstanceID: "inst-1", Timestamp: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestFindMatchingRules_DailyQuotaExhaustedExcludesRule(t *testing.T) {
	gw := newFakeRulesGateway()
	r := testRule("r1")
	r.MaxExecutionsPerDay = 3
	gw.rulesByTrigger["reaction🔥"] = []models.ActionRule{r}
	gw.executionsToday["r1"] = 3
	e := NewEngine(gw, time.Minute, time.Minute)

	rules, err := e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", MatchContext{InstanceID: "inst-1", Timestamp: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestFindMatchingRules_TimeWindowRestrictsMatches(t *testing.T) {
	gw := newFakeRulesGateway()
	r := testRule("r1")
	r.Conditions.TimeWindowStart = "09:00"
	r.Conditions.TimeWindowEnd = "17:00"
	gw.rulesByTrigger["reaction🔥"] = []models.ActionRule{r}
	e := NewEngine(gw, time.Minute, time.Minute)

	inside := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	matched, err := e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", MatchContext{InstanceID: "inst-1", Timestamp: inside})
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	outside := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	unmatched, err := e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", MatchContext{InstanceID: "inst-1", Timestamp: outside})
	require.NoError(t, err)
	assert.Empty(t, unmatched)
}

func TestCreateRule_ConflictRejectsDuplicateActiveRule(t *testing.T) {
	gw := newFakeRulesGateway()
	gw.conflicts["reaction🔥scope-a"] = true
	e := NewEngine(gw, time.Minute, time.Minute)

	_, err := e.CreateRule(context.Background(), models.ActionRule{TriggerType: models.TriggerReaction, TriggerValue: "🔥", Scope: "scope-a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dberrors.ErrConflict)
	assert.Empty(t, gw.created)
}

func TestCreateRule_InvalidatesCacheOnSuccess(t *testing.T) {
	gw := newFakeRulesGateway()
	gw.rulesByTrigger["reaction🔥"] = []models.ActionRule{testRule("r1")}
	e := NewEngine(gw, time.Minute, time.Minute)

	mc := MatchContext{InstanceID: "inst-1", Timestamp: time.Now()}
	_, err := e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", mc)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.findCalls)

	_, err = e.CreateRule(context.Background(), models.ActionRule{TriggerType: models.TriggerReaction, TriggerValue: "🎉", Scope: "scope-a"})
	require.NoError(t, err)

	_, err = e.FindMatchingRules(context.Background(), models.TriggerReaction, "🔥", mc)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.findCalls, "a rule write must invalidate the whole cache")
}

func TestRecordExecution_IncrementsCounterViaGateway(t *testing.T) {
	gw := newFakeRulesGateway()
	e := NewEngine(gw, time.Minute, time.Minute)

	require.NoError(t, e.RecordExecution(context.Background(), "r1"))
	assert.Equal(t, 1, gw.executions["r1"])
}
