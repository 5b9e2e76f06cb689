package rules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/fcamachol/chatflow/pkg/models"
)

// Engine evaluates rule matches and mediates all rule writes so the cache
// stays coherent with storage (spec §4.4).
type Engine struct {
	gw    Gateway
	cache *cache.Cache
}

// NewEngine builds an Engine whose match cache entries expire after ttl,
// swept every sweepEvery (spec §4.4: "cached ... for up to 5 minutes").
func NewEngine(gw Gateway, ttl, sweepEvery time.Duration) *Engine {
	return &Engine{
		gw:    gw,
		cache: cache.New(ttl, sweepEvery),
	}
}

// cacheKey mirrors spec §4.4's "cached per (trigger_value, user_id)".
// This domain has no separate user entity distinct from a chat instance,
// so instanceID stands in for user_id — the natural scoping unit here
// (an Open Question resolution, recorded in DESIGN.md).
func cacheKey(triggerValue, instanceID string) string {
	return triggerValue + "|" + instanceID
}

// FindMatchingRules returns the ordered set of active rules matching
// trigger_type/trigger_value whose instance/contact/time filters admit
// mc, whose cooldown has elapsed, and whose daily quota has not been
// exhausted (spec §4.4). Storage's candidate list for the
// trigger_value+instance pair is cached, and every filter is applied to it
// on each call; rule writes clear the whole cache.
func (e *Engine) FindMatchingRules(ctx context.Context, triggerType models.TriggerType, triggerValue string, mc MatchContext) ([]models.ActionRule, error) {
	key := cacheKey(triggerValue, mc.InstanceID)
	var candidates []models.ActionRule
	if cached, ok := e.cache.Get(key); ok {
		candidates = cached.([]models.ActionRule)
	} else {
		fetched, err := e.gw.FindRulesByTrigger(ctx, triggerType, triggerValue)
		if err != nil {
			return nil, err
		}
		candidates = fetched
		e.cache.SetDefault(key, candidates)
	}

	scoped := make([]models.ActionRule, 0, len(candidates))
	for _, r := range candidates {
		if admitsScope(r, mc) {
			scoped = append(scoped, r)
		}
	}

	return e.filterDynamic(ctx, scoped, mc)
}

// filterDynamic applies the filters that depend on state the cache must
// not go stale on by itself (cooldown elapsed, daily quota) — these are
// re-checked on every call even against a cached candidate list, since
// last_executed_at/total_executions change far more often than the rule
// set itself.
func (e *Engine) filterDynamic(ctx context.Context, candidates []models.ActionRule, mc MatchContext) ([]models.ActionRule, error) {
	out := make([]models.ActionRule, 0, len(candidates))
	for _, r := range candidates {
		if !cooldownElapsed(r, mc.Timestamp) {
			continue
		}
		maxPerDay := r.MaxExecutionsPerDay
		if r.Conditions.MaxExecutionsPerDay > 0 {
			maxPerDay = r.Conditions.MaxExecutionsPerDay
		}
		if maxPerDay > 0 {
			count, err := e.gw.CountRuleExecutionsToday(ctx, r.RuleID)
			if err != nil {
				return nil, err
			}
			if count >= maxPerDay {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// admitsScope applies instance_filters, contact_filters, and time_filters
// (spec §4.4) — the parts of a rule's conditions that only depend on the
// match context, not on mutable execution history. They are applied on
// every call, since the reactor and timestamp differ between calls that
// share one cache key.
func admitsScope(r models.ActionRule, mc MatchContext) bool {
	c := r.Conditions

	if len(c.InstanceExclude) > 0 && contains(c.InstanceExclude, mc.InstanceID) {
		return false
	}
	if len(c.InstanceInclude) > 0 && !contains(c.InstanceInclude, mc.InstanceID) {
		return false
	}
	if len(c.ContactExclude) > 0 && contains(c.ContactExclude, mc.ContactJID) {
		return false
	}
	if len(c.ContactInclude) > 0 && !contains(c.ContactInclude, mc.ContactJID) {
		return false
	}
	if !withinTimeWindow(c.TimeWindowStart, c.TimeWindowEnd, mc.Timestamp) {
		return false
	}
	return true
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// withinTimeWindow reports whether ts's local time-of-day falls within
// [start, end) given as "HH:MM". Both empty means unrestricted; a window
// that wraps midnight (start > end) is supported.
func withinTimeWindow(start, end string, ts time.Time) bool {
	if start == "" && end == "" {
		return true
	}
	startMin, okS := parseHHMM(start)
	endMin, okE := parseHHMM(end)
	if !okS || !okE {
		return true
	}
	nowMin := ts.Hour()*60 + ts.Minute()

	if startMin <= endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	return nowMin >= startMin || nowMin < endMin
}

func parseHHMM(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return h*60 + m, true
}

// cooldownElapsed reports whether enough time has passed since a rule's
// last execution (spec §4.4: "cooldown_minutes has elapsed since
// last_executed_at for this rule+context").
func cooldownElapsed(r models.ActionRule, now time.Time) bool {
	cooldown := r.CooldownMinutes
	if r.Conditions.CooldownMinutes > 0 {
		cooldown = r.Conditions.CooldownMinutes
	}
	if cooldown <= 0 || r.LastExecutedAt == nil {
		return true
	}
	return now.Sub(*r.LastExecutedAt) >= time.Duration(cooldown)*time.Minute
}

// CreateRule enforces the at-most-one-active-rule-per-scope conflict
// check before inserting, then invalidates the cache (spec §4.4).
func (e *Engine) CreateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error) {
	if err := e.gw.CheckRuleConflict(ctx, r.TriggerType, r.TriggerValue, r.Scope, ""); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	created, err := e.gw.CreateRule(ctx, r)
	if err != nil {
		return nil, err
	}
	e.cache.Flush()
	return created, nil
}

// UpdateRule re-runs the conflict check excluding the rule's own ID, then
// invalidates the cache.
func (e *Engine) UpdateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error) {
	if err := e.gw.CheckRuleConflict(ctx, r.TriggerType, r.TriggerValue, r.Scope, r.RuleID); err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}
	updated, err := e.gw.UpdateRule(ctx, r)
	if err != nil {
		return nil, err
	}
	e.cache.Flush()
	return updated, nil
}

// DeleteRule soft-deletes a rule and invalidates the cache.
func (e *Engine) DeleteRule(ctx context.Context, ruleID string) error {
	if err := e.gw.SoftDeleteRule(ctx, ruleID); err != nil {
		return err
	}
	e.cache.Flush()
	return nil
}

// RecordExecution updates a rule's cooldown/quota bookkeeping after a
// successful action execution.
func (e *Engine) RecordExecution(ctx context.Context, ruleID string) error {
	return e.gw.RecordRuleExecution(ctx, ruleID)
}
