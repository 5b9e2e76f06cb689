// Package rules is the C4 Rule Engine (spec §4.4): matching active rules
// against a reaction or hashtag trigger, enforcing scope/time/cooldown/
// quota filters, caching results, and rejecting conflicting writes.
package rules

import (
	"context"
	"time"

	"github.com/fcamachol/chatflow/pkg/models"
)

// Gateway is the subset of storage.Gateway the rule engine depends on.
type Gateway interface {
	FindRulesByTrigger(ctx context.Context, triggerType models.TriggerType, triggerValue string) ([]models.ActionRule, error)
	CreateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error)
	UpdateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error)
	SoftDeleteRule(ctx context.Context, ruleID string) error
	CheckRuleConflict(ctx context.Context, triggerType models.TriggerType, triggerValue, scope, excludeRuleID string) error
	RecordRuleExecution(ctx context.Context, ruleID string) error
	CountRuleExecutionsToday(ctx context.Context, ruleID string) (int, error)
}

// MatchContext carries everything FindMatchingRules needs to apply
// spec §4.4's condition filters beyond the trigger_type/trigger_value
// lookup storage already narrows by.
type MatchContext struct {
	InstanceID string
	ContactJID string // the reactor (reaction triggers) or sender (hashtag triggers)
	Timestamp  time.Time
}
