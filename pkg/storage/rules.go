package storage

import (
	"context"
	"encoding/json"

	"github.com/fcamachol/chatflow/pkg/dberrors"
	"github.com/fcamachol/chatflow/pkg/models"
)

// CreateRule inserts a new rule after a conflict check: at most one active
// rule may exist per (trigger_type, trigger_value, scope) (spec §3, §4.4).
func (g *Gateway) CreateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error) {
	const op = "storage.CreateRule"

	configJSON, err := r.MarshalConfig()
	if err != nil {
		return nil, dberrors.Permanent(op, err)
	}
	conditionsJSON, err := json.Marshal(r.Conditions)
	if err != nil {
		return nil, dberrors.Permanent(op, err)
	}

	row := g.db.QueryRowContext(ctx, `
		INSERT INTO action_rules (rule_id, rule_name, rule_type, trigger_type, trigger_value,
		                          action_type, config, conditions, scope, active,
		                          cooldown_minutes, max_executions_per_day, total_executions,
		                          last_executed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, NULL, now(), now())
		RETURNING rule_id, rule_name, rule_type, trigger_type, trigger_value, action_type,
		          config, conditions, scope, active, cooldown_minutes, max_executions_per_day,
		          total_executions, last_executed_at, created_at, updated_at`,
		r.RuleID, r.RuleName, r.RuleType, r.TriggerType, r.TriggerValue, r.ActionType,
		configJSON, conditionsJSON, r.Scope, r.Active, r.CooldownMinutes, r.MaxExecutionsPerDay)

	return scanRule(row, op)
}

// UpdateRule replaces a rule's mutable fields by ID.
func (g *Gateway) UpdateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error) {
	const op = "storage.UpdateRule"

	configJSON, err := r.MarshalConfig()
	if err != nil {
		return nil, dberrors.Permanent(op, err)
	}
	conditionsJSON, err := json.Marshal(r.Conditions)
	if err != nil {
		return nil, dberrors.Permanent(op, err)
	}

	row := g.db.QueryRowContext(ctx, `
		UPDATE action_rules SET
			rule_name = $2, action_type = $3, config = $4, conditions = $5,
			scope = $6, active = $7, cooldown_minutes = $8, max_executions_per_day = $9,
			updated_at = now()
		WHERE rule_id = $1
		RETURNING rule_id, rule_name, rule_type, trigger_type, trigger_value, action_type,
		          config, conditions, scope, active, cooldown_minutes, max_executions_per_day,
		          total_executions, last_executed_at, created_at, updated_at`,
		r.RuleID, r.RuleName, r.ActionType, configJSON, conditionsJSON, r.Scope,
		r.Active, r.CooldownMinutes, r.MaxExecutionsPerDay)

	return scanRule(row, op)
}

// SoftDeleteRule marks a rule inactive (DELETE /rules/{id}, spec §6).
func (g *Gateway) SoftDeleteRule(ctx context.Context, ruleID string) error {
	const op = "storage.SoftDeleteRule"
	res, err := g.db.ExecContext(ctx, `UPDATE action_rules SET active = false, updated_at = now() WHERE rule_id = $1`, ruleID)
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return dberrors.NotFound(op, nil)
	}
	return nil
}

// CheckRuleConflict reports whether an active rule already exists for
// (trigger_type, trigger_value, scope), excluding excludeRuleID (used by
// UpdateRule to exclude the rule being updated). Returns dberrors.ErrConflict
// when one does.
func (g *Gateway) CheckRuleConflict(ctx context.Context, triggerType models.TriggerType, triggerValue, scope, excludeRuleID string) error {
	const op = "storage.CheckRuleConflict"
	var exists bool
	err := g.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM action_rules
			WHERE trigger_type = $1 AND trigger_value = $2 AND scope = $3
			  AND active AND rule_id <> $4
		)`, triggerType, triggerValue, scope, excludeRuleID).Scan(&exists)
	if err != nil {
		return classify(op, err)
	}
	if exists {
		return dberrors.Conflict(op, nil)
	}
	return nil
}

// FindRulesByTrigger returns active rules matching (trigger_type,
// trigger_value); the caller (pkg/rules) filters by conditions and cache
// (spec §4.1, §4.4). Hashtag matching is case-insensitive; emoji matching
// is exact.
func (g *Gateway) FindRulesByTrigger(ctx context.Context, triggerType models.TriggerType, triggerValue string) ([]models.ActionRule, error) {
	const op = "storage.FindRulesByTrigger"

	valueCmp := "trigger_value = $2"
	if triggerType == models.TriggerHashtag {
		valueCmp = "lower(trigger_value) = lower($2)"
	}
	rows, err := g.db.QueryContext(ctx, `
		SELECT rule_id, rule_name, rule_type, trigger_type, trigger_value, action_type,
		       config, conditions, scope, active, cooldown_minutes, max_executions_per_day,
		       total_executions, last_executed_at, created_at, updated_at
		FROM action_rules
		WHERE trigger_type = $1 AND `+valueCmp+` AND active`,
		triggerType, triggerValue)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []models.ActionRule
	for rows.Next() {
		r, err := scanRuleRow(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, r)
	}
	return out, classify(op, rows.Err())
}

// RecordRuleExecution increments total_executions and bumps last_executed_at
// after a successful action execution (spec §4.4 cooldown/quota inputs).
func (g *Gateway) RecordRuleExecution(ctx context.Context, ruleID string) error {
	const op = "storage.RecordRuleExecution"
	_, err := g.db.ExecContext(ctx, `
		UPDATE action_rules SET total_executions = total_executions + 1, last_executed_at = now()
		WHERE rule_id = $1`, ruleID)
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// CountRuleExecutionsToday returns how many times a rule has executed since
// local midnight, for max_executions_per_day enforcement (spec §4.4).
func (g *Gateway) CountRuleExecutionsToday(ctx context.Context, ruleID string) (int, error) {
	const op = "storage.CountRuleExecutionsToday"
	var count int
	err := g.db.QueryRowContext(ctx, `
		SELECT count(*) FROM action_execution_logs
		WHERE rule_id = $1 AND created_at >= date_trunc('day', now())`, ruleID).Scan(&count)
	if err != nil {
		return 0, classify(op, err)
	}
	return count, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRule(row scannable, op string) (*models.ActionRule, error) {
	r, err := scanRuleRow(row)
	if err != nil {
		return nil, classify(op, err)
	}
	return &r, nil
}

func scanRuleRow(row scannable) (models.ActionRule, error) {
	var r models.ActionRule
	var configJSON, conditionsJSON []byte
	err := row.Scan(&r.RuleID, &r.RuleName, &r.RuleType, &r.TriggerType, &r.TriggerValue,
		&r.ActionType, &configJSON, &conditionsJSON, &r.Scope, &r.Active, &r.CooldownMinutes,
		&r.MaxExecutionsPerDay, &r.TotalExecutions, &r.LastExecutedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return models.ActionRule{}, err
	}
	var cfg models.RuleConfig
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return models.ActionRule{}, err
	}
	r.Config = cfg
	if err := json.Unmarshal(conditionsJSON, &r.Conditions); err != nil {
		return models.ActionRule{}, err
	}
	return r, nil
}
