package api

import "github.com/fcamachol/chatflow/pkg/models"

// CreateRuleRequest is the HTTP request body for POST /rules.
type CreateRuleRequest struct {
	RuleName            string                `json:"rule_name" validate:"required"`
	RuleType            models.RuleType       `json:"rule_type" validate:"required,oneof=simple_action nlp_action"`
	TriggerType         models.TriggerType    `json:"trigger_type" validate:"required,oneof=reaction hashtag"`
	TriggerValue        string                `json:"trigger_value" validate:"required"`
	ActionType          models.ActionType     `json:"action_type" validate:"required"`
	Config              models.RuleConfig     `json:"config"`
	Conditions          models.RuleConditions `json:"conditions"`
	Active              bool                  `json:"active"`
	CooldownMinutes     int                   `json:"cooldown_minutes" validate:"gte=0"`
	MaxExecutionsPerDay int                   `json:"max_executions_per_day" validate:"gte=0"`
	Scope               string                `json:"scope"`
}

// UpdateRuleRequest is the HTTP request body for PUT /rules/{id}. Every
// field is re-validated and re-checked for conflict the same way creation
// is (spec §4.4) — a rule cannot transition through an invalid state.
type UpdateRuleRequest struct {
	RuleName            string                `json:"rule_name" validate:"required"`
	RuleType            models.RuleType       `json:"rule_type" validate:"required,oneof=simple_action nlp_action"`
	TriggerType         models.TriggerType    `json:"trigger_type" validate:"required,oneof=reaction hashtag"`
	TriggerValue        string                `json:"trigger_value" validate:"required"`
	ActionType          models.ActionType     `json:"action_type" validate:"required"`
	Config              models.RuleConfig     `json:"config"`
	Conditions          models.RuleConditions `json:"conditions"`
	Active              bool                  `json:"active"`
	CooldownMinutes     int                   `json:"cooldown_minutes" validate:"gte=0"`
	MaxExecutionsPerDay int                   `json:"max_executions_per_day" validate:"gte=0"`
	Scope               string                `json:"scope"`
}

// ReprocessRequest is the HTTP request body for POST /admin/reprocess.
// EventType is optional; empty means every dead-letter event type.
type ReprocessRequest struct {
	EventType models.QueueEventType `json:"event_type,omitempty"`
}
