package models

import (
	"encoding/json"
	"time"
)

// RuleType distinguishes rules that run a fixed action from rules that
// first dispatch to the NLP service.
type RuleType string

// Rule types.
const (
	RuleSimpleAction RuleType = "simple_action"
	RuleNLPAction    RuleType = "nlp_action"
)

// TriggerType is the kind of event an ActionRule reacts to.
type TriggerType string

// Trigger types.
const (
	TriggerReaction TriggerType = "reaction"
	TriggerHashtag  TriggerType = "hashtag"
)

// ActionType enumerates the action executor's dispatch targets.
type ActionType string

// Action types.
const (
	ActionCreateTask         ActionType = "create_task"
	ActionCreateCalendarEvent ActionType = "create_calendar_event"
	ActionCreateBill         ActionType = "create_bill"
	ActionCreateNote         ActionType = "create_note"
	ActionUpdateTaskStatus   ActionType = "update_task_status"
	ActionSendMessage        ActionType = "send_message"
)

// RuleConfig holds the structured, per-action settings attached to a rule.
// Fields are optional and interpreted by the matching action handler.
// MarshalConfig merges Extra, when set, into the stored JSON; decoding a
// config from JSON does not fill Extra, so fields not declared here are
// dropped on read.
type RuleConfig struct {
	DefaultTitle     string         `json:"default_title,omitempty"`
	DefaultPriority  string         `json:"default_priority,omitempty"`
	DefaultTags      []string       `json:"default_tags,omitempty"`
	DefaultDuration  int            `json:"default_duration_minutes,omitempty"`
	ForceToday       bool           `json:"force_today,omitempty"`
	NLPParser        string         `json:"nlp_parser,omitempty"`
	SpaceID          string         `json:"space_id,omitempty"`
	EntityTargetID   string         `json:"entity_target_id,omitempty"`
	DefaultCurrency  string         `json:"default_currency,omitempty"`
	AutoPayEnabled   bool           `json:"auto_pay_enabled,omitempty"`
	IsRecurring      bool           `json:"is_recurring,omitempty"`
	RecurrenceType   string         `json:"recurrence_type,omitempty"`
	RecurrenceInterval int          `json:"recurrence_interval,omitempty"`
	RecurrenceEndDate *time.Time    `json:"recurrence_end_date,omitempty"`
	NewStatus        string         `json:"new_status,omitempty"`
	MessageTemplate  string         `json:"message_template,omitempty"`
	ConferencingProvider string     `json:"conferencing_provider,omitempty"`
	HashtagScanScope string         `json:"hashtag_scan_scope,omitempty"` // "all" | "owner_only" — Open Question in spec §9, exposed as a rule-level flag
	Extra            map[string]any `json:"-"`
}

// RuleConditions filters which contexts a rule applies to.
type RuleConditions struct {
	InstanceInclude       []string `json:"instance_include,omitempty"`
	InstanceExclude       []string `json:"instance_exclude,omitempty"`
	ContactInclude        []string `json:"contact_include,omitempty"`
	ContactExclude        []string `json:"contact_exclude,omitempty"`
	TimeWindowStart       string   `json:"time_window_start,omitempty"` // "HH:MM"
	TimeWindowEnd         string   `json:"time_window_end,omitempty"`
	CooldownMinutes       int      `json:"cooldown_minutes,omitempty"`
	MaxExecutionsPerDay   int      `json:"max_executions_per_day,omitempty"`
}

// ActionRule is the fixed-shape rule configuration keyed by trigger type and
// value. At most one active rule may exist per (trigger_type, trigger_value,
// scope) — enforced by storage.CheckRuleConflict on write.
type ActionRule struct {
	RuleID            string
	RuleName          string
	RuleType          RuleType
	TriggerType       TriggerType
	TriggerValue      string
	ActionType        ActionType
	Config            RuleConfig
	Conditions        RuleConditions
	Active            bool
	CooldownMinutes   int
	MaxExecutionsPerDay int
	TotalExecutions   int
	LastExecutedAt    *time.Time
	Scope             string // space/user scope the conflict check is keyed on
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MarshalConfig renders Config as JSON for storage, merging Extra on top.
func (r ActionRule) MarshalConfig() (json.RawMessage, error) {
	base := map[string]any{}
	b, err := json.Marshal(r.Config)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &base); err != nil {
		return nil, err
	}
	for k, v := range r.Extra() {
		base[k] = v
	}
	return json.Marshal(base)
}

func (r ActionRule) Extra() map[string]any {
	if r.Config.Extra == nil {
		return map[string]any{}
	}
	return r.Config.Extra
}
