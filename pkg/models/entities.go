package models

import "time"

// Task is the minimal shape of a task produced by the create_task and
// update_task_status action handlers. The full task/CRM schema lives in an
// external collaborator system (spec §1 Non-goals); this struct carries
// only the fields the action executor itself needs to write and link.
type Task struct {
	TaskID      string
	SpaceID     string
	Title       string
	Description string
	Priority    string // low | medium | high
	DueDate     *time.Time
	Tags        []string
	Assignee    string
	Status      string
	SourceMetadata TaskSourceMetadata
	CreatedAt   time.Time
}

// TaskSourceMetadata records provenance for a rule-created task.
type TaskSourceMetadata struct {
	Source    string `json:"source"` // "whatsapp_reaction" | "whatsapp_hashtag"
	Emoji     string `json:"emoji,omitempty"`
	RuleID    string `json:"rule_id"`
	MessageID string `json:"message_id"`
}

// CalendarEvent is the minimal shape of an event produced by create_calendar_event.
type CalendarEvent struct {
	EventID     string
	SpaceID     string
	Title       string
	StartTime   time.Time
	EndTime     time.Time
	Location    string
	ConferenceURL string
	Attendees   []string
	Recurrence  string
	CreatedAt   time.Time
}

// Bill is the minimal shape of a bill produced by create_bill. One
// multi-vendor reaction may yield several independent Bill rows; they
// carry no shared batch identifier.
type Bill struct {
	BillID            string
	SpaceID           string
	Vendor            string
	Amount            string // decimal.Decimal string form, see pkg/nlp
	Currency          string
	DueDate           *time.Time
	Category          string
	IsRecurring       bool
	RecurrenceType    string
	RecurrenceInterval int
	RecurrenceEndDate *time.Time
	NextDueDate       *time.Time
	AutoPayEnabled    bool
	Priority          string // low | medium | high
	Tags              []string
	CreatedAt         time.Time
}

// Note is the minimal shape of a note produced by create_note.
type Note struct {
	NoteID    string
	SpaceID   string
	Title     string
	Content   string
	Tags      []string
	CreatedAt time.Time
}
