// Package nlp is the C5 NLP Service (spec §4.5): language detection and
// four structured-extraction parsers (task, calendar, bill, note) driving
// the action executor's entity creation.
package nlp

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fcamachol/chatflow/pkg/models"
)

// ParserType selects which extractor Parse dispatches to.
type ParserType string

// Recognized parser types.
const (
	ParserTask     ParserType = "task"
	ParserCalendar ParserType = "calendar"
	ParserBill     ParserType = "bill"
	ParserNote     ParserType = "note"
)

// Language is one of the closed set of languages the service detects or
// is told to parse in (spec §4.5).
type Language string

// Recognized languages. "auto" (the empty caller input) resolves to one
// of these via DetectLanguage, defaulting to English.
const (
	LangEnglish    Language = "en"
	LangSpanish    Language = "es"
	LangPortuguese Language = "pt"
)

// ResultType names the shape of ParseResult.Data. Bill parsing may yield
// MultipleBills rather than Bill when more than one vendor+amount pair is
// found (spec §4.5).
type ResultType string

const (
	ResultTask          ResultType = "task"
	ResultCalendarEvent ResultType = "calendar_event"
	ResultBill          ResultType = "bill"
	ResultMultipleBills ResultType = "multiple_bills"
	ResultNote          ResultType = "note"
)

// ParseResult is the outcome of one Parse call (spec §4.5).
type ParseResult struct {
	Success     bool
	Type        ResultType
	Data        any
	Confidence  float64 // [0,1]
	PartialData any
	Error       string
}

// Gateway is the subset of storage.Gateway the NLP service depends on.
type Gateway interface {
	InsertNLPParseLog(ctx context.Context, l models.NLPParseLog) error
}

// TaskData is ParseResult.Data's shape for a successful task parse.
type TaskData struct {
	Title       string
	Description string
	Priority    string // low | medium | high
	DueDate     *time.Time
	Tags        []string
	Assignee    string
}

// CalendarData is ParseResult.Data's shape for a successful calendar
// parse. Location == VideocallSentinel signals the executor must
// synchronously resolve a conferencing URL (spec §4.6).
type CalendarData struct {
	Title           string
	DateTime        time.Time
	DurationMinutes int
	Platform        string
	Attendees       []string
	Location        string
	Recurrence      string
}

// VideocallSentinel is the Location value a calendar parse emits when it
// detects a videocall keyword instead of concrete location text (spec §4.5,
// §4.6).
const VideocallSentinel = "__videocall__"

// BillData is ParseResult.Data's shape for a single-bill parse.
type BillData struct {
	Vendor   string
	Amount   decimal.Decimal
	Currency string
	DueDate  *time.Time
	Category string
	Priority string // low | medium | high, set by applyDefaults from the due date
	Tags     []string
}

// MultipleBillsData is ParseResult.Data's shape for the multi-bill case
// (spec §4.5).
type MultipleBillsData struct {
	Bills []BillData
	Total decimal.Decimal
}

// NoteData is ParseResult.Data's shape for a successful note parse.
type NoteData struct {
	Title   string
	Content string
	Tags    []string
}
