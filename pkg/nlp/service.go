package nlp

import (
	"context"
	"time"

	"github.com/fcamachol/chatflow/pkg/models"
)

var failureMessages = map[Language]map[ParserType]string{
	LangEnglish: {
		ParserTask:     "couldn't find a task title in that message",
		ParserCalendar: "couldn't find a date or time in that message",
		ParserBill:     "couldn't find an amount in that message",
	},
	LangSpanish: {
		ParserTask:     "no se encontró un título de tarea en el mensaje",
		ParserCalendar: "no se encontró una fecha u hora en el mensaje",
		ParserBill:     "no se encontró un monto en el mensaje",
	},
	LangPortuguese: {
		ParserTask:     "não foi encontrado um título de tarefa na mensagem",
		ParserCalendar: "não foi encontrada uma data ou hora na mensagem",
		ParserBill:     "não foi encontrado um valor na mensagem",
	},
}

const autoLanguage = "auto"

// Service is the C5 NLP Service entry point (spec §4.5): it dispatches
// free text into one of four structured parsers, applies rule-supplied
// defaults, enforces each parser's minimum-field policy, and logs every
// call for observability.
type Service struct {
	gw Gateway
}

// NewService builds a Service backed by gw.
func NewService(gw Gateway) *Service {
	return &Service{gw: gw}
}

// Parse extracts structured data of parserType from text (spec §4.5).
// language is "auto" or one of the recognized codes; cfg supplies
// rule-configured defaults that fill in gaps left by extraction but
// never override a value the parser actually found. now is the
// reference instant relative dates resolve against.
func (s *Service) Parse(ctx context.Context, text string, parserType ParserType, language string, cfg models.RuleConfig, now time.Time) (ParseResult, error) {
	start := now
	lang := DetectLanguage(text, languageHint(language))

	result := s.dispatch(text, parserType, lang, cfg, now)
	result = applyDefaults(result, parserType, cfg, now)

	elapsed := time.Since(start)
	logErr := s.gw.InsertNLPParseLog(ctx, models.NLPParseLog{
		ParserType:   string(parserType),
		Language:     string(lang),
		Success:      result.Success,
		Confidence:   result.Confidence,
		ProcessingMS: elapsed.Milliseconds(),
		CreatedAt:    now,
	})
	return result, logErr
}

func languageHint(language string) string {
	if language == "" || language == autoLanguage {
		return ""
	}
	return language
}

func (s *Service) dispatch(text string, parserType ParserType, lang Language, cfg models.RuleConfig, now time.Time) ParseResult {
	switch parserType {
	case ParserTask:
		data, confidence := parseTask(text, lang, now)
		if data.Title == "" {
			return failure(parserType, lang, data)
		}
		return ParseResult{Success: true, Type: ResultTask, Data: data, Confidence: confidence}

	case ParserCalendar:
		duration := cfg.DefaultDuration
		if duration <= 0 {
			duration = 30
		}
		data, confidence, ok := parseCalendar(text, lang, now, duration)
		if !ok {
			return failure(parserType, lang, data)
		}
		return ParseResult{Success: true, Type: ResultCalendarEvent, Data: data, Confidence: confidence}

	case ParserBill:
		currency := cfg.DefaultCurrency
		if currency == "" {
			currency = "USD"
		}
		data, confidence, ok := parseBill(text, lang, now, currency)
		if !ok {
			return failure(parserType, lang, BillData{})
		}
		if multi, isMulti := data.(MultipleBillsData); isMulti {
			return ParseResult{Success: true, Type: ResultMultipleBills, Data: multi, Confidence: confidence}
		}
		return ParseResult{Success: true, Type: ResultBill, Data: data.(BillData), Confidence: confidence}

	case ParserNote:
		data, confidence := parseNote(text, lang)
		return ParseResult{Success: true, Type: ResultNote, Data: data, Confidence: confidence}

	default:
		return ParseResult{Success: false, Error: "unknown parser type: " + string(parserType)}
	}
}

func failure(parserType ParserType, lang Language, partial any) ParseResult {
	msg := failureMessages[lang][parserType]
	if msg == "" {
		msg = failureMessages[LangEnglish][parserType]
	}
	return ParseResult{Success: false, Error: msg, PartialData: partial}
}

// applyDefaults fills gaps a successful parse left open with rule-config
// defaults. It never overwrites a value the parser already extracted
// (spec §4.5: "rule-supplied defaults never override parser-extracted
// values").
func applyDefaults(result ParseResult, parserType ParserType, cfg models.RuleConfig, now time.Time) ParseResult {
	if !result.Success {
		return result
	}

	switch parserType {
	case ParserTask:
		data := result.Data.(TaskData)
		if data.Title == "" && cfg.DefaultTitle != "" {
			data.Title = cfg.DefaultTitle
		}
		if data.Priority == "" && cfg.DefaultPriority != "" {
			data.Priority = cfg.DefaultPriority
		}
		if len(data.Tags) == 0 && len(cfg.DefaultTags) > 0 {
			data.Tags = cfg.DefaultTags
		}
		if data.DueDate == nil && cfg.ForceToday {
			d := now
			data.DueDate = &d
		}
		result.Data = data

	case ParserCalendar:
		data := result.Data.(CalendarData)
		if data.Title == "" && cfg.DefaultTitle != "" {
			data.Title = cfg.DefaultTitle
		}
		if data.Platform == "" && cfg.ConferencingProvider != "" {
			data.Platform = cfg.ConferencingProvider
		}
		if data.Recurrence == "" && cfg.IsRecurring {
			data.Recurrence = cfg.RecurrenceType
		}
		result.Data = data

	case ParserNote:
		data := result.Data.(NoteData)
		if data.Title == "" && cfg.DefaultTitle != "" {
			data.Title = cfg.DefaultTitle
		}
		if len(data.Tags) == 0 && len(cfg.DefaultTags) > 0 {
			data.Tags = cfg.DefaultTags
		}
		result.Data = data

	case ParserBill:
		switch data := result.Data.(type) {
		case BillData:
			result.Data = applyBillDefaults(data, now)
		case MultipleBillsData:
			for i, b := range data.Bills {
				data.Bills[i] = applyBillDefaults(b, now)
			}
			result.Data = data
		}
	}

	return result
}

// dueSoonWindow is how close a bill's due date must be for applyBillDefaults
// to mark it high priority (spec §8 S4).
const dueSoonWindow = 7 * 24 * time.Hour

// applyBillDefaults fills in a bill's priority from how close its due date
// is and tags it "bill" (spec §4.6's create_bill / multi_bill rows carry a
// priority and a "bill" tag regardless of rule config).
func applyBillDefaults(data BillData, now time.Time) BillData {
	if data.Priority == "" {
		data.Priority = "medium"
		if data.DueDate != nil {
			until := data.DueDate.Sub(now)
			if until >= 0 && until <= dueSoonWindow {
				data.Priority = "high"
			}
		}
	}
	hasBillTag := false
	for _, t := range data.Tags {
		if t == "bill" {
			hasBillTag = true
			break
		}
	}
	if !hasBillTag {
		data.Tags = append(data.Tags, "bill")
	}
	return data
}
