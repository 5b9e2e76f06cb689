package nlp

import (
	"strings"
	"time"
)

var videocallWords = []string{
	"zoom", "meet", "google meet", "videollamada", "videochamada",
	"video call", "videocall", "llamada de video", "chamada de vídeo",
}

var recurrenceWords = map[Language]map[string]string{
	LangEnglish: {
		"every day": "daily", "daily": "daily",
		"every week": "weekly", "weekly": "weekly",
		"every month": "monthly", "monthly": "monthly",
	},
	LangSpanish: {
		"todos los días": "daily", "diariamente": "daily",
		"cada semana": "weekly", "semanalmente": "weekly",
		"cada mes": "monthly", "mensualmente": "monthly",
	},
	LangPortuguese: {
		"todos os dias": "daily", "diariamente": "daily",
		"toda semana": "weekly", "semanalmente": "weekly",
		"todo mês": "monthly", "mensalmente": "monthly",
	},
}

// parseCalendar extracts a CalendarData from free text (spec §4.5).
// date_time is required: ok is false when no date/time reference is
// found, at which point the caller must treat this as a failed parse.
func parseCalendar(text string, lang Language, now time.Time, defaultDuration int) (CalendarData, float64, bool) {
	dt, ok := parseDueDate(text, lang, now)
	if !ok {
		return CalendarData{}, 0, false
	}

	data := CalendarData{
		Title:           extractTitle(text, lang),
		DateTime:        dt,
		DurationMinutes: defaultDuration,
		Attendees:       extractAttendees(text),
		Recurrence:      extractRecurrence(text, lang),
	}

	if platform, isVideo := detectVideocall(text); isVideo {
		data.Platform = platform
		data.Location = VideocallSentinel
	}

	confidence := 0.5
	if data.Title != "" {
		confidence += 0.25
	}
	if len(data.Attendees) > 0 {
		confidence += 0.1
	}
	if data.Recurrence != "" {
		confidence += 0.15
	}
	if confidence > 1 {
		confidence = 1
	}
	return data, confidence, true
}

func detectVideocall(text string) (platform string, ok bool) {
	lower := strings.ToLower(text)
	for _, word := range videocallWords {
		if strings.Contains(lower, word) {
			return word, true
		}
	}
	return "", false
}

func extractRecurrence(text string, lang Language) string {
	lower := strings.ToLower(text)
	for phrase, recurrence := range recurrenceWords[lang] {
		if strings.Contains(lower, phrase) {
			return recurrence
		}
	}
	return ""
}

func extractAttendees(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	attendees := make([]string, 0, len(matches))
	for _, m := range matches {
		attendees = append(attendees, m[1])
	}
	return attendees
}
