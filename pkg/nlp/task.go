package nlp

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

var taskIndicatorWords = map[Language][]string{
	LangEnglish:    {"task", "todo", "to do", "remind me to", "need to"},
	LangSpanish:    {"tarea", "pendiente", "recordarme", "necesito"},
	LangPortuguese: {"tarefa", "pendente", "lembrar", "preciso"},
}

var priorityWords = map[Language]map[string]string{
	LangEnglish: {
		"urgent": "high", "asap": "high", "high priority": "high",
		"low priority": "low", "whenever": "low",
	},
	LangSpanish: {
		"urgente": "high", "alta prioridad": "high",
		"baja prioridad": "low", "cuando puedas": "low",
	},
	LangPortuguese: {
		"urgente": "high", "alta prioridade": "high",
		"baixa prioridade": "low", "quando puder": "low",
	},
}

var hashtagPattern = regexp.MustCompile(`#(\w+)`)
var mentionPattern = regexp.MustCompile(`@(\w+)`)

// parseTask extracts a TaskData from free text (spec §4.5). Title is
// required; everything else is best-effort.
func parseTask(text string, lang Language, now time.Time) (TaskData, float64) {
	title := extractTitle(text, lang)
	description := strings.TrimSpace(strings.TrimPrefix(text, title))
	priority := extractPriority(text, lang)
	due, hasDue := parseDueDate(text, lang, now)
	tags := extractTags(text)
	assignee := extractAssignee(text)

	data := TaskData{
		Title:       title,
		Description: description,
		Priority:    priority,
		Tags:        tags,
		Assignee:    assignee,
	}
	if hasDue {
		d := due
		data.DueDate = &d
	}

	confidence := 0.4
	if title != "" {
		confidence += 0.3
	}
	if hasDue {
		confidence += 0.15
	}
	if priority != "" {
		confidence += 0.15
	}
	if confidence > 1 {
		confidence = 1
	}
	return data, confidence
}

// extractTitle takes the first line of text, stripping a leading
// task-indicator phrase in the detected language, and capitalizes it.
func extractTitle(text string, lang Language) string {
	lines := strings.SplitN(strings.TrimSpace(text), "\n", 2)
	line := lines[0]
	lower := strings.ToLower(line)

	for _, indicator := range taskIndicatorWords[lang] {
		if idx := strings.Index(lower, indicator); idx == 0 {
			line = strings.TrimSpace(line[len(indicator):])
			line = strings.TrimLeft(line, ":- ")
			break
		}
	}
	return capitalize(line)
}

func extractPriority(text string, lang Language) string {
	lower := strings.ToLower(text)
	for phrase, priority := range priorityWords[lang] {
		if strings.Contains(lower, phrase) {
			return priority
		}
	}
	return ""
}

func extractTags(text string) []string {
	return ExtractHashtags(text)
}

// ExtractHashtags returns every #-prefixed token in text, in order of
// appearance. Used both to tag a parsed entity and, by the action
// executor, to derive a hashtag trigger_value from raw message content.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}

func extractAssignee(text string) string {
	m := mentionPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
