package nlp

import "strings"

var noteIndicatorWords = map[Language][]string{
	LangEnglish:    {"note", "note to self", "remember that", "fyi"},
	LangSpanish:    {"nota", "recuerda que", "para recordar"},
	LangPortuguese: {"nota", "lembre que", "para lembrar"},
}

// parseNote extracts a NoteData from free text (spec §4.5). Unlike
// parseTask, a note's "title" is just its first line — notes have no
// due date or priority to weigh confidence against, so confidence is
// driven by whether content extends past the title line and whether
// any note-indicator phrase was present at all.
func parseNote(text string, lang Language) (NoteData, float64) {
	trimmed := strings.TrimSpace(text)
	lines := strings.SplitN(trimmed, "\n", 2)

	title := stripIndicator(lines[0], lang)
	content := trimmed
	if len(lines) > 1 {
		content = strings.TrimSpace(lines[1])
	}

	data := NoteData{
		Title:   capitalize(title),
		Content: content,
		Tags:    extractTags(text),
	}

	confidence := 0.5
	if hasIndicator(trimmed, lang) {
		confidence += 0.3
	}
	if len(lines) > 1 {
		confidence += 0.2
	}
	if confidence > 1 {
		confidence = 1
	}
	return data, confidence
}

func stripIndicator(line string, lang Language) string {
	lower := strings.ToLower(line)
	for _, indicator := range noteIndicatorWords[lang] {
		if idx := strings.Index(lower, indicator); idx == 0 {
			line = strings.TrimSpace(line[len(indicator):])
			line = strings.TrimLeft(line, ":- ")
			break
		}
	}
	return line
}

func hasIndicator(text string, lang Language) bool {
	lower := strings.ToLower(text)
	for _, indicator := range noteIndicatorWords[lang] {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
