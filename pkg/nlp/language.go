package nlp

import (
	"regexp"
	"strings"
)

// stopwordSets score a handful of unambiguous function words per
// language — frequent enough to appear in almost any short chat message,
// rare enough outside their own language to keep false positives low.
// This is a closed, hand-built set rather than a statistical model: the
// spec only requires mapping into {en, es, pt}, not general-purpose
// language ID.
var stopwordSets = map[Language][]string{
	LangSpanish: {
		" el ", " la ", " los ", " las ", " de ", " que ", " para ", " con ",
		" por ", " mañana ", " hoy ", " reunión ", " necesito ", " cuenta ",
	},
	LangPortuguese: {
		" o ", " a ", " os ", " as ", " de ", " que ", " para ", " com ",
		" por ", " amanhã ", " hoje ", " reunião ", " preciso ", " conta ",
	},
	LangEnglish: {
		" the ", " and ", " for ", " with ", " tomorrow ", " today ",
		" meeting ", " need ", " bill ",
	},
}

var wordBoundary = regexp.MustCompile(`\s+`)

// DetectLanguage maps free text into the closed {en, es, pt} set (spec
// §4.5), defaulting to English when no language scores above zero or the
// input is ambiguous. langHint, if non-empty and one of the recognized
// codes, is returned directly without scoring (a caller-supplied
// non-"auto" value).
func DetectLanguage(text string, langHint string) Language {
	if lang, ok := parseLanguage(langHint); ok {
		return lang
	}

	padded := " " + strings.ToLower(wordBoundary.ReplaceAllString(text, " ")) + " "

	best := LangEnglish
	bestScore := 0
	tied := false
	for _, lang := range []Language{LangEnglish, LangSpanish, LangPortuguese} {
		score := 0
		for _, word := range stopwordSets[lang] {
			if strings.Contains(padded, word) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = lang
			tied = false
		} else if score == bestScore && score > 0 {
			tied = true
		}
	}
	if tied {
		return LangEnglish
	}
	return best
}

func parseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en":
		return LangEnglish, true
	case "es":
		return LangSpanish, true
	case "pt":
		return LangPortuguese, true
	default:
		return "", false
	}
}
