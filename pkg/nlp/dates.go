package nlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var enParser = buildEnglishParser()

func buildEnglishParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDueDate extracts a natural-language date/time reference from text
// (spec §4.5's due_date/date_time extraction), returning ok=false when
// nothing was found. English goes through olebedev/when's rule engine;
// Spanish and Portuguese — not covered by that library's bundled rule
// sets — go through a small hand-built relative-date vocabulary.
func parseDueDate(text string, lang Language, now time.Time) (time.Time, bool) {
	switch lang {
	case LangSpanish:
		if d, ok := parseAbsoluteDate(text, spanishMonthNames, now); ok {
			return d, true
		}
		return parseRelativeDate(text, spanishDateWords, now)
	case LangPortuguese:
		if d, ok := parseAbsoluteDate(text, portugueseMonthNames, now); ok {
			return d, true
		}
		return parseRelativeDate(text, portugueseDateWords, now)
	default:
		return parseEnglishDate(text, now)
	}
}

func parseEnglishDate(text string, now time.Time) (time.Time, bool) {
	r, err := enParser.Parse(text, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}

type dateWord struct {
	pattern *regexp.Regexp
	offset  func(now time.Time) time.Time
}

var timeOfDayPattern = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\b`)

func applyTimeOfDay(text string, day time.Time) time.Time {
	m := timeOfDayPattern.FindStringSubmatch(text)
	if m == nil {
		return day
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return time.Date(day.Year(), day.Month(), day.Day(), h, min, 0, 0, day.Location())
}

var spanishDateWords = []dateWord{
	{regexp.MustCompile(`(?i)\bhoy\b`), func(now time.Time) time.Time { return now }},
	{regexp.MustCompile(`(?i)\bpasado ma[ñn]ana\b`), func(now time.Time) time.Time { return now.AddDate(0, 0, 2) }},
	{regexp.MustCompile(`(?i)\bma[ñn]ana\b`), func(now time.Time) time.Time { return now.AddDate(0, 0, 1) }},
	{regexp.MustCompile(`(?i)\bla pr[oó]xima semana\b`), func(now time.Time) time.Time { return now.AddDate(0, 0, 7) }},
}

var portugueseDateWords = []dateWord{
	{regexp.MustCompile(`(?i)\bhoje\b`), func(now time.Time) time.Time { return now }},
	{regexp.MustCompile(`(?i)\bdepois de amanh(?:ã|a\b)`), func(now time.Time) time.Time { return now.AddDate(0, 0, 2) }},
	{regexp.MustCompile(`(?i)\bamanh(?:ã|a\b)`), func(now time.Time) time.Time { return now.AddDate(0, 0, 1) }},
	{regexp.MustCompile(`(?i)\bpr[oó]xima semana\b`), func(now time.Time) time.Time { return now.AddDate(0, 0, 7) }},
}

var spanishMonthNames = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"setiembre": time.September, "octubre": time.October, "noviembre": time.November,
	"diciembre": time.December,
}

var portugueseMonthNames = map[string]time.Month{
	"janeiro": time.January, "fevereiro": time.February, "março": time.March,
	"marco": time.March, "abril": time.April, "maio": time.May, "junho": time.June,
	"julho": time.July, "agosto": time.August, "setembro": time.September,
	"outubro": time.October, "novembro": time.November, "dezembro": time.December,
}

// absoluteDatePattern matches "15 enero", "15 de enero", "15 janeiro" or "15
// de janeiro" — a day number optionally followed by "de" then a month name,
// the month name itself supplied by the caller's language-specific map.
var absoluteDatePattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(?:de\s+)?([\p{L}]+)\b`)

// parseAbsoluteDate scans text for a day-number + month-name pair (spec §4.5
// S4's "vence 15 enero" style due date), rolling the year forward when the
// parsed date has already passed relative to now.
func parseAbsoluteDate(text string, months map[string]time.Month, now time.Time) (time.Time, bool) {
	for _, m := range absoluteDatePattern.FindAllStringSubmatch(text, -1) {
		day, err := strconv.Atoi(m[1])
		if err != nil || day < 1 || day > 31 {
			continue
		}
		month, ok := months[strings.ToLower(m[2])]
		if !ok {
			continue
		}
		year := now.Year()
		candidate := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
		if candidate.Before(now.Truncate(24 * time.Hour)) {
			candidate = time.Date(year+1, month, day, 0, 0, 0, 0, now.Location())
		}
		return applyTimeOfDay(text, candidate), true
	}
	return time.Time{}, false
}

func parseRelativeDate(text string, words []dateWord, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)
	for _, w := range words {
		if w.pattern.MatchString(lower) {
			day := w.offset(now)
			return applyTimeOfDay(text, day), true
		}
	}
	return time.Time{}, false
}
