package nlp

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// amountPattern matches an optional currency symbol/code followed by a
// decimal number, e.g. "$45.00", "45.00 USD", "S/ 120.50".
var amountPattern = regexp.MustCompile(`(?i)(USD|EUR|MXN|PEN|BRL|\$|S/\.?|R\$)?\s*([0-9]+(?:[.,][0-9]{1,2})?)\s*(USD|EUR|MXN|PEN|BRL)?`)

var billCategoryWords = map[Language]map[string]string{
	LangEnglish: {
		"electricity": "utilities", "water": "utilities", "internet": "utilities",
		"rent": "housing", "phone": "utilities", "insurance": "insurance",
	},
	LangSpanish: {
		"luz": "utilities", "agua": "utilities", "internet": "utilities",
		"renta": "housing", "alquiler": "housing", "teléfono": "utilities", "seguro": "insurance",
	},
	LangPortuguese: {
		"luz": "utilities", "água": "utilities", "internet": "utilities",
		"aluguel": "housing", "telefone": "utilities", "seguro": "insurance",
	},
}

var vendorPrepositions = map[Language]string{
	LangEnglish:    "from",
	LangSpanish:    "de",
	LangPortuguese: "de",
}

// parseBill extracts one or more vendor+amount pairs from text (spec
// §4.5). A single match yields BillData; two or more yield
// MultipleBillsData with a computed Total. ok is false when no amount
// was found at all.
func parseBill(text string, lang Language, now time.Time, defaultCurrency string) (any, float64, bool) {
	lines := splitBillLines(text)

	var bills []BillData
	for _, line := range lines {
		bill, found := parseBillLine(line, lang, now, defaultCurrency)
		if found {
			bills = append(bills, bill)
		}
	}
	if len(bills) == 0 {
		return nil, 0, false
	}
	if len(bills) == 1 {
		confidence := billConfidence(bills[0])
		return bills[0], confidence, true
	}

	total := decimal.Zero
	for _, b := range bills {
		total = total.Add(b.Amount)
	}
	return MultipleBillsData{Bills: bills, Total: total}, 0.75, true
}

// splitBillLines treats newlines and semicolons as separate bill entries
// so a single message can report several bills at once.
func splitBillLines(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ';'
	})
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return []string{text}
	}
	return lines
}

func parseBillLine(line string, lang Language, now time.Time, defaultCurrency string) (BillData, bool) {
	m := amountPattern.FindStringSubmatch(line)
	if m == nil || m[2] == "" {
		return BillData{}, false
	}
	amountStr := strings.Replace(m[2], ",", ".", 1)
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return BillData{}, false
	}

	currency := defaultCurrency
	if m[1] != "" {
		currency = normalizeCurrency(m[1])
	} else if m[3] != "" {
		currency = normalizeCurrency(m[3])
	}

	due, _ := parseDueDate(line, lang, now)
	var dueDate *time.Time
	if !due.IsZero() {
		d := due
		dueDate = &d
	}

	return BillData{
		Vendor:   extractVendor(line, lang),
		Amount:   amount,
		Currency: currency,
		DueDate:  dueDate,
		Category: extractCategory(line, lang),
	}, true
}

func normalizeCurrency(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "$":
		return "USD"
	case "R$":
		return "BRL"
	default:
		s := strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(raw), "."))
		if s == "S/" {
			return "PEN"
		}
		return s
	}
}

func extractVendor(line string, lang Language) string {
	prep := vendorPrepositions[lang]
	lower := strings.ToLower(line)
	if idx := strings.Index(lower, " "+prep+" "); idx != -1 {
		rest := strings.TrimSpace(line[idx+len(prep)+2:])
		if v := vendorFromWords(rest); v != "" {
			return v
		}
	}
	return extractVendorAfterCategory(line, lang)
}

// extractVendorAfterCategory handles bills with no preposition at all, e.g.
// "Pagar luz CFE $890 vence 15 enero": the vendor name sits directly after
// the category word ("luz") rather than after "de"/"from".
func extractVendorAfterCategory(line string, lang Language) string {
	lower := strings.ToLower(line)
	for word := range billCategoryWords[lang] {
		idx := strings.Index(lower, word)
		if idx == -1 {
			continue
		}
		rest := line[idx+len(word):]
		if v := firstWordVendor(rest); v != "" {
			return v
		}
	}
	return ""
}

// firstWordVendor returns just the single word immediately following the
// category noun, e.g. "CFE" out of " CFE $890 vence 15 enero" — juxtaposed
// phrasing has no delimiter marking where the vendor name ends, so only the
// adjacent word is safe to take.
func firstWordVendor(rest string) string {
	fields := strings.Fields(strings.TrimSpace(rest))
	if len(fields) == 0 {
		return ""
	}
	word := fields[0]
	if strings.ContainsAny(word, "0123456789$") {
		return ""
	}
	return capitalize(word)
}

// vendorFromWords trims a trailing phrase down to its leading 1-3 word
// vendor name, stripping amounts first so "CFE $890" yields "CFE".
func vendorFromWords(rest string) string {
	rest = strings.TrimSpace(rest)
	rest = amountPattern.ReplaceAllString(rest, "")
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	if len(fields) > 3 {
		fields = fields[:3]
	}
	return capitalize(strings.Join(fields, " "))
}

func extractCategory(line string, lang Language) string {
	lower := strings.ToLower(line)
	for word, category := range billCategoryWords[lang] {
		if strings.Contains(lower, word) {
			return category
		}
	}
	return ""
}

func billConfidence(b BillData) float64 {
	confidence := 0.5
	if b.Vendor != "" {
		confidence += 0.25
	}
	if b.Category != "" {
		confidence += 0.1
	}
	if b.DueDate != nil {
		confidence += 0.15
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
