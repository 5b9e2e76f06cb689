package action

import "strings"

// TemplateContext supplies the values a confirmation/error template may
// reference (spec §4.6: "{{sender}}, {{content}}, {{reaction}}, {{chat}},
// {{date}}, {{rule_name}}").
type TemplateContext struct {
	Sender   string
	Content  string
	Reaction string
	Chat     string
	Date     string
	RuleName string
}

var templatePlaceholders = []string{
	"{{sender}}", "{{content}}", "{{reaction}}", "{{chat}}", "{{date}}", "{{rule_name}}",
}

// renderTemplate substitutes every recognized placeholder in tmpl with its
// TemplateContext value. Unknown placeholders (anything not in the fixed
// set above) are left literal, per spec §4.6.
func renderTemplate(tmpl string, tc TemplateContext) string {
	values := map[string]string{
		"{{sender}}":    tc.Sender,
		"{{content}}":   tc.Content,
		"{{reaction}}":  tc.Reaction,
		"{{chat}}":      tc.Chat,
		"{{date}}":      tc.Date,
		"{{rule_name}}": tc.RuleName,
	}

	out := tmpl
	for _, placeholder := range templatePlaceholders {
		out = strings.ReplaceAll(out, placeholder, values[placeholder])
	}
	return out
}
