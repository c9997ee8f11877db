// Package prompts embeds the system prompts sent to the text-completion
// service and renders their {{placeholder}} variables.
package prompts

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed *.md
var files embed.FS

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// Get returns the named prompt template.
func Get(name string) (string, error) {
	data, err := files.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("missing prompt %s", name)
	}
	return string(data), nil
}

// Render substitutes {{key}} placeholders. Unknown keys render as empty
// strings so optional hints can be omitted.
func Render(template string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.TrimSpace(strings.Trim(match, "{}"))
		return vars[key]
	})
}

// LanguageHint converts a job's output language code into a prompt clause.
func LanguageHint(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "zh":
		return "Output language: Chinese."
	case "en":
		return "Output language: English."
	default:
		return ""
	}
}
