package layout

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed templates
var templates embed.FS

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// Render substitutes the resolved slot values into the schema's template.
// Placeholders support dotted paths into nested maps ({{image.path}});
// unresolved placeholders render empty.
func Render(schema Schema, slots map[string]any) (string, error) {
	data, err := templates.ReadFile("templates/layouts/" + schema.TemplateFile)
	if err != nil {
		return "", fmt.Errorf("missing layout template %s", schema.TemplateFile)
	}
	return Substitute(string(data), slots), nil
}

// Substitute performs {{key}} replacement over any template string.
func Substitute(template string, data map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.TrimSpace(strings.Trim(match, "{}"))
		value := resolvePath(data, key)
		if value == nil {
			return ""
		}
		return fmt.Sprintf("%v", value)
	})
}

func resolvePath(data map[string]any, key string) any {
	var current any = data
	for _, part := range strings.Split(key, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = obj[part]
		if !ok {
			return nil
		}
	}
	return current
}

// DeckTemplate returns the presentation shell every rendered slide fragment
// is assembled into.
func DeckTemplate() (string, error) {
	data, err := templates.ReadFile("templates/deck.html")
	if err != nil {
		return "", fmt.Errorf("missing deck template")
	}
	return string(data), nil
}

// StyleCSS returns a named stylesheet shipped with the templates.
func StyleCSS(name string) ([]byte, error) {
	data, err := templates.ReadFile("templates/styles/" + name + ".css")
	if err != nil {
		return nil, fmt.Errorf("unknown slide style %q", name)
	}
	return data, nil
}
