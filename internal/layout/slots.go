package layout

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var (
	codeFenceRe = regexp.MustCompile("(?is)```(?:html)?\\s*(.*?)```")
	docTagRe    = regexp.MustCompile(`(?i)</?(html|body)[^>]*>`)
)

// ResolveSlots validates the model-returned slot values against the schema
// and returns the resolved substitution map. Image slots become nested maps
// so templates can address {{image.path}} and friends. A missing required
// slot fails the whole slide, never a best-effort default.
func ResolveSlots(schema Schema, raw map[string]any) (map[string]any, error) {
	resolved := map[string]any{}
	for _, slot := range schema.Slots {
		value, err := resolveSlot(schema, slot, raw[slot.Name])
		if err != nil {
			return nil, err
		}
		resolved[slot.Name] = value
	}
	return resolved, nil
}

func resolveSlot(schema Schema, slot Slot, raw any) (any, error) {
	if slot.Kind == SlotImage {
		return resolveImageSlot(schema, slot, raw)
	}

	value := stringValue(raw)
	if slot.Required && strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("layout %q requires slot %q", schema.ID, slot.Name)
	}
	if slot.Kind == SlotText {
		return escapeHTML(strings.TrimSpace(value)), nil
	}
	return sanitizeHTML(value), nil
}

func resolveImageSlot(schema Schema, slot Slot, raw any) (any, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		if slot.Required {
			return nil, fmt.Errorf("layout %q requires slot %q", schema.ID, slot.Name)
		}
		return nil, nil
	}

	path := strings.TrimSpace(stringValue(obj["path"]))
	width, wok := numberValue(obj["width"])
	height, hok := numberValue(obj["height"])
	if path == "" || !wok || !hok {
		return nil, fmt.Errorf("layout %q requires image slot %q with path, width, height", schema.ID, slot.Name)
	}

	caption := strings.TrimSpace(stringValue(obj["caption"]))
	return map[string]any{
		"path":    path,
		"width":   int(math.Round(width)),
		"height":  int(math.Round(height)),
		"caption": escapeHTML(caption),
	}, nil
}

func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}

func numberValue(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, !math.IsNaN(value) && !math.IsInf(value, 0)
	case int:
		return float64(value), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%f", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func escapeHTML(value string) string {
	value = strings.ReplaceAll(value, "&", "&amp;")
	value = strings.ReplaceAll(value, "<", "&lt;")
	return strings.ReplaceAll(value, ">", "&gt;")
}

// sanitizeHTML keeps model-produced fragments embeddable: code fences are
// unwrapped and stray document-level tags removed.
func sanitizeHTML(value string) string {
	if match := codeFenceRe.FindStringSubmatch(value); match != nil {
		value = match[1]
	}
	return strings.TrimSpace(docTagRe.ReplaceAllString(value, ""))
}
