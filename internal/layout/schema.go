// Package layout holds the fixed registry of slide layout schemas, their
// slot validation rules and the deterministic HTML templates they render
// through. The registry is not per-job data: a model-chosen layout name
// must match one of these entries or synthesis fails.
package layout

import (
	"sort"
	"strings"
)

// Canvas dimensions every slide is laid out and captured at.
const (
	SlideWidth   = 1920
	SlideHeight  = 1080
	DefaultStyle = "academic"
)

type SlotKind string

const (
	SlotText  SlotKind = "text"
	SlotHTML  SlotKind = "html"
	SlotImage SlotKind = "image"
)

// Slot is a named, typed insertion point within a layout template.
type Slot struct {
	Name     string
	Kind     SlotKind
	Required bool
}

type Schema struct {
	ID           string
	TemplateFile string
	Slots        []Slot
}

var registry = map[string]Schema{
	"text-focus": {
		ID:           "text-focus",
		TemplateFile: "text-focus.html",
		Slots: []Slot{
			{Name: "title", Kind: SlotText, Required: true},
			{Name: "body", Kind: SlotHTML, Required: true},
		},
	},
	"image-right": {
		ID:           "image-right",
		TemplateFile: "image-right.html",
		Slots: []Slot{
			{Name: "title", Kind: SlotText, Required: true},
			{Name: "body", Kind: SlotHTML, Required: true},
			{Name: "image", Kind: SlotImage, Required: true},
		},
	},
	"image-left": {
		ID:           "image-left",
		TemplateFile: "image-left.html",
		Slots: []Slot{
			{Name: "title", Kind: SlotText, Required: true},
			{Name: "body", Kind: SlotHTML, Required: true},
			{Name: "image", Kind: SlotImage, Required: true},
		},
	},
	"image-bottom": {
		ID:           "image-bottom",
		TemplateFile: "image-bottom.html",
		Slots: []Slot{
			{Name: "title", Kind: SlotText, Required: true},
			{Name: "body", Kind: SlotHTML, Required: true},
			{Name: "image", Kind: SlotImage, Required: true},
		},
	},
	"table-focus": {
		ID:           "table-focus",
		TemplateFile: "table-focus.html",
		Slots: []Slot{
			{Name: "title", Kind: SlotText, Required: true},
			{Name: "table", Kind: SlotHTML, Required: true},
			{Name: "note", Kind: SlotHTML, Required: false},
		},
	},
	"two-columns": {
		ID:           "two-columns",
		TemplateFile: "two-columns.html",
		Slots: []Slot{
			{Name: "title", Kind: SlotText, Required: true},
			{Name: "left", Kind: SlotHTML, Required: true},
			{Name: "right", Kind: SlotHTML, Required: true},
		},
	},
	"table-and-figure": {
		ID:           "table-and-figure",
		TemplateFile: "table-and-figure.html",
		Slots: []Slot{
			{Name: "title", Kind: SlotText, Required: true},
			{Name: "table", Kind: SlotHTML, Required: true},
			{Name: "image", Kind: SlotImage, Required: true},
			{Name: "note", Kind: SlotHTML, Required: false},
		},
	},
}

// Lookup resolves a model-chosen layout name. Names are matched
// case-insensitively after trimming.
func Lookup(name string) (Schema, bool) {
	schema, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return schema, ok
}

// IDs lists every registered layout, sorted for stable manifests.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
