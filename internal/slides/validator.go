// Package slides converts loosely-typed model output into the strict slide
// document the rest of the pipeline consumes. This is the single
// normalization boundary: nothing downstream sees unvalidated JSON.
package slides

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"papervid/internal/types"
)

// Slides smaller than this on either edge are decorative and dropped.
const minImageEdge = 128

var ErrNoValidSlides = errors.New("slide document contained no valid slides")

// ExtractJSON recovers a single JSON object from a model response that may
// be wrapped in prose or code fences, by taking the outermost balanced
// {...} span.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start != -1 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}

// escapeHTML neutralizes markup in model text before it reaches a template.
// Only angle brackets are escaped so entities already present survive.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

type rawImage struct {
	Path   any `json:"path"`
	Width  any `json:"width"`
	Height any `json:"height"`
}

type rawSlide struct {
	Title        any        `json:"title"`
	TextContents any        `json:"text_contents"`
	Images       []rawImage `json:"images"`
	Tables       []any      `json:"tables"`
	Transcript   any        `json:"transcript"`
}

type rawDoc struct {
	Slides []rawSlide `json:"slides"`
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asPixels(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Normalize validates one model-returned JSON document. Slides missing a
// required field are dropped; if that drops every slide the whole document
// is rejected. Only whitespace trimming and HTML escaping repair a slide —
// nothing is fabricated.
func Normalize(payload []byte) (*types.SlidesJSON, error) {
	var doc rawDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("slide document is not valid JSON: %w", err)
	}
	if len(doc.Slides) == 0 {
		return nil, ErrNoValidSlides
	}

	out := make([]types.Slide, 0, len(doc.Slides))
	for _, raw := range doc.Slides {
		title := asString(raw.Title)
		text := asString(raw.TextContents)
		transcript := asString(raw.Transcript)
		if title == "" || text == "" || transcript == "" {
			continue
		}

		slide := types.Slide{
			Title:        escapeHTML(title),
			TextContents: escapeHTML(text),
			Images:       normalizeImages(raw.Images),
			Tables:       normalizeTables(raw.Tables),
			Transcript:   transcript,
		}
		out = append(out, slide)
	}

	if len(out) == 0 {
		return nil, ErrNoValidSlides
	}
	return &types.SlidesJSON{Slides: out}, nil
}

func normalizeImages(images []rawImage) []types.SlideImage {
	out := []types.SlideImage{}
	for _, raw := range images {
		path := asString(raw.Path)
		width, wok := asPixels(raw.Width)
		height, hok := asPixels(raw.Height)
		if path == "" || !wok || !hok {
			continue
		}
		if width < minImageEdge || height < minImageEdge {
			continue
		}
		out = append(out, types.SlideImage{Path: path, Width: width, Height: height})
	}
	return out
}

func normalizeTables(tables []any) []string {
	out := []string{}
	for _, raw := range tables {
		if s := asString(raw); s != "" {
			out = append(out, s)
		}
	}
	return out
}
