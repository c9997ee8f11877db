package slides

import (
	"fmt"
	"strings"

	"papervid/internal/types"
)

const maxFallbackSlides = 6

// OutlineDeck builds a deterministic deck from markdown structure alone, for
// offline and test environments where no completion provider is reachable.
// It always yields at least one slide.
func OutlineDeck(markdown, language string) *types.SlidesJSON {
	headings := takeHeadings(markdown)
	bullets := takeBullets(markdown)
	chinese := strings.EqualFold(strings.TrimSpace(language), "zh")

	if len(headings) == 0 {
		if chinese {
			headings = []string{"概述", "方法", "结果", "结论"}
		} else {
			headings = []string{"Overview", "Method", "Results", "Conclusion"}
		}
	}
	if len(headings) > maxFallbackSlides {
		headings = headings[:maxFallbackSlides]
	}
	if len(bullets) == 0 {
		if chinese {
			bullets = []string{"关键结论一", "关键结论二", "关键结论三"}
		} else {
			bullets = []string{"Key insight one", "Key insight two", "Key insight three"}
		}
	}

	body := strings.Join(bullets, "\n")
	deck := &types.SlidesJSON{}
	for _, title := range headings {
		transcript := fmt.Sprintf("Narrate the key points for %s in thirty to forty-five seconds.", strings.ToLower(title))
		if chinese {
			transcript = fmt.Sprintf("用 30-45 秒讲述%s的要点。", title)
		}
		deck.Slides = append(deck.Slides, types.Slide{
			Title:        escapeHTML(title),
			TextContents: escapeHTML(body),
			Images:       []types.SlideImage{},
			Tables:       []string{},
			Transcript:   transcript,
		})
	}
	return deck
}

func takeHeadings(markdown string) []string {
	var headings []string
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		if title := strings.TrimSpace(strings.TrimLeft(line, "# ")); title != "" {
			headings = append(headings, title)
		}
	}
	return headings
}

func takeBullets(markdown string) []string {
	var bullets []string
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		if item := strings.TrimSpace(strings.TrimPrefix(line, "- ")); item != "" {
			bullets = append(bullets, item)
		}
		if len(bullets) == 4 {
			break
		}
	}
	return bullets
}
