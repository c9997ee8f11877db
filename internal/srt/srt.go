// Package srt exports slide narration as SubRip captions, one cue per
// slide, timed from the measured narration durations.
package srt

import (
	"fmt"
	"strings"

	"papervid/internal/storage"
	"papervid/internal/types"
)

func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	ms := int((seconds - float64(total)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", total/3600, (total%3600)/60, total%60, ms)
}

// Generate writes the caption file. durations must align with audios by
// index; each cue spans the slide's narration plus the inter-slide
// transition pad, matching the assembled video timeline.
func Generate(path string, audios []types.SlideAudio, durations []float64, transition float64) error {
	if len(audios) != len(durations) {
		return fmt.Errorf("caption cue count (%d) does not match duration count (%d)", len(audios), len(durations))
	}

	var cursor float64
	var b strings.Builder
	for i, audio := range audios {
		span := durations[i] + transition
		b.WriteString(fmt.Sprintf("%d\n", i+1))
		b.WriteString(fmt.Sprintf("%s --> %s\n", formatTimestamp(cursor), formatTimestamp(cursor+span)))
		b.WriteString(audio.Transcript)
		b.WriteString("\n\n")
		cursor += span
	}

	return storage.WriteFileAtomic(path, []byte(b.String()))
}
