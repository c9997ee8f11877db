// Package video implements the assembly stage: one encoded segment per
// slide (still image + narration audio), then a stream-copy concatenation
// into the final video.
package video

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"papervid/internal/config"
	"papervid/internal/storage"
	"papervid/internal/types"
)

type Assembler struct {
	store      *storage.Store
	transition float64
	fps        int
	run        Runner
}

func NewAssembler(store *storage.Store, cfg config.VideoConfig) *Assembler {
	transition := cfg.TransitionSeconds
	if transition < 0 {
		transition = 0
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	return &Assembler{store: store, transition: transition, fps: fps, run: runCommand}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// probeDuration measures the exact audio duration in seconds via ffprobe.
func (a *Assembler) probeDuration(ctx context.Context, audioPath string) (float64, error) {
	out, err := a.run(ctx, "", "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	if err != nil {
		return 0, err
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("invalid audio duration for %s", audioPath)
	}
	return duration, nil
}

// ProbeDurations measures every narration clip in manifest order. Captions
// are timed from these measurements, so they stay usable even when video
// assembly is disabled for the job.
func (a *Assembler) ProbeDurations(ctx context.Context, slideAudios []types.SlideAudio) ([]float64, error) {
	durations := make([]float64, len(slideAudios))
	for i, audio := range slideAudios {
		duration, err := a.probeDuration(ctx, a.store.Abs(audio.Path))
		if err != nil {
			return nil, err
		}
		durations[i] = duration
	}
	return durations, nil
}

// Transition returns the inter-slide pad in seconds.
func (a *Assembler) Transition() float64 { return a.transition }

// Render encodes one segment per slide and concatenates them in slide
// order. Image, audio and slide counts must already agree; any mismatch is
// a hard failure before any encoding begins.
func (a *Assembler) Render(ctx context.Context, jobID string, slideImages []string, slideAudios []types.SlideAudio) (string, error) {
	if len(slideImages) == 0 {
		return "", fmt.Errorf("no slide images available to render video")
	}
	if len(slideAudios) == 0 {
		return "", fmt.Errorf("no slide narration audio available to render video")
	}
	if len(slideImages) != len(slideAudios) {
		return "", fmt.Errorf("slide image count (%d) does not match audio count (%d)", len(slideImages), len(slideAudios))
	}

	outputDir := a.store.OutputsDir(jobID)
	videoDir := filepath.Join(outputDir, "video")
	if err := os.RemoveAll(videoDir); err != nil {
		return "", fmt.Errorf("clear video dir: %w", err)
	}
	if err := os.MkdirAll(videoDir, 0o755); err != nil {
		return "", err
	}

	segmentNames := make([]string, 0, len(slideImages))
	for index := range slideImages {
		imagePath := a.store.Abs(slideImages[index])
		audioPath := a.store.Abs(slideAudios[index].Path)

		audioDuration, err := a.probeDuration(ctx, audioPath)
		if err != nil {
			return "", err
		}
		totalDuration := audioDuration + a.transition

		segmentName := fmt.Sprintf("segment-%03d.mp4", index+1)
		segmentPath := filepath.Join(videoDir, segmentName)
		log.Printf("[video] rendering segment %d (%ss)", index+1, formatSeconds(totalDuration))

		// The audio tail is padded by the transition length so video and
		// audio streams end together under -shortest.
		_, err = a.run(ctx, "", "ffmpeg", "-y",
			"-loop", "1",
			"-t", formatSeconds(totalDuration),
			"-i", imagePath,
			"-i", audioPath,
			"-c:v", "libx264",
			"-tune", "stillimage",
			"-r", strconv.Itoa(a.fps),
			"-pix_fmt", "yuv420p",
			"-c:a", "aac",
			"-ar", "48000",
			"-ac", "2",
			"-af", "apad=pad_dur="+formatSeconds(a.transition),
			"-shortest",
			segmentPath,
		)
		if err != nil {
			return "", fmt.Errorf("encode segment %d: %w", index+1, err)
		}
		segmentNames = append(segmentNames, segmentName)
	}

	lines := make([]string, 0, len(segmentNames))
	for _, name := range segmentNames {
		lines = append(lines, fmt.Sprintf("file '%s'", name))
	}
	concatListPath := filepath.Join(videoDir, "concat.txt")
	if err := storage.WriteFileAtomic(concatListPath, []byte(strings.Join(lines, "\n"))); err != nil {
		return "", err
	}

	videoPath := filepath.Join(outputDir, "video.mp4")
	_, err := a.run(ctx, videoDir, "ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", concatListPath,
		"-c", "copy",
		videoPath,
	)
	if err != nil {
		return "", fmt.Errorf("concatenate segments: %w", err)
	}

	return a.store.Rel(videoPath), nil
}
