package types

import "time"

// JobStatus is the pipeline state-machine value persisted on a job record.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusParsing    JobStatus = "parsing"
	StatusGenerating JobStatus = "generating"
	StatusComposing  JobStatus = "composing"
	StatusRendering  JobStatus = "rendering"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether a job in this status will never transition again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobConfig carries the per-job generation settings chosen at submission.
type JobConfig struct {
	Model          string  `json:"model"`
	EnableVideo    bool    `json:"enable_video"`
	VoiceClone     bool    `json:"voice_clone"`
	TTSSpeed       float64 `json:"tts_speed"`
	VoiceID        string  `json:"voice_id,omitempty"`
	OutputLanguage string  `json:"output_language,omitempty"` // "zh" | "en"
}

// JobPaths maps artifact kinds to paths relative to the storage root.
type JobPaths map[string]string

// Artifact kinds used as JobPaths keys and by the file-serving interface.
const (
	ArtifactPDF       = "pdf"
	ArtifactDoc       = "doc"
	ArtifactSlides    = "slides"
	ArtifactRendered  = "rendered"
	ArtifactSlidesPDF = "slidesPdf"
	ArtifactPptx      = "pptx"
	ArtifactVideo     = "video"
	ArtifactCaptions  = "captions"
)

// Job is the persisted record for one conversion job. It is owned by the
// pipeline orchestrator and mutated through jobstore merge patches.
type Job struct {
	ID         string    `json:"id"`
	Status     JobStatus `json:"status"`
	Config     JobConfig `json:"config"`
	Paths      JobPaths  `json:"paths"`
	Error      string    `json:"error,omitempty"`
	ErrorStage string    `json:"error_stage,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SlideImage references an extracted figure placed on a slide.
// Images below 128x128 are dropped during validation.
type SlideImage struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Slide is one validated slide of the deck.
type Slide struct {
	Title        string       `json:"title"`
	TextContents string       `json:"text_contents"`
	Images       []SlideImage `json:"images"`
	Tables       []string     `json:"tables"`
	Transcript   string       `json:"transcript"`
}

// SlidesJSON is the strict slide document produced by the validator.
// It always contains at least one slide.
type SlidesJSON struct {
	Slides []Slide `json:"slides"`
}

// RenderedSlide is one manifest entry produced by layout synthesis and
// consumed by deck capture.
type RenderedSlide struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	HTMLPath string `json:"htmlPath"`
	Layout   string `json:"layout"`
}

// RenderManifest is written next to the rendered slide fragments.
type RenderManifest struct {
	Slides  []RenderedSlide `json:"slides"`
	Deck    string          `json:"deck"`
	Style   string          `json:"style"`
	Layouts []string        `json:"layouts"`
}

// SlideAudio is one narration manifest entry, ordered by slide index.
type SlideAudio struct {
	Index      int    `json:"index"`
	Path       string `json:"path"`
	Format     string `json:"format"`
	Transcript string `json:"transcript"`
}
