// Package pipeline drives a job through its stages in order. Every stage is
// idempotent: a done predicate over the stage's artifacts decides whether the
// stage body runs at all, so a crashed or failed job resumes by re-walking
// the table and skipping whatever already completed.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"papervid/internal/docparse"
	"papervid/internal/jobstore"
	"papervid/internal/render"
	"papervid/internal/slides"
	"papervid/internal/srt"
	"papervid/internal/storage"
	"papervid/internal/types"
)

// startDelay gives the caller time to persist and return the job record
// before the first stage starts mutating it.
const startDelay = 100 * time.Millisecond

type SlideGenerator interface {
	Generate(ctx context.Context, markdown string, jobCfg types.JobConfig, imageMapping map[string]string) (*types.SlidesJSON, error)
}

type DeckRenderer interface {
	RenderSlides(ctx context.Context, jobID string, deck *types.SlidesJSON, jobCfg types.JobConfig) (*render.Result, error)
}

type Narrator interface {
	GenerateNarrations(ctx context.Context, jobID string, deck *types.SlidesJSON, jobCfg types.JobConfig) ([]types.SlideAudio, error)
	// NarrationsCurrent reports whether the persisted narration still matches
	// the deck and the job's generation parameters.
	NarrationsCurrent(jobID string, deck *types.SlidesJSON, jobCfg types.JobConfig) bool
}

type VideoAssembler interface {
	Render(ctx context.Context, jobID string, slideImages []string, slideAudios []types.SlideAudio) (string, error)
	ProbeDurations(ctx context.Context, slideAudios []types.SlideAudio) ([]float64, error)
	Transition() float64
}

type Orchestrator struct {
	jobs      jobstore.Store
	store     *storage.Store
	converter docparse.Converter
	generator SlideGenerator
	renderer  DeckRenderer
	narrator  Narrator
	assembler VideoAssembler
}

func New(jobs jobstore.Store, store *storage.Store, converter docparse.Converter, generator SlideGenerator, renderer DeckRenderer, narrator Narrator, assembler VideoAssembler) *Orchestrator {
	return &Orchestrator{
		jobs:      jobs,
		store:     store,
		converter: converter,
		generator: generator,
		renderer:  renderer,
		narrator:  narrator,
		assembler: assembler,
	}
}

type stage struct {
	name   string
	status types.JobStatus
	done   func(job *types.Job) bool
	run    func(ctx context.Context, job *types.Job) error
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{name: "parsing", status: types.StatusParsing, done: o.parsingDone, run: o.runParsing},
		{name: "generating", status: types.StatusGenerating, done: o.generatingDone, run: o.runGenerating},
		{name: "composing", status: types.StatusComposing, done: o.composingDone, run: o.runComposing},
		{name: "rendering", status: types.StatusRendering, done: o.renderingDone, run: o.runRendering},
	}
}

// Job returns the current persisted record.
func (o *Orchestrator) Job(jobID string) (*types.Job, error) {
	return o.jobs.Get(jobID)
}

// UpdateConfig merges changed generation settings into the job record, so a
// resume can re-narrate with a different speed, voice or language. The
// rendering predicate picks the change up through the narration cache hash.
func (o *Orchestrator) UpdateConfig(jobID string, patch jobstore.ConfigPatch) (*types.Job, error) {
	return o.jobs.Update(jobID, jobstore.Patch{Config: &patch})
}

// Start kicks off processing without blocking the caller.
func (o *Orchestrator) Start(ctx context.Context, jobID string) {
	go func() {
		time.Sleep(startDelay)
		if err := o.Run(ctx, jobID); err != nil {
			log.Printf("[pipeline] job %s failed: %v", jobID, err)
		}
	}()
}

// Run walks the stage table in order. A satisfied done predicate skips the
// stage body entirely; any stage error marks the job failed with the stage
// name and stops. A completed job is a no-op.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.jobs.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status == types.StatusCompleted {
		log.Printf("[pipeline] job %s already completed", jobID)
		return nil
	}
	if job.Status == types.StatusFailed {
		// Resuming clears the previous failure before re-walking the table.
		job, err = o.jobs.Update(jobID, jobstore.Patch{
			Status:     statusPtr(types.StatusPending),
			Error:      jobstore.String(""),
			ErrorStage: jobstore.String(""),
		})
		if err != nil {
			return err
		}
	}

	for _, st := range o.stages() {
		if st.done(job) {
			log.Printf("[pipeline] job %s: %s already satisfied, skipping", jobID, st.name)
			continue
		}

		job, err = o.jobs.Update(jobID, jobstore.StatusPatch(st.status))
		if err != nil {
			return err
		}
		log.Printf("[pipeline] job %s: %s", jobID, st.name)

		if err := st.run(ctx, job); err != nil {
			stageErr := fmt.Errorf("%s: %w", st.name, err)
			if _, patchErr := o.jobs.Update(jobID, jobstore.FailurePatch(st.name, err)); patchErr != nil {
				log.Printf("[pipeline] job %s: could not record failure: %v", jobID, patchErr)
			}
			return stageErr
		}

		// Reload so the next predicate sees the paths the stage recorded.
		job, err = o.jobs.Get(jobID)
		if err != nil {
			return err
		}
	}

	_, err = o.jobs.Update(jobID, jobstore.StatusPatch(types.StatusCompleted))
	if err != nil {
		return err
	}
	log.Printf("[pipeline] job %s completed", jobID)
	return nil
}

func statusPtr(s types.JobStatus) *types.JobStatus { return &s }

// --- parsing ---

func (o *Orchestrator) docPath(jobID string) string {
	return filepath.Join(o.store.OutputsDir(jobID), "doc.md")
}

func (o *Orchestrator) parsingDone(job *types.Job) bool {
	return storage.FileExists(o.docPath(job.ID))
}

func (o *Orchestrator) runParsing(ctx context.Context, job *types.Job) error {
	pdfRel, ok := job.Paths[types.ArtifactPDF]
	if !ok {
		return fmt.Errorf("job has no source PDF recorded")
	}
	outputDir := o.store.OutputsDir(job.ID)

	result, err := o.converter.Convert(ctx, o.store.Abs(pdfRel), outputDir)
	if err != nil {
		return err
	}

	docPath := o.docPath(job.ID)
	if err := storage.WriteFileAtomic(docPath, []byte(result.Markdown)); err != nil {
		return err
	}

	mapping := make(map[string]string, len(result.Images))
	for name, abs := range result.Images {
		mapping[name] = o.store.Rel(abs)
	}
	if err := storage.WriteJSON(filepath.Join(outputDir, "image-mapping.json"), mapping); err != nil {
		return err
	}

	_, err = o.jobs.Update(job.ID, jobstore.Patch{
		Paths: types.JobPaths{types.ArtifactDoc: o.store.Rel(docPath)},
	})
	return err
}

// --- generating ---

func (o *Orchestrator) slidesPath(jobID string) string {
	return filepath.Join(o.store.OutputsDir(jobID), "slides.json")
}

// loadDeck reads and re-validates the persisted slide document. Predicates
// use the same loader, so a corrupt or empty deck re-runs the stage rather
// than poisoning downstream ones.
func (o *Orchestrator) loadDeck(jobID string) (*types.SlidesJSON, error) {
	data, err := os.ReadFile(o.slidesPath(jobID))
	if err != nil {
		return nil, err
	}
	return slides.Normalize(data)
}

func (o *Orchestrator) generatingDone(job *types.Job) bool {
	_, err := o.loadDeck(job.ID)
	return err == nil
}

func (o *Orchestrator) runGenerating(ctx context.Context, job *types.Job) error {
	outputDir := o.store.OutputsDir(job.ID)
	markdown, err := os.ReadFile(o.docPath(job.ID))
	if err != nil {
		return fmt.Errorf("read parsed document: %w", err)
	}
	mapping := slides.LoadImageMapping(filepath.Join(outputDir, "image-mapping.json"))

	deck, err := o.generator.Generate(ctx, string(markdown), job.Config, mapping)
	if err != nil {
		return err
	}

	slidesPath := o.slidesPath(job.ID)
	if err := storage.WriteJSON(slidesPath, deck); err != nil {
		return err
	}
	_, err = o.jobs.Update(job.ID, jobstore.Patch{
		Paths: types.JobPaths{types.ArtifactSlides: o.store.Rel(slidesPath)},
	})
	return err
}

// --- composing ---

func (o *Orchestrator) manifestPath(jobID string) string {
	return filepath.Join(o.store.OutputsDir(jobID), "rendered-slides", "rendered-slides.json")
}

func (o *Orchestrator) slidesPDFPath(jobID string) string {
	return filepath.Join(o.store.OutputsDir(jobID), "slides.pdf")
}

// slideImages lists the captured slide PNGs in slide order, relative to the
// storage root.
func (o *Orchestrator) slideImages(jobID string) []string {
	dir := filepath.Join(o.store.OutputsDir(jobID), "slides-images")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var images []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasPrefix(name, "slide-") && strings.HasSuffix(name, ".png") {
			images = append(images, o.store.Rel(filepath.Join(dir, name)))
		}
	}
	sort.Strings(images)
	return images
}

func (o *Orchestrator) composingDone(job *types.Job) bool {
	deck, err := o.loadDeck(job.ID)
	if err != nil {
		return false
	}
	var manifest types.RenderManifest
	if err := storage.ReadJSON(o.manifestPath(job.ID), &manifest); err != nil {
		return false
	}
	if len(manifest.Slides) != len(deck.Slides) {
		return false
	}
	if !storage.FileExists(o.slidesPDFPath(job.ID)) {
		return false
	}
	return len(o.slideImages(job.ID)) == len(deck.Slides)
}

func (o *Orchestrator) runComposing(ctx context.Context, job *types.Job) error {
	deck, err := o.loadDeck(job.ID)
	if err != nil {
		return fmt.Errorf("load slide document: %w", err)
	}

	result, err := o.renderer.RenderSlides(ctx, job.ID, deck, job.Config)
	if err != nil {
		return err
	}

	_, err = o.jobs.Update(job.ID, jobstore.Patch{
		Paths: types.JobPaths{
			types.ArtifactRendered:  result.ManifestPath,
			types.ArtifactSlidesPDF: result.PDFPath,
		},
	})
	return err
}

// --- rendering ---

func (o *Orchestrator) captionsPath(jobID string) string {
	return filepath.Join(o.store.OutputsDir(jobID), "captions.srt")
}

func (o *Orchestrator) videoPath(jobID string) string {
	return filepath.Join(o.store.OutputsDir(jobID), "video.mp4")
}

func (o *Orchestrator) renderingDone(job *types.Job) bool {
	if !storage.FileExists(o.captionsPath(job.ID)) {
		return false
	}
	if job.Config.EnableVideo && !storage.FileExists(o.videoPath(job.ID)) {
		return false
	}
	// A captions/video file alone is not enough: a narration parameter
	// change (speed, voice, language) must force regeneration even when the
	// final artifacts exist.
	deck, err := o.loadDeck(job.ID)
	if err != nil {
		return false
	}
	return o.narrator.NarrationsCurrent(job.ID, deck, job.Config)
}

func (o *Orchestrator) runRendering(ctx context.Context, job *types.Job) error {
	deck, err := o.loadDeck(job.ID)
	if err != nil {
		return fmt.Errorf("load slide document: %w", err)
	}

	audios, err := o.narrator.GenerateNarrations(ctx, job.ID, deck, job.Config)
	if err != nil {
		return err
	}

	durations, err := o.assembler.ProbeDurations(ctx, audios)
	if err != nil {
		return err
	}
	captionsPath := o.captionsPath(job.ID)
	if err := srt.Generate(captionsPath, audios, durations, o.assembler.Transition()); err != nil {
		return err
	}
	paths := types.JobPaths{types.ArtifactCaptions: o.store.Rel(captionsPath)}

	if job.Config.EnableVideo {
		videoRel, err := o.assembler.Render(ctx, job.ID, o.slideImages(job.ID), audios)
		if err != nil {
			return err
		}
		paths[types.ArtifactVideo] = videoRel
	}

	_, err = o.jobs.Update(job.ID, jobstore.Patch{Paths: paths})
	return err
}

// --- submission ---

// Submit copies the uploaded PDF into the job's upload directory and creates
// the pending job record. Processing starts separately via Start or Run.
func (o *Orchestrator) Submit(jobID, sourcePDF string, cfg types.JobConfig) (*types.Job, error) {
	data, err := os.ReadFile(sourcePDF)
	if err != nil {
		return nil, fmt.Errorf("read source PDF: %w", err)
	}
	uploadPath := filepath.Join(o.store.UploadsDir(jobID), filepath.Base(sourcePDF))
	if err := storage.WriteFileAtomic(uploadPath, data); err != nil {
		return nil, fmt.Errorf("store source PDF: %w", err)
	}

	job := &types.Job{
		ID:     jobID,
		Status: types.StatusPending,
		Config: cfg,
		Paths:  types.JobPaths{types.ArtifactPDF: o.store.Rel(uploadPath)},
	}
	if err := o.jobs.Create(job); err != nil {
		return nil, err
	}
	return job, nil
}
