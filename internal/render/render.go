// Package render implements the composing stage: per-slide layout synthesis
// through the text-completion service, deterministic template rendering,
// deck assembly and headless-browser capture.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"papervid/internal/config"
	"papervid/internal/layout"
	"papervid/internal/llm"
	"papervid/internal/prompts"
	"papervid/internal/slides"
	"papervid/internal/storage"
	"papervid/internal/types"
)

// Result describes the composing stage output; all paths are relative to
// the storage root, images are in slide order.
type Result struct {
	ManifestPath string
	PDFPath      string
	Images       []string
}

type Engine struct {
	completer   llm.Completer
	store       *storage.Store
	concurrency int
	useCache    bool
	style       string
	revealDist  string
}

func NewEngine(completer llm.Completer, store *storage.Store, cfg config.RenderConfig) *Engine {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	style := cfg.Style
	if style == "" {
		style = layout.DefaultStyle
	}
	return &Engine{
		completer:   completer,
		store:       store,
		concurrency: concurrency,
		useCache:    cfg.UseLLMCache,
		style:       style,
		revealDist:  cfg.RevealDist,
	}
}

// RenderSlides lays out every slide, assembles the deck and captures it to
// per-slide PNGs plus one PDF.
func (e *Engine) RenderSlides(ctx context.Context, jobID string, deck *types.SlidesJSON, jobCfg types.JobConfig) (*Result, error) {
	outputDir := e.store.OutputsDir(jobID)
	renderDir := filepath.Join(outputDir, "rendered-slides")
	if err := os.MkdirAll(renderDir, 0o755); err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}

	// Every failure mode here must trigger before any browser launches.
	if e.completer == nil {
		return nil, errors.New("no text-completion provider configured")
	}
	template, err := prompts.Get("render-slide.md")
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(e.revealDist); err != nil || !info.IsDir() {
		return nil, errors.New("reveal.js runtime not found: set render.reveal_dist or REVEAL_DIST")
	}
	sharedDist, err := e.ensureSharedRevealDist()
	if err != nil {
		return nil, err
	}

	system := prompts.Render(template, map[string]string{
		"languageHint": prompts.LanguageHint(jobCfg.OutputLanguage),
	})

	rendered, sections, err := e.synthesizeAll(ctx, outputDir, renderDir, deck, jobCfg, system)
	if err != nil {
		return nil, err
	}

	deckPath, err := e.writeDeck(renderDir, sections, sharedDist)
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(renderDir, "rendered-slides.json")
	manifest := types.RenderManifest{
		Slides:  rendered,
		Deck:    e.store.Rel(deckPath),
		Style:   e.style,
		Layouts: layout.IDs(),
	}
	if err := storage.WriteJSON(manifestPath, manifest); err != nil {
		return nil, err
	}

	pdfPath, images, err := e.captureDeck(ctx, deckPath, outputDir)
	if err != nil {
		return nil, err
	}
	log.Printf("[render-slides] captured %d slide images and deck PDF", len(images))

	return &Result{
		ManifestPath: e.store.Rel(manifestPath),
		PDFPath:      pdfPath,
		Images:       images,
	}, nil
}

// synthesizeAll runs the per-slide layout synthesis through a bounded worker
// pool. Workers pull the next unprocessed index until exhausted; results land
// in fixed-size slices ordered by original index, so output order never
// depends on completion order.
func (e *Engine) synthesizeAll(ctx context.Context, outputDir, renderDir string, deck *types.SlidesJSON, jobCfg types.JobConfig, systemPrompt string) ([]types.RenderedSlide, []string, error) {
	count := len(deck.Slides)
	rendered := make([]types.RenderedSlide, count)
	sections := make([]string, count)
	errs := make([]error, count)

	indexes := make(chan int)
	var wg sync.WaitGroup
	workers := e.concurrency
	if workers > count {
		workers = count
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				slide := deck.Slides[i]
				log.Printf("[render-slides] rendering slide %d/%d", i+1, count)
				html, layoutID, err := e.synthesizeSlide(ctx, outputDir, slide, jobCfg, systemPrompt, i)
				if err != nil {
					errs[i] = fmt.Errorf("slide %d: %w", i+1, err)
					continue
				}
				htmlPath := filepath.Join(renderDir, fmt.Sprintf("slide-%03d.html", i+1))
				if err := storage.WriteFileAtomic(htmlPath, []byte(html)); err != nil {
					errs[i] = err
					continue
				}
				sections[i] = html
				rendered[i] = types.RenderedSlide{
					Index:    i,
					Title:    slide.Title,
					HTMLPath: e.store.Rel(htmlPath),
					Layout:   layoutID,
				}
			}
		}()
	}
	for i := 0; i < count; i++ {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}
	return rendered, sections, nil
}

type layoutSelection struct {
	Layout string         `json:"layout"`
	Slots  map[string]any `json:"slots"`
}

func (e *Engine) synthesizeSlide(ctx context.Context, outputDir string, slide types.Slide, jobCfg types.JobConfig, systemPrompt string, index int) (string, string, error) {
	cachePath := filepath.Join(outputDir, "llm-cache", fmt.Sprintf("slide-%d.json", index))

	if e.useCache {
		var cached layoutSelection
		if err := storage.ReadJSON(cachePath, &cached); err == nil && cached.Layout != "" {
			schema, ok := layout.Lookup(cached.Layout)
			if ok {
				html, err := layout.Render(schema, cached.Slots)
				if err == nil {
					log.Printf("[render-slides] slide %d: using cached layout selection", index+1)
					return html, schema.ID, nil
				}
			}
		}
	}

	selection, err := e.requestLayout(ctx, outputDir, slide, jobCfg, systemPrompt)
	if err != nil {
		return "", "", err
	}

	schema, ok := layout.Lookup(selection.Layout)
	if !ok {
		return "", "", fmt.Errorf("missing or unknown layout template %q", selection.Layout)
	}
	resolved, err := layout.ResolveSlots(schema, selection.Slots)
	if err != nil {
		return "", "", err
	}

	if e.useCache {
		// Cached by slide index only; editing slide content without
		// clearing the cache serves the stale selection.
		if err := storage.WriteJSON(cachePath, layoutSelection{Layout: schema.ID, Slots: resolved}); err != nil {
			log.Printf("[render-slides] slide %d: could not cache layout selection: %v", index+1, err)
		}
	}

	html, err := layout.Render(schema, resolved)
	if err != nil {
		return "", "", err
	}
	return html, schema.ID, nil
}

func (e *Engine) requestLayout(ctx context.Context, outputDir string, slide types.Slide, jobCfg types.JobConfig, systemPrompt string) (*layoutSelection, error) {
	userPrompt, err := buildSlidePrompt(slide, outputDir)
	if err != nil {
		return nil, err
	}
	response, err := e.completer.Complete(ctx, llm.Request{
		Model:        jobCfg.Model,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
	})
	if err != nil {
		return nil, err
	}

	var selection layoutSelection
	if err := json.Unmarshal([]byte(slides.ExtractJSON(response)), &selection); err != nil {
		return nil, fmt.Errorf("layout selection is not valid JSON: %w", err)
	}
	if selection.Slots == nil {
		selection.Slots = map[string]any{}
	}
	return &selection, nil
}

// buildSlidePrompt serializes the slide content plus browser-loadable image
// URLs and the canvas dimensions for the layout model.
func buildSlidePrompt(slide types.Slide, baseDir string) (string, error) {
	type imageRef struct {
		Src    string `json:"src"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}
	images := make([]imageRef, 0, len(slide.Images))
	for _, img := range slide.Images {
		abs := img.Path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(baseDir, abs)
		}
		images = append(images, imageRef{
			Src:    fileURL(abs),
			Width:  img.Width,
			Height: img.Height,
		})
	}

	payload := map[string]any{
		"title":         slide.Title,
		"text_contents": slide.TextContents,
		"tables":        slide.Tables,
		"images":        images,
		"canvas":        map[string]int{"width": layout.SlideWidth, "height": layout.SlideHeight},
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return "Slide data (JSON):\n" + string(data), nil
}

func fileURL(abs string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

// ensureSharedRevealDist copies the reveal runtime into the storage root
// once, so deck files can reference it with stable file URLs.
func (e *Engine) ensureSharedRevealDist() (string, error) {
	shared := filepath.Join(e.store.Root(), "reveal", "dist")
	if info, err := os.Stat(shared); err == nil && info.IsDir() {
		return shared, nil
	}
	if err := os.MkdirAll(filepath.Dir(shared), 0o755); err != nil {
		return "", err
	}
	if err := os.CopyFS(shared, os.DirFS(e.revealDist)); err != nil && !os.IsExist(err) {
		return "", fmt.Errorf("copy reveal runtime: %w", err)
	}
	return shared, nil
}

func (e *Engine) writeDeck(renderDir string, sections []string, sharedDist string) (string, error) {
	stylesDir := filepath.Join(renderDir, "styles")
	layoutCSS, err := layout.StyleCSS("layout")
	if err != nil {
		return "", err
	}
	styleCSS, err := layout.StyleCSS(e.style)
	if err != nil {
		return "", err
	}
	if err := storage.WriteFileAtomic(filepath.Join(stylesDir, "layout.css"), layoutCSS); err != nil {
		return "", err
	}
	if err := storage.WriteFileAtomic(filepath.Join(stylesDir, e.style+".css"), styleCSS); err != nil {
		return "", err
	}

	template, err := layout.DeckTemplate()
	if err != nil {
		return "", err
	}
	revealBase := fileURL(sharedDist) + "/"
	html := layout.Substitute(template, map[string]any{
		"revealCss":      revealBase + "reveal.css",
		"revealThemeCss": revealBase + "theme/white.css",
		"revealPdfCss":   revealBase + "print/pdf.css",
		"revealJs":       revealBase + "reveal.js",
		"layoutCss":      "./styles/layout.css",
		"styleCss":       "./styles/" + e.style + ".css",
		"width":          layout.SlideWidth,
		"height":         layout.SlideHeight,
		"sections":       strings.Join(sections, "\n"),
	})

	deckPath := filepath.Join(renderDir, "slides.html")
	if err := storage.WriteFileAtomic(deckPath, []byte(html)); err != nil {
		return "", err
	}
	return deckPath, nil
}
