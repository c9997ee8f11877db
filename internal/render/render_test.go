package render

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papervid/internal/config"
	"papervid/internal/llm"
	"papervid/internal/storage"
	"papervid/internal/types"
)

type stubCompleter struct {
	calls    atomic.Int64
	response func(req llm.Request) (string, error)
}

func (s *stubCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.calls.Add(1)
	return s.response(req)
}

func layoutResponse(title string) string {
	return fmt.Sprintf(`{"layout": "text-focus", "slots": {"title": %q, "body": "<p>body</p>"}}`, title)
}

func testDeck(count int) *types.SlidesJSON {
	deck := &types.SlidesJSON{}
	for i := 0; i < count; i++ {
		deck.Slides = append(deck.Slides, types.Slide{
			Title:        fmt.Sprintf("Slide %d", i+1),
			TextContents: "body",
			Transcript:   "talk",
		})
	}
	return deck
}

func newTestEngine(t *testing.T, completer llm.Completer, useCache bool) (*Engine, *storage.Store) {
	t.Helper()
	store := storage.New(t.TempDir())
	engine := NewEngine(completer, store, config.RenderConfig{
		Concurrency: 4,
		UseLLMCache: useCache,
	})
	return engine, store
}

func TestSynthesizeAllPreservesSlideOrder(t *testing.T) {
	stub := &stubCompleter{response: func(req llm.Request) (string, error) {
		// Echo the slide title back so order is observable.
		return layoutResponse("echo"), nil
	}}
	engine, store := newTestEngine(t, stub, false)

	outputDir := store.OutputsDir("job-1")
	renderDir := filepath.Join(outputDir, "rendered-slides")
	deck := testDeck(5)

	rendered, sections, err := engine.synthesizeAll(context.Background(), outputDir, renderDir, deck, types.JobConfig{Model: "gpt-test"}, "system")
	require.NoError(t, err)
	require.Len(t, rendered, 5)
	require.Len(t, sections, 5)

	for i, slide := range rendered {
		assert.Equal(t, i, slide.Index)
		assert.Equal(t, fmt.Sprintf("Slide %d", i+1), slide.Title)
		assert.Equal(t, "text-focus", slide.Layout)
		assert.True(t, storage.FileExists(store.Abs(slide.HTMLPath)), "fragment for slide %d", i+1)
		assert.NotEmpty(t, sections[i])
	}
	assert.Equal(t, int64(5), stub.calls.Load())
}

func TestSynthesizeAllSurfacesFirstSlideError(t *testing.T) {
	stub := &stubCompleter{response: func(req llm.Request) (string, error) {
		return `{"layout": "does-not-exist", "slots": {}}`, nil
	}}
	engine, store := newTestEngine(t, stub, false)

	outputDir := store.OutputsDir("job-1")
	_, _, err := engine.synthesizeAll(context.Background(), outputDir, filepath.Join(outputDir, "rendered-slides"), testDeck(2), types.JobConfig{}, "system")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slide 1:")
	assert.Contains(t, err.Error(), "unknown layout")
}

func TestSynthesizeSlideUsesCache(t *testing.T) {
	stub := &stubCompleter{response: func(req llm.Request) (string, error) {
		return layoutResponse("cached"), nil
	}}
	engine, store := newTestEngine(t, stub, true)

	outputDir := store.OutputsDir("job-1")
	slide := testDeck(1).Slides[0]

	html, layoutID, err := engine.synthesizeSlide(context.Background(), outputDir, slide, types.JobConfig{}, "system", 0)
	require.NoError(t, err)
	assert.Equal(t, "text-focus", layoutID)
	assert.Contains(t, html, "cached")
	require.Equal(t, int64(1), stub.calls.Load())

	// Second synthesis of the same index never calls the provider.
	html2, _, err := engine.synthesizeSlide(context.Background(), outputDir, slide, types.JobConfig{}, "system", 0)
	require.NoError(t, err)
	assert.Equal(t, html, html2)
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestSynthesizeSlideRejectsMalformedSelection(t *testing.T) {
	stub := &stubCompleter{response: func(req llm.Request) (string, error) {
		return "not json at all", nil
	}}
	engine, store := newTestEngine(t, stub, false)

	_, _, err := engine.synthesizeSlide(context.Background(), store.OutputsDir("job-1"), testDeck(1).Slides[0], types.JobConfig{}, "system", 0)
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestRenderSlidesRefusesWithoutRuntime(t *testing.T) {
	stub := &stubCompleter{response: func(req llm.Request) (string, error) {
		return layoutResponse("x"), nil
	}}
	store := storage.New(t.TempDir())
	engine := NewEngine(stub, store, config.RenderConfig{
		Concurrency: 1,
		RevealDist:  filepath.Join(t.TempDir(), "does-not-exist"),
	})

	_, err := engine.RenderSlides(context.Background(), "job-1", testDeck(1), types.JobConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reveal.js runtime not found")
	// No completion call happens before the preflight check.
	assert.Equal(t, int64(0), stub.calls.Load())
}

func TestRenderSlidesRefusesWithoutProvider(t *testing.T) {
	store := storage.New(t.TempDir())
	engine := NewEngine(nil, store, config.RenderConfig{Concurrency: 1})

	_, err := engine.RenderSlides(context.Background(), "job-1", testDeck(1), types.JobConfig{})
	assert.ErrorContains(t, err, "no text-completion provider configured")
}

func TestBuildSlidePromptEmbedsFileURLs(t *testing.T) {
	slide := types.Slide{
		Title:        "Fig",
		TextContents: "body",
		Images:       []types.SlideImage{{Path: "images/fig1.png", Width: 640, Height: 480}},
	}
	prompt, err := buildSlidePrompt(slide, "/data/outputs/job-1")
	require.NoError(t, err)
	assert.Contains(t, prompt, "file:///data/outputs/job-1/images/fig1.png")
	assert.Contains(t, prompt, `"width": 1920`)
	assert.Contains(t, prompt, `"height": 1080`)
}
