package tts

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papervid/internal/config"
	"papervid/internal/storage"
	"papervid/internal/types"
)

type stubSynth struct {
	calls    int
	requests []SpeechRequest
}

func (s *stubSynth) Synthesize(ctx context.Context, req SpeechRequest) (*Audio, error) {
	s.calls++
	s.requests = append(s.requests, req)
	return &Audio{Data: []byte("RIFF-audio-" + req.Text), Format: "wav"}, nil
}

func (s *stubSynth) Model() string { return "test-tts" }

func testDeck() *types.SlidesJSON {
	return &types.SlidesJSON{Slides: []types.Slide{
		{Title: "One", TextContents: "a", Transcript: "First narration."},
		{Title: "Two", TextContents: "b", Transcript: "Second narration."},
	}}
}

func TestGenerateNarrationsWritesManifestInOrder(t *testing.T) {
	store := storage.New(t.TempDir())
	synth := &stubSynth{}
	engine := NewEngine(synth, store, config.TTSConfig{UseCache: true, DefaultVoice: "Cherry", DefaultLanguage: "zh"})

	audios, err := engine.GenerateNarrations(context.Background(), "job-1", testDeck(), types.JobConfig{TTSSpeed: 1})
	require.NoError(t, err)
	require.Len(t, audios, 2)

	assert.Equal(t, 2, synth.calls)
	assert.Equal(t, 0, audios[0].Index)
	assert.Equal(t, "outputs/job-1/tts/slide-001.wav", audios[0].Path)
	assert.True(t, storage.FileExists(store.Abs(audios[0].Path)))
	assert.True(t, storage.FileExists(store.Abs(audios[1].Path)))

	assert.Equal(t, "Cherry", synth.requests[0].Voice)
	assert.Equal(t, "Chinese", synth.requests[0].LanguageType)
}

func TestGenerateNarrationsReusesCache(t *testing.T) {
	store := storage.New(t.TempDir())
	synth := &stubSynth{}
	engine := NewEngine(synth, store, config.TTSConfig{UseCache: true, DefaultVoice: "Cherry", DefaultLanguage: "zh"})
	cfg := types.JobConfig{TTSSpeed: 1}

	_, err := engine.GenerateNarrations(context.Background(), "job-1", testDeck(), cfg)
	require.NoError(t, err)
	require.Equal(t, 2, synth.calls)

	// Same parameters: everything comes from the cache.
	_, err = engine.GenerateNarrations(context.Background(), "job-1", testDeck(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, synth.calls)

	// A changed speed is a different cache key for every slide.
	cfg.TTSSpeed = 1.2
	_, err = engine.GenerateNarrations(context.Background(), "job-1", testDeck(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, synth.calls)
}

func TestNarrationsCurrentTracksParameters(t *testing.T) {
	store := storage.New(t.TempDir())
	synth := &stubSynth{}
	engine := NewEngine(synth, store, config.TTSConfig{UseCache: true, DefaultVoice: "Cherry", DefaultLanguage: "zh"})
	deck := testDeck()
	cfg := types.JobConfig{TTSSpeed: 1}

	// Nothing generated yet.
	assert.False(t, engine.NarrationsCurrent("job-1", deck, cfg))

	audios, err := engine.GenerateNarrations(context.Background(), "job-1", deck, cfg)
	require.NoError(t, err)
	assert.True(t, engine.NarrationsCurrent("job-1", deck, cfg))

	// Any changed generation parameter makes the persisted audio stale.
	assert.False(t, engine.NarrationsCurrent("job-1", deck, types.JobConfig{TTSSpeed: 1.5}))
	assert.False(t, engine.NarrationsCurrent("job-1", deck, types.JobConfig{TTSSpeed: 1, VoiceID: "Ethan"}))
	assert.False(t, engine.NarrationsCurrent("job-1", deck, types.JobConfig{TTSSpeed: 1, OutputLanguage: "en"}))

	// So does an edited transcript or a missing audio file.
	edited := testDeck()
	edited.Slides[1].Transcript = "Rewritten narration."
	assert.False(t, engine.NarrationsCurrent("job-1", edited, cfg))

	require.NoError(t, os.Remove(store.Abs(audios[0].Path)))
	assert.False(t, engine.NarrationsCurrent("job-1", deck, cfg))
}

func TestNarrationsCurrentRequiresCache(t *testing.T) {
	store := storage.New(t.TempDir())
	engine := NewEngine(&stubSynth{}, store, config.TTSConfig{UseCache: false})

	_, err := engine.GenerateNarrations(context.Background(), "job-1", testDeck(), types.JobConfig{TTSSpeed: 1})
	require.NoError(t, err)
	assert.False(t, engine.NarrationsCurrent("job-1", testDeck(), types.JobConfig{TTSSpeed: 1}))
}

func TestGenerateNarrationsMissingTranscript(t *testing.T) {
	store := storage.New(t.TempDir())
	engine := NewEngine(&stubSynth{}, store, config.TTSConfig{})

	deck := &types.SlidesJSON{Slides: []types.Slide{
		{Title: "One", TextContents: "a", Transcript: "  "},
	}}
	_, err := engine.GenerateNarrations(context.Background(), "job-1", deck, types.JobConfig{})
	assert.ErrorContains(t, err, "slide 1 transcript is missing")
}

func TestSpeechRateMapping(t *testing.T) {
	assert.Nil(t, SpeechRate(0))
	assert.Nil(t, SpeechRate(-1))

	for speed, want := range map[float64]int{
		1.0: 0,
		1.2: 200,
		0.8: -200,
		1.5: 500,
		2.0: 500,
		0.2: -500,
	} {
		rate := SpeechRate(speed)
		require.NotNil(t, rate, "speed %v", speed)
		assert.Equal(t, want, *rate, "speed %v", speed)
	}
}

func TestNormalizeLanguageType(t *testing.T) {
	assert.Equal(t, "Chinese", normalizeLanguageType(""))
	assert.Equal(t, "Chinese", normalizeLanguageType("zh"))
	assert.Equal(t, "English", normalizeLanguageType("EN"))
	assert.Equal(t, "French", normalizeLanguageType(" French "))
}
