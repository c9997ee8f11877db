package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"papervid/internal/config"
	"papervid/internal/storage"
	"papervid/internal/types"
)

// Engine synthesizes one narration clip per slide, sequentially, reusing
// cached audio whose generation parameters have not changed.
type Engine struct {
	synth           Synthesizer
	store           *storage.Store
	useCache        bool
	defaultVoice    string
	defaultLanguage string
}

func NewEngine(synth Synthesizer, store *storage.Store, cfg config.TTSConfig) *Engine {
	return &Engine{
		synth:           synth,
		store:           store,
		useCache:        cfg.UseCache,
		defaultVoice:    cfg.DefaultVoice,
		defaultLanguage: cfg.DefaultLanguage,
	}
}

type cacheEntry struct {
	Hash   string `json:"hash"`
	Path   string `json:"path"`
	Format string `json:"format"`
}

type cacheFile struct {
	Slides map[string]cacheEntry `json:"slides"`
}

// cacheKey fixes the digest field set and order. Any parameter change
// produces a different hash, which is a cache miss, not an error.
type cacheKey struct {
	Transcript   string `json:"transcript"`
	Voice        string `json:"voice"`
	LanguageType string `json:"languageType"`
	SpeechRate   *int   `json:"speechRate,omitempty"`
	Model        string `json:"model"`
}

func hashKey(key cacheKey) string {
	data, _ := json.Marshal(key)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SpeechRate maps a job's speed multiplier (1.0 = neutral) onto the
// provider's rate parameter, clamped to its accepted range. Non-positive
// speeds mean "unset".
func SpeechRate(speed float64) *int {
	if speed <= 0 {
		return nil
	}
	rate := int(math.Round((speed - 1) * 1000))
	if rate < -500 {
		rate = -500
	}
	if rate > 500 {
		rate = 500
	}
	return &rate
}

func normalizeLanguageType(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "zh", "cn", "chinese":
		return "Chinese"
	case "en", "english":
		return "English"
	default:
		return strings.TrimSpace(value)
	}
}

func (e *Engine) resolveVoice(jobCfg types.JobConfig) string {
	if voice := strings.TrimSpace(jobCfg.VoiceID); voice != "" {
		return voice
	}
	return e.defaultVoice
}

func (e *Engine) resolveLanguage(jobCfg types.JobConfig) string {
	if lang := strings.TrimSpace(jobCfg.OutputLanguage); lang != "" {
		return normalizeLanguageType(lang)
	}
	return normalizeLanguageType(e.defaultLanguage)
}

// NarrationsCurrent reports whether every slide of the deck already has
// cached audio whose generation parameters match jobCfg. A stale hash, a
// missing audio file, or a disabled cache all mean the narration must be
// regenerated.
func (e *Engine) NarrationsCurrent(jobID string, deck *types.SlidesJSON, jobCfg types.JobConfig) bool {
	if !e.useCache {
		return false
	}
	cachePath := filepath.Join(e.store.OutputsDir(jobID), "tts", "tts-cache.json")
	var cache cacheFile
	if err := storage.ReadJSON(cachePath, &cache); err != nil || cache.Slides == nil {
		return false
	}

	voice := e.resolveVoice(jobCfg)
	languageType := e.resolveLanguage(jobCfg)
	speechRate := SpeechRate(jobCfg.TTSSpeed)

	for index, slide := range deck.Slides {
		transcript := strings.TrimSpace(slide.Transcript)
		if transcript == "" {
			return false
		}
		entry, ok := cache.Slides[strconv.Itoa(index)]
		if !ok {
			return false
		}
		hash := hashKey(cacheKey{
			Transcript:   transcript,
			Voice:        voice,
			LanguageType: languageType,
			SpeechRate:   speechRate,
			Model:        e.synth.Model(),
		})
		if entry.Hash != hash || !storage.FileExists(e.store.Abs(entry.Path)) {
			return false
		}
	}
	return true
}

// GenerateNarrations produces the ordered audio manifest for the deck.
// A slide with an empty transcript is a hard failure; narration is never
// silently skipped.
func (e *Engine) GenerateNarrations(ctx context.Context, jobID string, deck *types.SlidesJSON, jobCfg types.JobConfig) ([]types.SlideAudio, error) {
	outputDir := filepath.Join(e.store.OutputsDir(jobID), "tts")
	cachePath := filepath.Join(outputDir, "tts-cache.json")

	cache := cacheFile{Slides: map[string]cacheEntry{}}
	if e.useCache {
		if err := storage.ReadJSON(cachePath, &cache); err != nil || cache.Slides == nil {
			cache.Slides = map[string]cacheEntry{}
		}
	}

	voice := e.resolveVoice(jobCfg)
	languageType := e.resolveLanguage(jobCfg)
	speechRate := SpeechRate(jobCfg.TTSSpeed)

	results := make([]types.SlideAudio, 0, len(deck.Slides))
	for index, slide := range deck.Slides {
		transcript := strings.TrimSpace(slide.Transcript)
		if transcript == "" {
			return nil, fmt.Errorf("slide %d transcript is missing", index+1)
		}

		hash := hashKey(cacheKey{
			Transcript:   transcript,
			Voice:        voice,
			LanguageType: languageType,
			SpeechRate:   speechRate,
			Model:        e.synth.Model(),
		})

		if e.useCache {
			if entry, ok := cache.Slides[strconv.Itoa(index)]; ok && entry.Hash == hash && storage.FileExists(e.store.Abs(entry.Path)) {
				log.Printf("[tts] cache hit for slide %d", index+1)
				results = append(results, types.SlideAudio{
					Index:      index,
					Path:       entry.Path,
					Format:     entry.Format,
					Transcript: transcript,
				})
				continue
			}
		}

		log.Printf("[tts] generating audio for slide %d", index+1)
		audio, err := e.synth.Synthesize(ctx, SpeechRequest{
			Text:         transcript,
			Voice:        voice,
			LanguageType: languageType,
			SpeechRate:   speechRate,
		})
		if err != nil {
			return nil, fmt.Errorf("slide %d narration: %w", index+1, err)
		}

		fileName := fmt.Sprintf("slide-%03d.%s", index+1, audio.Format)
		filePath := filepath.Join(outputDir, fileName)
		if err := storage.WriteFileAtomic(filePath, audio.Data); err != nil {
			return nil, fmt.Errorf("write narration audio: %w", err)
		}

		entry := types.SlideAudio{
			Index:      index,
			Path:       e.store.Rel(filePath),
			Format:     audio.Format,
			Transcript: transcript,
		}
		if e.useCache {
			cache.Slides[strconv.Itoa(index)] = cacheEntry{Hash: hash, Path: entry.Path, Format: entry.Format}
		}
		results = append(results, entry)
	}

	if e.useCache {
		if err := storage.WriteJSON(cachePath, cache); err != nil {
			return nil, fmt.Errorf("write narration cache: %w", err)
		}
	}
	return results, nil
}
