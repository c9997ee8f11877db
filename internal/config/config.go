package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration. Provider credentials and
// endpoints are resolved here exactly once; the service clients receive the
// resolved values instead of reading the environment themselves.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Docling DoclingConfig `yaml:"docling"`
	Slides  SlidesConfig  `yaml:"slides"`
	Render  RenderConfig  `yaml:"render"`
	TTS     TTSConfig     `yaml:"tts"`
	Video   VideoConfig   `yaml:"video"`
	Paths   PathsConfig   `yaml:"paths"`
}

type LLMConfig struct {
	BaseURL      string  `yaml:"base_url"`
	APIKey       string  `yaml:"-"`
	DefaultModel string  `yaml:"default_model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	TimeoutSec   int     `yaml:"timeout_sec"`
}

type DoclingConfig struct {
	URL             string `yaml:"url"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
	PollTimeoutSec  int    `yaml:"poll_timeout_sec"`
}

type SlidesConfig struct {
	// OfflineFallback derives slides from markdown headings when the
	// completion call fails or no provider is configured. Off by default;
	// when off a validator rejection fails the generating stage.
	OfflineFallback bool `yaml:"offline_fallback"`
}

type RenderConfig struct {
	Concurrency int    `yaml:"concurrency"`
	UseLLMCache bool   `yaml:"use_llm_cache"`
	Style       string `yaml:"style"`
	// RevealDist points at an extracted reveal.js dist directory; deck
	// capture refuses to launch a browser without it.
	RevealDist string `yaml:"reveal_dist"`
}

type TTSConfig struct {
	URL             string `yaml:"url"`
	APIKey          string `yaml:"-"`
	Model           string `yaml:"model"`
	DefaultVoice    string `yaml:"default_voice"`
	DefaultLanguage string `yaml:"default_language"`
	UseCache        bool   `yaml:"use_cache"`
	TimeoutSec      int    `yaml:"timeout_sec"`
}

type VideoConfig struct {
	TransitionSeconds float64 `yaml:"transition_seconds"`
	FPS               int     `yaml:"fps"`
}

type PathsConfig struct {
	StorageRoot string `yaml:"storage_root"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			MaxTokens:   4096,
			Temperature: 0.2,
			TimeoutSec:  120,
		},
		Docling: DoclingConfig{
			PollIntervalSec: 1,
			PollTimeoutSec:  600,
		},
		Render: RenderConfig{
			Concurrency: 1,
			UseLLMCache: true,
			Style:       "academic",
		},
		TTS: TTSConfig{
			URL:             "https://dashscope.aliyuncs.com/api/v1/services/aigc/multimodal-generation/generation",
			Model:           "qwen3-tts-flash",
			DefaultVoice:    "Cherry",
			DefaultLanguage: "zh",
			UseCache:        true,
			TimeoutSec:      120,
		},
		Video: VideoConfig{
			TransitionSeconds: 1,
			FPS:               30,
		},
		Paths: PathsConfig{StorageRoot: "storage"},
	}
}

// Load reads the yaml config file (optional) and applies environment
// overrides on top. Credentials only ever come from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment are enough to run.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.LLM.BaseURL, "LLM_BASE_URL", "OPENAI_BASE_URL")
	setString(&c.LLM.APIKey, "LLM_API_KEY", "OPENAI_API_KEY")
	setString(&c.LLM.DefaultModel, "LLM_MODEL")
	setInt(&c.LLM.MaxTokens, "LLM_MAX_TOKENS")

	setString(&c.Docling.URL, "DOCLING_URL")

	setString(&c.TTS.URL, "TTS_MODEL_URL")
	setString(&c.TTS.APIKey, "TTS_API_KEY")
	setString(&c.TTS.Model, "TTS_MODEL")
	setString(&c.TTS.DefaultVoice, "TTS_VOICE")
	setBool(&c.TTS.UseCache, "USE_TTS_CACHE")

	setInt(&c.Render.Concurrency, "RENDER_SLIDES_CONCURRENCY")
	setBool(&c.Render.UseLLMCache, "USE_LLM_CACHE")
	setString(&c.Render.RevealDist, "REVEAL_DIST")

	setString(&c.Paths.StorageRoot, "STORAGE_ROOT")

	if c.Render.Concurrency < 1 {
		c.Render.Concurrency = 1
	}
}

func setString(target *string, names ...string) {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*target = v
			return
		}
	}
}

func setInt(target *int, name string) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return
	}
	if parsed, err := strconv.Atoi(v); err == nil {
		*target = parsed
	}
}

func setBool(target *bool, name string) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return
	}
	*target = strings.EqualFold(v, "true") || v == "1"
}
