// Package tts implements the narration engine: a speech-synthesis client
// plus a content-addressed cache keyed by the exact generation parameters.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"papervid/internal/config"
)

// Audio is one synthesized narration payload. Format is the detected audio
// container ("wav", "mp3", "ogg").
type Audio struct {
	Data   []byte
	Format string
}

type SpeechRequest struct {
	Text         string
	Voice        string
	LanguageType string
	SpeechRate   *int
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) (*Audio, error)
	Model() string
}

// Client talks to a DashScope-style speech endpoint. The provider may hand
// audio back as raw base64, a data URI, or a download URL; all three are
// normalized into bytes plus a container format.
type Client struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(cfg config.TTSConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing TTS_API_KEY environment variable")
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) endpointPath() string {
	if u, err := url.Parse(c.url); err == nil && u.Path != "" {
		return u.Path
	}
	return "/"
}

type speechInput struct {
	Text         string `json:"text"`
	Voice        string `json:"voice"`
	LanguageType string `json:"language_type"`
	SpeechRate   *int   `json:"speech_rate,omitempty"`
}

type speechBody struct {
	Model string      `json:"model"`
	Input speechInput `json:"input"`
}

type speechOutput struct {
	Audio       json.RawMessage `json:"audio"`
	Audios      json.RawMessage `json:"audios"`
	AudioFormat string          `json:"audio_format"`
	Format      string          `json:"format"`
}

type speechResponse struct {
	Output speechOutput `json:"output"`
}

func (c *Client) Synthesize(ctx context.Context, req SpeechRequest) (*Audio, error) {
	body, err := json.Marshal(speechBody{
		Model: c.model,
		Input: speechInput{
			Text:         req.Text,
			Voice:        req.Voice,
			LanguageType: req.LanguageType,
			SpeechRate:   req.SpeechRate,
		},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.New("TTS request timed out")
		}
		return nil, fmt.Errorf("TTS request to %s failed: %w", c.endpointPath(), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TTS request to %s failed: status %d %s", c.endpointPath(), resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed speechResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("TTS response is not valid JSON: %w", err)
	}
	return c.extractAudio(ctx, parsed.Output)
}

func (c *Client) extractAudio(ctx context.Context, output speechOutput) (*Audio, error) {
	fallback := normalizeFormat(output.AudioFormat)
	if fallback == "" {
		fallback = normalizeFormat(output.Format)
	}

	raw := output.Audio
	if len(raw) == 0 {
		raw = output.Audios
	}
	if len(raw) == 0 {
		return nil, errors.New("TTS response missing audio payload")
	}

	// A list of clips means take the first.
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return nil, errors.New("TTS response missing audio payload")
		}
		raw = list[0]
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if strings.HasPrefix(asString, "http") {
			return c.fetchAudioURL(ctx, asString, fallback)
		}
		return decodeBase64Audio(asString, fallback)
	}

	var asObject struct {
		Data   string `json:"data"`
		URL    string `json:"url"`
		Format string `json:"format"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		format := normalizeFormat(asObject.Format)
		if format == "" {
			format = fallback
		}
		if asObject.URL != "" {
			return c.fetchAudioURL(ctx, asObject.URL, format)
		}
		if asObject.Data != "" {
			return decodeBase64Audio(asObject.Data, format)
		}
	}

	return nil, errors.New("unable to extract audio from TTS response")
}

func (c *Client) fetchAudioURL(ctx context.Context, audioURL, fallback string) (*Audio, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TTS audio download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TTS audio download failed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	format := formatFromContentType(resp.Header.Get("Content-Type"))
	if format == "" {
		format = normalizeFormat(audioURL)
	}
	if format == "" {
		format = fallback
	}
	if format == "" {
		format = "wav"
	}
	return &Audio{Data: data, Format: format}, nil
}

func decodeBase64Audio(payload, fallback string) (*Audio, error) {
	payload = strings.TrimSpace(payload)
	format := fallback

	if strings.HasPrefix(payload, "data:") {
		meta, base64Part, _ := strings.Cut(payload, ",")
		contentType := strings.TrimPrefix(strings.SplitN(meta, ";", 2)[0], "data:")
		if detected := formatFromContentType(contentType); detected != "" {
			format = detected
		}
		payload = base64Part
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode TTS audio: %w", err)
	}
	if format == "" {
		format = "wav"
	}
	return &Audio{Data: data, Format: format}, nil
}

func normalizeFormat(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.Contains(lowered, "wav"):
		return "wav"
	case strings.Contains(lowered, "mp3"), strings.Contains(lowered, "mpeg"):
		return "mp3"
	case strings.Contains(lowered, "ogg"):
		return "ogg"
	}
	return ""
}

func formatFromContentType(value string) string {
	lowered := strings.ToLower(value)
	switch {
	case strings.Contains(lowered, "audio/wav"):
		return "wav"
	case strings.Contains(lowered, "audio/mpeg"):
		return "mp3"
	case strings.Contains(lowered, "audio/ogg"):
		return "ogg"
	}
	return ""
}
