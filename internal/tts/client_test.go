package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papervid/internal/config"
)

func newSpeechServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	client, err := NewClient(config.TTSConfig{
		URL:    server.URL + "/api/v1/tts",
		APIKey: "sk-tts-test",
		Model:  "test-tts",
	})
	require.NoError(t, err)
	return client, server
}

func TestSynthesizeBase64Audio(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("wav-bytes"))
	client, server := newSpeechServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-tts-test", r.Header.Get("Authorization"))

		var body speechBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-tts", body.Model)
		assert.Equal(t, "Hello", body.Input.Text)
		assert.Equal(t, "Chinese", body.Input.LanguageType)
		require.NotNil(t, body.Input.SpeechRate)
		assert.Equal(t, 200, *body.Input.SpeechRate)

		w.Write([]byte(`{"output": {"audio": "` + payload + `", "audio_format": "wav"}}`))
	})
	defer server.Close()

	rate := 200
	audio, err := client.Synthesize(context.Background(), SpeechRequest{
		Text:         "Hello",
		Voice:        "Cherry",
		LanguageType: "Chinese",
		SpeechRate:   &rate,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("wav-bytes"), audio.Data)
	assert.Equal(t, "wav", audio.Format)
}

func TestSynthesizeAudioURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/clip.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	})
	var clipURL string
	mux.HandleFunc("/api/v1/tts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"output": {"audio": {"url": "` + clipURL + `"}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	clipURL = server.URL + "/clip.mp3"

	client, err := NewClient(config.TTSConfig{URL: server.URL + "/api/v1/tts", APIKey: "sk", Model: "m"})
	require.NoError(t, err)

	audio, err := client.Synthesize(context.Background(), SpeechRequest{Text: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio.Data)
	assert.Equal(t, "mp3", audio.Format)
}

func TestSynthesizeErrorOmitsCredentials(t *testing.T) {
	client, server := newSpeechServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	defer server.Close()

	_, err := client.Synthesize(context.Background(), SpeechRequest{Text: "Hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "/api/v1/tts")
	assert.NotContains(t, err.Error(), server.URL)
	assert.NotContains(t, err.Error(), "sk-tts-test")
}

func TestDecodeDataURI(t *testing.T) {
	payload := "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString([]byte("x"))
	audio, err := decodeBase64Audio(payload, "")
	require.NoError(t, err)
	assert.Equal(t, "mp3", audio.Format)

	_, err = decodeBase64Audio("@@not-base64@@", "wav")
	assert.ErrorContains(t, err, "decode TTS audio")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(config.TTSConfig{URL: "http://localhost"})
	assert.ErrorContains(t, err, "TTS_API_KEY")
}
