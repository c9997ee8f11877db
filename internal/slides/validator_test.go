package slides

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONUnwrapsProse(t *testing.T) {
	response := "Sure, here is the deck:\n```json\n{\"slides\": []}\n```\nLet me know."
	assert.Equal(t, `{"slides": []}`, ExtractJSON(response))

	assert.Equal(t, `{"a":1}`, ExtractJSON("  {\"a\":1}  "))
	assert.Equal(t, "no json here", ExtractJSON("no json here"))
}

func TestNormalizeEscapesAndTrims(t *testing.T) {
	deck, err := Normalize([]byte(`{
		"slides": [{
			"title": "  <b>Results</b>  ",
			"text_contents": "a < b",
			"transcript": "  spoken text <pause> ",
			"images": [],
			"tables": ["| a | b |"]
		}]
	}`))
	require.NoError(t, err)
	require.Len(t, deck.Slides, 1)

	slide := deck.Slides[0]
	assert.Equal(t, "&lt;b&gt;Results&lt;/b&gt;", slide.Title)
	assert.Equal(t, "a &lt; b", slide.TextContents)
	// Transcripts feed speech synthesis, never a template.
	assert.Equal(t, "spoken text <pause>", slide.Transcript)
	assert.Equal(t, []string{"| a | b |"}, slide.Tables)
}

func TestNormalizeDropsInvalidSlides(t *testing.T) {
	deck, err := Normalize([]byte(`{
		"slides": [
			{"title": "Good", "text_contents": "body", "transcript": "talk"},
			{"title": "", "text_contents": "body", "transcript": "talk"},
			{"title": "No transcript", "text_contents": "body"}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, deck.Slides, 1)
	assert.Equal(t, "Good", deck.Slides[0].Title)
}

func TestNormalizeImageRules(t *testing.T) {
	deck, err := Normalize([]byte(`{
		"slides": [{
			"title": "Figures",
			"text_contents": "body",
			"transcript": "talk",
			"images": [
				{"path": "fig1.png", "width": 640, "height": 480},
				{"path": "tiny.png", "width": 64, "height": 480},
				{"path": "", "width": 640, "height": 480},
				{"path": "bad.png", "width": "wide", "height": 480}
			]
		}]
	}`))
	require.NoError(t, err)
	require.Len(t, deck.Slides[0].Images, 1)
	assert.Equal(t, "fig1.png", deck.Slides[0].Images[0].Path)
	assert.Equal(t, 640, deck.Slides[0].Images[0].Width)
}

func TestNormalizeRejectsEmptyDocuments(t *testing.T) {
	_, err := Normalize([]byte(`{"slides": []}`))
	assert.ErrorIs(t, err, ErrNoValidSlides)

	_, err = Normalize([]byte(`{"slides": [{"title": "x"}]}`))
	assert.ErrorIs(t, err, ErrNoValidSlides)

	_, err = Normalize([]byte(`not json`))
	assert.ErrorContains(t, err, "not valid JSON")
}
