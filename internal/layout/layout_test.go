package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	schema, ok := Lookup("  Image-Right ")
	require.True(t, ok)
	assert.Equal(t, "image-right", schema.ID)

	_, ok = Lookup("hero-banner")
	assert.False(t, ok)
}

func TestResolveSlotsRequiredMissing(t *testing.T) {
	schema, _ := Lookup("text-focus")
	_, err := ResolveSlots(schema, map[string]any{"title": "Only a title"})
	assert.ErrorContains(t, err, `layout "text-focus" requires slot "body"`)
}

func TestResolveSlotsEscapesTextAndSanitizesHTML(t *testing.T) {
	schema, _ := Lookup("text-focus")
	resolved, err := ResolveSlots(schema, map[string]any{
		"title": "A < B",
		"body":  "```html\n<html><ul><li>one</li></ul></html>\n```",
	})
	require.NoError(t, err)
	assert.Equal(t, "A &lt; B", resolved["title"])
	assert.Equal(t, "<ul><li>one</li></ul>", resolved["body"])
}

func TestResolveSlotsImage(t *testing.T) {
	schema, _ := Lookup("image-right")
	resolved, err := ResolveSlots(schema, map[string]any{
		"title": "Fig",
		"body":  "<p>text</p>",
		"image": map[string]any{
			"path":    "file:///tmp/fig.png",
			"width":   640.0,
			"height":  "480",
			"caption": "A <caption>",
		},
	})
	require.NoError(t, err)

	image, ok := resolved["image"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "file:///tmp/fig.png", image["path"])
	assert.Equal(t, 640, image["width"])
	assert.Equal(t, 480, image["height"])
	assert.Equal(t, "A &lt;caption&gt;", image["caption"])

	_, err = ResolveSlots(schema, map[string]any{
		"title": "Fig",
		"body":  "<p>text</p>",
		"image": map[string]any{"path": "fig.png"},
	})
	assert.ErrorContains(t, err, "image slot")
}

func TestRenderSubstitutesDottedPaths(t *testing.T) {
	schema, _ := Lookup("image-left")
	html, err := Render(schema, map[string]any{
		"title": "Figure 1",
		"body":  "<p>Details</p>",
		"image": map[string]any{"path": "file:///f.png", "width": 640, "height": 480, "caption": "cap"},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Figure 1")
	assert.Contains(t, html, "file:///f.png")
	assert.False(t, strings.Contains(html, "{{"), "unresolved placeholders remain: %s", html)
}

func TestSubstituteUnknownKeysRenderEmpty(t *testing.T) {
	out := Substitute("a {{known}} b {{missing}} c", map[string]any{"known": "X"})
	assert.Equal(t, "a X b  c", out)
}

func TestEmbeddedAssetsPresent(t *testing.T) {
	for _, id := range IDs() {
		schema, ok := Lookup(id)
		require.True(t, ok)
		_, err := Render(schema, map[string]any{})
		assert.NoError(t, err, "template for %s", id)
	}

	_, err := DeckTemplate()
	require.NoError(t, err)

	for _, style := range []string{"layout", DefaultStyle} {
		_, err := StyleCSS(style)
		assert.NoError(t, err, "style %s", style)
	}
	_, err = StyleCSS("missing")
	assert.Error(t, err)
}
