package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papervid/internal/types"
)

func TestRelAbsRoundTrip(t *testing.T) {
	store := New(t.TempDir())

	abs := filepath.Join(store.OutputsDir("job-1"), "doc.md")
	rel := store.Rel(abs)
	assert.Equal(t, "outputs/job-1/doc.md", rel)
	assert.Equal(t, abs, store.Abs(rel))

	// Paths outside the root pass through untouched.
	assert.Equal(t, "/etc/hosts", store.Rel("/etc/hosts"))
	assert.Equal(t, "/etc/hosts", store.Abs("/etc/hosts"))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()

	assert.False(t, FileExists(filepath.Join(dir, "missing")))

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.False(t, FileExists(empty), "empty files never satisfy a done predicate")

	full := filepath.Join(dir, "full")
	require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	assert.True(t, FileExists(full))

	assert.False(t, FileExists(dir))
}

func TestWriteFileAtomicCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "artifact.txt")
	require.NoError(t, WriteFileAtomic(path, []byte("payload")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	in := map[string]string{"doc": "outputs/job-1/doc.md"}
	require.NoError(t, WriteJSON(path, in))

	out := map[string]string{}
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, in, out)

	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &out)
	assert.True(t, os.IsNotExist(err))
}

func TestContentTypes(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType(types.ArtifactSlidesPDF))
	assert.Equal(t, "video/mp4", ContentType(types.ArtifactVideo))
	assert.Equal(t, "application/x-subrip", ContentType(types.ArtifactCaptions))
	assert.Equal(t, "application/octet-stream", ContentType("unknown"))

	assert.Equal(t, "captions.srt", DownloadName(types.ArtifactCaptions))
	assert.Equal(t, "doc", DownloadName(types.ArtifactDoc))
}
