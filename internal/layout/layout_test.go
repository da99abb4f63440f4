package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobPath(t *testing.T) {
	digest := "iYtREV555dUFKg2_agSJW6suquUyPpMw"
	assert.Equal(t, "sequences/iY/"+digest+".seq", BlobPath("", digest))
	assert.Equal(t, "sequences/iY/"+digest+".seq", BlobPath(DefaultSeqDataTemplate, digest))
	assert.Equal(t, "blobs/"+digest, BlobPath("blobs/%s", digest))
	assert.Equal(t, "xy", BlobPath("%s2", "xyz"))
	assert.Equal(t, "ab", BlobPath("%s2", "ab")) // short digest uses itself
}

func TestSanitizeRel(t *testing.T) {
	ok, err := SanitizeRel("sequences/iY/abc.seq")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("sequences", "iY", "abc.seq"), ok)

	for _, bad := range []string{"", "/etc/passwd", "../secret", "a/../../b", "a\x00b"} {
		_, err := SanitizeRel(bad)
		assert.ErrorIs(t, err, ErrUnsafePath, "path %q", bad)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	// Overwrite replaces content and leaves no temp files behind.
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CheckFreeSpace(nil, dir, 0))
	assert.NoError(t, CheckFreeSpace(nil, dir, 1))
	// No filesystem has the full uint64 range free.
	assert.Error(t, CheckFreeSpace(nil, dir, ^uint64(0)))
}
