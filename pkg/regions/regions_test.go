package regions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.bed")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadBed(t *testing.T) {
	path := writeBed(t, "# comment\nchr1\t0\t5\nchr1\t8\t12\n\nchr2\t0\t4\textra\tcolumns\n")

	got, err := ReadBed(path)
	require.NoError(t, err)
	assert.Equal(t, []Region{
		{Name: "chr1", Start: 0, End: 5},
		{Name: "chr1", Start: 8, End: 12},
		{Name: "chr2", Start: 0, End: 4},
	}, got)
}

func TestReadBedMalformed(t *testing.T) {
	for _, content := range []string{
		"chr1\t0\n",
		"chr1\tzero\t5\n",
		"chr1\t0\tfive\n",
		"chr1\t-1\t5\n",
	} {
		_, err := ReadBed(writeBed(t, content))
		assert.Error(t, err, "content %q", content)
	}
}

func TestRegionString(t *testing.T) {
	assert.Equal(t, "chr1:0-5", Region{Name: "chr1", Start: 0, End: 5}.String())
}
