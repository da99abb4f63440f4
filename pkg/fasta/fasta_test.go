package fasta

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xzw "github.com/ulikunitz/xz"
)

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

const demoFasta = ">chrX some description here\nTTGGGGAA\n>chr1\nGGAA\n>chr2\nGCGC\n"

func TestReadAll(t *testing.T) {
	path := writeTemp(t, "demo.fa", []byte(demoFasta))

	recs, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "chrX", recs[0].Name)
	assert.Equal(t, "some description here", recs[0].Description)
	assert.Equal(t, "TTGGGGAA", string(recs[0].Seq))
	assert.Equal(t, "chr1", recs[1].Name)
	assert.Equal(t, "GGAA", string(recs[1].Seq))
	assert.Equal(t, "GCGC", string(recs[2].Seq))
}

func TestReadWrappedLines(t *testing.T) {
	path := writeTemp(t, "wrap.fa", []byte(">s1\nACGT\nACGT\nAC\n"))
	recs, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ACGTACGTAC", string(recs[0].Seq))
}

func TestReadGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(demoFasta))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	path := writeTemp(t, "demo.fa.gz", buf.Bytes())

	recs, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "TTGGGGAA", string(recs[0].Seq))

	// Compressed input has no byte-addressable offsets.
	rows, err := Fai(path)
	require.NoError(t, err)
	for _, row := range rows {
		assert.Nil(t, row.Metadata)
	}
}

func TestReadXz(t *testing.T) {
	var buf bytes.Buffer
	xw, err := xzw.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write([]byte(demoFasta))
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	path := writeTemp(t, "demo.fa.xz", buf.Bytes())

	recs, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "GCGC", string(recs[2].Seq))
}

func TestFai(t *testing.T) {
	content := ">chr1 desc\nACGTACGT\nACGTACGT\nACG\n>chr2\nGGGG\n"
	path := writeTemp(t, "fai.fa", []byte(content))

	rows, err := Fai(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].Metadata)
	assert.Equal(t, "chr1", rows[0].Name)
	assert.Equal(t, 19, rows[0].Length)
	assert.Equal(t, int64(11), rows[0].Metadata.Offset)
	assert.Equal(t, 8, rows[0].Metadata.LineBases)
	assert.Equal(t, 9, rows[0].Metadata.LineBytes)
	assert.Equal(t, "chr1\t19\t11\t8\t9", rows[0].String())

	require.NotNil(t, rows[1].Metadata)
	assert.Equal(t, int64(39), rows[1].Metadata.Offset)
	assert.Equal(t, "chr2\t4\t39\t4\t5", rows[1].String())
}

func TestFaiNonUniformLines(t *testing.T) {
	// Second line is short but not last, so offsets are unusable.
	path := writeTemp(t, "ragged.fa", []byte(">s1\nACGTACGT\nAC\nACGTACGT\n"))
	rows, err := Fai(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 18, rows[0].Length)
	assert.Nil(t, rows[0].Metadata)
	assert.Equal(t, "s1\t18", rows[0].String())
}

func TestReadRejectsHeaderlessData(t *testing.T) {
	path := writeTemp(t, "bad.fa", []byte("ACGT\n>s1\nACGT\n"))
	_, err := ReadAll(path)
	assert.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadAll(filepath.Join(t.TempDir(), "nope.fa"))
	assert.Error(t, err)
}

func TestWriterWraps(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 4)
	require.NoError(t, w.Write("s1 4 dna2bit x y", []byte("ACGTACGTAC")))
	require.NoError(t, w.Flush())
	assert.Equal(t, ">s1 4 dna2bit x y\nACGT\nACGT\nAC\n", buf.String())
}

func TestCreateGzipOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.fa.gz")
	wc, err := Create(path)
	require.NoError(t, err)
	w := NewWriter(wc, 0)
	require.NoError(t, w.Write("s1", []byte("ACGT")))
	require.NoError(t, w.Flush())
	require.NoError(t, wc.Close())

	recs, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ACGT", string(recs[0].Seq))
}
