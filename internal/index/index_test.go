package index

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRoundTrip(t *testing.T) {
	m := Manifest{
		Version:                 ManifestVersion,
		SeqdataPathTemplate:     "sequences/%s2/%s.seq",
		CollectionsPathTemplate: "collections/%s.rgsi",
		SequenceIndex:           "sequences.rgsi",
		CollectionIndex:         "collections.rgci",
		Mode:                    "encoded",
		CreatedAt:               "2026-01-02T15:04:05Z",
	}
	b, err := EncodeManifest(m)
	require.NoError(t, err)

	got, err := DecodeManifest(b)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecodeManifestRejectsNewerVersion(t *testing.T) {
	_, err := DecodeManifest([]byte(`{"version": 99}`))
	assert.Error(t, err)

	_, err = DecodeManifest([]byte(`{not json`))
	assert.Error(t, err)
}

func TestSequenceIndexRoundTrip(t *testing.T) {
	rows := []SequenceRow{
		{Name: "chrX", Length: 8, Alphabet: "dna2bit", Sha512t24u: "shaX", Md5: "md5X", Description: "a description"},
		{Name: "chr1", Length: 4, Alphabet: "dna3bit", Sha512t24u: "sha1", Md5: "md51"},
	}
	doc := FormatSequenceIndex(rows)
	assert.True(t, bytes.HasPrefix(doc, []byte("#name\tlength\talphabet\tsha512t24u\tmd5\tdescription\n")))

	got, err := ParseSequenceIndex(bytes.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestParseSequenceIndexMalformed(t *testing.T) {
	_, err := ParseSequenceIndex(strings.NewReader("chrX\teight\tdna2bit\tsha\tmd5\t\n"))
	assert.Error(t, err)

	_, err = ParseSequenceIndex(strings.NewReader("chrX\t8\n"))
	assert.Error(t, err)
}

func TestCollectionIndexRoundTrip(t *testing.T) {
	rows := []CollectionRow{
		{Digest: "top1", NSequences: 3, NamesDigest: "n1", SequencesDigest: "s1", LengthsDigest: "l1"},
		{Digest: "top2", NSequences: 1, NamesDigest: "n2", SequencesDigest: "s2", LengthsDigest: "l2"},
	}
	got, err := ParseCollectionIndex(bytes.NewReader(FormatCollectionIndex(rows)))
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestCollectionFileRoundTrip(t *testing.T) {
	cf := CollectionFile{
		Digest:          "topdigest",
		NamesDigest:     "namesd",
		SequencesDigest: "seqsd",
		LengthsDigest:   "lensd",
		Sequences: []SequenceRow{
			{Name: "chr1", Length: 12, Alphabet: "dna2bit", Sha512t24u: "sha1", Md5: "md51"},
		},
	}
	doc := FormatCollectionFile(cf)
	assert.Contains(t, string(doc), "##seqcol_digest=topdigest\n")

	got, err := ParseCollectionFile(bytes.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, cf, got)
}

func TestAliasesRoundTrip(t *testing.T) {
	rows := []AliasRow{
		{Alias: "NC_000001.11", Digest: "sha1"},
		{Alias: "chr1", Digest: "sha1"},
	}
	got, err := ParseAliases(bytes.NewReader(FormatAliases(rows)))
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	_, err = ParseAliases(strings.NewReader("no-tab-here\n"))
	assert.Error(t, err)
}
