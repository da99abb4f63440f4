// Package index reads and writes the store's text index files: the
// global sequence index (sequences.rgsi), the collection index
// (collections.rgci), per-collection .rgsi files, and the rgstore.json
// manifest.
package index

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ManifestVersion is the rgstore.json format this build reads/writes.
const ManifestVersion = 1

// Manifest is the rgstore.json document describing a store directory.
type Manifest struct {
	Version                 int    `json:"version"`
	SeqdataPathTemplate     string `json:"seqdata_path_template"`
	CollectionsPathTemplate string `json:"collections_path_template"`
	SequenceIndex           string `json:"sequence_index"`
	CollectionIndex         string `json:"collection_index,omitempty"`
	Mode                    string `json:"mode"`
	BlobBackend             string `json:"blob_backend,omitempty"`
	CreatedAt               string `json:"created_at"`
}

// EncodeManifest renders the manifest as indented JSON.
func EncodeManifest(m Manifest) ([]byte, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("index: encode manifest: %w", err)
	}
	return append(b, '\n'), nil
}

// DecodeManifest parses rgstore.json content and rejects manifests
// written by a newer format version.
func DecodeManifest(b []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("index: decode manifest: %w", err)
	}
	if m.Version > ManifestVersion {
		return Manifest{}, fmt.Errorf("index: manifest version %d is newer than supported %d", m.Version, ManifestVersion)
	}
	return m, nil
}

// SequenceRow is one line of an .rgsi sequence index.
type SequenceRow struct {
	Name        string
	Length      int
	Alphabet    string
	Sha512t24u  string
	Md5         string
	Description string
}

const sequenceHeader = "#name\tlength\talphabet\tsha512t24u\tmd5\tdescription"

func (r SequenceRow) format() string {
	return fmt.Sprintf("%s\t%d\t%s\t%s\t%s\t%s",
		r.Name, r.Length, r.Alphabet, r.Sha512t24u, r.Md5, r.Description)
}

func parseSequenceRow(line string) (SequenceRow, error) {
	parts := strings.Split(line, "\t")
	if len(parts) < 5 {
		return SequenceRow{}, fmt.Errorf("index: sequence row needs at least 5 columns, got %d", len(parts))
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return SequenceRow{}, fmt.Errorf("index: sequence row length %q: %w", parts[1], err)
	}
	row := SequenceRow{
		Name:       parts[0],
		Length:     length,
		Alphabet:   parts[2],
		Sha512t24u: parts[3],
		Md5:        parts[4],
	}
	if len(parts) > 5 {
		row.Description = parts[5]
	}
	return row, nil
}

// FormatSequenceIndex renders a sequences.rgsi document.
func FormatSequenceIndex(rows []SequenceRow) []byte {
	var buf bytes.Buffer
	buf.WriteString(sequenceHeader)
	buf.WriteByte('\n')
	for _, r := range rows {
		buf.WriteString(r.format())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ParseSequenceIndex reads a sequences.rgsi document.
func ParseSequenceIndex(r io.Reader) ([]SequenceRow, error) {
	var rows []SequenceRow
	err := eachLine(r, func(line string) error {
		if strings.HasPrefix(line, "#") {
			return nil
		}
		row, err := parseSequenceRow(line)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

// CollectionRow is one line of collections.rgci.
type CollectionRow struct {
	Digest          string
	NSequences      int
	NamesDigest     string
	SequencesDigest string
	LengthsDigest   string
}

const collectionHeader = "#digest\tn_sequences\tnames_digest\tsequences_digest\tlengths_digest"

// FormatCollectionIndex renders a collections.rgci document.
func FormatCollectionIndex(rows []CollectionRow) []byte {
	var buf bytes.Buffer
	buf.WriteString(collectionHeader)
	buf.WriteByte('\n')
	for _, r := range rows {
		fmt.Fprintf(&buf, "%s\t%d\t%s\t%s\t%s\n",
			r.Digest, r.NSequences, r.NamesDigest, r.SequencesDigest, r.LengthsDigest)
	}
	return buf.Bytes()
}

// ParseCollectionIndex reads a collections.rgci document.
func ParseCollectionIndex(r io.Reader) ([]CollectionRow, error) {
	var rows []CollectionRow
	err := eachLine(r, func(line string) error {
		if strings.HasPrefix(line, "#") {
			return nil
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 5 {
			return fmt.Errorf("index: collection row needs 5 columns, got %d", len(parts))
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("index: collection row n_sequences %q: %w", parts[1], err)
		}
		rows = append(rows, CollectionRow{
			Digest:          parts[0],
			NSequences:      n,
			NamesDigest:     parts[2],
			SequencesDigest: parts[3],
			LengthsDigest:   parts[4],
		})
		return nil
	})
	return rows, err
}

// CollectionFile is a per-collection .rgsi document: the collection's
// digests in ## header lines followed by its member sequences in order.
type CollectionFile struct {
	Digest          string
	NamesDigest     string
	SequencesDigest string
	LengthsDigest   string
	Sequences       []SequenceRow
}

// FormatCollectionFile renders a collections/{digest}.rgsi document.
func FormatCollectionFile(cf CollectionFile) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "##seqcol_digest=%s\n", cf.Digest)
	fmt.Fprintf(&buf, "##names_digest=%s\n", cf.NamesDigest)
	fmt.Fprintf(&buf, "##sequences_digest=%s\n", cf.SequencesDigest)
	fmt.Fprintf(&buf, "##lengths_digest=%s\n", cf.LengthsDigest)
	buf.WriteString(sequenceHeader)
	buf.WriteByte('\n')
	for _, r := range cf.Sequences {
		buf.WriteString(r.format())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ParseCollectionFile reads a collections/{digest}.rgsi document.
// Unknown ## keys are ignored.
func ParseCollectionFile(r io.Reader) (CollectionFile, error) {
	var cf CollectionFile
	err := eachLine(r, func(line string) error {
		if strings.HasPrefix(line, "##") {
			key, value, ok := strings.Cut(line[2:], "=")
			if !ok {
				return nil
			}
			switch key {
			case "seqcol_digest":
				cf.Digest = value
			case "names_digest":
				cf.NamesDigest = value
			case "sequences_digest":
				cf.SequencesDigest = value
			case "lengths_digest":
				cf.LengthsDigest = value
			}
			return nil
		}
		if strings.HasPrefix(line, "#") {
			return nil
		}
		row, err := parseSequenceRow(line)
		if err != nil {
			return err
		}
		cf.Sequences = append(cf.Sequences, row)
		return nil
	})
	return cf, err
}

// AliasRow is one line of an alias table file: alias TAB digest.
type AliasRow struct {
	Alias  string
	Digest string
}

// FormatAliases renders a namespace alias table.
func FormatAliases(rows []AliasRow) []byte {
	var buf bytes.Buffer
	buf.WriteString("#alias\tdigest\n")
	for _, r := range rows {
		fmt.Fprintf(&buf, "%s\t%s\n", r.Alias, r.Digest)
	}
	return buf.Bytes()
}

// ParseAliases reads a namespace alias table.
func ParseAliases(r io.Reader) ([]AliasRow, error) {
	var rows []AliasRow
	err := eachLine(r, func(line string) error {
		if strings.HasPrefix(line, "#") {
			return nil
		}
		alias, dig, ok := strings.Cut(line, "\t")
		if !ok {
			return fmt.Errorf("index: alias row %q needs 2 columns", line)
		}
		rows = append(rows, AliasRow{Alias: alias, Digest: dig})
		return nil
	})
	return rows, err
}

func eachLine(r io.Reader, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}
