// Package fasta reads and writes multi-record FASTA files, with
// transparent gzip/xz input and single-pass FAI (byte offset and line
// geometry) tracking for uncompressed sources.
package fasta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Record is one parsed FASTA entry. Name is the header up to the first
// whitespace; Description is the rest of the header line, which never
// participates in digests.
type Record struct {
	Name        string
	Description string
	Seq         []byte
}

// FaiMetadata is the seekable-access part of a FAI row. It exists only
// when the source is uncompressed and every sequence line but the last
// has the same width.
type FaiMetadata struct {
	Offset    int64 // byte offset where sequence data begins
	LineBases int   // bases per line
	LineBytes int   // bases plus line terminator
}

// FaiRecord describes one sequence for FASTA indexing.
type FaiRecord struct {
	Name     string
	Length   int
	Metadata *FaiMetadata
}

// String renders the row in .fai column order. Rows without metadata
// carry only name and length.
func (r FaiRecord) String() string {
	if r.Metadata == nil {
		return fmt.Sprintf("%s\t%d", r.Name, r.Length)
	}
	return fmt.Sprintf("%s\t%d\t%d\t%d\t%d",
		r.Name, r.Length, r.Metadata.Offset, r.Metadata.LineBases, r.Metadata.LineBytes)
}

// Read streams records from path, calling fn once per record together
// with its FAI row. Returning an error from fn stops the scan.
func Read(path string, fn func(Record, FaiRecord) error) error {
	rc, compressed, err := open(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := scan(rc, compressed, fn); err != nil {
		return fmt.Errorf("fasta: %s: %w", path, err)
	}
	return nil
}

// ReadAll materializes every record in path.
func ReadAll(path string) ([]Record, error) {
	var recs []Record
	err := Read(path, func(r Record, _ FaiRecord) error {
		recs = append(recs, r)
		return nil
	})
	return recs, err
}

// Fai computes the FASTA index for path in one pass. Compressed input
// yields rows without offset metadata, since the payload is not
// byte-addressable without decompression.
func Fai(path string) ([]FaiRecord, error) {
	var rows []FaiRecord
	err := Read(path, func(_ Record, f FaiRecord) error {
		rows = append(rows, f)
		return nil
	})
	return rows, err
}

type faiState struct {
	offset    int64
	lineBases int
	lineBytes int
	uniform   bool
	lastShort bool // previous line was shorter than lineBases
}

func scan(r io.Reader, compressed bool, fn func(Record, FaiRecord) error) error {
	br := bufio.NewReader(r)
	var (
		cur     *Record
		fai     faiState
		pos     int64
		started bool
	)

	flush := func() error {
		if cur == nil {
			return nil
		}
		row := FaiRecord{Name: cur.Name, Length: len(cur.Seq)}
		if !compressed && fai.uniform && fai.lineBases > 0 {
			row.Metadata = &FaiMetadata{
				Offset:    fai.offset,
				LineBases: fai.lineBases,
				LineBytes: fai.lineBytes,
			}
		}
		return fn(*cur, row)
	}

	for {
		raw, readErr := br.ReadBytes('\n')
		if len(raw) > 0 {
			lineStart := pos
			pos += int64(len(raw))
			line := bytes.TrimRight(raw, "\r\n")
			termLen := len(raw) - len(line)

			switch {
			case len(line) == 0:
				// Blank lines between records are tolerated; inside a
				// record they break uniform line geometry.
				if cur != nil && len(cur.Seq) > 0 {
					fai.uniform = false
				}
			case line[0] == '>':
				if err := flush(); err != nil {
					return err
				}
				started = true
				header := string(line[1:])
				name, desc, _ := strings.Cut(header, " ")
				cur = &Record{Name: name, Description: strings.TrimSpace(desc)}
				fai = faiState{offset: lineStart + int64(len(raw)), uniform: true}
			default:
				if !started {
					return fmt.Errorf("sequence data before first header")
				}
				if fai.lineBases == 0 {
					fai.lineBases = len(line)
					fai.lineBytes = len(line) + termLen
				} else {
					// Only the final line of a record may be short.
					if fai.lastShort || len(line) > fai.lineBases {
						fai.uniform = false
					}
				}
				fai.lastShort = len(line) < fai.lineBases
				cur.Seq = append(cur.Seq, line...)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	return flush()
}
