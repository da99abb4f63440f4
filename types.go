package rgstore

import (
	"fmt"

	"github.com/databio/rgstore/pkg/alphabet"
	"github.com/databio/rgstore/pkg/codec"
	"github.com/databio/rgstore/pkg/digest"
)

// SequenceMetadata is the content-derived identity of one sequence.
// It never changes after computation.
type SequenceMetadata struct {
	Name        string
	Length      int
	Sha512t24u  string
	Md5         string
	Alphabet    alphabet.Type
	Description string
}

// PayloadKind is the storage state of a record's payload.
type PayloadKind int

const (
	// PayloadAbsent marks a stub: metadata only, bytes not yet
	// materialized locally.
	PayloadAbsent PayloadKind = iota
	// PayloadRaw holds the ingested bytes verbatim.
	PayloadRaw
	// PayloadEncoded holds a 2-bit packed payload.
	PayloadEncoded
)

// SequenceRecord is a SequenceMetadata plus an optional payload. The
// payload is a closed tagged variant; consumers switch on Kind and the
// codec package owns all decode logic.
type SequenceRecord struct {
	Metadata SequenceMetadata
	Kind     PayloadKind
	Raw      []byte         // set when Kind == PayloadRaw
	Encoded  *codec.Encoded // set when Kind == PayloadEncoded
}

// NewSequenceRecord digests seq and stores its payload under mode.
// Digests are computed over the uppercased bytes regardless of mode.
func NewSequenceRecord(name, description string, seq []byte, mode codec.StorageMode) SequenceRecord {
	sha, md5sum := digest.SequenceDigests(seq)
	rec := SequenceRecord{
		Metadata: SequenceMetadata{
			Name:        name,
			Length:      len(seq),
			Sha512t24u:  sha,
			Md5:         md5sum,
			Alphabet:    alphabet.Guess(seq),
			Description: description,
		},
	}
	if mode == codec.ModeRaw {
		rec.Kind = PayloadRaw
		rec.Raw = append([]byte(nil), seq...)
	} else {
		rec.Kind = PayloadEncoded
		rec.Encoded = codec.Encode(seq)
	}
	return rec
}

// Sequence returns the decoded payload bytes. ok is false for stubs.
func (r *SequenceRecord) Sequence() ([]byte, bool) {
	switch r.Kind {
	case PayloadRaw:
		return r.Raw, true
	case PayloadEncoded:
		return r.Encoded.Decode(), true
	}
	return nil, false
}

// Range decodes [start, end) from the payload without materializing
// the whole sequence for encoded payloads.
func (r *SequenceRecord) Range(start, end int) ([]byte, error) {
	switch r.Kind {
	case PayloadRaw:
		if start < 0 || start > end || end > len(r.Raw) {
			return nil, codec.ErrRange
		}
		return r.Raw[start:end], nil
	case PayloadEncoded:
		return r.Encoded.Range(start, end)
	}
	return nil, fmt.Errorf("rgstore: payload for %s not materialized", r.Metadata.Sha512t24u)
}

// SequenceCollectionMetadata is the metadata-only projection of a
// collection, enough to list it and verify its digests without any
// payloads.
type SequenceCollectionMetadata struct {
	Digest          string
	NSequences      int
	NamesDigest     string
	SequencesDigest string
	LengthsDigest   string
	FilePath        string // originating FASTA, when known
}

// SequenceCollection is an ordered set of sequence records with
// seqcol-style digests. Order is part of the identity.
type SequenceCollection struct {
	Metadata  SequenceCollectionMetadata
	Sequences []SequenceRecord
}

// NewCollection computes all collection digests for records, which must
// already carry their sequence digests.
func NewCollection(records []SequenceRecord) *SequenceCollection {
	names := make([]string, len(records))
	lengths := make([]int, len(records))
	shas := make([]string, len(records))
	for i := range records {
		names[i] = records[i].Metadata.Name
		lengths[i] = records[i].Metadata.Length
		shas[i] = records[i].Metadata.Sha512t24u
	}
	cd := digest.New(names, lengths, shas)
	return &SequenceCollection{
		Metadata: SequenceCollectionMetadata{
			Digest:          cd.Top,
			NSequences:      len(records),
			NamesDigest:     cd.Names,
			SequencesDigest: cd.Sequences,
			LengthsDigest:   cd.Lengths,
		},
		Sequences: records,
	}
}

// RetrievedSequence is one answered interval from batch region
// retrieval, tagged with its originating coordinates.
type RetrievedSequence struct {
	Name     string
	Start    int
	End      int
	Sequence string
}

// Stats summarizes a store's contents.
type Stats struct {
	Sequences         int
	SequencesLoaded   int // records with a materialized payload
	Collections       int
	SequenceAliases   int
	CollectionAliases int
}

// CollectionComparison reports how two collections relate, following
// the seqcol comparison model: per-attribute overlap counts plus the
// names found in both or only one side.
type CollectionComparison struct {
	SharedNames     []string
	OnlyInA         []string
	OnlyInB         []string
	SharedSequences int // sequence digests present in both, ignoring order
	SameOrder       bool
}
