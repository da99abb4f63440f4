package rgstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/databio/rgstore/pkg/codec"
	"github.com/databio/rgstore/pkg/digest"
	"github.com/databio/rgstore/pkg/fasta"
)

// CollectionFromFasta parses a FASTA file (plain, gzip, or xz) into a
// digested collection with payloads stored under mode.
func CollectionFromFasta(path string, mode codec.StorageMode) (*SequenceCollection, error) {
	var records []SequenceRecord
	err := fasta.Read(path, func(rec fasta.Record, _ fasta.FaiRecord) error {
		records = append(records, NewSequenceRecord(rec.Name, rec.Description, rec.Seq, mode))
		return nil
	})
	if err != nil {
		return nil, err
	}
	col := NewCollection(records)
	col.Metadata.FilePath = path
	return col, nil
}

// DigestFasta computes all sequence and collection digests for a FASTA
// file without retaining any payload bytes. The result carries stub
// records only.
func DigestFasta(path string) (*SequenceCollection, error) {
	col, err := CollectionFromFasta(path, codec.ModeRaw)
	if err != nil {
		return nil, err
	}
	for i := range col.Sequences {
		col.Sequences[i].Kind = PayloadAbsent
		col.Sequences[i].Raw = nil
		col.Sequences[i].Encoded = nil
	}
	return col, nil
}

// AddCollection registers a collection and all its member sequences.
// A duplicate collection digest is a no-op unless force is set; member
// sequences follow AddSequence's duplicate policy individually.
func (s *Store) AddCollection(col *SequenceCollection, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dig := col.Metadata.Digest
	if _, ok := s.collections[dig]; ok && !force {
		s.log.WithFields(logrus.Fields{"digest": dig}).Debug("collection already registered, skipping")
		return nil
	}

	entry := &collectionEntry{
		meta:         col.Metadata,
		names:        make([]string, len(col.Sequences)),
		nameToDigest: make(map[string]string, len(col.Sequences)),
	}
	for i := range col.Sequences {
		rec := &col.Sequences[i]
		if err := s.addSequenceLocked(*rec, force); err != nil {
			return err
		}
		entry.names[i] = rec.Metadata.Name
		entry.nameToDigest[rec.Metadata.Name] = rec.Metadata.Sha512t24u
	}
	s.collections[dig] = entry

	s.log.WithFields(logrus.Fields{
		"digest":    dig,
		"sequences": len(col.Sequences),
	}).Info("registered collection")
	return s.persistCollectionLocked(entry)
}

// AddCollectionFromFasta ingests path under the store's storage mode
// and registers the resulting collection.
func (s *Store) AddCollectionFromFasta(path string, force bool) (*SequenceCollection, error) {
	col, err := CollectionFromFasta(path, s.StorageMode())
	if err != nil {
		return nil, err
	}
	if err := s.AddCollection(col, force); err != nil {
		return nil, err
	}
	return col, nil
}

// GetCollection materializes the full collection: every member record
// with payload bytes, fetched from disk or remote as needed.
func (s *Store) GetCollection(ctx context.Context, dig string) (*SequenceCollection, error) {
	s.mu.RLock()
	entry, ok := s.collections[dig]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", ErrNotFound, dig)
	}

	col := &SequenceCollection{
		Metadata:  entry.meta,
		Sequences: make([]SequenceRecord, len(entry.names)),
	}
	for i, name := range entry.names {
		rec, err := s.GetSequence(ctx, entry.nameToDigest[name])
		if err != nil {
			return nil, err
		}
		col.Sequences[i] = *rec
	}
	return col, nil
}

// ListCollections returns the metadata of every registered collection,
// sorted by digest, without touching payloads.
func (s *Store) ListCollections() []SequenceCollectionMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCollectionsLocked()
}

func (s *Store) listCollectionsLocked() []SequenceCollectionMetadata {
	out := make([]SequenceCollectionMetadata, 0, len(s.collections))
	for _, entry := range s.collections {
		out = append(out, entry.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Digest < out[j].Digest })
	return out
}

// IterCollections visits every collection fully materialized.
func (s *Store) IterCollections(ctx context.Context, fn func(*SequenceCollection) error) error {
	for _, meta := range s.ListCollections() {
		col, err := s.GetCollection(ctx, meta.Digest)
		if err != nil {
			return err
		}
		if err := fn(col); err != nil {
			return err
		}
	}
	return nil
}

// CompareCollections reports name and sequence overlap between two
// registered collections, following the seqcol comparison model.
func (s *Store) CompareCollections(digestA, digestB string) (CollectionComparison, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.collections[digestA]
	if !ok {
		return CollectionComparison{}, fmt.Errorf("%w: collection %s", ErrNotFound, digestA)
	}
	b, ok := s.collections[digestB]
	if !ok {
		return CollectionComparison{}, fmt.Errorf("%w: collection %s", ErrNotFound, digestB)
	}

	var cmp CollectionComparison
	for _, name := range a.names {
		if _, shared := b.nameToDigest[name]; shared {
			cmp.SharedNames = append(cmp.SharedNames, name)
		} else {
			cmp.OnlyInA = append(cmp.OnlyInA, name)
		}
	}
	for _, name := range b.names {
		if _, shared := a.nameToDigest[name]; !shared {
			cmp.OnlyInB = append(cmp.OnlyInB, name)
		}
	}

	seqsInA := make(map[string]bool, len(a.names))
	for _, sha := range a.nameToDigest {
		seqsInA[sha] = true
	}
	for _, sha := range b.nameToDigest {
		if seqsInA[sha] {
			cmp.SharedSequences++
		}
	}

	cmp.SameOrder = a.meta.SequencesDigest == b.meta.SequencesDigest
	return cmp, nil
}

// CollectionDigest recomputes a registered collection's digest from its
// level-1 digests. Useful to verify a stub collection's identity.
func (s *Store) CollectionDigest(dig string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.collections[dig]
	if !ok {
		return "", fmt.Errorf("%w: collection %s", ErrNotFound, dig)
	}
	return digest.TopLevel(entry.meta.NamesDigest, entry.meta.SequencesDigest), nil
}
