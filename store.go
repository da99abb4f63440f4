package rgstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/databio/rgstore/pkg/codec"
)

// resolveLocked maps either digest kind to the primary sha512t24u
// record. Callers hold at least a read lock.
func (s *Store) resolveLocked(id string) (string, *SequenceRecord, bool) {
	if sha, ok := s.md5Lookup[id]; ok {
		id = sha
	}
	rec, ok := s.sequences[id]
	return id, rec, ok
}

// AddSequence registers a record under its digests. A duplicate digest
// is a no-op unless force is set, with one exception: a payload always
// replaces a stub, since that only adds information the digests already
// promise.
func (s *Store) AddSequence(rec SequenceRecord, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addSequenceLocked(rec, force)
}

func (s *Store) addSequenceLocked(rec SequenceRecord, force bool) error {
	sha := rec.Metadata.Sha512t24u
	if existing, ok := s.sequences[sha]; ok && !force {
		if existing.Kind == PayloadAbsent && rec.Kind != PayloadAbsent {
			upgraded := *existing
			upgraded.Kind = rec.Kind
			upgraded.Raw = rec.Raw
			upgraded.Encoded = rec.Encoded
			s.sequences[sha] = &upgraded
			return s.persistSequenceLocked(&upgraded)
		}
		s.log.WithFields(logrus.Fields{"digest": sha}).Debug("sequence already registered, skipping")
		return nil
	}
	stored := rec
	s.sequences[sha] = &stored
	s.md5Lookup[rec.Metadata.Md5] = sha
	return s.persistSequenceLocked(&stored)
}

// GetSequence returns the record for either digest kind, materializing
// a stub payload from disk or the remote source. Absence is ErrNotFound.
func (s *Store) GetSequence(ctx context.Context, id string) (*SequenceRecord, error) {
	s.mu.RLock()
	sha, rec, ok := s.resolveLocked(id)
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: sequence %s", ErrNotFound, id)
	}
	if rec.Kind == PayloadAbsent {
		if err := s.materializeSequence(ctx, sha); err != nil {
			return nil, err
		}
		s.mu.RLock()
		rec = s.sequences[sha]
		s.mu.RUnlock()
	}
	return rec, nil
}

// GetSequenceByName resolves name within a collection, then behaves
// like GetSequence.
func (s *Store) GetSequenceByName(ctx context.Context, collectionDigest, name string) (*SequenceRecord, error) {
	s.mu.RLock()
	entry, ok := s.collections[collectionDigest]
	var sha string
	if ok {
		sha, ok = entry.nameToDigest[name]
	}
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: sequence %q in collection %s", ErrNotFound, name, collectionDigest)
	}
	return s.GetSequence(ctx, sha)
}

// GetSubstring returns the decoded byte range [start, end) of the
// identified sequence. An invalid range (start > end or end > length)
// is ErrNotFound, not a distinct failure: absence and emptiness share
// one policy for substring queries.
func (s *Store) GetSubstring(ctx context.Context, id string, start, end int) ([]byte, error) {
	s.mu.RLock()
	sha, rec, ok := s.resolveLocked(id)
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: sequence %s", ErrNotFound, id)
	}
	if start < 0 || start > end || end > rec.Metadata.Length {
		return nil, fmt.Errorf("%w: range [%d,%d) of %s (length %d)",
			ErrNotFound, start, end, id, rec.Metadata.Length)
	}
	if rec.Kind == PayloadAbsent {
		if err := s.materializeSequence(ctx, sha); err != nil {
			return nil, err
		}
		s.mu.RLock()
		rec = s.sequences[sha]
		s.mu.RUnlock()
	}
	sub, err := rec.Range(start, end)
	if errors.Is(err, codec.ErrRange) {
		return nil, fmt.Errorf("%w: range [%d,%d) of %s", ErrNotFound, start, end, id)
	}
	return sub, err
}

// materializeSequence loads the payload for sha from the local blob
// store, falling back to the remote source with write-through caching.
// Concurrent calls for one digest coalesce into a single load; every
// waiter sees the same outcome.
func (s *Store) materializeSequence(ctx context.Context, sha string) error {
	_, err, _ := s.flight.Do(sha, func() (interface{}, error) {
		s.mu.RLock()
		rec, ok := s.sequences[sha]
		loaded := ok && rec.Kind != PayloadAbsent
		fetcher := s.fetcher
		s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: sequence %s", ErrNotFound, sha)
		}
		if loaded {
			return nil, nil
		}

		blob, found, err := s.readLocalBlob(sha)
		if err != nil {
			return nil, err
		}
		if !found {
			if fetcher == nil {
				return nil, fmt.Errorf("%w: no payload stored for %s", ErrNotFound, sha)
			}
			blob, err = s.fetchBlob(ctx, sha, fetcher)
			if err != nil {
				return nil, err
			}
		}

		kind, raw, enc, err := decodeBlob(blob)
		if err != nil {
			return nil, fmt.Errorf("rgstore: payload for %s: %w", sha, err)
		}

		// Swap in a fresh record so readers never observe a payload
		// mid-install.
		s.mu.Lock()
		updated := *rec
		updated.Kind = kind
		updated.Raw = raw
		updated.Encoded = enc
		s.sequences[sha] = &updated
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

// SetSequenceDescription replaces the free-text description on a
// sequence's metadata. Descriptions are annotations; digests never
// cover them.
func (s *Store) SetSequenceDescription(id, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sha, rec, ok := s.resolveLocked(id)
	if !ok {
		return fmt.Errorf("%w: sequence %s", ErrNotFound, id)
	}
	updated := *rec
	updated.Metadata.Description = description
	s.sequences[sha] = &updated
	return s.persistSequenceLocked(&updated)
}

// ListSequences returns metadata for every registered sequence, sorted
// by name then digest. It never materializes payloads.
func (s *Store) ListSequences() []SequenceMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSequencesLocked()
}

func (s *Store) listSequencesLocked() []SequenceMetadata {
	out := make([]SequenceMetadata, 0, len(s.sequences))
	for _, rec := range s.sequences {
		out = append(out, rec.Metadata)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Sha512t24u < out[j].Sha512t24u
	})
	return out
}

// IterSequences visits every sequence with its payload materialized,
// fetching stubs as needed. fn errors stop the iteration.
func (s *Store) IterSequences(ctx context.Context, fn func(*SequenceRecord) error) error {
	s.mu.RLock()
	digests := make([]string, 0, len(s.sequences))
	for sha := range s.sequences {
		digests = append(digests, sha)
	}
	s.mu.RUnlock()
	sort.Strings(digests)

	for _, sha := range digests {
		rec, err := s.GetSequence(ctx, sha)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}
