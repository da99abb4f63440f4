package rgstore

import (
	"context"
	"fmt"

	"github.com/databio/rgstore/pkg/fasta"
)

// exportHeader renders the FASTA header line for a stored sequence:
// name, length, alphabet, both digests, and the description when one
// was recorded at ingest.
func exportHeader(m SequenceMetadata) string {
	h := fmt.Sprintf("%s %d %s %s %s", m.Name, m.Length, m.Alphabet, m.Sha512t24u, m.Md5)
	if m.Description != "" {
		h += " " + m.Description
	}
	return h
}

// ExportFasta writes a collection's sequences to path as FASTA. A nil
// names slice exports every member in collection order; otherwise the
// named members are written in the requested order, and a name the
// collection does not hold fails the whole export. Stub payloads are
// materialized through the usual local-then-remote path. A path ending
// in .gz produces gzip output.
func (s *Store) ExportFasta(ctx context.Context, collectionDigest, path string, names []string, lineWidth int) error {
	s.mu.RLock()
	entry, ok := s.collections[collectionDigest]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: collection %s", ErrNotFound, collectionDigest)
	}

	if names == nil {
		names = entry.names
	}
	digests := make([]string, len(names))
	for i, name := range names {
		dig, ok := entry.nameToDigest[name]
		if !ok {
			return fmt.Errorf("%w: sequence %q in collection %s", ErrNotFound, name, collectionDigest)
		}
		digests[i] = dig
	}
	return s.ExportFastaByDigests(ctx, digests, path, lineWidth)
}

// ExportFastaByDigests writes the identified sequences (either digest
// kind) to path as FASTA, in input order.
func (s *Store) ExportFastaByDigests(ctx context.Context, digests []string, path string, lineWidth int) error {
	out, err := fasta.Create(path)
	if err != nil {
		return err
	}
	w := fasta.NewWriter(out, lineWidth)

	for _, dig := range digests {
		rec, err := s.GetSequence(ctx, dig)
		if err != nil {
			_ = out.Close()
			return err
		}
		seq, ok := rec.Sequence()
		if !ok {
			_ = out.Close()
			return fmt.Errorf("%w: no payload stored for %s", ErrNotFound, dig)
		}
		if err := w.Write(exportHeader(rec.Metadata), seq); err != nil {
			_ = out.Close()
			return fmt.Errorf("rgstore: export %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = out.Close()
		return fmt.Errorf("rgstore: export %s: %w", path, err)
	}
	return out.Close()
}
