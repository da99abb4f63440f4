package rgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/databio/rgstore/internal/index"
	"github.com/databio/rgstore/internal/kvblob"
	"github.com/databio/rgstore/internal/layout"
	"github.com/databio/rgstore/internal/remote"
	"github.com/databio/rgstore/pkg/alphabet"
	"github.com/databio/rgstore/pkg/codec"
)

// blobEnvelope is the stored form of a payload. Tagging the kind in the
// blob keeps mixed-mode stores unambiguous on reload.
type blobEnvelope struct {
	Kind uint8          `msgpack:"k"` // 1 raw, 2 encoded
	Raw  []byte         `msgpack:"r,omitempty"`
	Enc  *codec.Encoded `msgpack:"e,omitempty"`
}

func encodeBlob(rec *SequenceRecord) ([]byte, error) {
	env := blobEnvelope{}
	switch rec.Kind {
	case PayloadRaw:
		env.Kind = 1
		env.Raw = rec.Raw
	case PayloadEncoded:
		env.Kind = 2
		env.Enc = rec.Encoded
	default:
		return nil, fmt.Errorf("rgstore: no payload to store for %s", rec.Metadata.Sha512t24u)
	}
	b, err := msgpack.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("rgstore: encode blob: %w", err)
	}
	return b, nil
}

func decodeBlob(b []byte) (PayloadKind, []byte, *codec.Encoded, error) {
	var env blobEnvelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return PayloadAbsent, nil, nil, fmt.Errorf("rgstore: decode blob: %w", err)
	}
	switch env.Kind {
	case 1:
		return PayloadRaw, env.Raw, nil, nil
	case 2:
		if env.Enc == nil {
			return PayloadAbsent, nil, nil, fmt.Errorf("rgstore: encoded blob missing payload")
		}
		return PayloadEncoded, nil, env.Enc, nil
	}
	return PayloadAbsent, nil, nil, fmt.Errorf("rgstore: unknown blob kind %d", env.Kind)
}

// EnablePersistence binds the store to dir, flushes the full in-memory
// state, and mirrors every later mutation to disk. Index files are
// written via temp-and-rename, so a crash leaves the previous on-disk
// state intact.
func (s *Store) EnablePersistence(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == dir && s.dir != "" {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rgstore: create store dir %s: %w", dir, err)
	}
	if err := layout.CheckFreeSpace(s.log, dir, s.cfg.MinFreeSpace); err != nil {
		return err
	}
	if s.cfg.BlobBackend == BlobBackendBadger {
		if s.blobs != nil {
			if err := s.blobs.Close(); err != nil {
				return err
			}
			s.blobs = nil
		}
		blobs, err := kvblob.Open(kvblob.Config{
			Path:   filepath.Join(dir, layout.BadgerDir),
			Logger: s.log,
		})
		if err != nil {
			return err
		}
		s.blobs = blobs
	}
	s.dir = dir

	if err := s.flushLocked(); err != nil {
		s.dir = ""
		if s.blobs != nil {
			_ = s.blobs.Close()
			s.blobs = nil
		}
		return err
	}
	s.log.WithFields(logrus.Fields{"dir": dir}).Info("persistence enabled")
	return nil
}

// DisablePersistence detaches disk mirroring. In-memory state stays as
// is; the directory keeps whatever was last flushed.
func (s *Store) DisablePersistence() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dir = ""
	if s.blobs != nil {
		err := s.blobs.Close()
		s.blobs = nil
		return err
	}
	return nil
}

// flushLocked writes the complete store state: manifest, both index
// files, per-collection files, alias tables, FHR sidecars, and a blob
// for every materialized payload.
func (s *Store) flushLocked() error {
	if err := s.writeManifestLocked(); err != nil {
		return err
	}
	if err := s.writeSequenceIndexLocked(); err != nil {
		return err
	}
	if err := s.writeCollectionIndexLocked(); err != nil {
		return err
	}
	for _, entry := range s.collections {
		if err := s.writeCollectionFileLocked(entry); err != nil {
			return err
		}
	}
	if err := s.persistAliasesLocked(); err != nil {
		return err
	}
	for dig, meta := range s.fhr {
		if err := s.writeFhrSidecarLocked(dig, meta); err != nil {
			return err
		}
	}
	for _, rec := range s.sequences {
		if rec.Kind == PayloadAbsent {
			continue
		}
		if err := s.writeBlobLocked(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeManifestLocked() error {
	m := index.Manifest{
		Version:                 index.ManifestVersion,
		SeqdataPathTemplate:     s.cfg.SeqdataPathTemplate,
		CollectionsPathTemplate: "collections/%s.rgsi",
		SequenceIndex:           layout.SequenceIndexName,
		CollectionIndex:         layout.CollectionIndexName,
		Mode:                    s.cfg.Mode.String(),
		BlobBackend:             s.cfg.BlobBackend,
		CreatedAt:               time.Now().UTC().Format(time.RFC3339),
	}
	b, err := index.EncodeManifest(m)
	if err != nil {
		return err
	}
	return layout.WriteFileAtomic(filepath.Join(s.dir, layout.ManifestName), b, 0o644)
}

func (s *Store) sequenceRowsLocked() []index.SequenceRow {
	metas := make([]index.SequenceRow, 0, len(s.sequences))
	for _, m := range s.listSequencesLocked() {
		metas = append(metas, index.SequenceRow{
			Name:        m.Name,
			Length:      m.Length,
			Alphabet:    m.Alphabet.String(),
			Sha512t24u:  m.Sha512t24u,
			Md5:         m.Md5,
			Description: m.Description,
		})
	}
	return metas
}

func (s *Store) writeSequenceIndexLocked() error {
	doc := index.FormatSequenceIndex(s.sequenceRowsLocked())
	return layout.WriteFileAtomic(filepath.Join(s.dir, layout.SequenceIndexName), doc, 0o644)
}

func (s *Store) writeCollectionIndexLocked() error {
	rows := make([]index.CollectionRow, 0, len(s.collections))
	for _, meta := range s.listCollectionsLocked() {
		rows = append(rows, index.CollectionRow{
			Digest:          meta.Digest,
			NSequences:      meta.NSequences,
			NamesDigest:     meta.NamesDigest,
			SequencesDigest: meta.SequencesDigest,
			LengthsDigest:   meta.LengthsDigest,
		})
	}
	doc := index.FormatCollectionIndex(rows)
	return layout.WriteFileAtomic(filepath.Join(s.dir, layout.CollectionIndexName), doc, 0o644)
}

func (s *Store) writeCollectionFileLocked(entry *collectionEntry) error {
	cf := index.CollectionFile{
		Digest:          entry.meta.Digest,
		NamesDigest:     entry.meta.NamesDigest,
		SequencesDigest: entry.meta.SequencesDigest,
		LengthsDigest:   entry.meta.LengthsDigest,
	}
	for _, name := range entry.names {
		rec, ok := s.sequences[entry.nameToDigest[name]]
		if !ok {
			return fmt.Errorf("rgstore: collection %s references unknown sequence %q", entry.meta.Digest, name)
		}
		cf.Sequences = append(cf.Sequences, index.SequenceRow{
			Name:        name,
			Length:      rec.Metadata.Length,
			Alphabet:    rec.Metadata.Alphabet.String(),
			Sha512t24u:  rec.Metadata.Sha512t24u,
			Md5:         rec.Metadata.Md5,
			Description: rec.Metadata.Description,
		})
	}
	path := filepath.Join(s.dir, layout.CollectionsDir, entry.meta.Digest+".rgsi")
	return layout.WriteFileAtomic(path, index.FormatCollectionFile(cf), 0o644)
}

func (s *Store) persistSequenceLocked(rec *SequenceRecord) error {
	if s.dir == "" {
		return nil
	}
	if rec.Kind != PayloadAbsent {
		if err := s.writeBlobLocked(rec); err != nil {
			return err
		}
	}
	return s.writeSequenceIndexLocked()
}

func (s *Store) persistCollectionLocked(entry *collectionEntry) error {
	if s.dir == "" {
		return nil
	}
	if err := s.writeCollectionFileLocked(entry); err != nil {
		return err
	}
	return s.writeCollectionIndexLocked()
}

func (s *Store) persistAliasesLocked() error {
	if s.dir == "" {
		return nil
	}
	if err := s.writeAliasTableLocked("sequences", s.seqAliases); err != nil {
		return err
	}
	return s.writeAliasTableLocked("collections", s.colAliases)
}

func (s *Store) writeAliasTableLocked(kind string, table aliasTable) error {
	dir := filepath.Join(s.dir, layout.AliasesDir, kind)

	// Drop files for namespaces that no longer exist.
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("rgstore: read alias dir %s: %w", dir, err)
	}
	for _, e := range entries {
		ns := strings.TrimSuffix(e.Name(), ".tsv")
		if _, ok := table[ns]; !ok {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("rgstore: remove stale alias file: %w", err)
			}
		}
	}

	for ns := range table {
		rows := make([]index.AliasRow, 0, len(table[ns]))
		for _, a := range table.list(ns) {
			rows = append(rows, index.AliasRow{Alias: a.Alias, Digest: a.Digest})
		}
		path := filepath.Join(dir, ns+".tsv")
		if err := layout.WriteFileAtomic(path, index.FormatAliases(rows), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeFhrSidecarLocked(dig string, meta *FhrMetadata) error {
	if s.dir == "" {
		return nil
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("rgstore: encode fhr sidecar for %s: %w", dig, err)
	}
	path := filepath.Join(s.dir, layout.CollectionsDir, dig+".fhr.json")
	return layout.WriteFileAtomic(path, append(b, '\n'), 0o644)
}

// blobRelPath expands the configured template and checks the result
// stays inside the store directory.
func (s *Store) blobRelPath(sha string) (string, error) {
	return layout.SanitizeRel(layout.BlobPath(s.cfg.SeqdataPathTemplate, sha))
}

func (s *Store) writeBlobLocked(rec *SequenceRecord) error {
	blob, err := encodeBlob(rec)
	if err != nil {
		return err
	}
	return s.writeBlobBytesLocked(rec.Metadata.Sha512t24u, blob)
}

func (s *Store) writeBlobBytesLocked(sha string, blob []byte) error {
	if s.blobs != nil {
		return s.blobs.Put(sha, blob)
	}
	rel, err := s.blobRelPath(sha)
	if err != nil {
		return err
	}
	return layout.WriteFileAtomic(filepath.Join(s.dir, rel), blob, 0o644)
}

// readLocalBlob looks the digest up in the local blob store. found is
// false when the store has no payload for it, which is not an error.
func (s *Store) readLocalBlob(sha string) (blob []byte, found bool, err error) {
	s.mu.RLock()
	dir, blobs := s.dir, s.blobs
	s.mu.RUnlock()
	if dir == "" {
		return nil, false, nil
	}
	if blobs != nil {
		blob, err := blobs.Get(sha)
		if errors.Is(err, kvblob.ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return blob, true, nil
	}
	rel, err := s.blobRelPath(sha)
	if err != nil {
		return nil, false, err
	}
	blob, err = os.ReadFile(filepath.Join(dir, rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("rgstore: read blob for %s: %w", sha, err)
	}
	return blob, true, nil
}

// fetchBlob pulls a payload from the remote source and writes it
// through to the local cache before returning it.
func (s *Store) fetchBlob(ctx context.Context, sha string, fetcher remote.Fetcher) ([]byte, error) {
	rel, err := s.blobRelPath(sha)
	if err != nil {
		return nil, err
	}
	blob, err := fetcher.Fetch(ctx, filepath.ToSlash(rel))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := s.writeBlobBytesLocked(sha, blob); err != nil {
			return nil, err
		}
	}
	return blob, nil
}

// OpenLocal opens an existing store directory, rehydrating indexes,
// aliases, and FHR sidecars eagerly while leaving payloads as stubs to
// be read through from blob storage on first access.
func OpenLocal(dir string, cfg Config) (*Store, error) {
	manifestPath := filepath.Join(dir, layout.ManifestName)
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("rgstore: read manifest %s: %w", manifestPath, err)
	}
	m, err := index.DecodeManifest(raw)
	if err != nil {
		return nil, err
	}

	mode, err := codec.ParseStorageMode(m.Mode)
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	if m.SeqdataPathTemplate != "" {
		cfg.SeqdataPathTemplate = m.SeqdataPathTemplate
	}
	if m.BlobBackend != "" {
		cfg.BlobBackend = m.BlobBackend
	}
	s := InMemory(cfg)

	if err := s.loadIndexes(dir, m); err != nil {
		return nil, err
	}
	if err := s.loadAliases(dir); err != nil {
		return nil, err
	}
	if err := s.loadFhrSidecars(dir); err != nil {
		return nil, err
	}

	if s.cfg.BlobBackend == BlobBackendBadger {
		blobs, err := kvblob.Open(kvblob.Config{
			Path:   filepath.Join(dir, layout.BadgerDir),
			Logger: s.log,
		})
		if err != nil {
			return nil, err
		}
		s.blobs = blobs
	}
	s.dir = dir

	s.log.WithFields(logrus.Fields{
		"dir":         dir,
		"sequences":   len(s.sequences),
		"collections": len(s.collections),
	}).Info("opened local store")
	return s, nil
}

func (s *Store) loadIndexes(dir string, m index.Manifest) error {
	seqIndex := m.SequenceIndex
	if seqIndex == "" {
		seqIndex = layout.SequenceIndexName
	}
	rel, err := layout.SanitizeRel(seqIndex)
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(dir, rel))
	if err != nil {
		return fmt.Errorf("rgstore: sequence index: %w", err)
	}
	rows, err := index.ParseSequenceIndex(f)
	_ = f.Close()
	if err != nil {
		return err
	}
	for _, row := range rows {
		rec, err := stubFromRow(row)
		if err != nil {
			return err
		}
		s.sequences[rec.Metadata.Sha512t24u] = rec
		s.md5Lookup[rec.Metadata.Md5] = rec.Metadata.Sha512t24u
	}

	colIndex := m.CollectionIndex
	if colIndex == "" {
		colIndex = layout.CollectionIndexName
	}
	rel, err = layout.SanitizeRel(colIndex)
	if err != nil {
		return err
	}
	cf, err := os.Open(filepath.Join(dir, rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil // a store may hold loose sequences only
	}
	if err != nil {
		return fmt.Errorf("rgstore: collection index: %w", err)
	}
	colRows, err := index.ParseCollectionIndex(cf)
	_ = cf.Close()
	if err != nil {
		return err
	}

	for _, row := range colRows {
		if err := s.loadCollectionFile(dir, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadCollectionFile(dir string, row index.CollectionRow) error {
	rel, err := layout.SanitizeRel(filepath.Join(layout.CollectionsDir, row.Digest+".rgsi"))
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(dir, rel))
	if err != nil {
		return fmt.Errorf("rgstore: collection file for %s: %w", row.Digest, err)
	}
	cf, err := index.ParseCollectionFile(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	entry := &collectionEntry{
		meta: SequenceCollectionMetadata{
			Digest:          row.Digest,
			NSequences:      row.NSequences,
			NamesDigest:     row.NamesDigest,
			SequencesDigest: row.SequencesDigest,
			LengthsDigest:   row.LengthsDigest,
		},
		nameToDigest: make(map[string]string, len(cf.Sequences)),
	}
	for _, seqRow := range cf.Sequences {
		if _, ok := s.sequences[seqRow.Sha512t24u]; !ok {
			rec, err := stubFromRow(seqRow)
			if err != nil {
				return err
			}
			s.sequences[seqRow.Sha512t24u] = rec
			s.md5Lookup[seqRow.Md5] = seqRow.Sha512t24u
		}
		entry.names = append(entry.names, seqRow.Name)
		entry.nameToDigest[seqRow.Name] = seqRow.Sha512t24u
	}
	s.collections[row.Digest] = entry
	return nil
}

func stubFromRow(row index.SequenceRow) (*SequenceRecord, error) {
	alpha, err := alphabet.Parse(row.Alphabet)
	if err != nil {
		return nil, err
	}
	return &SequenceRecord{
		Metadata: SequenceMetadata{
			Name:        row.Name,
			Length:      row.Length,
			Sha512t24u:  row.Sha512t24u,
			Md5:         row.Md5,
			Alphabet:    alpha,
			Description: row.Description,
		},
		Kind: PayloadAbsent,
	}, nil
}

func (s *Store) loadAliases(dir string) error {
	for kind, table := range map[string]aliasTable{
		"sequences":   s.seqAliases,
		"collections": s.colAliases,
	} {
		nsDir := filepath.Join(dir, layout.AliasesDir, kind)
		entries, err := os.ReadDir(nsDir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("rgstore: read alias dir %s: %w", nsDir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".tsv") {
				continue
			}
			ns := strings.TrimSuffix(e.Name(), ".tsv")
			f, err := os.Open(filepath.Join(nsDir, e.Name()))
			if err != nil {
				return fmt.Errorf("rgstore: open alias file: %w", err)
			}
			rows, err := index.ParseAliases(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			for _, row := range rows {
				table.add(ns, row.Alias, row.Digest)
			}
		}
	}
	return nil
}

func (s *Store) loadFhrSidecars(dir string) error {
	colDir := filepath.Join(dir, layout.CollectionsDir)
	entries, err := os.ReadDir(colDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("rgstore: read collections dir: %w", err)
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".fhr.json") {
			continue
		}
		dig := strings.TrimSuffix(e.Name(), ".fhr.json")
		raw, err := os.ReadFile(filepath.Join(colDir, e.Name()))
		if err != nil {
			return fmt.Errorf("rgstore: read fhr sidecar: %w", err)
		}
		var meta FhrMetadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("rgstore: parse fhr sidecar %s: %w", e.Name(), err)
		}
		s.fhr[dig] = &meta
	}
	return nil
}
