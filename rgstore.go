// Package rgstore is a content-addressable store for biological
// sequences following the GA4GH refget model: sequences and named
// collections are identified by digests derived from their content.
// Clients fetch whole sequences, byte ranges, or batches of ranges by
// digest or by (collection, name), backed by memory, a local store
// directory, or a lazily cached remote store.
package rgstore

import (
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/databio/rgstore/internal/kvblob"
	"github.com/databio/rgstore/internal/layout"
	"github.com/databio/rgstore/internal/remote"
	"github.com/databio/rgstore/pkg/codec"
)

// Blob backends for persisted stores.
const (
	// BlobBackendFS keeps one file per payload under the seqdata path
	// template. Default.
	BlobBackendFS = "fs"
	// BlobBackendBadger keeps payloads in a Badger database inside the
	// store directory, which suits stores with very many small
	// sequences.
	BlobBackendBadger = "badger"
)

// Config carries store construction options. The zero value is usable:
// encoded storage, default logger, filesystem blobs.
type Config struct {
	// Mode applies to newly ingested sequences. Changing it later
	// never re-encodes what is already stored.
	Mode codec.StorageMode

	// Logger for structured store events; nil selects a default.
	Logger *logrus.Logger

	// Quiet drops the log level to warnings and errors only.
	Quiet bool

	// SeqdataPathTemplate overrides the blob path template. %s2 is the
	// first two digest characters, %s the full digest.
	SeqdataPathTemplate string

	// BlobBackend selects BlobBackendFS or BlobBackendBadger.
	BlobBackend string

	// MinFreeSpace, in bytes, must be available on the target
	// filesystem before a persistence flush. Zero disables the guard.
	MinFreeSpace uint64

	// HTTPClient used for remote stores; nil selects a default.
	HTTPClient *http.Client
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	if c.Quiet {
		c.Logger.SetLevel(logrus.WarnLevel)
	}
	if c.SeqdataPathTemplate == "" {
		c.SeqdataPathTemplate = layout.DefaultSeqDataTemplate
	}
	if c.BlobBackend == "" {
		c.BlobBackend = BlobBackendFS
	}
}

// collectionEntry is the store's internal view of one collection:
// metadata plus ordered membership resolved to sequence digests.
type collectionEntry struct {
	meta         SequenceCollectionMetadata
	names        []string
	nameToDigest map[string]string
}

// aliasTable maps namespace -> alias -> digest.
type aliasTable map[string]map[string]string

// Store is the aggregate root. All access goes through its handle; a
// single RWMutex serializes mutations while lookups run concurrently.
type Store struct {
	mu  sync.RWMutex
	cfg Config
	log *logrus.Logger

	// sha512t24u -> record; sequences are deduplicated across
	// collections.
	sequences map[string]*SequenceRecord
	// md5 -> sha512t24u, so either digest kind resolves.
	md5Lookup   map[string]string
	collections map[string]*collectionEntry
	seqAliases  aliasTable
	colAliases  aliasTable
	fhr         map[string]*FhrMetadata

	// dir is the persistence root; empty while persistence is off.
	dir   string
	blobs *kvblob.Store // non-nil when the Badger backend is active

	// fetcher is set for remote-backed stores; flight coalesces
	// concurrent materializations of the same digest.
	fetcher remote.Fetcher
	flight  singleflight.Group
}

// InMemory creates an empty store with no disk binding.
func InMemory(cfg Config) *Store {
	cfg.setDefaults()
	return &Store{
		cfg:         cfg,
		log:         cfg.Logger,
		sequences:   make(map[string]*SequenceRecord),
		md5Lookup:   make(map[string]string),
		collections: make(map[string]*collectionEntry),
		seqAliases:  make(aliasTable),
		colAliases:  make(aliasTable),
		fhr:         make(map[string]*FhrMetadata),
	}
}

// OnDisk creates an empty store already persisting to dir.
func OnDisk(dir string, cfg Config) (*Store, error) {
	s := InMemory(cfg)
	if err := s.EnablePersistence(dir); err != nil {
		return nil, err
	}
	return s, nil
}

// SetStorageMode changes the mode applied to future ingestion. Stored
// payloads keep their existing representation.
func (s *Store) SetStorageMode(mode codec.StorageMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Mode = mode
}

// StorageMode reports the mode applied to newly ingested sequences.
func (s *Store) StorageMode() codec.StorageMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Mode
}

// Stats summarizes the store's contents without materializing anything.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Sequences:   len(s.sequences),
		Collections: len(s.collections),
	}
	for _, rec := range s.sequences {
		if rec.Kind != PayloadAbsent {
			st.SequencesLoaded++
		}
	}
	for _, m := range s.seqAliases {
		st.SequenceAliases += len(m)
	}
	for _, m := range s.colAliases {
		st.CollectionAliases += len(m)
	}
	return st
}

// Close releases resources held by persistence backends. The in-memory
// index stays usable for reads afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blobs != nil {
		err := s.blobs.Close()
		s.blobs = nil
		return err
	}
	return nil
}
