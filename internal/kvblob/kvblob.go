// Package kvblob stores sequence payload blobs in a Badger database,
// keyed by digest. It is the alternative to fan-out blob files for
// stores holding very many small sequences, where one file per digest
// wastes inodes and directory lookups.
package kvblob

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// ErrNotFound reports a digest with no stored blob.
var ErrNotFound = errors.New("kvblob: blob not found")

// Config for opening a blob database.
type Config struct {
	Path   string // directory holding the Badger DB
	Logger *logrus.Logger
}

// Store is a digest-keyed blob store backed by Badger.
type Store struct {
	db *badger.DB
}

// Open opens or creates the blob database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	log = cfg.Logger

	if cfg.Path == "" {
		return nil, fmt.Errorf("kvblob: no path configured")
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kvblob: open %s: %w", cfg.Path, err)
	}
	log.WithFields(logrus.Fields{"path": cfg.Path}).Debug("opened blob database")
	return &Store{db: db}, nil
}

// Put stores content under digest, overwriting any prior blob.
func (s *Store) Put(digest string, content []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(digest), content)
	})
	if err != nil {
		return fmt.Errorf("kvblob: put %s: %w", digest, err)
	}
	return nil
}

// Get returns the blob stored under digest, or ErrNotFound.
func (s *Store) Get(digest string) ([]byte, error) {
	var content []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(digest))
		if err != nil {
			return err
		}
		content, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
	}
	if err != nil {
		return nil, fmt.Errorf("kvblob: get %s: %w", digest, err)
	}
	return content, nil
}

// Has reports whether a blob exists for digest.
func (s *Store) Has(digest string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(digest))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kvblob: check %s: %w", digest, err)
	}
	return true, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
