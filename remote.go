package rgstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/databio/rgstore/internal/index"
	"github.com/databio/rgstore/internal/layout"
	"github.com/databio/rgstore/internal/remote"
)

// OpenRemote mirrors a remote store's metadata into cacheDir and opens
// the cache as a local store that fetches payloads lazily. The manifest
// and index files come down eagerly so listing and digest lookups work
// offline afterwards; sequence blobs are fetched on first access and
// written through to the cache.
func OpenRemote(ctx context.Context, cacheDir, baseURL string, cfg Config) (*Store, error) {
	cfg.setDefaults()
	fetcher := remote.NewCoalescer(remote.NewHTTPFetcher(baseURL, cfg.HTTPClient))

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("rgstore: create cache dir %s: %w", cacheDir, err)
	}

	rawManifest, err := fetcher.Fetch(ctx, layout.ManifestName)
	if err != nil {
		return nil, err
	}
	m, err := index.DecodeManifest(rawManifest)
	if err != nil {
		return nil, err
	}
	if err := layout.WriteFileAtomic(filepath.Join(cacheDir, layout.ManifestName), rawManifest, 0o644); err != nil {
		return nil, err
	}

	if err := mirrorIndexFiles(ctx, fetcher, cacheDir, m); err != nil {
		return nil, err
	}

	s, err := OpenLocal(cacheDir, cfg)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.fetcher = fetcher
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"base":  baseURL,
		"cache": cacheDir,
	}).Info("opened remote store")
	return s, nil
}

// mirrorIndexFiles fetches the sequence index, the collection index,
// and every per-collection file into the cache. Alias tables and FHR
// sidecars stay local-only: the remote protocol has no listing, so the
// cache cannot discover their filenames.
func mirrorIndexFiles(ctx context.Context, fetcher remote.Fetcher, cacheDir string, m index.Manifest) error {
	seqIndex := m.SequenceIndex
	if seqIndex == "" {
		seqIndex = layout.SequenceIndexName
	}
	if err := mirrorFile(ctx, fetcher, cacheDir, seqIndex); err != nil {
		return err
	}

	colIndex := m.CollectionIndex
	if colIndex == "" {
		colIndex = layout.CollectionIndexName
	}
	colRaw, err := fetcher.Fetch(ctx, colIndex)
	if errors.Is(err, remote.ErrNotExists) {
		return nil // remote holds loose sequences only
	}
	if err != nil {
		return err
	}
	rel, err := layout.SanitizeRel(colIndex)
	if err != nil {
		return err
	}
	if err := layout.WriteFileAtomic(filepath.Join(cacheDir, rel), colRaw, 0o644); err != nil {
		return err
	}

	rows, err := index.ParseCollectionIndex(bytes.NewReader(colRaw))
	if err != nil {
		return err
	}
	tmpl := m.CollectionsPathTemplate
	if tmpl == "" {
		tmpl = "collections/%s.rgsi"
	}
	for _, row := range rows {
		if err := mirrorFile(ctx, fetcher, cacheDir, fmt.Sprintf(tmpl, row.Digest)); err != nil {
			return err
		}
	}
	return nil
}

func mirrorFile(ctx context.Context, fetcher remote.Fetcher, cacheDir, relPath string) error {
	rel, err := layout.SanitizeRel(relPath)
	if err != nil {
		return err
	}
	b, err := fetcher.Fetch(ctx, path.Clean(relPath))
	if err != nil {
		return err
	}
	return layout.WriteFileAtomic(filepath.Join(cacheDir, rel), b, 0o644)
}
