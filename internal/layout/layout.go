// Package layout owns the on-disk shape of a store directory: blob
// path templating, relative-path safety checks, atomic file writes, and
// the free-space guard run before a flush.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// Well-known names inside a store directory.
const (
	ManifestName        = "rgstore.json"
	SequenceIndexName   = "sequences.rgsi"
	CollectionIndexName = "collections.rgci"
	CollectionsDir      = "collections"
	AliasesDir          = "aliases"
	BadgerDir           = "blobs.badger"

	// DefaultSeqDataTemplate fans blobs out by the first two digest
	// characters: %s2 expands to those, %s to the full digest.
	DefaultSeqDataTemplate = "sequences/%s2/%s.seq"
)

// ErrUnsafePath reports a relative path that would escape the store
// root or contains bytes that cannot appear in a path component.
var ErrUnsafePath = errors.New("layout: unsafe relative path")

// BlobPath expands a seqdata path template for a digest. Templates use
// %s2 for the first two digest characters and %s for the whole digest.
func BlobPath(template, digest string) string {
	if template == "" {
		template = DefaultSeqDataTemplate
	}
	fanout := digest
	if len(fanout) > 2 {
		fanout = fanout[:2]
	}
	out := strings.ReplaceAll(template, "%s2", fanout)
	return strings.ReplaceAll(out, "%s", digest)
}

// SanitizeRel validates a relative path read from a manifest or used as
// a fetch target before it is joined under a local root.
func SanitizeRel(rel string) (string, error) {
	if rel == "" || strings.ContainsRune(rel, 0) || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	return clean, nil
}

// WriteFileAtomic writes data to path via a temp file in the same
// directory followed by a rename, so a crash mid-write leaves the prior
// file intact. Parent directories are created as needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("layout: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("layout: temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("layout: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("layout: close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("layout: chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("layout: rename to %s: %w", path, err)
	}
	return nil
}

// CheckFreeSpace fails when the filesystem holding dir has less than
// minFree bytes available. A zero minFree disables the guard.
func CheckFreeSpace(log *logrus.Logger, dir string, minFree uint64) error {
	if minFree == 0 {
		return nil
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		return fmt.Errorf("layout: disk usage for %s: %w", dir, err)
	}
	if log != nil {
		log.WithFields(logrus.Fields{
			"dir":  dir,
			"free": usage.Free,
			"min":  minFree,
		}).Debug("free space check")
	}
	if usage.Free < minFree {
		return fmt.Errorf("layout: %s has %d bytes free, need at least %d", dir, usage.Free, minFree)
	}
	return nil
}
