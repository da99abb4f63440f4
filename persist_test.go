package rgstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databio/rgstore/internal/layout"
	"github.com/databio/rgstore/pkg/codec"
)

func chrXBlobRel() string {
	return filepath.Join("sequences", chrXSha[:2], chrXSha+".seq")
}

func TestOnDiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig()
	cfg.Mode = codec.ModeRaw

	s, err := OnDisk(dir, cfg)
	require.NoError(t, err)
	col, err := s.AddCollectionFromFasta(writeFasta(t, demoFasta), false)
	require.NoError(t, err)

	for _, rel := range []string{
		layout.ManifestName,
		layout.SequenceIndexName,
		layout.CollectionIndexName,
		filepath.Join(layout.CollectionsDir, col.Metadata.Digest+".rgsi"),
		chrXBlobRel(),
	} {
		_, err := os.Stat(filepath.Join(dir, rel))
		assert.NoError(t, err, rel)
	}
	require.NoError(t, s.Close())

	re, err := OpenLocal(dir, quietConfig())
	require.NoError(t, err)
	defer re.Close()

	assert.Equal(t, codec.ModeRaw, re.StorageMode())
	st := re.Stats()
	assert.Equal(t, 3, st.Sequences)
	assert.Equal(t, 0, st.SequencesLoaded, "payloads stay on disk until requested")
	assert.Equal(t, 1, st.Collections)

	metas := re.ListCollections()
	require.Len(t, metas, 1)
	assert.Equal(t, col.Metadata.Digest, metas[0].Digest)
	assert.Equal(t, demoNamesDigest, metas[0].NamesDigest)

	ctx := context.Background()
	sub, err := re.GetSubstring(ctx, chrXSha, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, "GGGG", string(sub))
	assert.Equal(t, 1, re.Stats().SequencesLoaded)

	full, err := re.GetCollection(ctx, col.Metadata.Digest)
	require.NoError(t, err)
	for i := range full.Sequences {
		seq, ok := full.Sequences[i].Sequence()
		require.True(t, ok)
		assert.Equal(t, full.Sequences[i].Metadata.Length, len(seq))
	}
}

func TestBadgerBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig()
	cfg.BlobBackend = BlobBackendBadger

	s, err := OnDisk(dir, cfg)
	require.NoError(t, err)
	_, err = s.AddCollectionFromFasta(writeFasta(t, demoFasta), false)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(dir, layout.BadgerDir))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, chrXBlobRel()))
	assert.True(t, os.IsNotExist(err), "badger stores carry no per-file blobs")

	re, err := OpenLocal(dir, quietConfig())
	require.NoError(t, err)
	defer re.Close()

	sub, err := re.GetSubstring(context.Background(), chrXSha, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, "TTGGGGAA", string(sub))
}

func TestAliasAndFhrPersistence(t *testing.T) {
	dir := t.TempDir()
	s, err := OnDisk(dir, quietConfig())
	require.NoError(t, err)
	col, err := s.AddCollectionFromFasta(writeFasta(t, demoFasta), false)
	require.NoError(t, err)

	require.NoError(t, s.AddSequenceAlias("ncbi", "NC_000001.11", chrXSha))
	require.NoError(t, s.AddCollectionAlias("demo", "grch38", col.Metadata.Digest))
	require.NoError(t, s.SetFhrMetadata(col.Metadata.Digest, FhrMetadata{Genome: "demo-genome"}))
	require.NoError(t, s.Close())

	re, err := OpenLocal(dir, quietConfig())
	require.NoError(t, err)
	defer re.Close()

	rec, err := re.GetSequenceByAlias(context.Background(), "ncbi", "NC_000001.11")
	require.NoError(t, err)
	assert.Equal(t, chrXSha, rec.Metadata.Sha512t24u)

	meta, err := re.GetCollectionByAlias("demo", "grch38")
	require.NoError(t, err)
	assert.Equal(t, col.Metadata.Digest, meta.Digest)

	fhr, err := re.GetFhrMetadata(col.Metadata.Digest)
	require.NoError(t, err)
	assert.Equal(t, "demo-genome", fhr.Genome)

	// removals rewrite the namespace files too
	require.NoError(t, re.RemoveSequenceAlias("ncbi", "NC_000001.11"))
	again, err := OpenLocal(dir, quietConfig())
	require.NoError(t, err)
	defer again.Close()
	assert.Empty(t, again.ListSequenceAliases("ncbi"))
}

func TestEnablePersistenceFlushFailureReleasesBlobs(t *testing.T) {
	dir := t.TempDir()
	// A directory squatting on the manifest path makes the flush fail
	// after the Badger handle is already open.
	require.NoError(t, os.Mkdir(filepath.Join(dir, layout.ManifestName), 0o755))

	cfg := quietConfig()
	cfg.BlobBackend = BlobBackendBadger
	s := InMemory(cfg)
	_, err := s.AddCollectionFromFasta(writeFasta(t, demoFasta), false)
	require.NoError(t, err)

	require.Error(t, s.EnablePersistence(dir))

	// Reopening the same Badger directory only works if the failed
	// attempt released its lock.
	require.NoError(t, os.Remove(filepath.Join(dir, layout.ManifestName)))
	require.NoError(t, s.EnablePersistence(dir))
	require.NoError(t, s.Close())
}

func TestDisableAndReenablePersistence(t *testing.T) {
	dir := t.TempDir()
	s, err := OnDisk(dir, quietConfig())
	require.NoError(t, err)
	_, err = s.AddCollectionFromFasta(writeFasta(t, demoFasta), false)
	require.NoError(t, err)

	require.NoError(t, s.DisablePersistence())
	extra, err := s.AddCollectionFromFasta(writeFasta(t, ">chrM\nACGTACGT\n"), false)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, layout.CollectionsDir, extra.Metadata.Digest+".rgsi"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.EnablePersistence(dir))
	_, err = os.Stat(filepath.Join(dir, layout.CollectionsDir, extra.Metadata.Digest+".rgsi"))
	assert.NoError(t, err, "re-enabling flushes everything added while detached")
}

func buildOrigin(t *testing.T) string {
	t.Helper()
	origin := t.TempDir()
	s, err := OnDisk(origin, quietConfig())
	require.NoError(t, err)
	_, err = s.AddCollectionFromFasta(writeFasta(t, demoFasta), false)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	return origin
}

func TestOpenRemote(t *testing.T) {
	origin := buildOrigin(t)
	srv := httptest.NewServer(http.FileServer(http.Dir(origin)))
	defer srv.Close()

	cache := t.TempDir()
	ctx := context.Background()
	r, err := OpenRemote(ctx, cache, srv.URL, quietConfig())
	require.NoError(t, err)
	defer r.Close()

	// Metadata mirrors eagerly, payloads stay remote.
	require.Len(t, r.ListCollections(), 1)
	assert.Equal(t, 0, r.Stats().SequencesLoaded)

	sub, err := r.GetSubstring(ctx, chrXSha, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, "GGGG", string(sub))

	// The fetched blob is cached through to disk.
	_, err = os.Stat(filepath.Join(cache, chrXBlobRel()))
	require.NoError(t, err)

	// The cache now serves that payload with no remote at all.
	local, err := OpenLocal(cache, quietConfig())
	require.NoError(t, err)
	defer local.Close()
	sub, err = local.GetSubstring(ctx, chrXSha, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, "GGGG", string(sub))

	// Unfetched payloads are absent without a fetcher.
	col := local.ListCollections()[0]
	_, err = local.GetSequenceByName(ctx, col.Digest, "chr1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenRemoteMissingBlob(t *testing.T) {
	origin := buildOrigin(t)
	require.NoError(t, os.RemoveAll(filepath.Join(origin, "sequences")))
	srv := httptest.NewServer(http.FileServer(http.Dir(origin)))
	defer srv.Close()

	r, err := OpenRemote(context.Background(), t.TempDir(), srv.URL, quietConfig())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.GetSequence(context.Background(), chrXSha)
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestOpenRemoteNoCollections(t *testing.T) {
	origin := buildOrigin(t)
	require.NoError(t, os.Remove(filepath.Join(origin, layout.CollectionIndexName)))
	require.NoError(t, os.RemoveAll(filepath.Join(origin, "collections")))
	srv := httptest.NewServer(http.FileServer(http.Dir(origin)))
	defer srv.Close()

	r, err := OpenRemote(context.Background(), t.TempDir(), srv.URL, quietConfig())
	require.NoError(t, err)
	defer r.Close()

	assert.Empty(t, r.ListCollections())
	assert.Len(t, r.ListSequences(), 3)
}

// A transient server failure must abort the open, not masquerade as a
// sequences-only remote.
func TestOpenRemoteCollectionIndexError(t *testing.T) {
	origin := buildOrigin(t)
	files := http.FileServer(http.Dir(origin))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if filepath.Base(req.URL.Path) == layout.CollectionIndexName {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		files.ServeHTTP(w, req)
	}))
	defer srv.Close()

	_, err := OpenRemote(context.Background(), t.TempDir(), srv.URL, quietConfig())
	assert.ErrorIs(t, err, ErrFetchFailed)
}
