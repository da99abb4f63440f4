package fasta

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// multiReadCloser closes every wrapped closer when Close is called.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// open sniffs the file's magic bytes and returns a reader with gzip or
// xz transparently stripped. compressed reports whether a compression
// layer was found, which disables byte-offset indexing.
func open(path string) (rc io.ReadCloser, compressed bool, err error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("fasta: open %s: %w", path, err)
	}
	var sig [6]byte
	n, _ := io.ReadFull(fh, sig[:])
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		_ = fh.Close()
		return nil, false, fmt.Errorf("fasta: seek %s: %w", path, err)
	}

	switch {
	case n >= 2 && sig[0] == gzipMagic[0] && sig[1] == gzipMagic[1]:
		gr, err := gzip.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, false, fmt.Errorf("fasta: gzip %s: %w", path, err)
		}
		return &multiReadCloser{Reader: gr, closers: []io.Closer{gr, fh}}, true, nil
	case n >= 6 && string(sig[:6]) == string(xzMagic):
		xr, err := xz.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, false, fmt.Errorf("fasta: xz %s: %w", path, err)
		}
		return &multiReadCloser{Reader: xr, closers: []io.Closer{fh}}, true, nil
	}
	return fh, false, nil
}
