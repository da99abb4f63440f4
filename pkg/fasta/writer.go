package fasta

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DefaultLineWidth is the wrap width used when a caller passes 0.
const DefaultLineWidth = 80

// Writer emits FASTA records with a fixed wrap width.
type Writer struct {
	w     *bufio.Writer
	width int
}

// NewWriter wraps w; width <= 0 selects DefaultLineWidth.
func NewWriter(w io.Writer, width int) *Writer {
	if width <= 0 {
		width = DefaultLineWidth
	}
	return &Writer{w: bufio.NewWriter(w), width: width}
}

// Write emits one record. The header is written after '>' verbatim, so
// callers control the full header format.
func (w *Writer) Write(header string, seq []byte) error {
	if _, err := fmt.Fprintf(w.w, ">%s\n", header); err != nil {
		return err
	}
	for start := 0; start < len(seq); start += w.width {
		end := start + w.width
		if end > len(seq) {
			end = len(seq)
		}
		if _, err := w.w.Write(seq[start:end]); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if len(seq) == 0 {
		return w.w.WriteByte('\n')
	}
	return nil
}

// Flush drains buffered output.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

type gzFileWriter struct {
	gz *gzip.Writer
	f  *os.File
}

func (g *gzFileWriter) Write(p []byte) (int, error) { return g.gz.Write(p) }

func (g *gzFileWriter) Close() error {
	if err := g.gz.Close(); err != nil {
		_ = g.f.Close()
		return err
	}
	return g.f.Close()
}

// Create opens path for FASTA output, layering gzip compression when
// the name ends in .gz.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("fasta: create %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".gz") {
		return &gzFileWriter{gz: gzip.NewWriter(f), f: f}, nil
	}
	return f, nil
}
