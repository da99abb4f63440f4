// Package codec implements the packed storage representation for
// sequences: four bases per byte, two bits each, with an exception list
// carrying every position that is not a plain A/C/G/T. Decoding an
// encoded payload reproduces the uppercased ingest bytes exactly.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// StorageMode selects how a store keeps newly ingested payloads.
// Changing a store's mode never re-encodes sequences already stored.
type StorageMode int

const (
	// ModeEncoded packs sequences with this codec. Default.
	ModeEncoded StorageMode = iota
	// ModeRaw stores ingested bytes verbatim, case preserved.
	ModeRaw
)

func (m StorageMode) String() string {
	if m == ModeRaw {
		return "raw"
	}
	return "encoded"
}

// ParseStorageMode reads the manifest representation of a mode.
func ParseStorageMode(s string) (StorageMode, error) {
	switch s {
	case "raw":
		return ModeRaw, nil
	case "encoded", "":
		return ModeEncoded, nil
	}
	return ModeEncoded, fmt.Errorf("codec: unknown storage mode %q", s)
}

// ErrRange reports a decode range with start > end or end beyond the
// sequence length.
var ErrRange = errors.New("codec: range out of bounds")

// Bit values follow the UCSC 2bit convention: T=00, C=01, A=10, G=11,
// packed most significant pair first.
var base2bits = [256]byte{'T': 0, 'C': 1, 'A': 2, 'G': 3}

const bits2base = "TCAG"

// Exception records one position whose symbol cannot be 2-bit packed.
// The packed stream holds placeholder bits at that position.
type Exception struct {
	Pos  uint32 `msgpack:"p"`
	Char byte   `msgpack:"c"`
}

// Encoded is a packed sequence payload.
type Encoded struct {
	Length     int         `msgpack:"l"`
	Packed     []byte      `msgpack:"b"`
	Exceptions []Exception `msgpack:"x,omitempty"`
}

// Encode packs seq. Input is uppercased first; lowercase and uppercase
// content produce identical payloads.
func Encode(seq []byte) *Encoded {
	up := bytes.ToUpper(seq)
	e := &Encoded{
		Length: len(up),
		Packed: make([]byte, (len(up)+3)/4),
	}
	for i, c := range up {
		switch c {
		case 'A', 'C', 'G', 'T':
			e.Packed[i/4] |= base2bits[c] << uint(6-2*(i%4))
		default:
			// Placeholder bits stay 00; the exception list is the
			// source of truth for this position.
			e.Exceptions = append(e.Exceptions, Exception{Pos: uint32(i), Char: c})
		}
	}
	return e
}

// Decode reproduces the full uppercased sequence.
func (e *Encoded) Decode() []byte {
	out, _ := e.Range(0, e.Length)
	return out
}

// Range decodes the half-open interval [start, end), touching only the
// packed bytes that cover it. Exceptions inside the window are overlaid
// after unpacking.
func (e *Encoded) Range(start, end int) ([]byte, error) {
	if start < 0 || start > end || end > e.Length {
		return nil, ErrRange
	}
	out := make([]byte, end-start)
	for i := start; i < end; i++ {
		bits := e.Packed[i/4] >> uint(6-2*(i%4)) & 0x3
		out[i-start] = bits2base[bits]
	}
	// Exceptions are ordered by position, so the window is contiguous.
	first := sort.Search(len(e.Exceptions), func(i int) bool {
		return e.Exceptions[i].Pos >= uint32(start)
	})
	for _, ex := range e.Exceptions[first:] {
		if ex.Pos >= uint32(end) {
			break
		}
		out[int(ex.Pos)-start] = ex.Char
	}
	return out, nil
}

// encodedAlias strips the Binary(Un)Marshaler methods so msgpack encodes
// the struct fields instead of dispatching back into MarshalBinary.
type encodedAlias Encoded

// MarshalBinary serializes the payload for blob storage.
func (e *Encoded) MarshalBinary() ([]byte, error) {
	b, err := msgpack.Marshal((*encodedAlias)(e))
	if err != nil {
		return nil, fmt.Errorf("codec: marshal encoded payload: %w", err)
	}
	return b, nil
}

// UnmarshalBinary restores a payload written by MarshalBinary.
func (e *Encoded) UnmarshalBinary(b []byte) error {
	if err := msgpack.Unmarshal(b, (*encodedAlias)(e)); err != nil {
		return fmt.Errorf("codec: unmarshal encoded payload: %w", err)
	}
	return nil
}
