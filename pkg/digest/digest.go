// Package digest computes refget/seqcol identifiers: the sha512t24u
// sequence digest, hex md5, and the GA4GH seqcol level-1 and top-level
// collection digests over canonical JSON serializations.
package digest

import (
	"bytes"
	"crypto/md5"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
)

// SeqPrefix is prepended to per-sequence digests inside the seqcol
// "sequences" attribute, as required by the seqcol scheme.
const SeqPrefix = "SQ."

// Sha512t24u returns the SHA-512 digest of b truncated to its first 24
// bytes and encoded with the URL-safe base64 alphabet, no padding.
func Sha512t24u(b []byte) string {
	sum := sha512.Sum512(b)
	return base64.RawURLEncoding.EncodeToString(sum[:24])
}

// Md5Hex returns the hex-encoded MD5 digest of b.
func Md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// SequenceDigests digests sequence content after uppercasing, which is
// the normalization refget applies before hashing. Both identifiers are
// computed in one pass over the same normalized bytes.
func SequenceDigests(seq []byte) (sha string, md5sum string) {
	up := bytes.ToUpper(seq)
	return Sha512t24u(up), Md5Hex(up)
}

// CollectionDigests holds the level-1 seqcol attribute digests, the
// ancillary attribute digests, and the top-level collection digest
// derived from them.
type CollectionDigests struct {
	// Top is the collection identifier: the digest of the canonical
	// JSON object holding the names and sequences level-1 digests.
	// Lengths are not part of the top-level digest.
	Top string

	Names     string
	Lengths   string
	Sequences string

	NameLengthPairs       string
	SortedNameLengthPairs string
	SortedSequences       string
}

// New computes all collection digests for an ordered set of sequences.
// names, lengths and seqDigests are parallel slices; seqDigests carry
// bare sha512t24u values without the "SQ." prefix.
func New(names []string, lengths []int, seqDigests []string) CollectionDigests {
	prefixed := make([]string, len(seqDigests))
	for i, d := range seqDigests {
		prefixed[i] = SeqPrefix + d
	}

	var cd CollectionDigests
	cd.Names = Sha512t24u(canonicalStrings(names))
	cd.Lengths = Sha512t24u(canonicalInts(lengths))
	cd.Sequences = Sha512t24u(canonicalStrings(prefixed))

	cd.NameLengthPairs = Sha512t24u(canonicalPairs(names, lengths))

	pairDigests := make([]string, len(names))
	for i := range names {
		pairDigests[i] = Sha512t24u(canonicalPair(names[i], lengths[i]))
	}
	sort.Strings(pairDigests)
	cd.SortedNameLengthPairs = Sha512t24u(canonicalStrings(pairDigests))

	sortedSeqs := make([]string, len(prefixed))
	copy(sortedSeqs, prefixed)
	sort.Strings(sortedSeqs)
	cd.SortedSequences = Sha512t24u(canonicalStrings(sortedSeqs))

	cd.Top = Sha512t24u(canonicalObject(map[string]string{
		"names":     cd.Names,
		"sequences": cd.Sequences,
	}))
	return cd
}

// TopLevel recomputes the collection digest from the names and
// sequences level-1 digests alone. Stub collections use this to carry a
// verifiable identity before any sequence bytes exist locally.
func TopLevel(namesDigest, sequencesDigest string) string {
	return Sha512t24u(canonicalObject(map[string]string{
		"names":     namesDigest,
		"sequences": sequencesDigest,
	}))
}

// Canonical JSON below follows RFC 8785 for the shapes seqcol needs:
// compact separators, object keys sorted lexicographically, and no HTML
// escaping of string contents.

func canonicalString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encode never fails for a string.
	_ = enc.Encode(s)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func canonicalStrings(ss []string) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, s := range ss {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(canonicalString(s))
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

func canonicalInts(ns []int) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, n := range ns {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(n))
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

func canonicalObject(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(canonicalString(k))
		buf.WriteByte(':')
		buf.Write(canonicalString(fields[k]))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// canonicalPair serializes one {"length":L,"name":N} object; "length"
// sorts before "name", so field order is fixed.
func canonicalPair(name string, length int) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"length":`)
	buf.WriteString(strconv.Itoa(length))
	buf.WriteString(`,"name":`)
	buf.Write(canonicalString(name))
	buf.WriteByte('}')
	return buf.Bytes()
}

func canonicalPairs(names []string, lengths []int) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(canonicalPair(names[i], lengths[i]))
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
