// Package alphabet classifies sequence content into the smallest
// alphabet able to represent it. The classification is descriptive
// metadata only; it never influences digests or storage encoding.
package alphabet

import "fmt"

// Type identifies an alphabet, ordered from most to least specific.
type Type int

const (
	Dna2bit Type = iota // A/C/G/T only
	Dna3bit             // plus N, R, Y
	DnaIupac            // full IUPAC nucleotide codes
	Protein             // amino acids plus stop/gap symbols
	Ascii               // anything printable
	Unknown
)

func (t Type) String() string {
	switch t {
	case Dna2bit:
		return "dna2bit"
	case Dna3bit:
		return "dna3bit"
	case DnaIupac:
		return "dnaio"
	case Protein:
		return "protein"
	case Ascii:
		return "ASCII"
	default:
		return "Unknown"
	}
}

// Parse maps an index-file tag back to its Type.
func Parse(s string) (Type, error) {
	switch s {
	case "dna2bit":
		return Dna2bit, nil
	case "dna3bit":
		return Dna3bit, nil
	case "dnaio":
		return DnaIupac, nil
	case "protein":
		return Protein, nil
	case "ASCII", "ascii":
		return Ascii, nil
	case "Unknown", "unknown":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("alphabet: unknown tag %q", s)
}

var iupacSet = makeSet("ACGTURYSWKMBDHVN")
var proteinSet = makeSet("ACDEFGHIKLMNPQRSTVWY*X-.")

func makeSet(chars string) [256]bool {
	var set [256]bool
	for i := 0; i < len(chars); i++ {
		set[chars[i]] = true
	}
	return set
}

// Guess scans seq once and returns the smallest alphabet that holds
// every symbol, case-insensitively. The scan stops early once Ascii is
// reached since nothing is more general.
func Guess(seq []byte) Type {
	required := Dna2bit
	for _, b := range seq {
		need := minimumFor(upper(b))
		if need > required {
			required = need
		}
		if required == Ascii {
			break
		}
	}
	return required
}

func minimumFor(b byte) Type {
	switch b {
	case 'A', 'C', 'G', 'T':
		return Dna2bit
	case 'N', 'R', 'Y':
		return Dna3bit
	}
	if iupacSet[b] {
		return DnaIupac
	}
	if proteinSet[b] {
		return Protein
	}
	return Ascii
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
