package alphabet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuess(t *testing.T) {
	cases := []struct {
		seq  string
		want Type
	}{
		{"ACGT", Dna2bit},
		{"acgtACGT", Dna2bit},
		{"ACGTN", Dna3bit},
		{"ACGTRY", Dna3bit},
		{"ACGTSWKM", DnaIupac},
		{"ACGTU", DnaIupac},
		{"ACGTE", Protein},       // E is protein-only
		{"ACGT*", Protein},       // stop codon
		{"MKVLAT-", Protein},     // gap
		{"hello world", Ascii},   // space is not in any alphabet
		{"ACGT123", Ascii},
		{"", Dna2bit},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Guess([]byte(c.seq)), "seq %q", c.seq)
	}
}

func TestTagRoundTrip(t *testing.T) {
	for _, typ := range []Type{Dna2bit, Dna3bit, DnaIupac, Protein, Ascii, Unknown} {
		parsed, err := Parse(typ.String())
		assert.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}
	_, err := Parse("klingon")
	assert.Error(t, err)
}
