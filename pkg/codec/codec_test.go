package codec

import (
	"testing"

	"github.com/databio/rgstore/pkg/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"A",
		"ACGT",
		"TTGGGGAA",
		"ACGTACGTACGTACG", // not a multiple of 4
		"ACGTNNNACGT",     // ambiguity codes
		"NNNN",            // exceptions only
		"ACGT-RYKM*ACGT",
	}
	for _, c := range cases {
		e := Encode([]byte(c))
		assert.Equal(t, c, string(e.Decode()), "seq %q", c)
	}
}

func TestEncodeCaseFolds(t *testing.T) {
	upper := Encode([]byte("ACGTNACGT"))
	lower := Encode([]byte("acgtnacgt"))
	assert.Equal(t, upper, lower)
	assert.Equal(t, "ACGTNACGT", string(lower.Decode()))
}

func TestDecodedReDigestsToIngestDigest(t *testing.T) {
	seq := []byte("acgtACGTnnRYacgt")
	wantSha, wantMd5 := digest.SequenceDigests(seq)

	e := Encode(seq)
	gotSha, gotMd5 := digest.SequenceDigests(e.Decode())
	assert.Equal(t, wantSha, gotSha)
	assert.Equal(t, wantMd5, gotMd5)
}

func TestRange(t *testing.T) {
	seq := "ATGCATGCATGC"
	e := Encode([]byte(seq))

	sub, err := e.Range(0, 5)
	require.NoError(t, err)
	assert.Equal(t, "ATGCA", string(sub))

	sub, err = e.Range(8, 12)
	require.NoError(t, err)
	assert.Equal(t, "ATGC", string(sub))

	sub, err = e.Range(3, 3)
	require.NoError(t, err)
	assert.Empty(t, sub)
}

func TestRangeWithExceptions(t *testing.T) {
	e := Encode([]byte("ACNNGTNA"))

	sub, err := e.Range(1, 7)
	require.NoError(t, err)
	assert.Equal(t, "CNNGTN", string(sub))

	sub, err = e.Range(2, 4)
	require.NoError(t, err)
	assert.Equal(t, "NN", string(sub))
}

func TestRangeOutOfBounds(t *testing.T) {
	e := Encode([]byte("ACGT"))
	for _, c := range []struct{ start, end int }{
		{3, 2},
		{0, 5},
		{-1, 2},
		{5, 5},
	} {
		_, err := e.Range(c.start, c.end)
		assert.ErrorIs(t, err, ErrRange, "range [%d,%d)", c.start, c.end)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	e := Encode([]byte("ACGTNNACGTRY"))
	blob, err := e.MarshalBinary()
	require.NoError(t, err)

	var back Encoded
	require.NoError(t, back.UnmarshalBinary(blob))
	assert.Equal(t, e.Length, back.Length)
	assert.Equal(t, string(e.Decode()), string(back.Decode()))
}

// Payloads are stored nested inside msgpack envelopes, where the codec
// dispatches through MarshalBinary itself.
func TestEnvelopeNestedInMsgpack(t *testing.T) {
	type wrapper struct {
		Enc *Encoded `msgpack:"enc"`
	}
	blob, err := msgpack.Marshal(wrapper{Enc: Encode([]byte("ACGTNNACGT"))})
	require.NoError(t, err)

	var back wrapper
	require.NoError(t, msgpack.Unmarshal(blob, &back))
	require.NotNil(t, back.Enc)
	assert.Equal(t, "ACGTNNACGT", string(back.Enc.Decode()))
}

func TestParseStorageMode(t *testing.T) {
	m, err := ParseStorageMode("raw")
	require.NoError(t, err)
	assert.Equal(t, ModeRaw, m)

	m, err = ParseStorageMode("encoded")
	require.NoError(t, err)
	assert.Equal(t, ModeEncoded, m)

	m, err = ParseStorageMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeEncoded, m)

	_, err = ParseStorageMode("zstd")
	assert.Error(t, err)
}
