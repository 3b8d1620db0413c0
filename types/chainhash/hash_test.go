// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mainNetGenesisHeader is the serialized 80-byte header of the bitcoin main
// network genesis block, used as a known vector for the double hash and
// byte-reversal conventions.
const mainNetGenesisHeader = "0100000000000000000000000000000000000000" +
	"000000000000000000000000000000003ba3edfd7a7b12b27ac72c3e67768f61" +
	"7fc81bc3888a51323a9fb8aa4b1e5e4a29ab5f49ffff001d1dac2b7c"

const mainNetGenesisHash = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"

func TestDoubleHashKnownVector(t *testing.T) {
	raw, err := hex.DecodeString(mainNetGenesisHeader)
	require.NoError(t, err)

	hash := DoubleHashH(raw)
	assert.Equal(t, mainNetGenesisHash, hash.String(), "genesis hash doesn't match")
	reversed := hash.Reversed()
	assert.Equal(t, mainNetGenesisHash, hex.EncodeToString(reversed.CloneBytes()))

	// HashReversed is DoubleHashH already flipped into display order.
	assert.Equal(t, hash.Reversed(), HashReversed(raw))
}

func TestHashReversalRoundTrip(t *testing.T) {
	h := HashH([]byte("reversal vector"))

	assert.NotEqual(t, h, h.Reversed())
	assert.Equal(t, h, h.Reversed().Reversed())

	parsed, err := NewHashFromStr(h.String())
	require.NoError(t, err)
	assert.True(t, parsed.IsEqual(&h))
}

func TestReverseBytes(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{name: "empty", in: []byte{}, want: []byte{}},
		{name: "timestamp", in: []byte{0x29, 0xab, 0x5f, 0x49}, want: []byte{0x49, 0x5f, 0xab, 0x29}},
		{name: "odd", in: []byte{0x01, 0x02, 0x03}, want: []byte{0x03, 0x02, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReverseBytes(tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ReverseBytes() = %x, want %x", got, tt.want)
			}
			// The input must stay untouched.
			if len(tt.in) > 1 && bytes.Equal(tt.in, got) {
				t.Error("ReverseBytes() reversed in place")
			}
		})
	}
}

func TestHash160(t *testing.T) {
	// hash160 of an empty script, a fixed vector independent of the rest
	// of the system.
	want := "b472a266d0bd89c13706a4132ccfb16f7c3b9fcb"
	assert.Equal(t, want, hex.EncodeToString(Hash160(nil)))
}
