// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/bridged/types/chainhash"
)

// The bitcoin main network genesis header, a fixed wire vector.
const genesisHeaderHex = "0100000000000000000000000000000000000000" +
	"000000000000000000000000000000003ba3edfd7a7b12b27ac72c3e67768f61" +
	"7fc81bc3888a51323a9fb8aa4b1e5e4a29ab5f49ffff001d1dac2b7c"

func TestDecodeBlockHeader(t *testing.T) {
	raw, err := hex.DecodeString(genesisHeaderHex)
	require.NoError(t, err)

	h, err := DecodeBlockHeader(raw)
	require.NoError(t, err)

	assert.Equal(t, int32(1), h.Version)
	assert.True(t, h.PrevBlock.IsZero())
	assert.Equal(t, uint32(0x495fab29), h.Timestamp)
	assert.Equal(t, uint32(0x1d00ffff), h.Bits)
	assert.Equal(t, uint32(0x7c2bac1d), h.Nonce)

	assert.Equal(t,
		"000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f",
		h.BlockHash().String(), "block hash doesn't match")

	assert.Equal(t, raw, h.Serialize())

	_, err = DecodeBlockHeader(raw[:79])
	assert.Equal(t, ErrShortHeader, err)
}

func TestToChainBlock(t *testing.T) {
	raw, err := hex.DecodeString(genesisHeaderHex)
	require.NoError(t, err)
	h, err := DecodeBlockHeader(raw)
	require.NoError(t, err)

	hashRoot := chainhash.HashH([]byte("hash root"))
	cb := h.ToChainBlock(3, 120_000, hashRoot)

	assert.Equal(t, uint32(3), cb.Chain)
	assert.Equal(t, uint64(120_000), cb.BlockNumber)
	assert.Equal(t, uint64(h.Timestamp), cb.Timestamp)
	assert.Equal(t, h.BlockHash().Reversed(), cb.BlockHash)
	assert.Equal(t, h.PrevBlock.Reversed(), cb.PrevBlockHash)
	assert.Equal(t, h.MerkleRoot.Reversed(), cb.MerkleRoot)
	assert.Equal(t, hashRoot, cb.HashRoot)

	// Display order means the hex of the stored hash equals the
	// conventional explorer form.
	assert.Equal(t,
		"000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f",
		hex.EncodeToString(cb.BlockHash[:]))
}
