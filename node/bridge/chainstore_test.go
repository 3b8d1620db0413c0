// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/bridged/types/chainhash"
	"gitlab.com/jaxnet/bridged/types/wire"
)

func TestPushBlockAuthorization(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	registerTestChain(t, ledger, nil)

	err := ledger.PushBlock("stranger", testBlock(10, nil, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthorizationDenied))

	require.NoError(t, ledger.PushBlock(testSubmitter, testBlock(10, nil, 0)))
}

func TestPushBlockZeroTimestamp(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	registerTestChain(t, ledger, nil)

	block := testBlock(10, nil, 0)
	block.Timestamp = 0

	err := ledger.PushBlock(testSubmitter, block)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedInput))
	assert.False(t, ledger.HasBlock(testChainID, 10))
}

func TestPushBlockContinuity(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	registerTestChain(t, ledger, nil)

	b10 := testBlock(10, nil, 0)
	require.NoError(t, ledger.PushBlock(testSubmitter, b10))

	// A child that does not reference the stored parent is rejected before
	// any state changes.
	orphan := testBlock(11, nil, 0)
	orphan.PrevBlockHash = chainhash.DoubleHashH([]byte("elsewhere"))
	err := ledger.PushBlock(testSubmitter, orphan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChainContinuity))
	assert.False(t, ledger.HasBlock(testChainID, 11))

	require.NoError(t, ledger.PushBlock(testSubmitter, testBlock(11, b10, 0)))

	// Gaps are allowed: no parent stored at 99 means no adjacency check.
	require.NoError(t, ledger.PushBlock(testSubmitter, testBlock(100, nil, 0)))

	info, err := ledger.ChainInfo(testChainID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), info.FirstBlockNum)
	assert.Equal(t, uint64(100), info.LastBlockNum)
	assert.Equal(t, uint64(3), info.Blocks)
}

func TestPushBlockLowersFirstBound(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	registerTestChain(t, ledger, nil)

	require.NoError(t, ledger.PushBlock(testSubmitter, testBlock(10, nil, 0)))
	require.NoError(t, ledger.PushBlock(testSubmitter, testBlock(5, nil, 0)))

	info, err := ledger.ChainInfo(testChainID)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), info.FirstBlockNum)
	assert.Equal(t, uint64(10), info.LastBlockNum)
	assert.Equal(t, uint64(2), info.Blocks)
}

func TestPushBlockIdempotentResubmission(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	registerTestChain(t, ledger, nil)

	b10 := testBlock(10, nil, 0)
	b11 := testBlock(11, b10, 0)
	require.NoError(t, ledger.PushBlock(testSubmitter, b10))
	require.NoError(t, ledger.PushBlock(testSubmitter, b11))

	// Without reorg handling, a conflicting resubmission of an occupied
	// slot is a silent no-op.
	conflicting := testBlock(11, b10, 9)
	require.NoError(t, ledger.PushBlock(testSubmitter, conflicting))

	stored, err := ledger.BlockAtNumber(testChainID, 11)
	require.NoError(t, err)
	assert.Equal(t, b11.BlockHash, stored.BlockHash, "stored block must be untouched")
}

func TestPushBlockReorgPrunesTip(t *testing.T) {
	var removed []uint64
	ledger, _ := newTestLedger(t, func(cfg *Config) {
		cfg.OnBlockRemoved = func(chain uint32, number uint64) {
			assert.Equal(t, testChainID, chain)
			removed = append(removed, number)
		}
	})
	registerTestChain(t, ledger, func(info *ChainInfo) {
		info.HandleReorgs = true
	})

	b10 := testBlock(10, nil, 0)
	b11 := testBlock(11, b10, 0)
	b12 := testBlock(12, b11, 0)
	require.NoError(t, ledger.PushBlock(testSubmitter, b10))
	require.NoError(t, ledger.PushBlock(testSubmitter, b11))
	require.NoError(t, ledger.PushBlock(testSubmitter, b12))

	// A competing block 11 evicts the old 11 and everything above it.
	fork := testBlock(11, b10, 9)
	require.NoError(t, ledger.PushBlock(testSubmitter, fork))

	assert.Equal(t, []uint64{11, 12}, removed)

	info, err := ledger.ChainInfo(testChainID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), info.FirstBlockNum)
	assert.Equal(t, uint64(11), info.LastBlockNum)
	assert.Equal(t, uint64(2), info.Blocks)

	assert.False(t, ledger.HasBlock(testChainID, 12))

	stored, err := ledger.BlockAtNumber(testChainID, 11)
	require.NoError(t, err)
	assert.Equal(t, fork.BlockHash, stored.BlockHash)

	// The evicted blocks must be gone from the hash index as well.
	_, err = ledger.BlockByHash(testChainID, b11.BlockHash)
	assert.True(t, errors.Is(err, ErrUnknownBlock))
	_, err = ledger.BlockByHash(testChainID, b12.BlockHash)
	assert.True(t, errors.Is(err, ErrUnknownBlock))

	_, err = ledger.BlockByHash(testChainID, fork.BlockHash)
	assert.NoError(t, err)
}

func TestPushBlockStoreFailure(t *testing.T) {
	fault := &faultStore{}
	ledger, _ := newTestLedger(t, func(cfg *Config) {
		fault.Store = cfg.Store
		cfg.Store = fault
	})
	registerTestChain(t, ledger, nil)

	fault.failPutBlock = true
	err := ledger.PushBlock(testSubmitter, testBlock(10, nil, 0))
	require.Error(t, err)

	// The rejected push leaves no trace in the aggregate.
	assert.False(t, ledger.HasBlock(testChainID, 10))
	info, err := ledger.ChainInfo(testChainID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.Blocks)
	assert.Equal(t, uint64(0), info.LastBlockNum)

	fault.failPutBlock = false
	require.NoError(t, ledger.PushBlock(testSubmitter, testBlock(10, nil, 0)))
	assert.True(t, ledger.HasBlock(testChainID, 10))
}

func TestBlockByHash(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	registerTestChain(t, ledger, nil)

	b10 := testBlock(10, nil, 0)
	require.NoError(t, ledger.PushBlock(testSubmitter, b10))

	stored, err := ledger.BlockByHash(testChainID, b10.BlockHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), stored.BlockNumber)

	_, err = ledger.BlockByHash(testChainID, chainhash.DoubleHashH([]byte("missing")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownBlock))
}

func TestBlocksRange(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	registerTestChain(t, ledger, nil)

	// Stored numbers: 10, 11, 13, 14 with a hole at 12.
	blocks := make(map[uint64]*wire.ChainBlock)
	for _, n := range []uint64{10, 11, 13, 14} {
		b := testBlock(n, blocks[n-1], 0)
		blocks[n] = b
		require.NoError(t, ledger.PushBlock(testSubmitter, b))
	}

	asc, first, err := ledger.BlocksRange(testChainID, 1, 2, true)
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, uint64(11), first)
	assert.Equal(t, uint64(11), asc[0].BlockNumber)
	assert.Equal(t, uint64(13), asc[1].BlockNumber, "the hole at 12 is skipped")

	desc, first, err := ledger.BlocksRange(testChainID, 0, 3, false)
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, uint64(14), first)
	assert.Equal(t, uint64(14), desc[0].BlockNumber)
	assert.Equal(t, uint64(13), desc[1].BlockNumber)
	assert.Equal(t, uint64(11), desc[2].BlockNumber)

	none, _, err := ledger.BlocksRange(testChainID, 50, 3, true)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRegisterChainGuards(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	err := ledger.RegisterChain("stranger", ChainInfo{Chain: testChainID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthorizationDenied))

	require.NoError(t, ledger.RegisterChain(testOwner, ChainInfo{Chain: testChainID}))

	err = ledger.RegisterChain(testOwner, ChainInfo{Chain: testChainID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChainExists))

	_, err = ledger.ChainInfo(42)
	assert.True(t, errors.Is(err, ErrUnknownChain))
}
