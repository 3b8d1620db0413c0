// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"gitlab.com/jaxnet/bridged/types/chainhash"
	"gitlab.com/jaxnet/bridged/types/wire"
)

// ChainInfo is the per source-chain configuration and bookkeeping aggregate.
// Confirmation depths are advisory: submitters decide when a block is deep
// enough, the ledger does not enforce them.
type ChainInfo struct {
	// Chain is the source chain id.
	Chain uint32

	// Token is the bridged asset binding; nil means native value.
	Token Token

	// Calculator converts relay cost into fee units; nil means identity.
	Calculator PriceCalculator

	// DepositScriptHash commits to the locking script deposits must pay.
	DepositScriptHash [20]byte

	// PayoutTarget receives the redeemed value of fulfilled burns on
	// native-asset chains.
	PayoutTarget string

	// MintConfirmations and BurnConfirmations are the advisory depths.
	MintConfirmations uint32
	BurnConfirmations uint32

	// HandleReorgs enables pruning of conflicting stored blocks.
	HandleReorgs bool

	// FirstBlockNum and LastBlockNum bound the stored range; Blocks is
	// the live count of stored (non-pruned) blocks.
	FirstBlockNum uint64
	LastBlockNum  uint64
	Blocks        uint64

	// LastMint and LastBurn are high-water block numbers.
	LastMint uint64
	LastBurn uint64
}

// MintRecord is one credited deposit.  Records are append-only per chain and
// indexed by both transaction identities.
type MintRecord struct {
	BlockNumber  uint64
	Timestamp    uint64
	Txid         chainhash.Hash
	TxHash       chainhash.Hash
	SettlementTx chainhash.Hash // filled later, once known
	TxIndex      uint16
	To           string
	Value        uint64
	Fees         uint64
}

// BurnRecord is one redemption.  Created pending at request time with the
// settlement fields zeroed; PushBurn fills them once the payout is observed
// on the chain of origin.
type BurnRecord struct {
	Account     string
	Destination string
	Value       uint64
	Fees        uint64

	BlockNumber    uint64
	Timestamp      uint64
	Txid           chainhash.Hash
	SettlementHash chainhash.Hash
	TxIndex        uint16
}

// pending reports whether the burn still awaits fulfillment.
func (r *BurnRecord) pending() bool {
	return r.Timestamp == 0
}

// chainState is the owned aggregate behind one ChainInfo: the block map with
// its hash index and both ledgers with their identity indices.  Nothing
// outside the ledger mutates it.
type chainState struct {
	info     ChainInfo
	firstSet bool
	lastSet  bool

	blocks map[uint64]*wire.ChainBlock
	byHash map[chainhash.Hash]uint64

	mints        []*MintRecord
	mintByTxid   map[chainhash.Hash]uint32
	mintByTxHash map[chainhash.Hash]uint32

	burns            []*BurnRecord
	burnByTxid       map[chainhash.Hash]uint32
	burnBySettlement map[chainhash.Hash]uint32
}

func newChainState(info ChainInfo) *chainState {
	return &chainState{
		info:             info,
		blocks:           make(map[uint64]*wire.ChainBlock),
		byHash:           make(map[chainhash.Hash]uint64),
		mintByTxid:       make(map[chainhash.Hash]uint32),
		mintByTxHash:     make(map[chainhash.Hash]uint32),
		burnByTxid:       make(map[chainhash.Hash]uint32),
		burnBySettlement: make(map[chainhash.Hash]uint32),
	}
}
