// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package relayer

import (
	"github.com/pkg/errors"

	"gitlab.com/jaxnet/bridged/types/chainhash"
	"gitlab.com/jaxnet/bridged/types/wire"
)

// ErrTxNotInBlock is returned when the requested transaction identity is not
// found among the block's transactions.
var ErrTxNotInBlock = errors.New("transaction not found in block")

// ParsedBlock is a raw block split into its proof-relevant parts: the header,
// each transaction with both identities and the two merkle trees over them.
// Leaves and roots are kept in the hash function's natural byte order; the
// flip into display order happens at the summary and proof boundaries.
type ParsedBlock struct {
	Header *wire.BlockHeader
	Txs    []*wire.RawTransaction

	txidLeaves []chainhash.Hash
	hashLeaves []chainhash.Hash
	hashRoot   chainhash.Hash
}

// ParseBlock splits raw block bytes, derives both identities per transaction
// and builds the full-hash tree.  The txid tree root is checked against the
// header's merkle root so a corrupted payload is caught before anything is
// proven against it.
func ParseBlock(rawBlock []byte) (*ParsedBlock, error) {
	header, err := wire.DecodeBlockHeader(rawBlock)
	if err != nil {
		return nil, err
	}

	rawTxs, err := wire.ParseBlockTransactions(rawBlock)
	if err != nil {
		return nil, err
	}

	block := &ParsedBlock{
		Header:     header,
		Txs:        make([]*wire.RawTransaction, len(rawTxs)),
		txidLeaves: make([]chainhash.Hash, len(rawTxs)),
		hashLeaves: make([]chainhash.Hash, len(rawTxs)),
	}
	for i, raw := range rawTxs {
		tx, err := wire.NewRawTransaction(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "tx %d", i)
		}
		block.Txs[i] = tx
		block.txidLeaves[i] = tx.TxID.Reversed()
		block.hashLeaves[i] = tx.TxHash.Reversed()
	}

	if root := chainhash.MerkleTreeRoot(block.txidLeaves); root != header.MerkleRoot {
		return nil, errors.Errorf("txid tree root %s does not match header merkle root %s",
			root.String(), header.MerkleRoot.String())
	}
	block.hashRoot = chainhash.MerkleTreeRoot(block.hashLeaves)

	return block, nil
}

// Summary lifts the parsed block into the ledger's ChainBlock record, every
// hash in display order.
func (b *ParsedBlock) Summary(chain uint32, number uint64) *wire.ChainBlock {
	return b.Header.ToChainBlock(chain, number, b.hashRoot.Reversed())
}

// FindTx returns the index of the transaction with the given txid, in display
// byte order.
func (b *ParsedBlock) FindTx(txid chainhash.Hash) (uint16, error) {
	for i, tx := range b.Txs {
		if tx.TxID == txid {
			return uint16(i), nil
		}
	}
	return 0, errors.Wrapf(ErrTxNotInBlock, "txid %s", txid.Reversed().String())
}

// Deposit describes the claimed output the proof is built for.
type Deposit struct {
	To        string
	ScriptPub []byte
	Value     uint64
	GasPrice  uint64
	Fees      uint64
}

// BuildProof assembles the submission payload for the transaction at
// txIndex: both sibling lists, ordered from the leaf up and flipped into
// display order, exactly as the ledger's verification expects them.
func (b *ParsedBlock) BuildProof(chain uint32, number uint64, txIndex uint16, dep Deposit) (*wire.MintProof, error) {
	if int(txIndex) >= len(b.Txs) {
		return nil, errors.Errorf("tx index %d out of range, block has %d txs", txIndex, len(b.Txs))
	}
	tx := b.Txs[txIndex]

	return &wire.MintProof{
		Chain:        chain,
		BlockNumber:  number,
		Txid:         tx.TxID,
		TxIndex:      txIndex,
		TxData:       tx.Data,
		TxSiblings:   displayProof(b.txidLeaves, uint32(txIndex)),
		HashSiblings: displayProof(b.hashLeaves, uint32(txIndex)),
		To:           dep.To,
		ScriptPub:    dep.ScriptPub,
		Value:        dep.Value,
		GasPrice:     dep.GasPrice,
		Fees:         dep.Fees,
	}, nil
}

func displayProof(leaves []chainhash.Hash, index uint32) []chainhash.Hash {
	proof := chainhash.BuildMerkleTreeProof(leaves, index)
	for i := range proof {
		proof[i] = proof[i].Reversed()
	}
	return proof
}
