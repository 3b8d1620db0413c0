// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"gitlab.com/jaxnet/bridged/types/chainhash"
)

// BlockHeader defines information about a block as carried on the wire: the
// fixed 80-byte little-endian encoding of a bitcoin-family header.  Hash
// fields are kept in wire byte order here; the reversal into display order
// happens once, at the ChainBlock boundary.
type BlockHeader struct {
	// Version of the block.  This is not the same as the protocol version.
	Version int32

	// Hash of the previous block header in the block chain.
	PrevBlock chainhash.Hash

	// Merkle tree reference to hash of all transactions for the block.
	MerkleRoot chainhash.Hash

	// Time the block was created, seconds since the unix epoch.
	Timestamp uint32

	// Difficulty target for the block.
	Bits uint32

	// Nonce used to generate the block.
	Nonce uint32
}

// ErrShortHeader is returned when a header buffer holds fewer than 80 bytes.
var ErrShortHeader = errors.New("header payload shorter than 80 bytes")

// DecodeBlockHeader decodes the leading 80 bytes of buf into a BlockHeader.
func DecodeBlockHeader(buf []byte) (*BlockHeader, error) {
	if len(buf) < BlockHeaderLen {
		return nil, ErrShortHeader
	}

	h := &BlockHeader{
		Version:   int32(binary.LittleEndian.Uint32(buf[0:4])),
		Timestamp: binary.LittleEndian.Uint32(buf[68:72]),
		Bits:      binary.LittleEndian.Uint32(buf[72:76]),
		Nonce:     binary.LittleEndian.Uint32(buf[76:80]),
	}
	copy(h.PrevBlock[:], buf[4:36])
	copy(h.MerkleRoot[:], buf[36:68])
	return h, nil
}

// Serialize encodes the header back into its 80-byte wire form.
func (h *BlockHeader) Serialize() []byte {
	buf := make([]byte, BlockHeaderLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Version))
	copy(buf[4:36], h.PrevBlock[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)
	return buf
}

// BlockHash computes the block identifier hash for the given block header,
// in natural (wire) byte order.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	return chainhash.DoubleHashH(h.Serialize())
}

// ChainBlock is the wire-visible record the ledger keeps per (chain, block
// number).  All hash fields are in display byte order.  A zero Timestamp
// marks the absence of a block; headers with a zero timestamp are never
// accepted.
type ChainBlock struct {
	Chain         uint32         `json:"chain"`
	BlockNumber   uint64         `json:"blockNumber"`
	Timestamp     uint64         `json:"timestamp"`
	BlockHash     chainhash.Hash `json:"blockHash"`
	PrevBlockHash chainhash.Hash `json:"prevBlockHash"`
	MerkleRoot    chainhash.Hash `json:"merkleRoot"`
	HashRoot      chainhash.Hash `json:"hashRoot"`
}

// ToChainBlock lifts the header into the ledger's record form, flipping
// every hash field into display order.  The hashRoot over full transaction
// hashes is not part of the 80-byte header and is supplied by the caller.
func (h *BlockHeader) ToChainBlock(chain uint32, number uint64, hashRoot chainhash.Hash) *ChainBlock {
	return &ChainBlock{
		Chain:         chain,
		BlockNumber:   number,
		Timestamp:     uint64(h.Timestamp),
		BlockHash:     h.BlockHash().Reversed(),
		PrevBlockHash: h.PrevBlock.Reversed(),
		MerkleRoot:    h.MerkleRoot.Reversed(),
		HashRoot:      hashRoot,
	}
}

// MintProof is the proof submission payload: everything a relayer sends to
// have a source-chain deposit credited.  Sibling lists are in display byte
// order, ordered from the leaf up.
type MintProof struct {
	Chain        uint32           `json:"chain"`
	BlockNumber  uint64           `json:"blockNumber"`
	Txid         chainhash.Hash   `json:"txid"`
	TxIndex      uint16           `json:"txIndex"`
	TxData       []byte           `json:"txHex"`
	TxSiblings   []chainhash.Hash `json:"txSiblings"`
	HashSiblings []chainhash.Hash `json:"hashSiblings"`
	To           string           `json:"to"`
	ScriptPub    []byte           `json:"scriptPub"`
	Value        uint64           `json:"value"`
	GasPrice     uint64           `json:"gasPrice"`
	Fees         uint64           `json:"fees"`
}
