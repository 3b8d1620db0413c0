// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"gitlab.com/jaxnet/bridged/types/chainhash"
	"gitlab.com/jaxnet/bridged/types/wire"
)

// Store persists the ledger's blocks and records so a restarted daemon can
// replay them.  The ledger state machine itself runs over memory; a mutation
// is staged in the store first and committed to memory only once the write
// succeeded.  The Drop methods take a staged write back out when a later
// step of the operation fails.
type Store interface {
	PutBlock(chain uint32, block *wire.ChainBlock) error
	DropBlock(chain uint32, number uint64) error
	PutMint(chain uint32, index uint32, rec *MintRecord) error
	DropMint(chain uint32, index uint32) error
	PutBurn(chain uint32, index uint32, rec *BurnRecord) error
	DropBurn(chain uint32, index uint32) error

	// LoadChain returns everything persisted for the chain; mints and
	// burns come back in index order.  A chain with no state yields nil.
	LoadChain(chain uint32) (*ChainData, error)

	Close() error
}

// ChainData is the replay payload of one chain.
type ChainData struct {
	Blocks []*wire.ChainBlock
	Mints  []*MintRecord
	Burns  []*BurnRecord
}

// Key space of the persistent backends.  Numbers are big-endian so that
// lexicographic key order equals numeric order during prefix scans.
const (
	blockKeyID = 0x01
	mintKeyID  = 0x02
	burnKeyID  = 0x03
)

func chainPrefix(kind byte, chain uint32) []byte {
	key := make([]byte, 5)
	key[0] = kind
	binary.BigEndian.PutUint32(key[1:5], chain)
	return key
}

func blockKey(chain uint32, number uint64) []byte {
	key := make([]byte, 13)
	key[0] = blockKeyID
	binary.BigEndian.PutUint32(key[1:5], chain)
	binary.BigEndian.PutUint64(key[5:13], number)
	return key
}

func recordKey(kind byte, chain uint32, index uint32) []byte {
	key := make([]byte, 9)
	key[0] = kind
	binary.BigEndian.PutUint32(key[1:5], chain)
	binary.BigEndian.PutUint32(key[5:9], index)
	return key
}

// encodeChainBlock serializes a block record into its fixed 148-byte form.
func encodeChainBlock(block *wire.ChainBlock) []byte {
	buf := make([]byte, 148)
	binary.LittleEndian.PutUint32(buf[0:4], block.Chain)
	binary.LittleEndian.PutUint64(buf[4:12], block.BlockNumber)
	binary.LittleEndian.PutUint64(buf[12:20], block.Timestamp)
	copy(buf[20:52], block.BlockHash[:])
	copy(buf[52:84], block.PrevBlockHash[:])
	copy(buf[84:116], block.MerkleRoot[:])
	copy(buf[116:148], block.HashRoot[:])
	return buf
}

func decodeChainBlock(buf []byte) (*wire.ChainBlock, error) {
	if len(buf) != 148 {
		return nil, errors.Errorf("chain block record is %d bytes, want 148", len(buf))
	}
	block := &wire.ChainBlock{
		Chain:       binary.LittleEndian.Uint32(buf[0:4]),
		BlockNumber: binary.LittleEndian.Uint64(buf[4:12]),
		Timestamp:   binary.LittleEndian.Uint64(buf[12:20]),
	}
	copy(block.BlockHash[:], buf[20:52])
	copy(block.PrevBlockHash[:], buf[52:84])
	copy(block.MerkleRoot[:], buf[84:116])
	copy(block.HashRoot[:], buf[116:148])
	return block, nil
}

func encodeMintRecord(rec *MintRecord) []byte {
	buf := make([]byte, 0, 128+len(rec.To))
	buf = appendUint64(buf, rec.BlockNumber)
	buf = appendUint64(buf, rec.Timestamp)
	buf = append(buf, rec.Txid[:]...)
	buf = append(buf, rec.TxHash[:]...)
	buf = append(buf, rec.SettlementTx[:]...)
	buf = appendUint16(buf, rec.TxIndex)
	buf = appendUint64(buf, rec.Value)
	buf = appendUint64(buf, rec.Fees)
	buf = appendString(buf, rec.To)
	return buf
}

func decodeMintRecord(buf []byte) (*MintRecord, error) {
	d := recordDecoder{buf: buf}
	rec := &MintRecord{}
	rec.BlockNumber = d.uint64()
	rec.Timestamp = d.uint64()
	d.hash(&rec.Txid)
	d.hash(&rec.TxHash)
	d.hash(&rec.SettlementTx)
	rec.TxIndex = d.uint16()
	rec.Value = d.uint64()
	rec.Fees = d.uint64()
	rec.To = d.str()
	if d.err != nil {
		return nil, errors.Wrap(d.err, "mint record")
	}
	return rec, nil
}

func encodeBurnRecord(rec *BurnRecord) []byte {
	buf := make([]byte, 0, 128+len(rec.Account)+len(rec.Destination))
	buf = appendString(buf, rec.Account)
	buf = appendString(buf, rec.Destination)
	buf = appendUint64(buf, rec.Value)
	buf = appendUint64(buf, rec.Fees)
	buf = appendUint64(buf, rec.BlockNumber)
	buf = appendUint64(buf, rec.Timestamp)
	buf = append(buf, rec.Txid[:]...)
	buf = append(buf, rec.SettlementHash[:]...)
	buf = appendUint16(buf, rec.TxIndex)
	return buf
}

func decodeBurnRecord(buf []byte) (*BurnRecord, error) {
	d := recordDecoder{buf: buf}
	rec := &BurnRecord{}
	rec.Account = d.str()
	rec.Destination = d.str()
	rec.Value = d.uint64()
	rec.Fees = d.uint64()
	rec.BlockNumber = d.uint64()
	rec.Timestamp = d.uint64()
	d.hash(&rec.Txid)
	d.hash(&rec.SettlementHash)
	rec.TxIndex = d.uint16()
	if d.err != nil {
		return nil, errors.Wrap(d.err, "burn record")
	}
	return rec, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = wire.AppendCompactInt(buf, uint64(len(s)))
	return append(buf, s...)
}

// recordDecoder is a forgiving sequential reader; the first short read
// latches err and zeroes every later field.
type recordDecoder struct {
	buf []byte
	pos int
	err error
}

func (d *recordDecoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.pos+n > len(d.buf) {
		d.err = errors.Errorf("truncated at offset %d", d.pos)
		return nil
	}
	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out
}

func (d *recordDecoder) uint64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *recordDecoder) uint16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *recordDecoder) hash(h *chainhash.Hash) {
	b := d.take(chainhash.HashSize)
	if b != nil {
		copy(h[:], b)
	}
}

func (d *recordDecoder) str() string {
	if d.err != nil {
		return ""
	}
	if d.pos >= len(d.buf) {
		d.err = errors.Errorf("truncated at offset %d", d.pos)
		return ""
	}
	width := 1
	switch d.buf[d.pos] {
	case 0xfd:
		width = 3
	case 0xfe:
		width = 5
	case 0xff:
		width = 9
	}
	if d.pos+width > len(d.buf) {
		d.err = errors.Errorf("truncated at offset %d", d.pos)
		return ""
	}
	n, size := wire.ReadCompactInt(d.buf, d.pos)
	d.pos += size
	b := d.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}
