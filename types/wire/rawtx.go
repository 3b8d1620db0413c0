/*
 * Copyright (c) 2021 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package wire

import (
	"bytes"

	"github.com/pkg/errors"

	"gitlab.com/jaxnet/bridged/types/chainhash"
)

// BlockHeaderLen is the size of the fixed 80-byte block header that precedes
// the transaction list in a serialized block.
const BlockHeaderLen = 80

// opReturn is the script opcode marking a provably unspendable output whose
// script carries arbitrary data.
const opReturn = 0x6a

var (
	// ErrTxCountMismatch is returned when the number of transactions
	// carved out of a raw block does not equal the declared count.
	ErrTxCountMismatch = errors.New("decoded tx count does not match declared count")

	// ErrMalformedTx is returned when a transaction byte range runs past
	// the end of the enclosing buffer.
	ErrMalformedTx = errors.New("malformed transaction bytes")

	// ErrShortBlock is returned for payloads smaller than a block header.
	ErrShortBlock = errors.New("block payload shorter than header")
)

// RawTransaction is one immutable transaction carved out of a raw block,
// together with its two identities.  TxID hashes the non-witness
// serialization, TxHash the full serialization; for transactions without
// witness data the two are identical.  Both are kept in display byte order.
type RawTransaction struct {
	Data   []byte
	TxID   chainhash.Hash
	TxHash chainhash.Hash
}

// txSpan describes the byte layout of one parsed transaction inside a
// larger buffer.
type txSpan struct {
	start        int
	end          int
	segwit       bool
	witnessStart int // locktime start when the tx carries no witness data
}

// parseTransaction carves out the byte range of a single transaction
// starting at pos.  The segwit marker and flag bytes (0x00 0x01) directly
// after the version are matched literally; a non-segwit transaction whose
// input count and first input bytes happen to start with that pair would be
// misread, and both the proof builder and the ledger share this exact rule
// so the two sides always agree.
func parseTransaction(buf []byte, pos int) (txSpan, error) {
	span := txSpan{start: pos}
	c := cursor{buf: buf, pos: pos}

	if err := c.skip(4); err != nil { // version
		return span, err
	}

	if c.pos+2 <= len(buf) && buf[c.pos] == 0x00 && buf[c.pos+1] == 0x01 {
		span.segwit = true
		c.pos += 2
	}

	inCount, err := c.varint()
	if err != nil {
		return span, err
	}
	for i := uint64(0); i < inCount; i++ {
		if err := c.skip(32 + 4); err != nil { // prev txid + vout
			return span, err
		}
		scriptLen, err := c.varint()
		if err != nil {
			return span, err
		}
		if err := c.skip(int(scriptLen) + 4); err != nil { // scriptSig + sequence
			return span, err
		}
	}

	outCount, err := c.varint()
	if err != nil {
		return span, err
	}
	for i := uint64(0); i < outCount; i++ {
		if err := c.skip(8); err != nil { // value
			return span, err
		}
		scriptLen, err := c.varint()
		if err != nil {
			return span, err
		}
		if err := c.skip(int(scriptLen)); err != nil {
			return span, err
		}
	}

	span.witnessStart = c.pos
	if span.segwit {
		for i := uint64(0); i < inCount; i++ {
			itemCount, err := c.varint()
			if err != nil {
				return span, err
			}
			for j := uint64(0); j < itemCount; j++ {
				itemLen, err := c.varint()
				if err != nil {
					return span, err
				}
				if err := c.skip(int(itemLen)); err != nil {
					return span, err
				}
			}
		}
	}

	if err := c.skip(4); err != nil { // locktime
		return span, err
	}

	span.end = c.pos
	return span, nil
}

// ParseBlockTransactions splits a raw block payload into individual raw
// transaction byte slices.  The returned slices alias the input buffer.
func ParseBlockTransactions(rawBlock []byte) ([][]byte, error) {
	if len(rawBlock) < BlockHeaderLen+1 {
		return nil, ErrShortBlock
	}

	declared, n := ReadCompactInt(rawBlock, BlockHeaderLen)
	pos := BlockHeaderLen + n

	txs := make([][]byte, 0, declared)
	for pos < len(rawBlock) {
		span, err := parseTransaction(rawBlock, pos)
		if err != nil {
			return nil, err
		}
		txs = append(txs, rawBlock[span.start:span.end])
		pos = span.end
	}

	if uint64(len(txs)) != declared {
		return nil, errors.Wrapf(ErrTxCountMismatch, "declared %d decoded %d", declared, len(txs))
	}

	return txs, nil
}

// NewRawTransaction parses data as a single transaction and derives both of
// its identities.
func NewRawTransaction(data []byte) (*RawTransaction, error) {
	span, err := parseTransaction(data, 0)
	if err != nil {
		return nil, err
	}
	if span.end != len(data) {
		return nil, errors.Wrapf(ErrMalformedTx, "%d trailing bytes", len(data)-span.end)
	}

	tx := &RawTransaction{
		Data:   data,
		TxHash: chainhash.HashReversed(data),
	}

	if !span.segwit {
		tx.TxID = tx.TxHash
		return tx, nil
	}

	// The txid hashes the legacy serialization: version, inputs, outputs
	// and locktime with the marker, flag and witness stacks cut out.
	legacy := make([]byte, 0, len(data))
	legacy = append(legacy, data[:4]...)
	legacy = append(legacy, data[6:span.witnessStart]...)
	legacy = append(legacy, data[span.end-4:]...)
	tx.TxID = chainhash.HashReversed(legacy)

	return tx, nil
}

// HasOutput reports whether any output of the raw transaction carries
// exactly the given value and locking script.
func HasOutput(rawTx []byte, value uint64, scriptPubKey []byte) bool {
	match := func(outValue uint64, script []byte) bool {
		return outValue == value && bytes.Equal(script, scriptPubKey)
	}
	ok, err := scanOutputs(rawTx, match)
	return err == nil && ok
}

// HasOpReturnOutput reports whether any output script is an OP_RETURN push
// of exactly destination.  Only the single-byte push length form is
// recognized; data requiring a multi-byte push prefix never matches.
func HasOpReturnOutput(rawTx []byte, destination []byte) bool {
	match := func(_ uint64, script []byte) bool {
		if len(script) < 2 || script[0] != opReturn {
			return false
		}
		if int(script[1]) != len(destination) {
			return false
		}
		return bytes.Equal(script[2:], destination)
	}
	ok, err := scanOutputs(rawTx, match)
	return err == nil && ok
}

// scanOutputs re-parses rawTx up to and through its outputs, invoking match
// for each (value, script) pair, and reports whether any matched.  The
// segwit marker is skipped by the same literal rule as parseTransaction.
func scanOutputs(rawTx []byte, match func(value uint64, script []byte) bool) (bool, error) {
	c := cursor{buf: rawTx}

	if err := c.skip(4); err != nil {
		return false, err
	}
	if c.pos+2 <= len(rawTx) && rawTx[c.pos] == 0x00 && rawTx[c.pos+1] == 0x01 {
		c.pos += 2
	}

	inCount, err := c.varint()
	if err != nil {
		return false, err
	}
	for i := uint64(0); i < inCount; i++ {
		if err := c.skip(32 + 4); err != nil {
			return false, err
		}
		scriptLen, err := c.varint()
		if err != nil {
			return false, err
		}
		if err := c.skip(int(scriptLen) + 4); err != nil {
			return false, err
		}
	}

	outCount, err := c.varint()
	if err != nil {
		return false, err
	}
	for i := uint64(0); i < outCount; i++ {
		value, err := c.uint64()
		if err != nil {
			return false, err
		}
		scriptLen, err := c.varint()
		if err != nil {
			return false, err
		}
		start := c.pos
		if err := c.skip(int(scriptLen)); err != nil {
			return false, err
		}
		if match(value, rawTx[start:c.pos]) {
			return true, nil
		}
	}

	return false, nil
}
