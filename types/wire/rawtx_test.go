/*
 * Copyright (c) 2021 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package wire

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/bridged/types/chainhash"
)

type testOutput struct {
	value  uint64
	script []byte
}

// buildTestTx assembles a syntactically valid raw transaction.  Inputs are
// synthetic, witness item lists apply per input when segwit is set.
func buildTestTx(segwit bool, inputs int, outputs []testOutput, witness [][]byte) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, 0x02, 0x00, 0x00, 0x00) // version

	if segwit {
		buf = append(buf, 0x00, 0x01)
	}

	buf = AppendCompactInt(buf, uint64(inputs))
	for i := 0; i < inputs; i++ {
		var prev [32]byte
		prev[0] = byte(i + 1)
		buf = append(buf, prev[:]...)
		buf = append(buf, 0x00, 0x00, 0x00, 0x00) // vout
		sig := []byte{0x51, 0x52, byte(i)}
		buf = AppendCompactInt(buf, uint64(len(sig)))
		buf = append(buf, sig...)
		buf = append(buf, 0xff, 0xff, 0xff, 0xff) // sequence
	}

	buf = AppendCompactInt(buf, uint64(len(outputs)))
	for _, out := range outputs {
		var value [8]byte
		binary.LittleEndian.PutUint64(value[:], out.value)
		buf = append(buf, value[:]...)
		buf = AppendCompactInt(buf, uint64(len(out.script)))
		buf = append(buf, out.script...)
	}

	if segwit {
		for i := 0; i < inputs; i++ {
			buf = AppendCompactInt(buf, uint64(len(witness)))
			for _, item := range witness {
				buf = AppendCompactInt(buf, uint64(len(item)))
				buf = append(buf, item...)
			}
		}
	}

	buf = append(buf, 0x00, 0x00, 0x00, 0x00) // locktime
	return buf
}

// buildTestBlock prepends an 80-byte header and a compact tx count.
func buildTestBlock(header []byte, txs [][]byte) []byte {
	block := make([]byte, 0, 1024)
	block = append(block, header...)
	block = AppendCompactInt(block, uint64(len(txs)))
	for _, tx := range txs {
		block = append(block, tx...)
	}
	return block
}

func defaultHeader() []byte {
	h := BlockHeader{Version: 2, Timestamp: 1614000000, Bits: 0x1d00ffff, Nonce: 42}
	return h.Serialize()
}

func TestParseBlockTransactions(t *testing.T) {
	p2pkh := []byte{0x76, 0xa9, 0x14, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 0x88, 0xac}

	txs := [][]byte{
		buildTestTx(false, 1, []testOutput{{value: 5000, script: p2pkh}}, nil),
		buildTestTx(true, 2, []testOutput{{value: 7000, script: p2pkh}}, [][]byte{{0xaa, 0xbb}, {0xcc}}),
		buildTestTx(false, 3, []testOutput{{value: 1, script: []byte{0x51}}, {value: 2, script: []byte{0x52}}}, nil),
	}
	block := buildTestBlock(defaultHeader(), txs)

	parsed, err := ParseBlockTransactions(block)
	require.NoError(t, err)
	require.Len(t, parsed, len(txs))

	// The carved ranges with the header must reconstruct the input
	// byte for byte.
	total := BlockHeaderLen + CompactIntSize(uint64(len(txs)))
	for i, tx := range parsed {
		assert.Equal(t, txs[i], tx)
		total += len(tx)
	}
	assert.Equal(t, len(block), total)
}

func TestParseBlockTransactionsCountMismatch(t *testing.T) {
	tx := buildTestTx(false, 1, []testOutput{{value: 1, script: []byte{0x51}}}, nil)

	block := buildTestBlock(defaultHeader(), [][]byte{tx})
	// Overstate the declared count.
	block[BlockHeaderLen] = 3

	_, err := ParseBlockTransactions(block)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTxCountMismatch))
}

func TestParseBlockTransactionsTruncated(t *testing.T) {
	tx := buildTestTx(false, 1, []testOutput{{value: 1, script: []byte{0x51}}}, nil)
	block := buildTestBlock(defaultHeader(), [][]byte{tx})

	_, err := ParseBlockTransactions(block[:len(block)-2])
	require.Error(t, err)
}

func TestRawTransactionIdentities(t *testing.T) {
	legacy := buildTestTx(false, 1, []testOutput{{value: 9000, script: []byte{0x51}}}, nil)
	tx, err := NewRawTransaction(legacy)
	require.NoError(t, err)
	assert.Equal(t, tx.TxID, tx.TxHash, "legacy tx identities must coincide")
	assert.Equal(t, chainhash.HashReversed(legacy), tx.TxHash)

	segwit := buildTestTx(true, 1, []testOutput{{value: 9000, script: []byte{0x51}}}, [][]byte{{0x01, 0x02}})
	wtx, err := NewRawTransaction(segwit)
	require.NoError(t, err)
	assert.NotEqual(t, wtx.TxID, wtx.TxHash, "segwit tx must carry two identities")
	assert.Equal(t, chainhash.HashReversed(segwit), wtx.TxHash)

	// The txid of the segwit tx equals the hash of the same tx with the
	// marker, flag and witness stacks stripped.
	stripped := buildTestTx(false, 1, []testOutput{{value: 9000, script: []byte{0x51}}}, nil)
	// Witness-carrying version byte differs only in layout, not content,
	// so the stripped serialization is the legacy build itself.
	assert.Equal(t, chainhash.HashReversed(stripped), wtx.TxID)
}

func TestHasOutput(t *testing.T) {
	script := []byte{0x76, 0xa9, 0x14, 9, 9, 9, 0x88, 0xac}
	tx := buildTestTx(true, 1, []testOutput{
		{value: 1200, script: []byte{0x51}},
		{value: 34567, script: script},
	}, [][]byte{{0xde, 0xad}})

	assert.True(t, HasOutput(tx, 34567, script))
	assert.False(t, HasOutput(tx, 34568, script), "value must match exactly")
	assert.False(t, HasOutput(tx, 34567, []byte{0x51, 0x51}), "script must match exactly")
}

func TestHasOpReturnOutput(t *testing.T) {
	dest := []byte("0x00112233445566778899aabb")
	opret := append([]byte{opReturn, byte(len(dest))}, dest...)

	tx := buildTestTx(false, 1, []testOutput{
		{value: 0, script: opret},
		{value: 5000, script: []byte{0x51}},
	}, nil)

	assert.True(t, HasOpReturnOutput(tx, dest))
	assert.False(t, HasOpReturnOutput(tx, dest[:len(dest)-1]), "push length must equal destination length")
	assert.False(t, HasOpReturnOutput(tx, append([]byte{0x00}, dest...)))

	plain := buildTestTx(false, 1, []testOutput{{value: 5000, script: []byte{0x51}}}, nil)
	assert.False(t, HasOpReturnOutput(plain, dest))
}
