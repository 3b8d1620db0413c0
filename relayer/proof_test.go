// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package relayer

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/bridged/node/bridge"
	"gitlab.com/jaxnet/bridged/types/chainhash"
	"gitlab.com/jaxnet/bridged/types/wire"
)

type txOut struct {
	value  uint64
	script []byte
}

// buildTx assembles a raw transaction with one synthetic input.  A non-empty
// witness makes it segwit.
func buildTx(seed byte, outputs []txOut, witness [][]byte) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, 0x02, 0x00, 0x00, 0x00)

	if len(witness) > 0 {
		buf = append(buf, 0x00, 0x01)
	}

	buf = append(buf, 0x01)
	var prev [32]byte
	prev[0] = seed
	buf = append(buf, prev[:]...)
	buf = append(buf, 0x00, 0x00, 0x00, 0x00)
	buf = append(buf, 0x00)
	buf = append(buf, 0xff, 0xff, 0xff, 0xff)

	buf = wire.AppendCompactInt(buf, uint64(len(outputs)))
	for _, out := range outputs {
		var v [8]byte
		binary.LittleEndian.PutUint64(v[:], out.value)
		buf = append(buf, v[:]...)
		buf = wire.AppendCompactInt(buf, uint64(len(out.script)))
		buf = append(buf, out.script...)
	}

	if len(witness) > 0 {
		buf = wire.AppendCompactInt(buf, uint64(len(witness)))
		for _, item := range witness {
			buf = wire.AppendCompactInt(buf, uint64(len(item)))
			buf = append(buf, item...)
		}
	}

	buf = append(buf, 0x00, 0x00, 0x00, 0x00)
	return buf
}

// buildRawBlock serializes a block whose header commits to the txid tree of
// txs.
func buildRawBlock(t *testing.T, txs [][]byte) []byte {
	t.Helper()

	leaves := make([]chainhash.Hash, len(txs))
	for i, raw := range txs {
		tx, err := wire.NewRawTransaction(raw)
		require.NoError(t, err)
		leaves[i] = tx.TxID.Reversed()
	}

	header := wire.BlockHeader{
		Version:    2,
		MerkleRoot: chainhash.MerkleTreeRoot(leaves),
		Timestamp:  1_614_000_000,
		Bits:       0x1d00ffff,
		Nonce:      7,
	}

	block := header.Serialize()
	block = wire.AppendCompactInt(block, uint64(len(txs)))
	for _, tx := range txs {
		block = append(block, tx...)
	}
	return block
}

// depositFixture is a block holding one deposit output alongside filler and
// segwit transactions.
type depositFixture struct {
	raw     []byte
	script  []byte
	dest    string
	value   uint64
	txIndex uint16
}

func newDepositFixture(t *testing.T) depositFixture {
	t.Helper()

	script := []byte{0x76, 0xa9, 0x14, 0xde, 0xad, 0xbe, 0xef, 0x88, 0xac}
	dest := "0xfeedface"
	opret := append([]byte{0x6a, byte(len(dest))}, dest...)
	const value = 10_000_000

	txs := [][]byte{
		buildTx(0x01, []txOut{{100, []byte{0x51}}}, nil),
		buildTx(0x02, []txOut{{200, []byte{0x52}}}, [][]byte{{0xaa, 0xbb}}),
		buildTx(0xd0, []txOut{{value, script}, {0, opret}}, nil),
		buildTx(0x03, []txOut{{300, []byte{0x53}}}, [][]byte{{0xcc}}),
		buildTx(0x04, []txOut{{400, []byte{0x54}}}, nil),
	}

	return depositFixture{
		raw:     buildRawBlock(t, txs),
		script:  script,
		dest:    dest,
		value:   value,
		txIndex: 2,
	}
}

func TestParseBlock(t *testing.T) {
	fx := newDepositFixture(t)

	parsed, err := ParseBlock(fx.raw)
	require.NoError(t, err)
	require.Len(t, parsed.Txs, 5)

	summary := parsed.Summary(3, 500)
	assert.Equal(t, uint32(3), summary.Chain)
	assert.Equal(t, uint64(500), summary.BlockNumber)
	assert.Equal(t, uint64(1_614_000_000), summary.Timestamp)
	assert.Equal(t, parsed.Header.MerkleRoot.Reversed(), summary.MerkleRoot)
	assert.NotEqual(t, summary.MerkleRoot, summary.HashRoot,
		"segwit members must split the two trees")

	// A corrupted payload must not parse: flip a byte inside the first
	// transaction so the recomputed txid root diverges from the header.
	corrupted := append([]byte(nil), fx.raw...)
	corrupted[wire.BlockHeaderLen+10] ^= 0xff
	_, err = ParseBlock(corrupted)
	require.Error(t, err)
}

func TestFindTx(t *testing.T) {
	fx := newDepositFixture(t)

	parsed, err := ParseBlock(fx.raw)
	require.NoError(t, err)

	index, err := parsed.FindTx(parsed.Txs[2].TxID)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), index)

	_, err = parsed.FindTx(chainhash.DoubleHashH([]byte("absent")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTxNotInBlock))
}

// TestProofRoundTrip builds a proof from a raw block and feeds it through a
// real ledger: the builder and the verifier must agree byte for byte.
func TestProofRoundTrip(t *testing.T) {
	fx := newDepositFixture(t)
	const chain, number = 3, 500

	parsed, err := ParseBlock(fx.raw)
	require.NoError(t, err)

	access := bridge.NewStaticAccess("owner")
	require.NoError(t, access.AddMember("owner", bridge.GroupSubmitters, "submitter"))

	ledger, err := bridge.NewLedger(bridge.Config{
		Access: access,
		Assets: nopAssets{},
		Store:  bridge.MemoryStore(),
	})
	require.NoError(t, err)

	info := bridge.ChainInfo{Chain: chain, PayoutTarget: "payout"}
	copy(info.DepositScriptHash[:], chainhash.Hash160(fx.script))
	require.NoError(t, ledger.RegisterChain("owner", info))

	require.NoError(t, ledger.PushBlock("submitter", parsed.Summary(chain, number)))

	proof, err := parsed.BuildProof(chain, number, fx.txIndex, Deposit{
		To:        fx.dest,
		ScriptPub: fx.script,
		Value:     fx.value,
		GasPrice:  5,
		Fees:      1_000_000,
	})
	require.NoError(t, err)

	// The same payload under a shifted index flips the pairing parity and
	// must fail verification.
	bad := *proof
	bad.TxIndex++
	err = ledger.PushMint("submitter", &bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridge.ErrProofInvalid))

	require.NoError(t, ledger.PushMint("submitter", proof))

	rec, err := ledger.MintByTxid(chain, proof.Txid)
	require.NoError(t, err)
	assert.Equal(t, fx.value, rec.Value)
	assert.Equal(t, fx.txIndex, rec.TxIndex)
}

// nopAssets satisfies bridge.AssetTransfer for tests that only care about
// proof verification.
type nopAssets struct{}

func (nopAssets) TransferNative(string, uint64) error { return nil }
