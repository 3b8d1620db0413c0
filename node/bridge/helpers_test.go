// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/bridged/types/chainhash"
	"gitlab.com/jaxnet/bridged/types/wire"
)

const (
	testOwner     = "owner"
	testSubmitter = "submitter"
	testChainID   = uint32(7)
)

// transferCall records one outgoing value movement made by the ledger.
type transferCall struct {
	op     string
	from   string
	to     string
	amount uint64
}

// fakeAssets implements AssetTransfer and records every call.  An optional
// callback runs inside TransferNative to model a malicious transfer target
// calling back into the ledger.
type fakeAssets struct {
	calls    []transferCall
	callback func()
	fail     bool
}

func (a *fakeAssets) TransferNative(to string, amount uint64) error {
	if a.callback != nil {
		a.callback()
	}
	if a.fail {
		return errors.New("transfer refused")
	}
	a.calls = append(a.calls, transferCall{op: "native", to: to, amount: amount})
	return nil
}

// fakeToken implements Token and records every call.
type fakeToken struct {
	calls      []transferCall
	permits    int
	permitFail bool
	pullFail   bool
}

func (t *fakeToken) Mint(to string, value uint64) error {
	t.calls = append(t.calls, transferCall{op: "mint", to: to, amount: value})
	return nil
}

func (t *fakeToken) Burn(value uint64) error {
	t.calls = append(t.calls, transferCall{op: "burn", amount: value})
	return nil
}

func (t *fakeToken) Transfer(to string, value uint64) error {
	t.calls = append(t.calls, transferCall{op: "transfer", to: to, amount: value})
	return nil
}

func (t *fakeToken) TransferFrom(from, to string, value uint64) error {
	if t.pullFail {
		return errors.New("allowance exceeded")
	}
	t.calls = append(t.calls, transferCall{op: "transferFrom", from: from, to: to, amount: value})
	return nil
}

func (t *fakeToken) Permit(owner, spender string, value, deadline uint64, signature []byte) error {
	if t.permitFail {
		return errors.New("bad permit signature")
	}
	t.permits++
	return nil
}

// faultStore wraps a Store and fails selected writes, modeling a storage
// outage in the middle of an operation.
type faultStore struct {
	Store
	failPutBlock bool
	failPutMint  bool
	failPutBurn  bool
}

func (s *faultStore) PutBlock(chain uint32, block *wire.ChainBlock) error {
	if s.failPutBlock {
		return errors.New("disk full")
	}
	return s.Store.PutBlock(chain, block)
}

func (s *faultStore) PutMint(chain uint32, index uint32, rec *MintRecord) error {
	if s.failPutMint {
		return errors.New("disk full")
	}
	return s.Store.PutMint(chain, index, rec)
}

func (s *faultStore) PutBurn(chain uint32, index uint32, rec *BurnRecord) error {
	if s.failPutBurn {
		return errors.New("disk full")
	}
	return s.Store.PutBurn(chain, index, rec)
}

// doubleCalculator doubles the native cost, standing in for a real price
// oracle.
type doubleCalculator struct{}

func (doubleCalculator) Convert(nativeCost uint64) uint64 { return nativeCost * 2 }

// newTestLedger builds a ledger over a fresh memory store with testOwner as
// owner and testSubmitter enrolled in the submitter group.
func newTestLedger(t *testing.T, mutate func(cfg *Config)) (*Ledger, *fakeAssets) {
	t.Helper()

	access := NewStaticAccess(testOwner)
	require.NoError(t, access.AddMember(testOwner, GroupSubmitters, testSubmitter))

	assets := &fakeAssets{}
	cfg := Config{
		Access: access,
		Assets: assets,
		Store:  MemoryStore(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	ledger, err := NewLedger(cfg)
	require.NoError(t, err)
	return ledger, assets
}

// testBlock fabricates a stored block record at the given number whose hash
// is derived from the number, chained to prev when given.
func testBlock(number uint64, prev *wire.ChainBlock, salt byte) *wire.ChainBlock {
	var seed [9]byte
	binary.LittleEndian.PutUint64(seed[:8], number)
	seed[8] = salt

	block := &wire.ChainBlock{
		Chain:       testChainID,
		BlockNumber: number,
		Timestamp:   1_600_000_000 + number,
		BlockHash:   chainhash.DoubleHashH(seed[:]),
	}
	if prev != nil {
		block.PrevBlockHash = prev.BlockHash
	}
	return block
}

// registerTestChain registers testChainID with the given tweaks applied.
func registerTestChain(t *testing.T, l *Ledger, mutate func(info *ChainInfo)) {
	t.Helper()

	info := ChainInfo{
		Chain:        testChainID,
		PayoutTarget: "payout-target",
	}
	if mutate != nil {
		mutate(&info)
	}
	require.NoError(t, l.RegisterChain(testOwner, info))
}

// depositScenario is a fully proven deposit: the raw transaction, the block
// it is mined in and a valid proof against that block.
type depositScenario struct {
	block  *wire.ChainBlock
	proof  *wire.MintProof
	script []byte
}

// buildDeposit mines a deposit of value to script, alongside filler
// transactions, at position txIndex of the block.  The destination account is
// committed through an OP_RETURN output.
func buildDeposit(t *testing.T, blockNumber uint64, txIndex uint16, value uint64, to string) depositScenario {
	t.Helper()

	script := []byte{0x76, 0xa9, 0x14, 0xde, 0xad, 0xbe, 0xef, 0x88, 0xac}
	opret := append([]byte{0x6a, byte(len(to))}, to...)

	deposit := buildRawTx(0xd0, []rawOutput{
		{value: value, script: script},
		{value: 0, script: opret},
	})

	txs := make([][]byte, 4)
	for i := range txs {
		txs[i] = buildRawTx(byte(i+1), []rawOutput{{value: uint64(i+1) * 100, script: []byte{0x51}}})
	}
	require.Less(t, int(txIndex), len(txs))
	txs[txIndex] = deposit

	leaves := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		leaves[i] = chainhash.DoubleHashH(tx)
	}
	root := chainhash.MerkleTreeRoot(leaves)

	siblings := chainhash.BuildMerkleTreeProof(leaves, uint32(txIndex))
	display := make([]chainhash.Hash, len(siblings))
	for i := range siblings {
		display[i] = siblings[i].Reversed()
	}

	block := testBlock(blockNumber, nil, 0)
	block.MerkleRoot = root.Reversed()
	block.HashRoot = root.Reversed()

	proof := &wire.MintProof{
		Chain:        testChainID,
		BlockNumber:  blockNumber,
		Txid:         chainhash.HashReversed(deposit),
		TxIndex:      txIndex,
		TxData:       deposit,
		TxSiblings:   display,
		HashSiblings: display,
		To:           to,
		ScriptPub:    script,
		Value:        value,
		GasPrice:     5,
		Fees:         1_000_000,
	}

	return depositScenario{block: block, proof: proof, script: script}
}

type rawOutput struct {
	value  uint64
	script []byte
}

// buildRawTx assembles a minimal non-segwit transaction with one synthetic
// input and the given outputs.
func buildRawTx(seed byte, outputs []rawOutput) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, 0x02, 0x00, 0x00, 0x00) // version

	buf = append(buf, 0x01) // one input
	var prev [32]byte
	prev[0] = seed
	buf = append(buf, prev[:]...)
	buf = append(buf, 0x00, 0x00, 0x00, 0x00) // vout
	buf = append(buf, 0x00)                   // empty scriptSig
	buf = append(buf, 0xff, 0xff, 0xff, 0xff) // sequence

	buf = wire.AppendCompactInt(buf, uint64(len(outputs)))
	for _, out := range outputs {
		var value [8]byte
		binary.LittleEndian.PutUint64(value[:], out.value)
		buf = append(buf, value[:]...)
		buf = wire.AppendCompactInt(buf, uint64(len(out.script)))
		buf = append(buf, out.script...)
	}

	buf = append(buf, 0x00, 0x00, 0x00, 0x00) // locktime
	return buf
}
