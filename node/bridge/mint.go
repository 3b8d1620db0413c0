// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"bytes"

	"github.com/pkg/errors"

	"gitlab.com/jaxnet/bridged/types/chainhash"
	"gitlab.com/jaxnet/bridged/types/wire"
)

// PushMint validates an inclusion proof for a source-chain deposit and
// credits the bridged value.  The whole operation is atomic: every check
// runs first, the record is staged in the store before any value moves, and
// memory is committed last.  A failed credit takes the staged record back
// out, so a rejection leaves neither a paid transfer without a record nor a
// record without a payment.
func (l *Ledger) PushMint(submitter string, proof *wire.MintProof) error {
	if l.guard.reentered() {
		return errors.Wrap(ErrReentrantCall, "push mint")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cs, err := l.chain(proof.Chain)
	if err != nil {
		return err
	}

	switch {
	case proof.Txid.IsZero():
		return errors.Wrap(ErrMalformedInput, "zero txid")
	case len(proof.TxData) == 0:
		return errors.Wrap(ErrMalformedInput, "empty raw transaction")
	case len(proof.ScriptPub) == 0:
		return errors.Wrap(ErrMalformedInput, "empty deposit script")
	case proof.Value <= proof.Fees:
		return errors.Wrapf(ErrMalformedInput, "value %d does not exceed fees %d", proof.Value, proof.Fees)
	}
	if proof.GasPrice > l.policy.GasCeiling {
		return errors.Wrapf(ErrFeeViolation, "gas price %d above ceiling %d", proof.GasPrice, l.policy.GasCeiling)
	}

	block, ok := cs.blocks[proof.BlockNumber]
	if !ok || block.Timestamp == 0 {
		return errors.Wrapf(ErrUnknownBlock, "chain %d block %d", proof.Chain, proof.BlockNumber)
	}

	tx, err := wire.NewRawTransaction(proof.TxData)
	if err != nil {
		return errors.Wrap(ErrMalformedInput, err.Error())
	}

	// Segwit transactions carry two identities; both indices must be
	// clean or the same deposit could be credited twice.
	if _, dup := cs.mintByTxid[proof.Txid]; dup {
		return errors.Wrapf(ErrDuplicateSubmission, "txid %s", hashString(proof.Txid))
	}
	if _, dup := cs.mintByTxHash[tx.TxHash]; dup {
		return errors.Wrapf(ErrDuplicateSubmission, "txhash %s", hashString(tx.TxHash))
	}

	if !verifyAgainstRoot(proof.Txid, proof.TxSiblings, uint32(proof.TxIndex), block.MerkleRoot) {
		return errors.Wrapf(ErrProofInvalid, "txid tree, block %d", proof.BlockNumber)
	}
	if !verifyAgainstRoot(tx.TxHash, proof.HashSiblings, uint32(proof.TxIndex), block.HashRoot) {
		return errors.Wrapf(ErrProofInvalid, "hash tree, block %d", proof.BlockNumber)
	}

	if !l.debug {
		if !bytes.Equal(chainhash.Hash160(proof.ScriptPub), cs.info.DepositScriptHash[:]) {
			return errors.Wrap(ErrOutputMismatch, "script does not match deposit commitment")
		}
		if !wire.HasOutput(proof.TxData, proof.Value, proof.ScriptPub) {
			return errors.Wrapf(ErrOutputMismatch, "no output paying %d to deposit script", proof.Value)
		}
		if !wire.HasOpReturnOutput(proof.TxData, []byte(proof.To)) {
			return errors.Wrapf(ErrOutputMismatch, "no OP_RETURN output for %q", proof.To)
		}
	}

	// Fee floor: the declared fee must leave the relayer a margin below
	// the estimated relay cost.
	floor := (l.policy.BaseFee + proof.GasPrice) * (l.policy.MintGas + l.policy.Overhead)
	if cs.info.Calculator != nil {
		floor = cs.info.Calculator.Convert(floor)
	}
	if proof.Fees >= floor {
		return errors.Wrapf(ErrFeeViolation, "fees %d not below estimated floor %d", proof.Fees, floor)
	}

	rec := &MintRecord{
		BlockNumber: proof.BlockNumber,
		Timestamp:   block.Timestamp,
		Txid:        proof.Txid,
		TxHash:      tx.TxHash,
		TxIndex:     proof.TxIndex,
		To:          proof.To,
		Value:       proof.Value,
		Fees:        proof.Fees,
	}
	index := uint32(len(cs.mints))

	// Stage the record before moving any value: a store failure must not
	// leave a credited deposit with no persisted trace of it.
	if err := l.store.PutMint(proof.Chain, index, rec); err != nil {
		return errors.Wrapf(err, "persist mint %d", index)
	}

	if err := l.credit(cs, proof.To, submitter, proof.Value, proof.Fees); err != nil {
		if dropErr := l.store.DropMint(proof.Chain, index); dropErr != nil {
			log.Error().Err(dropErr).Uint32("chain", proof.Chain).
				Uint32("index", index).Msg("failed to drop staged mint record")
		}
		return err
	}

	if proof.BlockNumber > cs.info.LastMint {
		cs.info.LastMint = proof.BlockNumber
	}
	cs.mints = append(cs.mints, rec)
	cs.mintByTxid[rec.Txid] = index
	cs.mintByTxHash[rec.TxHash] = index

	log.Info().Uint32("chain", proof.Chain).Uint64("block", proof.BlockNumber).
		Str("txid", hashString(rec.Txid)).Str("to", rec.To).
		Uint64("value", rec.Value).Uint64("fees", rec.Fees).Msg("mint recorded")
	return nil
}

// credit pays value-fees to the destination and fees to the submitter,
// through the token binding when present and the native path otherwise.
// The transfer guard is held across the external calls.
func (l *Ledger) credit(cs *chainState, to, submitter string, value, fees uint64) error {
	l.guard.hold()
	defer l.guard.release()

	if cs.info.Token != nil {
		if err := cs.info.Token.Mint(to, value-fees); err != nil {
			return errors.Wrap(err, "mint to destination")
		}
		if fees > 0 {
			if err := cs.info.Token.Mint(submitter, fees); err != nil {
				return errors.Wrap(err, "mint submitter fee")
			}
		}
		return nil
	}

	if err := l.assets.TransferNative(to, value-fees); err != nil {
		return errors.Wrap(err, "transfer to destination")
	}
	if fees > 0 {
		if err := l.assets.TransferNative(submitter, fees); err != nil {
			return errors.Wrap(err, "transfer submitter fee")
		}
	}
	return nil
}

// verifyAgainstRoot runs one merkle check in ledger storage order: the
// leaf, every sibling and the root are each byte-reversed once into the
// hash function's natural order before recomputation.
func verifyAgainstRoot(leaf chainhash.Hash, siblings []chainhash.Hash, index uint32, root chainhash.Hash) bool {
	proof := make([]chainhash.Hash, len(siblings))
	for i := range siblings {
		proof[i] = siblings[i].Reversed()
	}
	return chainhash.ValidateMerkleTreeProof(leaf.Reversed(), proof, index, root.Reversed())
}

// MintAt returns the mint record at index.
func (l *Ledger) MintAt(chain uint32, index uint32) (*MintRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cs, err := l.chain(chain)
	if err != nil {
		return nil, err
	}
	if index >= uint32(len(cs.mints)) {
		return nil, errors.Wrapf(ErrMalformedInput, "mint index %d of %d", index, len(cs.mints))
	}
	return cs.mints[index], nil
}

// MintByTxid returns the mint record holding the given txid identity.
func (l *Ledger) MintByTxid(chain uint32, txid chainhash.Hash) (*MintRecord, error) {
	return l.mintByIndex(chain, txid, true)
}

// MintByTxHash returns the mint record holding the given full-hash identity.
func (l *Ledger) MintByTxHash(chain uint32, txHash chainhash.Hash) (*MintRecord, error) {
	return l.mintByIndex(chain, txHash, false)
}

func (l *Ledger) mintByIndex(chain uint32, hash chainhash.Hash, byTxid bool) (*MintRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cs, err := l.chain(chain)
	if err != nil {
		return nil, err
	}
	idx := cs.mintByTxHash
	if byTxid {
		idx = cs.mintByTxid
	}
	i, ok := idx[hash]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownMint, "%s", hashString(hash))
	}
	return cs.mints[i], nil
}

// Mints returns up to count mint records starting at offset start, walking
// forward (ascending) or backward from the end, together with the index of
// the first returned record.
func (l *Ledger) Mints(chain uint32, start uint32, count int, ascending bool) ([]*MintRecord, uint32, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cs, err := l.chain(chain)
	if err != nil {
		return nil, 0, err
	}
	records, first := paginateMints(cs.mints, start, count, ascending)
	return records, first, nil
}

func paginateMints(all []*MintRecord, start uint32, count int, ascending bool) ([]*MintRecord, uint32) {
	n := len(all)
	if count <= 0 || int(start) >= n {
		return nil, 0
	}

	records := make([]*MintRecord, 0, count)
	if ascending {
		i := int(start)
		for ; i < n && len(records) < count; i++ {
			records = append(records, all[i])
		}
		return records, start
	}

	i := n - 1 - int(start)
	first := uint32(i)
	for ; i >= 0 && len(records) < count; i-- {
		records = append(records, all[i])
	}
	return records, first
}
