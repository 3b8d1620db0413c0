// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"github.com/pkg/errors"

	"gitlab.com/jaxnet/bridged/types/chainhash"
)

// BurnRequest asks the bridge to redeem value on the chain of origin.
// Destination is an opaque descriptor, typically an address on the source
// chain.  Payment models the native value attached to the call; it is
// ignored for token-backed chains.
type BurnRequest struct {
	Chain       uint32
	Destination string
	Value       uint64
	Fees        uint64
	Payment     uint64
	Permit      *PermitData
}

// PermitData is an optional signed allowance consumed before pulling
// token-backed value from the caller.
type PermitData struct {
	Value     uint64
	Deadline  uint64
	Signature []byte
}

// BurnFulfillment reports the observed source-chain payout for a pending
// burn request.
type BurnFulfillment struct {
	Chain          uint32
	Index          uint32
	BlockNumber    uint64
	Timestamp      uint64
	Txid           chainhash.Hash
	SettlementHash chainhash.Hash
	TxIndex        uint16
}

// RequestBurn records a redemption request and takes custody of the burned
// value.  The record starts pending, settlement fields zeroed, and is
// completed by PushBurn.  Returns the index of the new record.
func (l *Ledger) RequestBurn(caller string, req BurnRequest) (uint32, error) {
	if l.guard.reentered() {
		return 0, errors.Wrap(ErrReentrantCall, "request burn")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cs, err := l.chain(req.Chain)
	if err != nil {
		return 0, err
	}

	if req.Fees == 0 {
		return 0, errors.Wrap(ErrMalformedInput, "zero fees")
	}
	if req.Value <= req.Fees {
		return 0, errors.Wrapf(ErrMalformedInput, "value %d does not exceed fees %d", req.Value, req.Fees)
	}

	if cs.info.Token == nil && req.Payment != req.Value {
		return 0, errors.Wrapf(ErrMalformedInput,
			"attached payment %d does not equal value %d", req.Payment, req.Value)
	}

	rec := &BurnRecord{
		Account:     caller,
		Destination: req.Destination,
		Value:       req.Value,
		Fees:        req.Fees,
	}
	index := uint32(len(cs.burns))

	// Stage the pending record before taking custody of the value.
	if err := l.store.PutBurn(req.Chain, index, rec); err != nil {
		return 0, errors.Wrapf(err, "persist burn %d", index)
	}

	if cs.info.Token != nil {
		l.guard.hold()
		if req.Permit != nil {
			err = cs.info.Token.Permit(caller, l.self, req.Permit.Value, req.Permit.Deadline, req.Permit.Signature)
			if err == nil {
				err = cs.info.Token.TransferFrom(caller, l.self, req.Value)
			}
		} else {
			err = cs.info.Token.TransferFrom(caller, l.self, req.Value)
		}
		l.guard.release()
		if err != nil {
			if dropErr := l.store.DropBurn(req.Chain, index); dropErr != nil {
				log.Error().Err(dropErr).Uint32("chain", req.Chain).
					Uint32("index", index).Msg("failed to drop staged burn record")
			}
			return 0, errors.Wrap(err, "pull burned value")
		}
	}

	cs.burns = append(cs.burns, rec)

	log.Info().Uint32("chain", req.Chain).Uint32("index", index).
		Str("account", caller).Str("destination", req.Destination).
		Uint64("value", req.Value).Uint64("fees", req.Fees).Msg("burn requested")
	return index, nil
}

// PushBurn settles a burn request with the payout observed on the chain of
// origin: releases value-fees to the chain's payout target (or burns the
// token custody), pays the submitter fee, and fills the settlement fields.
// Group members only.
//
// Re-invoking the same index overwrites the settlement fields.  The update
// semantics are relied upon for corrections, so no completed-once guard is
// applied here.
func (l *Ledger) PushBurn(submitter string, f BurnFulfillment) error {
	if l.guard.reentered() {
		return errors.Wrap(ErrReentrantCall, "push burn")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.acl.IsMember(GroupSubmitters, submitter) {
		return errors.Wrapf(ErrAuthorizationDenied, "push burn by %q", submitter)
	}

	cs, err := l.chain(f.Chain)
	if err != nil {
		return err
	}
	if f.Index >= uint32(len(cs.burns)) {
		return errors.Wrapf(ErrUnknownBurn, "index %d of %d", f.Index, len(cs.burns))
	}
	rec := cs.burns[f.Index]
	wasPending := rec.pending()

	// Stage the settled record before releasing any value; the in-memory
	// record is only touched once both the write and the release went
	// through.
	settled := *rec
	settled.BlockNumber = f.BlockNumber
	settled.Timestamp = f.Timestamp
	settled.Txid = f.Txid
	settled.SettlementHash = f.SettlementHash
	settled.TxIndex = f.TxIndex
	if err := l.store.PutBurn(f.Chain, f.Index, &settled); err != nil {
		return errors.Wrapf(err, "persist burn %d", f.Index)
	}

	// The release runs on every invocation, corrections included.  A
	// repeated index therefore pays out again; submitters own that risk.
	payout := rec.Value - rec.Fees
	l.guard.hold()
	if cs.info.Token != nil {
		err = cs.info.Token.Burn(payout)
		if err == nil && rec.Fees > 0 {
			err = cs.info.Token.Transfer(submitter, rec.Fees)
		}
	} else {
		err = l.assets.TransferNative(cs.info.PayoutTarget, payout)
		if err == nil && rec.Fees > 0 {
			err = l.assets.TransferNative(submitter, rec.Fees)
		}
	}
	l.guard.release()
	if err != nil {
		if putErr := l.store.PutBurn(f.Chain, f.Index, rec); putErr != nil {
			log.Error().Err(putErr).Uint32("chain", f.Chain).
				Uint32("index", f.Index).Msg("failed to restore staged burn record")
		}
		return errors.Wrap(err, "release burned value")
	}

	if f.BlockNumber > cs.info.LastBurn {
		cs.info.LastBurn = f.BlockNumber
	}
	*rec = settled
	cs.burnByTxid[f.Txid] = f.Index
	cs.burnBySettlement[f.SettlementHash] = f.Index

	log.Info().Uint32("chain", f.Chain).Uint32("index", f.Index).
		Uint64("block", f.BlockNumber).Str("txid", hashString(f.Txid)).
		Bool("correction", !wasPending).Msg("burn fulfilled")
	return nil
}

// BurnAt returns the burn record at index.
func (l *Ledger) BurnAt(chain uint32, index uint32) (*BurnRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cs, err := l.chain(chain)
	if err != nil {
		return nil, err
	}
	if index >= uint32(len(cs.burns)) {
		return nil, errors.Wrapf(ErrUnknownBurn, "index %d of %d", index, len(cs.burns))
	}
	return cs.burns[index], nil
}

// Burns returns up to count burn records starting at offset start, walking
// forward (ascending) or backward from the end, together with the index of
// the first returned record.
func (l *Ledger) Burns(chain uint32, start uint32, count int, ascending bool) ([]*BurnRecord, uint32, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cs, err := l.chain(chain)
	if err != nil {
		return nil, 0, err
	}

	n := len(cs.burns)
	if count <= 0 || int(start) >= n {
		return nil, 0, nil
	}

	records := make([]*BurnRecord, 0, count)
	if ascending {
		for i := int(start); i < n && len(records) < count; i++ {
			records = append(records, cs.burns[i])
		}
		return records, start, nil
	}

	i := n - 1 - int(start)
	first := uint32(i)
	for ; i >= 0 && len(records) < count; i-- {
		records = append(records, cs.burns[i])
	}
	return records, first, nil
}
