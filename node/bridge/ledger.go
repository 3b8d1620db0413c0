// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"sync"

	"github.com/pkg/errors"
)

// FeePolicy parameterizes the relayer-protection fee floor of PushMint.
// The floor is (BaseFee+gasPrice)*(MintGas+Overhead), optionally converted
// by the chain's price calculator; a declared fee must stay strictly below
// it.
type FeePolicy struct {
	// BaseFee is the settlement-chain base fee in cost units.
	BaseFee uint64

	// Overhead is the fixed work surcharge added to the measured mint
	// work.
	Overhead uint64

	// MintGas is the work consumed by one mint, in the same units.  The
	// host execution model meters this; a fixed calibrated value stands
	// in for live measurement.
	MintGas uint64

	// GasCeiling caps the submitter-declared gas price as an
	// anti-griefing measure.
	GasCeiling uint64
}

// DefaultFeePolicy mirrors the calibration the bridge ships with.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		BaseFee:    10,
		Overhead:   400_000,
		MintGas:    200_000,
		GasCeiling: 10_000,
	}
}

// Config collects the ledger's collaborators and settings.
type Config struct {
	// Access is the authorization collaborator.  Required.
	Access AccessControl

	// Assets moves native value.  Required unless every chain binds a
	// token.
	Assets AssetTransfer

	// Store persists blocks and records; NewLedger replays it.  Required.
	Store Store

	// Fees is the fee floor policy; the zero value is replaced by
	// DefaultFeePolicy.
	Fees FeePolicy

	// Debug bypasses the deposit-output and OP_RETURN checks of
	// PushMint.  Never enable it on a live ledger.
	Debug bool

	// Self is the account the ledger acts as when pulling token
	// allowances.
	Self string

	// OnBlockRemoved, when set, observes every block pruned during
	// reorganization handling.
	OnBlockRemoved func(chain uint32, number uint64)
}

// Ledger is the authoritative bridge state machine.  All mutating calls are
// serialized; each either fully applies or fully fails.
type Ledger struct {
	mu    sync.RWMutex
	guard transferGuard

	acl    AccessControl
	assets AssetTransfer
	store  Store
	policy FeePolicy
	debug  bool
	self   string

	onBlockRemoved func(chain uint32, number uint64)

	chains map[uint32]*chainState
}

// NewLedger assembles a ledger and replays previously persisted blocks and
// records from the store.  Chains must be registered (RegisterChain) before
// their persisted state becomes reachable; replay is therefore deferred
// until registration.
func NewLedger(cfg Config) (*Ledger, error) {
	if cfg.Access == nil {
		return nil, errors.Wrap(ErrMalformedInput, "access control collaborator is required")
	}
	if cfg.Store == nil {
		return nil, errors.Wrap(ErrMalformedInput, "store is required")
	}

	policy := cfg.Fees
	if policy == (FeePolicy{}) {
		policy = DefaultFeePolicy()
	}
	self := cfg.Self
	if self == "" {
		self = "bridge"
	}

	return &Ledger{
		acl:            cfg.Access,
		assets:         cfg.Assets,
		store:          cfg.Store,
		policy:         policy,
		debug:          cfg.Debug,
		self:           self,
		onBlockRemoved: cfg.OnBlockRemoved,
		chains:         make(map[uint32]*chainState),
	}, nil
}

// RegisterChain binds a new source chain aggregate and replays any persisted
// state for its id.  Owner only.
func (l *Ledger) RegisterChain(caller string, info ChainInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.acl.IsOwner(caller) {
		return errors.Wrapf(ErrAuthorizationDenied, "register chain %d", info.Chain)
	}
	if _, ok := l.chains[info.Chain]; ok {
		return errors.Wrapf(ErrChainExists, "chain %d", info.Chain)
	}

	cs := newChainState(info)
	if err := l.replayChain(cs); err != nil {
		return err
	}
	l.chains[info.Chain] = cs

	log.Info().Uint32("chain", info.Chain).
		Bool("handleReorgs", info.HandleReorgs).
		Uint64("blocks", cs.info.Blocks).
		Msg("chain registered")
	return nil
}

// replayChain rebuilds the in-memory aggregate from the store: block bounds
// and counters, record slices and all identity indices.
func (l *Ledger) replayChain(cs *chainState) error {
	data, err := l.store.LoadChain(cs.info.Chain)
	if err != nil {
		return errors.Wrapf(err, "replay chain %d", cs.info.Chain)
	}
	if data == nil {
		return nil
	}

	for _, block := range data.Blocks {
		cs.blocks[block.BlockNumber] = block
		cs.byHash[block.BlockHash] = block.BlockNumber
		cs.info.Blocks++
		if !cs.firstSet || block.BlockNumber < cs.info.FirstBlockNum {
			cs.info.FirstBlockNum = block.BlockNumber
			cs.firstSet = true
		}
		if !cs.lastSet || block.BlockNumber > cs.info.LastBlockNum {
			cs.info.LastBlockNum = block.BlockNumber
			cs.lastSet = true
		}
	}

	cs.mints = data.Mints
	for i, rec := range cs.mints {
		cs.mintByTxid[rec.Txid] = uint32(i)
		cs.mintByTxHash[rec.TxHash] = uint32(i)
		if rec.BlockNumber > cs.info.LastMint {
			cs.info.LastMint = rec.BlockNumber
		}
	}

	cs.burns = data.Burns
	for i, rec := range cs.burns {
		if rec.pending() {
			continue
		}
		cs.burnByTxid[rec.Txid] = uint32(i)
		cs.burnBySettlement[rec.SettlementHash] = uint32(i)
		if rec.BlockNumber > cs.info.LastBurn {
			cs.info.LastBurn = rec.BlockNumber
		}
	}

	return nil
}

// ChainInfo returns a copy of the chain aggregate's bookkeeping view.
func (l *Ledger) ChainInfo(chain uint32) (ChainInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cs, ok := l.chains[chain]
	if !ok {
		return ChainInfo{}, errors.Wrapf(ErrUnknownChain, "chain %d", chain)
	}
	return cs.info, nil
}

// chain returns the registered aggregate or ErrUnknownChain.  Callers hold
// the ledger lock.
func (l *Ledger) chain(chain uint32) (*chainState, error) {
	cs, ok := l.chains[chain]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownChain, "chain %d", chain)
	}
	return cs, nil
}
