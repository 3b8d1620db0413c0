// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"github.com/pkg/errors"

	"gitlab.com/jaxnet/bridged/types/chainhash"
	"gitlab.com/jaxnet/bridged/types/wire"
)

// maxRangeScan bounds a single paginated scan over block numbers so a
// sparse, heavily pruned range cannot stall a query.
const maxRangeScan = 10_000

// PushBlock stores one block header record for its chain.  Headers may
// arrive in any order; the only ordering guarantee is the adjacency check
// against a stored block at number-1.  Resubmitting an occupied slot is a
// silent no-op unless the chain handles reorgs, in which case every stored
// block from the incoming number up to the tip is pruned first.
func (l *Ledger) PushBlock(caller string, block *wire.ChainBlock) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.acl.IsMember(GroupSubmitters, caller) {
		return errors.Wrapf(ErrAuthorizationDenied, "push block by %q", caller)
	}

	cs, err := l.chain(block.Chain)
	if err != nil {
		return err
	}

	if block.Timestamp == 0 {
		// Zero timestamp is the absence sentinel and can never be
		// stored.
		return errors.Wrapf(ErrMalformedInput, "block %d has zero timestamp", block.BlockNumber)
	}

	number := block.BlockNumber
	existing := cs.blocks[number]

	// Adjacency: when the parent slot is occupied the incoming header
	// must chain to it.  Checked before any mutation.
	if parent, ok := cs.blocks[number-1]; ok && number > 0 {
		if parent.BlockHash != block.PrevBlockHash {
			return errors.Wrapf(ErrChainContinuity,
				"block %d prev %s, stored parent %s",
				number, hashString(block.PrevBlockHash), hashString(parent.BlockHash))
		}
	}

	rewrite := cs.lastSet && number <= cs.info.LastBlockNum
	if rewrite && !cs.info.HandleReorgs && existing != nil {
		// Idempotent resubmission.
		return nil
	}

	if rewrite && cs.info.HandleReorgs {
		if err := l.pruneFrom(cs, number); err != nil {
			return err
		}
	}

	// Persist before any bookkeeping: a failed write must leave the
	// aggregate exactly as it was.
	if err := l.store.PutBlock(block.Chain, block); err != nil {
		return errors.Wrapf(err, "persist block %d", number)
	}

	if !cs.firstSet || number < cs.info.FirstBlockNum {
		cs.info.FirstBlockNum = number
		cs.firstSet = true
	}
	if rewrite {
		if cs.info.HandleReorgs {
			cs.info.LastBlockNum = number
		}
	} else {
		cs.info.LastBlockNum = number
		cs.lastSet = true
	}

	if cs.blocks[number] == nil {
		cs.info.Blocks++
	} else {
		delete(cs.byHash, cs.blocks[number].BlockHash)
	}
	cs.blocks[number] = block
	cs.byHash[block.BlockHash] = number

	log.Debug().Uint32("chain", block.Chain).Uint64("block", number).
		Str("hash", hashString(block.BlockHash)).Msg("block stored")
	return nil
}

// pruneFrom deletes every stored block from number through the current tip,
// emitting a removal notice per deleted block.
func (l *Ledger) pruneFrom(cs *chainState, number uint64) error {
	for n := number; n <= cs.info.LastBlockNum; n++ {
		block, ok := cs.blocks[n]
		if !ok {
			continue
		}
		if err := l.store.DropBlock(cs.info.Chain, n); err != nil {
			return errors.Wrapf(err, "drop block %d", n)
		}
		delete(cs.blocks, n)
		delete(cs.byHash, block.BlockHash)
		cs.info.Blocks--

		log.Info().Uint32("chain", cs.info.Chain).Uint64("block", n).
			Str("hash", hashString(block.BlockHash)).Msg("block removed on reorg")
		if l.onBlockRemoved != nil {
			l.onBlockRemoved(cs.info.Chain, n)
		}
	}
	return nil
}

// HasBlock reports whether a block is stored at the given number.
func (l *Ledger) HasBlock(chain uint32, number uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cs, ok := l.chains[chain]
	if !ok {
		return false
	}
	block, ok := cs.blocks[number]
	return ok && block.Timestamp != 0
}

// BlockAtNumber returns the stored block at number.
func (l *Ledger) BlockAtNumber(chain uint32, number uint64) (*wire.ChainBlock, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cs, err := l.chain(chain)
	if err != nil {
		return nil, err
	}
	block, ok := cs.blocks[number]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBlock, "chain %d block %d", chain, number)
	}
	return block, nil
}

// BlockByHash returns the stored block with the given hash.  The stored
// block's hash is re-verified: an absent index entry maps to slot 0, which
// must not collide with a genuine block 0.
func (l *Ledger) BlockByHash(chain uint32, hash chainhash.Hash) (*wire.ChainBlock, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cs, err := l.chain(chain)
	if err != nil {
		return nil, err
	}
	number, ok := cs.byHash[hash]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBlock, "chain %d hash %s", chain, hashString(hash))
	}
	block, ok := cs.blocks[number]
	if !ok || block.BlockHash != hash {
		return nil, errors.Wrapf(ErrUnknownBlock, "chain %d hash %s", chain, hashString(hash))
	}
	return block, nil
}

// BlocksRange returns up to count stored blocks walking from
// firstBlockNum+offset upward (ascending) or lastBlockNum-offset downward.
// Pruned slots are skipped; the scan stops after count results or
// maxRangeScan examined numbers.  The number of the first returned block
// accompanies the slice.
func (l *Ledger) BlocksRange(chain uint32, offset uint64, count int, ascending bool) ([]*wire.ChainBlock, uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cs, err := l.chain(chain)
	if err != nil {
		return nil, 0, err
	}
	if count <= 0 || cs.info.Blocks == 0 {
		return nil, 0, nil
	}

	blocks := make([]*wire.ChainBlock, 0, count)
	var firstReturned uint64

	if ascending {
		number := cs.info.FirstBlockNum + offset
		for scanned := 0; scanned < maxRangeScan && number <= cs.info.LastBlockNum; scanned++ {
			if block, ok := cs.blocks[number]; ok {
				if len(blocks) == 0 {
					firstReturned = number
				}
				blocks = append(blocks, block)
				if len(blocks) == count {
					break
				}
			}
			number++
		}
	} else {
		if offset > cs.info.LastBlockNum {
			return nil, 0, nil
		}
		number := cs.info.LastBlockNum - offset
		for scanned := 0; scanned < maxRangeScan; scanned++ {
			if block, ok := cs.blocks[number]; ok {
				if len(blocks) == 0 {
					firstReturned = number
				}
				blocks = append(blocks, block)
				if len(blocks) == count {
					break
				}
			}
			if number == 0 || number == cs.info.FirstBlockNum {
				break
			}
			number--
		}
	}

	return blocks, firstReturned, nil
}

func hashString(h chainhash.Hash) string {
	return h.Reversed().String()
}
