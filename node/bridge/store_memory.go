// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"sort"
	"sync"

	"gitlab.com/jaxnet/bridged/types/wire"
)

// memoryStore keeps everything in maps.  Used by tests and by ledgers that
// do not need to survive a restart.
type memoryStore struct {
	mu     sync.Mutex
	blocks map[uint32]map[uint64]*wire.ChainBlock
	mints  map[uint32]map[uint32]*MintRecord
	burns  map[uint32]map[uint32]*BurnRecord
}

// MemoryStore returns an empty in-memory Store.
func MemoryStore() Store {
	return &memoryStore{
		blocks: make(map[uint32]map[uint64]*wire.ChainBlock),
		mints:  make(map[uint32]map[uint32]*MintRecord),
		burns:  make(map[uint32]map[uint32]*BurnRecord),
	}
}

func (s *memoryStore) PutBlock(chain uint32, block *wire.ChainBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocks[chain] == nil {
		s.blocks[chain] = make(map[uint64]*wire.ChainBlock)
	}
	s.blocks[chain][block.BlockNumber] = block
	return nil
}

func (s *memoryStore) DropBlock(chain uint32, number uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks[chain], number)
	return nil
}

func (s *memoryStore) PutMint(chain uint32, index uint32, rec *MintRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mints[chain] == nil {
		s.mints[chain] = make(map[uint32]*MintRecord)
	}
	s.mints[chain][index] = rec
	return nil
}

func (s *memoryStore) DropMint(chain uint32, index uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mints[chain], index)
	return nil
}

func (s *memoryStore) PutBurn(chain uint32, index uint32, rec *BurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.burns[chain] == nil {
		s.burns[chain] = make(map[uint32]*BurnRecord)
	}
	s.burns[chain][index] = rec
	return nil
}

func (s *memoryStore) DropBurn(chain uint32, index uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.burns[chain], index)
	return nil
}

func (s *memoryStore) LoadChain(chain uint32) (*ChainData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.blocks[chain]) == 0 && len(s.mints[chain]) == 0 && len(s.burns[chain]) == 0 {
		return nil, nil
	}

	data := &ChainData{}
	for _, block := range s.blocks[chain] {
		data.Blocks = append(data.Blocks, block)
	}
	sort.Slice(data.Blocks, func(i, j int) bool {
		return data.Blocks[i].BlockNumber < data.Blocks[j].BlockNumber
	})

	data.Mints = make([]*MintRecord, len(s.mints[chain]))
	for index, rec := range s.mints[chain] {
		data.Mints[index] = rec
	}
	data.Burns = make([]*BurnRecord, len(s.burns[chain]))
	for index, rec := range s.burns[chain] {
		data.Burns[index] = rec
	}

	return data, nil
}

func (s *memoryStore) Close() error {
	return nil
}
