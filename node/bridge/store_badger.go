// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"encoding/binary"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"gitlab.com/jaxnet/bridged/types/wire"
)

// badgerStore mirrors committed ledger mutations into a badger database.
type badgerStore struct {
	db *badger.DB
}

// BadgerStore opens (or creates) the persistent store at path.
func BadgerStore(path string) (Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger store at %s", path)
	}
	return &badgerStore{db: db}, nil
}

func (s *badgerStore) put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *badgerStore) PutBlock(chain uint32, block *wire.ChainBlock) error {
	return s.put(blockKey(chain, block.BlockNumber), encodeChainBlock(block))
}

func (s *badgerStore) drop(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (s *badgerStore) DropBlock(chain uint32, number uint64) error {
	return s.drop(blockKey(chain, number))
}

func (s *badgerStore) PutMint(chain uint32, index uint32, rec *MintRecord) error {
	return s.put(recordKey(mintKeyID, chain, index), encodeMintRecord(rec))
}

func (s *badgerStore) DropMint(chain uint32, index uint32) error {
	return s.drop(recordKey(mintKeyID, chain, index))
}

func (s *badgerStore) PutBurn(chain uint32, index uint32, rec *BurnRecord) error {
	return s.put(recordKey(burnKeyID, chain, index), encodeBurnRecord(rec))
}

func (s *badgerStore) DropBurn(chain uint32, index uint32) error {
	return s.drop(recordKey(burnKeyID, chain, index))
}

func (s *badgerStore) LoadChain(chain uint32) (*ChainData, error) {
	data := &ChainData{}
	empty := true

	err := s.db.View(func(txn *badger.Txn) error {
		err := scanPrefix(txn, chainPrefix(blockKeyID, chain), func(_, value []byte) error {
			block, err := decodeChainBlock(value)
			if err != nil {
				return err
			}
			data.Blocks = append(data.Blocks, block)
			empty = false
			return nil
		})
		if err != nil {
			return err
		}

		// Record keys are big-endian indices, so prefix order is index
		// order and append rebuilds the original slices.
		err = scanPrefix(txn, chainPrefix(mintKeyID, chain), func(key, value []byte) error {
			rec, err := decodeMintRecord(value)
			if err != nil {
				return err
			}
			if got := binary.BigEndian.Uint32(key[5:9]); got != uint32(len(data.Mints)) {
				return errors.Errorf("mint index %d out of sequence at %d", got, len(data.Mints))
			}
			data.Mints = append(data.Mints, rec)
			empty = false
			return nil
		})
		if err != nil {
			return err
		}

		return scanPrefix(txn, chainPrefix(burnKeyID, chain), func(key, value []byte) error {
			rec, err := decodeBurnRecord(value)
			if err != nil {
				return err
			}
			if got := binary.BigEndian.Uint32(key[5:9]); got != uint32(len(data.Burns)) {
				return errors.Errorf("burn index %d out of sequence at %d", got, len(data.Burns))
			}
			data.Burns = append(data.Burns, rec)
			empty = false
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load chain %d", chain)
	}
	if empty {
		return nil, nil
	}
	return data, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

func scanPrefix(txn *badger.Txn, prefix []byte, visit func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := visit(item.Key(), value); err != nil {
			return err
		}
	}
	return nil
}
