// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"os"

	"github.com/gocarina/gocsv"

	"gitlab.com/jaxnet/bridged/node/bridge"
	"gitlab.com/jaxnet/bridged/types/chainhash"
)

type CSVStorage struct {
	path string
	file *os.File
}

func NewCSVStorage(path string) *CSVStorage {
	return &CSVStorage{path: path}
}

func (storage *CSVStorage) open() error {
	file, err := os.OpenFile(storage.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if os.IsPermission(err) {
		file, err = os.Create(storage.path)
	}

	storage.file = file
	return err
}

func (storage *CSVStorage) Close() {
	if storage.file != nil {
		_ = storage.file.Close()
	}
}

func (storage *CSVStorage) SaveMints(rows []MintRow) error {
	if err := storage.open(); err != nil {
		return err
	}
	defer storage.Close()

	return gocsv.MarshalFile(rows, storage.file)
}

func (storage *CSVStorage) SaveBurns(rows []BurnRow) error {
	if err := storage.open(); err != nil {
		return err
	}
	defer storage.Close()

	return gocsv.MarshalFile(rows, storage.file)
}

// MintRow is the CSV shape of one credited deposit.
type MintRow struct {
	Index        uint32 `csv:"index"`
	BlockNumber  uint64 `csv:"block_number"`
	Timestamp    uint64 `csv:"timestamp"`
	Txid         string `csv:"txid"`
	TxHash       string `csv:"tx_hash"`
	SettlementTx string `csv:"settlement_tx"`
	TxIndex      uint16 `csv:"tx_index"`
	To           string `csv:"to"`
	Value        uint64 `csv:"value"`
	Fees         uint64 `csv:"fees"`
}

// BurnRow is the CSV shape of one redemption, pending rows with the
// settlement columns empty.
type BurnRow struct {
	Index          uint32 `csv:"index"`
	Account        string `csv:"account"`
	Destination    string `csv:"destination"`
	Value          uint64 `csv:"value"`
	Fees           uint64 `csv:"fees"`
	BlockNumber    uint64 `csv:"block_number"`
	Timestamp      uint64 `csv:"timestamp"`
	Txid           string `csv:"txid"`
	SettlementHash string `csv:"settlement_hash"`
	TxIndex        uint16 `csv:"tx_index"`
}

// displayHex renders a display-order hash as hex, empty for the zero hash so
// unfilled columns stay blank in the export.
func displayHex(h chainhash.Hash) string {
	if h.IsZero() {
		return ""
	}
	return hex.EncodeToString(h[:])
}

func mintRows(records []*bridge.MintRecord, first uint32) []MintRow {
	rows := make([]MintRow, len(records))
	for i, rec := range records {
		rows[i] = MintRow{
			Index:        first + uint32(i),
			BlockNumber:  rec.BlockNumber,
			Timestamp:    rec.Timestamp,
			Txid:         displayHex(rec.Txid),
			TxHash:       displayHex(rec.TxHash),
			SettlementTx: displayHex(rec.SettlementTx),
			TxIndex:      rec.TxIndex,
			To:           rec.To,
			Value:        rec.Value,
			Fees:         rec.Fees,
		}
	}
	return rows
}

func burnRows(records []*bridge.BurnRecord, first uint32) []BurnRow {
	rows := make([]BurnRow, len(records))
	for i, rec := range records {
		rows[i] = BurnRow{
			Index:          first + uint32(i),
			Account:        rec.Account,
			Destination:    rec.Destination,
			Value:          rec.Value,
			Fees:           rec.Fees,
			BlockNumber:    rec.BlockNumber,
			Timestamp:      rec.Timestamp,
			Txid:           displayHex(rec.Txid),
			SettlementHash: displayHex(rec.SettlementHash),
			TxIndex:        rec.TxIndex,
		}
	}
	return rows
}
