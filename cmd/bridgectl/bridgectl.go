// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"gitlab.com/jaxnet/bridged/config"
	"gitlab.com/jaxnet/bridged/node/bridge"
	"gitlab.com/jaxnet/bridged/relayer"
	"gitlab.com/jaxnet/bridged/types/chainhash"
	"gitlab.com/jaxnet/bridged/types/wire"
)

func main() {
	app := &App{}
	cliApp := &cli.App{
		Name:   "bridgectl",
		Usage:  "inspect blocks, craft proofs and export bridge ledger records",
		Flags:  app.InitFlags(),
		Before: app.InitCfg,
		Commands: []*cli.Command{
			{
				Name:   "decode-block",
				Usage:  "parse a raw block and print its summary and transactions",
				Action: app.DecodeBlockCmd,
				Flags:  app.DecodeBlockFlags(),
			},
			{
				Name:   "build-proof",
				Usage:  "build a mint proof for a deposit transaction of a raw block",
				Action: app.BuildProofCmd,
				Flags:  app.BuildProofFlags(),
			},
			{
				Name:   "fetch-block",
				Usage:  "fetch a raw block from the configured source node",
				Action: app.FetchBlockCmd,
				Flags:  app.FetchBlockFlags(),
			},
			{
				Name:   "export-mints",
				Usage:  "export mint records of a chain to CSV file",
				Action: app.ExportMintsCmd,
				Flags:  app.ExportFlags(),
			},
			{
				Name:   "export-burns",
				Usage:  "export burn records of a chain to CSV file",
				Action: app.ExportBurnsCmd,
				Flags:  app.ExportFlags(),
			},
		},
	}

	err := cliApp.Run(os.Args)
	if err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

type App struct {
	configPath string
	config     *config.Config
}

func (app *App) InitFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "./bridged.yaml",
			EnvVars: []string{"BRIDGE_CONFIG"},
			Usage:   "path to daemon configuration",
		},
	}
}

// InitCfg remembers the config path; the file itself is loaded lazily since
// the block commands work without one.
func (app *App) InitCfg(c *cli.Context) error {
	app.configPath = c.String("config")
	return nil
}

func (app *App) cfg() (*config.Config, error) {
	if app.config != nil {
		return app.config, nil
	}
	cfg, err := config.LoadFile(app.configPath)
	if err != nil {
		return nil, err
	}
	app.config = cfg
	return cfg, nil
}

func (app *App) chainCfg(id uint32) (*config.ChainConfig, error) {
	cfg, err := app.cfg()
	if err != nil {
		return nil, err
	}
	for i := range cfg.Chains {
		if cfg.Chains[i].ID == id {
			return &cfg.Chains[i], nil
		}
	}
	return nil, errors.Errorf("chain %d is not declared in %s", id, app.configPath)
}

func blockFileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "block-file",
			Aliases:  []string{"f"},
			EnvVars:  []string{"BRIDGE_BLOCK_FILE"},
			Usage:    "path to raw block, binary or hex",
			Required: true,
		},
		&cli.UintFlag{
			Name:    "chain",
			Aliases: []string{"n"},
			Usage:   "ledger chain id",
		},
		&cli.Uint64Flag{
			Name:    "number",
			Aliases: []string{"b"},
			Usage:   "block number on the source chain",
		},
	}
}

// readBlockFile loads raw block bytes, accepting both binary dumps and the
// hex form the REST endpoints serve.
func readBlockFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read block file")
	}

	trimmed := strings.TrimSpace(string(data))
	if decoded, err := hex.DecodeString(trimmed); err == nil {
		return decoded, nil
	}
	return data, nil
}

func (app *App) DecodeBlockFlags() []cli.Flag {
	return blockFileFlags()
}

func (app *App) DecodeBlockCmd(c *cli.Context) error {
	raw, err := readBlockFile(c.String("block-file"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	block, err := relayer.ParseBlock(raw)
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "unable to parse block"), 1)
	}

	summary := block.Summary(uint32(c.Uint("chain")), c.Uint64("number"))
	fmt.Printf("Block:      %s\n", summaryHex(summary.BlockHash))
	fmt.Printf("Prev:       %s\n", summaryHex(summary.PrevBlockHash))
	fmt.Printf("MerkleRoot: %s\n", summaryHex(summary.MerkleRoot))
	fmt.Printf("HashRoot:   %s\n", summaryHex(summary.HashRoot))
	fmt.Printf("Timestamp:  %d\n", summary.Timestamp)
	fmt.Printf("Txs:        %d\n", len(block.Txs))

	for i, tx := range block.Txs {
		fmt.Printf("  %4d txid %s", i, summaryHex(tx.TxID))
		if tx.TxHash != tx.TxID {
			fmt.Printf(" hash %s", summaryHex(tx.TxHash))
		}
		fmt.Println()
	}
	return nil
}

func (app *App) BuildProofFlags() []cli.Flag {
	return append(blockFileFlags(),
		&cli.StringFlag{
			Name:     "txid",
			Aliases:  []string{"x"},
			Usage:    "txid of the deposit transaction, display hex",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to",
			Aliases:  []string{"t"},
			Usage:    "destination account of the mint",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "script",
			Aliases:  []string{"s"},
			Usage:    "hex-encoded locking script of the deposit output",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:     "value",
			Aliases:  []string{"v"},
			Usage:    "deposited value",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:  "gas-price",
			Usage: "gas price for the fee floor",
		},
		&cli.Uint64Flag{
			Name:  "fees",
			Usage: "fees withheld from the deposit",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "write proof JSON to file instead of stdout",
		},
	)
}

func (app *App) BuildProofCmd(c *cli.Context) error {
	raw, err := readBlockFile(c.String("block-file"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	block, err := relayer.ParseBlock(raw)
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "unable to parse block"), 1)
	}

	txid, err := chainhash.NewHashFromStr(c.String("txid"))
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "invalid txid"), 1)
	}
	index, err := block.FindTx(txid.Reversed())
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	script, err := hex.DecodeString(c.String("script"))
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "invalid script hex"), 1)
	}

	proof, err := block.BuildProof(uint32(c.Uint("chain")), c.Uint64("number"), index, relayer.Deposit{
		To:        c.String("to"),
		ScriptPub: script,
		Value:     c.Uint64("value"),
		GasPrice:  c.Uint64("gas-price"),
		Fees:      c.Uint64("fees"),
	})
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "unable to build proof"), 1)
	}

	body, err := json.MarshalIndent(proofToJSON(proof), "", "  ")
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if out := c.String("out"); out != "" {
		if err := os.WriteFile(out, append(body, '\n'), 0644); err != nil {
			return cli.NewExitError(errors.Wrap(err, "unable to save proof"), 1)
		}
		fmt.Printf("Proof for tx %d saved to %s\n", index, out)
		return nil
	}

	fmt.Println(string(body))
	return nil
}

func (app *App) FetchBlockFlags() []cli.Flag {
	return []cli.Flag{
		&cli.UintFlag{
			Name:     "chain",
			Aliases:  []string{"n"},
			Usage:    "ledger chain id, picks the source node from config",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:     "number",
			Aliases:  []string{"b"},
			Usage:    "block number to fetch",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "out",
			Aliases:  []string{"o"},
			Usage:    "path to write the raw block to",
			Required: true,
		},
	}
}

func (app *App) FetchBlockCmd(c *cli.Context) error {
	chain, err := app.chainCfg(uint32(c.Uint("chain")))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	client, err := relayer.NewClient(chain.Fetch)
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "unable to init fetch client"), 1)
	}

	number := c.Uint64("number")
	raw, err := client.RawBlockAtNumber(context.Background(), number)
	if err != nil {
		return cli.NewExitError(errors.Wrap(err, "unable to fetch block"), 1)
	}

	if err := os.WriteFile(c.String("out"), raw, 0644); err != nil {
		return cli.NewExitError(errors.Wrap(err, "unable to save block"), 1)
	}

	fmt.Printf("Fetched block %d, %d bytes\n", number, len(raw))
	return nil
}

func (app *App) ExportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.UintFlag{
			Name:     "chain",
			Aliases:  []string{"n"},
			Usage:    "ledger chain id",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "data-file",
			Aliases:  []string{"f"},
			EnvVars:  []string{"BRIDGE_DATA_FILE"},
			Usage:    "path to CSV output",
			Required: true,
		},
	}
}

func (app *App) ExportMintsCmd(c *cli.Context) error {
	ledger, closeStore, err := app.openLedger()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer closeStore()

	chain := uint32(c.Uint("chain"))
	var rows []MintRow
	for start := uint32(0); ; {
		records, first, err := ledger.Mints(chain, start, exportBatch, true)
		if err != nil {
			return cli.NewExitError(errors.Wrap(err, "unable to read mints"), 1)
		}
		rows = append(rows, mintRows(records, first)...)
		if len(records) < exportBatch {
			break
		}
		start += uint32(len(records))
	}

	if err := NewCSVStorage(c.String("data-file")).SaveMints(rows); err != nil {
		return cli.NewExitError(errors.Wrap(err, "unable to save mints"), 1)
	}

	fmt.Printf("Exported %d mints of chain %d\n", len(rows), chain)
	return nil
}

func (app *App) ExportBurnsCmd(c *cli.Context) error {
	ledger, closeStore, err := app.openLedger()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer closeStore()

	chain := uint32(c.Uint("chain"))
	var rows []BurnRow
	for start := uint32(0); ; {
		records, first, err := ledger.Burns(chain, start, exportBatch, true)
		if err != nil {
			return cli.NewExitError(errors.Wrap(err, "unable to read burns"), 1)
		}
		rows = append(rows, burnRows(records, first)...)
		if len(records) < exportBatch {
			break
		}
		start += uint32(len(records))
	}

	if err := NewCSVStorage(c.String("data-file")).SaveBurns(rows); err != nil {
		return cli.NewExitError(errors.Wrap(err, "unable to save burns"), 1)
	}

	fmt.Printf("Exported %d burns of chain %d\n", len(rows), chain)
	return nil
}

const exportBatch = 512

// openLedger replays the persistent store into a read-only ledger.  The
// daemon must not be running against the same store, badger holds an
// exclusive lock.
func (app *App) openLedger() (*bridge.Ledger, func(), error) {
	cfg, err := app.cfg()
	if err != nil {
		return nil, nil, err
	}

	store, err := bridge.BadgerStore(cfg.StoreDir())
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to open store")
	}
	closeStore := func() { _ = store.Close() }

	access := bridge.NewStaticAccess(cfg.Owner)
	ledger, err := bridge.NewLedger(bridge.Config{
		Access: access,
		Assets: nopAssets{},
		Store:  readOnlyStore{store},
		Fees:   cfg.Fees.Policy(),
		Self:   cfg.Self,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	for i := range cfg.Chains {
		info, err := cfg.Chains[i].Info()
		if err != nil {
			closeStore()
			return nil, nil, err
		}
		if err := ledger.RegisterChain(cfg.Owner, info); err != nil {
			closeStore()
			return nil, nil, err
		}
	}
	return ledger, closeStore, nil
}

// nopAssets satisfies the ledger's transfer collaborator; the export
// commands never move value.
type nopAssets struct{}

func (nopAssets) TransferNative(string, uint64) error { return nil }

// readOnlyStore passes reads through and rejects writes, so a stray
// operation cannot mutate the daemon's store.
type readOnlyStore struct {
	bridge.Store
}

var errReadOnly = errors.New("store is opened read-only")

func (readOnlyStore) PutBlock(uint32, *wire.ChainBlock) error { return errReadOnly }

func (readOnlyStore) DropBlock(uint32, uint64) error { return errReadOnly }

func (readOnlyStore) PutMint(uint32, uint32, *bridge.MintRecord) error { return errReadOnly }

func (readOnlyStore) DropMint(uint32, uint32) error { return errReadOnly }

func (readOnlyStore) PutBurn(uint32, uint32, *bridge.BurnRecord) error { return errReadOnly }

func (readOnlyStore) DropBurn(uint32, uint32) error { return errReadOnly }

// summaryHex renders a display-order hash field as hex.
func summaryHex(h chainhash.Hash) string {
	return hex.EncodeToString(h[:])
}

// proofJSON is the printable shape of a mint proof, hashes and payloads as
// hex strings.
type proofJSON struct {
	Chain        uint32   `json:"chain"`
	BlockNumber  uint64   `json:"blockNumber"`
	Txid         string   `json:"txid"`
	TxIndex      uint16   `json:"txIndex"`
	TxHex        string   `json:"txHex"`
	TxSiblings   []string `json:"txSiblings"`
	HashSiblings []string `json:"hashSiblings"`
	To           string   `json:"to"`
	ScriptPub    string   `json:"scriptPub"`
	Value        uint64   `json:"value"`
	GasPrice     uint64   `json:"gasPrice"`
	Fees         uint64   `json:"fees"`
}

func proofToJSON(p *wire.MintProof) proofJSON {
	return proofJSON{
		Chain:        p.Chain,
		BlockNumber:  p.BlockNumber,
		Txid:         summaryHex(p.Txid),
		TxIndex:      p.TxIndex,
		TxHex:        hex.EncodeToString(p.TxData),
		TxSiblings:   hashStrings(p.TxSiblings),
		HashSiblings: hashStrings(p.HashSiblings),
		To:           p.To,
		ScriptPub:    hex.EncodeToString(p.ScriptPub),
		Value:        p.Value,
		GasPrice:     p.GasPrice,
		Fees:         p.Fees,
	}
}

func hashStrings(hashes []chainhash.Hash) []string {
	strs := make([]string, len(hashes))
	for i, h := range hashes {
		strs[i] = hex.EncodeToString(h[:])
	}
	return strs
}
