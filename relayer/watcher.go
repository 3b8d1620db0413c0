// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package relayer

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/jaxnet/bridged/types/wire"
)

// HeaderStore is the ledger surface the watcher pushes into.
type HeaderStore interface {
	PushBlock(caller string, block *wire.ChainBlock) error
	HasBlock(chain uint32, number uint64) bool
}

// WatcherConfig parameterizes one chain sync loop.
type WatcherConfig struct {
	// Chain is the ledger id of the watched source chain.
	Chain uint32 `yaml:"chain"`

	// Submitter is the account the watcher pushes blocks as; it must be
	// enrolled in the ledger's submitter group.
	Submitter string `yaml:"submitter"`

	// StartBlock is the first height to sync when the ledger holds
	// nothing yet.
	StartBlock uint64 `yaml:"start_block"`

	// Confirmations is the depth kept behind the source-chain tip.
	Confirmations uint64 `yaml:"confirmations"`

	// PollInterval is the delay between tip checks.
	PollInterval time.Duration `yaml:"poll_interval"`

	// BatchSize caps the number of blocks fetched per sync round.
	BatchSize uint64 `yaml:"batch_size"`
}

const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 64
)

// Watcher keeps one source chain synced into the ledger: it polls the tip,
// downloads the missing confirmed blocks and pushes their summaries.
type Watcher struct {
	cfg    WatcherConfig
	client *Client
	store  HeaderStore
	next   uint64
}

// NewWatcher assembles a watcher; syncing starts at cfg.StartBlock.
func NewWatcher(cfg WatcherConfig, client *Client, store HeaderStore) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Watcher{
		cfg:    cfg,
		client: client,
		store:  store,
		next:   cfg.StartBlock,
	}
}

// Run loops until the context is canceled, syncing one round per poll
// interval.  Sync errors are logged and retried next round rather than
// terminating the loop.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.syncRound(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Uint32("chain", w.cfg.Chain).Msg("sync round failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// syncRound pushes every confirmed block the ledger is missing, bounded by
// the batch size.
func (w *Watcher) syncRound(ctx context.Context) error {
	tip, err := w.client.BestBlockNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "query tip")
	}
	if tip < w.cfg.Confirmations {
		return nil
	}

	target := tip - w.cfg.Confirmations
	for w.next > 0 && w.next > w.cfg.StartBlock && !w.store.HasBlock(w.cfg.Chain, w.next-1) {
		// The ledger lost our parent, typically to a reorg prune.  Back
		// up and refill.
		w.next--
	}
	if w.next > target {
		return nil
	}

	from := w.next
	to := target
	if to-from+1 > w.cfg.BatchSize {
		to = from + w.cfg.BatchSize - 1
	}

	blocks, err := w.client.BlockRange(ctx, from, to)
	if err != nil {
		return errors.Wrapf(err, "fetch %d..%d", from, to)
	}

	for i, raw := range blocks {
		number := from + uint64(i)
		parsed, err := ParseBlock(raw)
		if err != nil {
			return errors.Wrapf(err, "parse block %d", number)
		}
		if err := w.store.PushBlock(w.cfg.Submitter, parsed.Summary(w.cfg.Chain, number)); err != nil {
			return errors.Wrapf(err, "push block %d", number)
		}
		w.next = number + 1
	}

	log.Info().Uint32("chain", w.cfg.Chain).
		Uint64("from", from).Uint64("to", to).Uint64("tip", tip).
		Msg("synced blocks")
	return nil
}
