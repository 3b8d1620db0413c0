// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.
package node

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gitlab.com/jaxnet/bridged/config"
	"gitlab.com/jaxnet/bridged/node/bridge"
	"gitlab.com/jaxnet/bridged/relayer"
)

// bridgeController owns the daemon runtime: the ledger with its store, one
// fetch client and watcher per configured chain.
type bridgeController struct {
	logger *zap.Logger
	cfg    *config.Config
	// -------------------------------

	// controller runtime
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	store  bridge.Store
	ledger *bridge.Ledger
}

// Controller assembles an idle controller around the logger.
func Controller(logger *zap.Logger) *bridgeController {
	return &bridgeController{logger: logger}
}

// Ledger exposes the running ledger, for the RPC surface and tooling.
func (ctl *bridgeController) Ledger() *bridge.Ledger {
	return ctl.ledger
}

// Run opens the store, replays the ledger, registers the configured chains
// and keeps their watchers syncing until the context is canceled.
func (ctl *bridgeController) Run(ctx context.Context, cfg *config.Config) error {
	ctl.cfg = cfg
	ctl.ctx, ctl.cancel = context.WithCancel(ctx)
	defer ctl.cancel()

	if err := ctl.openStore(); err != nil {
		ctl.logger.Error("Store error", zap.Error(err))
		return err
	}
	defer func() {
		if err := ctl.store.Close(); err != nil {
			ctl.logger.Error("Store close error", zap.Error(err))
		}
	}()

	if err := ctl.initLedger(); err != nil {
		ctl.logger.Error("Ledger error", zap.Error(err))
		return err
	}

	if err := ctl.runWatchers(); err != nil {
		ctl.logger.Error("Watcher error", zap.Error(err))
		return err
	}

	<-ctl.ctx.Done()
	ctl.wg.Wait()
	return nil
}

func (ctl *bridgeController) openStore() error {
	if ctl.cfg.InMemoryStore {
		ctl.logger.Warn("Running with the in-memory store, state will not survive a restart")
		ctl.store = bridge.MemoryStore()
		return nil
	}

	store, err := bridge.BadgerStore(ctl.cfg.StoreDir())
	if err != nil {
		return err
	}
	ctl.store = store
	ctl.logger.Info("Store opened", zap.String("path", ctl.cfg.StoreDir()))
	return nil
}

func (ctl *bridgeController) initLedger() error {
	access := bridge.NewStaticAccess(ctl.cfg.Owner)
	for _, submitter := range ctl.cfg.Submitters {
		if err := access.AddMember(ctl.cfg.Owner, bridge.GroupSubmitters, submitter); err != nil {
			return err
		}
	}

	ledger, err := bridge.NewLedger(bridge.Config{
		Access: access,
		Assets: &assetJournal{logger: ctl.logger.With(zap.String("app.unit", "ASST"))},
		Store:  ctl.store,
		Fees:   ctl.cfg.Fees.Policy(),
		Debug:  ctl.cfg.DebugBridge,
		Self:   ctl.cfg.Self,
		OnBlockRemoved: func(chain uint32, number uint64) {
			ctl.logger.Info("Block removed on reorg",
				zap.Uint32("chain", chain), zap.Uint64("block", number))
		},
	})
	if err != nil {
		return err
	}
	ctl.ledger = ledger

	for i := range ctl.cfg.Chains {
		info, err := ctl.cfg.Chains[i].Info()
		if err != nil {
			return err
		}
		if err := ledger.RegisterChain(ctl.cfg.Owner, info); err != nil {
			return err
		}

		registered, err := ledger.ChainInfo(info.Chain)
		if err != nil {
			return err
		}
		ctl.logger.Info("Chain registered",
			zap.Uint32("chain", info.Chain),
			zap.Uint64("blocks", registered.Blocks))
	}
	return nil
}

func (ctl *bridgeController) runWatchers() error {
	for i := range ctl.cfg.Chains {
		chain := &ctl.cfg.Chains[i]

		client, err := relayer.NewClient(chain.Fetch)
		if err != nil {
			return err
		}
		watcher := relayer.NewWatcher(chain.Watcher, client, ctl.ledger)

		ctl.wg.Add(1)
		go func(id uint32) {
			defer ctl.wg.Done()
			if err := watcher.Run(ctl.ctx); err != nil && ctl.ctx.Err() == nil {
				ctl.logger.Error("Watcher stopped", zap.Uint32("chain", id), zap.Error(err))
			}
		}(chain.ID)
	}
	return nil
}

// assetJournal is the host-side native transfer target of a reference
// deployment: it journals every movement the ledger orders.  Production
// deployments replace it with a real settlement backend.
type assetJournal struct {
	logger *zap.Logger
}

func (a *assetJournal) TransferNative(to string, amount uint64) error {
	a.logger.Info("Native transfer",
		zap.String("to", to), zap.Uint64("amount", amount))
	return nil
}
