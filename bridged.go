// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"

	"go.uber.org/zap"

	"gitlab.com/jaxnet/bridged/config"
	"gitlab.com/jaxnet/bridged/node"
	"gitlab.com/jaxnet/bridged/version"
)

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Work around defer not working after os.Exit()
	if err := bridgedMain(); err != nil {
		fmt.Println("FATAL:", err)
		os.Exit(1)
	}
}

// bridgedMain is the real main function for bridged.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is
// called.
func bridgedMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	defer config.Log.Info().Msg("Shutdown complete")

	// Show version at startup.
	config.Log.Info().Msgf("Version %s", version.GetVersion())

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		go func() {
			listenAddr := net.JoinHostPort("", cfg.Profile)
			config.Log.Info().Msgf("Profile server listening on %s", listenAddr)
			profileRedirect := http.RedirectHandler("/debug/pprof",
				http.StatusSeeOther)
			http.Handle("/", profileRedirect)
			err := http.ListenAndServe(listenAddr, nil)
			if err != nil {
				config.Log.Error().Err(err).Msg("listen and serve failed")
			}
		}()
	}

	// Write cpu profile if requested.
	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			config.Log.Error().Err(err).Msg("Unable to create cpu profile")
			return err
		}
		pprof.StartCPUProfile(f)
		defer f.Close()
		defer pprof.StopCPUProfile()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := interruptListener(config.Log.With().Str("ctx", "interruptListener").Logger())
	go func() {
		<-sigChan
		config.Log.Info().Msg("propagate stop signal")
		cancel()
	}()

	logger, err := config.NewZapLogger(cfg.DebugLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	controller := node.Controller(logger.With(zap.String("ctx", "BridgeController")))
	if err := controller.Run(ctx, cfg); err != nil {
		config.Log.Error().Err(err).Msg("Can't run bridge")
		os.Exit(2)
	}

	return nil
}
