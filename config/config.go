// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"gitlab.com/jaxnet/bridged/corelog"
	"gitlab.com/jaxnet/bridged/node/bridge"
	"gitlab.com/jaxnet/bridged/relayer"
	"gitlab.com/jaxnet/bridged/version"
)

const (
	defaultConfigFilename = "bridged.yaml"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultStoreDirname   = "store"
)

// ChainConfig declares one watched source chain.
type ChainConfig struct {
	// ID is the ledger chain id.
	ID uint32 `yaml:"id"`

	// DepositScriptHash is the hex-encoded 20-byte commitment to the
	// locking script deposits must pay.
	DepositScriptHash string `yaml:"deposit_script_hash"`

	// PayoutTarget receives redeemed burn value on native chains.
	PayoutTarget string `yaml:"payout_target"`

	MintConfirmations uint32 `yaml:"mint_confirmations"`
	BurnConfirmations uint32 `yaml:"burn_confirmations"`
	HandleReorgs      bool   `yaml:"handle_reorgs"`

	// Fetch configures the REST client for this chain's source node.
	Fetch relayer.FetchConfig `yaml:"fetch"`

	// Watcher configures the sync loop pushing this chain's headers.
	Watcher relayer.WatcherConfig `yaml:"watcher"`
}

// Info converts the declaration into the ledger's ChainInfo aggregate.
func (c *ChainConfig) Info() (bridge.ChainInfo, error) {
	info := bridge.ChainInfo{
		Chain:             c.ID,
		PayoutTarget:      c.PayoutTarget,
		MintConfirmations: c.MintConfirmations,
		BurnConfirmations: c.BurnConfirmations,
		HandleReorgs:      c.HandleReorgs,
	}

	script, err := hex.DecodeString(c.DepositScriptHash)
	if err != nil {
		return info, errors.Wrapf(err, "chain %d: deposit script hash", c.ID)
	}
	if len(script) != len(info.DepositScriptHash) {
		return info, errors.Errorf("chain %d: deposit script hash is %d bytes, want %d",
			c.ID, len(script), len(info.DepositScriptHash))
	}
	copy(info.DepositScriptHash[:], script)
	return info, nil
}

// FeeConfig is the yaml shape of the ledger fee policy.  The zero value
// defers to the ledger's calibrated defaults.
type FeeConfig struct {
	BaseFee    uint64 `yaml:"base_fee"`
	Overhead   uint64 `yaml:"overhead"`
	MintGas    uint64 `yaml:"mint_gas"`
	GasCeiling uint64 `yaml:"gas_ceiling"`
}

// Policy converts the config into the ledger form.
func (f FeeConfig) Policy() bridge.FeePolicy {
	return bridge.FeePolicy{
		BaseFee:    f.BaseFee,
		Overhead:   f.Overhead,
		MintGas:    f.MintGas,
		GasCeiling: f.GasCeiling,
	}
}

// Config holds the full daemon configuration, loadable from a yaml file with
// command line overrides.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit" yaml:"-"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file" yaml:"-"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data" yaml:"data_dir"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems" yaml:"debug_level"`

	Profile    string `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536" yaml:"profile"`
	CPUProfile string `long:"cpuprofile" description:"Write CPU profile to the specified file" yaml:"cpu_profile"`

	// InMemoryStore runs the ledger without persistence; restarts lose
	// all state.
	InMemoryStore bool `long:"memstore" description:"Keep the ledger in memory only, without a persistent store" yaml:"in_memory_store"`

	// DebugBridge bypasses the deposit output checks of the mint path.
	DebugBridge bool `long:"debugbridge" description:"Bypass deposit output validation (never use on a live bridge)" yaml:"debug_bridge"`

	// Owner is the account allowed to register chains and manage groups.
	Owner string `long:"owner" description:"Account owning the ledger" yaml:"owner"`

	// Submitters are enrolled into the submitter group at startup.
	Submitters []string `long:"submitter" description:"Account allowed to push blocks and proofs (may be repeated)" yaml:"submitters"`

	// Self is the account the ledger acts as when pulling allowances.
	Self string `long:"self" description:"Account the bridge acts as" yaml:"self"`

	Logging corelog.Config `yaml:"logging"`
	Fees    FeeConfig      `yaml:"fees"`
	Chains  []ChainConfig  `yaml:"chains"`
}

// StoreDir returns the directory of the persistent ledger store.
func (c *Config) StoreDir() string {
	return filepath.Join(c.DataDir, defaultStoreDirname)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.Replace(path, "~", home, 1)
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

func defaultConfig() Config {
	return Config{
		ConfigFile: defaultConfigFilename,
		DataDir:    defaultDataDirname,
		DebugLevel: defaultLogLevel,
		Logging:    corelog.Config{}.Default(),
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
// 	1) Start with a default config with sane settings
// 	2) Pre-parse the command line to check for an alternative config file
// 	3) Load configuration file overwriting defaults with any specified options
// 	4) Parse CLI options and overwrite/add any specified options
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	if _, err := preParser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(0)
		}
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)

	if preCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, version.GetVersion())
		os.Exit(0)
	}

	// Load additional config from file when present.
	configFile := cleanAndExpandPath(preCfg.ConfigFile)
	if fileExists(configFile) {
		f, err := os.Open(configFile)
		if err != nil {
			return nil, errors.Wrapf(err, "open config file %s", configFile)
		}
		err = yaml.NewDecoder(f).Decode(&cfg)
		f.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, errors.Wrapf(err, "parse config file %s", configFile)
		}
	}

	// Parse command line options again to ensure they take precedence.
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, err
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create data directory")
	}

	if err := Validate(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}
	if err := parseAndSetDebugLevels(cfg.DebugLevel, cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	return &cfg, nil
}

// LoadFile reads and validates a configuration file without touching the
// command line.  Tooling that manages its own flags loads the daemon config
// through this.
func LoadFile(path string) (*Config, error) {
	cfg := defaultConfig()

	f, err := os.Open(cleanAndExpandPath(path))
	if err != nil {
		return nil, errors.Wrapf(err, "open config file %s", path)
	}
	err = yaml.NewDecoder(f).Decode(&cfg)
	f.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "parse config file %s", path)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the parts of the config the daemon cannot start without.
func Validate(cfg *Config) error {
	if cfg.Owner == "" {
		return errors.New("owner account is required")
	}
	if len(cfg.Submitters) == 0 {
		return errors.New("at least one submitter account is required")
	}

	seen := make(map[uint32]struct{}, len(cfg.Chains))
	for i := range cfg.Chains {
		chain := &cfg.Chains[i]
		if _, dup := seen[chain.ID]; dup {
			return errors.Errorf("chain %d is declared twice", chain.ID)
		}
		seen[chain.ID] = struct{}{}

		if _, err := chain.Info(); err != nil {
			return err
		}
		if chain.Fetch.Endpoint == "" {
			return errors.Errorf("chain %d: fetch endpoint is required", chain.ID)
		}
		if chain.Watcher.Submitter == "" {
			chain.Watcher.Submitter = cfg.Submitters[0]
		}
		chain.Watcher.Chain = chain.ID
	}
	return nil
}
