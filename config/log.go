// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gitlab.com/jaxnet/bridged/corelog"
	"gitlab.com/jaxnet/bridged/node/bridge"
	"gitlab.com/jaxnet/bridged/relayer"
)

// Log subsystem identifiers.
const (
	logUnitBRDG = "BRDG" // the daemon itself
	logUnitLDGR = "LDGR" // the bridge ledger
	logUnitRLAY = "RLAY" // the relayer fetch/sync side
)

// Log is the daemon's own logger.  It starts at the default level and is
// rebuilt alongside the subsystem loggers when debug levels are applied.
var Log = corelog.New(logUnitBRDG, corelog.DefaultLevel, corelog.Config{}.Default())

// unitLogs maps each subsystem identifier to its logger.
var unitLogs = map[string]zerolog.Logger{
	logUnitBRDG: Log,
	logUnitLDGR: corelog.New(logUnitLDGR, corelog.DefaultLevel, corelog.Config{}.Default()),
	logUnitRLAY: corelog.New(logUnitRLAY, corelog.DefaultLevel, corelog.Config{}.Default()),
}

func init() {
	setLoggers()
}

// setLoggers hands the current subsystem loggers to the library packages.
func setLoggers() {
	Log = unitLogs[logUnitBRDG]
	bridge.UseLogger(unitLogs[logUnitLDGR])
	relayer.UseLogger(unitLogs[logUnitRLAY])
}

// setLogLevel rebuilds the logger of one subsystem at the given level.
// Invalid subsystems are ignored.
func setLogLevel(subsystemID, logLevel string, logConfig corelog.Config) {
	if _, ok := unitLogs[subsystemID]; !ok {
		return
	}
	if logLevel == "critical" {
		logLevel = "fatal"
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = corelog.DefaultLevel
	}
	unitLogs[subsystemID] = corelog.New(subsystemID, level, logConfig)
}

// setLogLevels sets the log level for all subsystem loggers to the passed
// level.
func setLogLevels(logLevel string, logConfig corelog.Config) {
	for subsystemID := range unitLogs {
		setLogLevel(subsystemID, logLevel, logConfig)
	}
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(unitLogs))
	for subsysID := range unitLogs {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace":
		fallthrough
	case "debug":
		fallthrough
	case "info":
		fallthrough
	case "warn":
		fallthrough
	case "error":
		fallthrough
	case "critical":
		return true
	}
	return false
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string, logConfig corelog.Config) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel, logConfig)
		setLoggers()
		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := unitLogs[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel, logConfig)
	}

	setLoggers()
	return nil
}

// NewZapLogger builds the zap logger the node controller runs with, at the
// level named by debugLevel.
func NewZapLogger(debugLevel string) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if err := level.Set(zapLevelName(debugLevel)); err != nil {
			return nil, err
		}
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.DisableStacktrace = true
	return zapCfg.Build()
}

// zapLevelName maps the btcd-style level names onto zap's.
func zapLevelName(name string) string {
	switch name {
	case "trace":
		return "debug"
	case "critical":
		return "fatal"
	default:
		return name
	}
}
