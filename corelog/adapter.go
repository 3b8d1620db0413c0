// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package corelog builds the per-unit zerolog loggers of the daemon: console
// or JSON output, optional rotated file output, one logger per subsystem tag.
package corelog

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Disabled is the logger handed to library packages until the host
	// wires a real one through their UseLogger.
	Disabled = zerolog.Nop()

	DefaultLevel   = zerolog.InfoLevel
	DefaultLogFile = "bridged.log"
)

// Config selects the log outputs.  The zero value logs to the console only.
type Config struct {
	// DisableConsoleLog drops the stderr/stdout writer entirely.
	DisableConsoleLog bool `yaml:"disable_console_log"`
	// LogsAsJson writes raw JSON lines instead of the console format.
	LogsAsJson bool `yaml:"logs_as_json"`
	// FileLoggingEnabled adds a rotated log file; the fields below are
	// ignored without it.
	FileLoggingEnabled bool `yaml:"file_logging_enabled"`
	// Directory the log file lives in.
	Directory string `yaml:"directory"`
	// Filename of the log file inside Directory.
	Filename string `yaml:"filename"`
	// MaxSize in MB of the log file before it is rolled.
	MaxSize int `yaml:"max_size"`
	// MaxBackups is the number of rolled files to keep.
	MaxBackups int `yaml:"max_backups"`
	// MaxAge in days before a rolled file is deleted.
	MaxAge int `yaml:"max_age"`
}

// Default returns the console-only configuration with the rotation knobs
// pre-filled for when file logging is switched on.
func (Config) Default() Config {
	return Config{
		Directory:  "logs",
		Filename:   DefaultLogFile,
		MaxSize:    150,
		MaxBackups: 3,
		MaxAge:     28,
	}
}

// New builds the logger of one subsystem.  Every line carries the app field
// and the unit tag, so interleaved subsystem output stays attributable.
func New(unit string, logLevel zerolog.Level, config Config) zerolog.Logger {
	var writers []io.Writer
	if !config.DisableConsoleLog {
		if config.LogsAsJson {
			writers = append(writers, os.Stdout)
		} else {
			writers = append(writers, consoleWriter(unit))
		}
	}
	if config.FileLoggingEnabled {
		writers = append(writers, rollingFile(config))
	}
	if len(writers) == 0 {
		writers = append(writers, ioutil.Discard)
	}

	logger := zerolog.New(io.MultiWriter(writers...)).
		Level(logLevel).
		With().
		Str("app", "bridged").
		Str("unit", unit).
		Timestamp().
		Logger()

	logger.Trace().
		Bool("fileLogging", config.FileLoggingEnabled).
		Bool("jsonLogOutput", config.LogsAsJson).
		Str("logDirectory", config.Directory).
		Str("fileName", config.Filename).
		Msg("logging configured")

	return logger
}

func consoleWriter(unit string) io.Writer {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	out.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s| %s |", i, unit))
	}
	out.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("%-6s  ", i)
	}
	return out
}

func rollingFile(config Config) io.Writer {
	// MkdirAll failing here means the daemon runs console-only rather
	// than not at all.
	if err := os.MkdirAll(config.Directory, 0744); err != nil {
		fmt.Fprintf(os.Stderr, "can't create log directory %s: %v\n", config.Directory, err)
		return ioutil.Discard
	}

	return &lumberjack.Logger{
		Filename:   path.Join(config.Directory, config.Filename),
		MaxBackups: config.MaxBackups,
		MaxSize:    config.MaxSize,
		MaxAge:     config.MaxAge,
	}
}
