// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "veild.conf"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "veild.log"
	defaultLogLevel       = "info"
)

// config defines the configuration options for veild.
type config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	ChainHexID  uint8  `long:"chainid" description:"One-byte chain id transactions are bound to"`
}

// defaultHomeDir returns the default veild home directory.
func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".veild")
}

// loadConfig initializes and parses the config using command line options.
func loadConfig() (*config, error) {
	homeDir := defaultHomeDir()
	cfg := config{
		DataDir:    filepath.Join(homeDir, defaultDataDirname),
		LogDir:     filepath.Join(homeDir, defaultLogDirname),
		DebugLevel: defaultLogLevel,
		ChainHexID: 0xab,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if cfg.ShowVersion {
		fmt.Printf("veild version %s\n", version)
		os.Exit(0)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &cfg, nil
}
