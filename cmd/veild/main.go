// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// veild is the Veil ledger node daemon: it opens the versioned store,
// restores the application state, and serves the consensus engine's query
// surface until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/veilchain/veil/app"
	"github.com/veilchain/veil/storage"
)

// version is the release identifier reported by --version.
const version = "0.1.0"

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func realMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename)); err != nil {
		return err
	}
	defer logRotator.Close()
	if err := setLogLevel(cfg.DebugLevel); err != nil {
		return err
	}

	store, err := storage.OpenLevelStore(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return fmt.Errorf("failed to open chain store: %w", err)
	}
	defer store.Close()

	chainApp, err := app.NewChainApp(store)
	if err != nil {
		return fmt.Errorf("failed to restore application state: %w", err)
	}

	if state := chainApp.State(); state != nil {
		veilLog.Infof("Node at height %d, app hash %s",
			state.LastBlockHeight, state.LastAppHash)
	} else {
		veilLog.Infof("Node uninitialized, waiting for genesis")
	}

	// The consensus engine drives the application through its query and
	// commit surfaces; this process only owns the store lifecycle.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	veilLog.Infof("Shutting down")
	return nil
}
