// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/tokenfaucet/tokenfaucet/faucet"
)

func main() {
	// Work around defer not working after os.Exit.
	if err := faucetMain(); err != nil {
		os.Exit(1)
	}
}

// faucetMain is a work-around main function that is required since deferred
// functions (such as closing the database) are not called with calls to
// os.Exit.  Instead, main runs this function and checks for a non-nil error,
// at which point any defers have already run, and if the error is non-nil,
// the program can be exited with an error exit status.
func faucetMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, cmd, args, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := openLedger(cfg)
	if err != nil {
		log.Errorf("Unable to open ledger: %v", err)
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorf("Unable to close ledger: %v", err)
		}
	}()

	program, err := faucet.New(db, cfg.programID)
	if err != nil {
		log.Errorf("Unable to load faucet program: %v", err)
		return err
	}

	a := &app{db: db, program: program, store: program.Store()}
	if err := cmd.run(ctx, a, args); err != nil {
		log.Errorf("%v", err)
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// openLedger opens the ledger database in the data directory, creating it
// on first use.
func openLedger(cfg *config) (walletdb.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(cfg.DataDir, ledgerDbName)

	db, err := walletdb.Open("bdb", dbPath, !cfg.SyncFreelist,
		cfg.DBTimeout, false)
	if errors.Is(err, walletdb.ErrDbDoesNotExist) {
		log.Infof("Creating ledger database %s", dbPath)
		db, err = walletdb.Create("bdb", dbPath, !cfg.SyncFreelist,
			cfg.DBTimeout, false)
	}
	return db, err
}
