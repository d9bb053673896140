// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// btcvault is the command line surface of the wallet backup engine. It
// creates wallets, exports them into encrypted backup containers and
// restores them on a fresh machine.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/jessevdk/go-flags"

	"github.com/btcsuite/btcvault/vault"
	"github.com/btcsuite/btcvault/wallet"
	"github.com/btcsuite/btcvault/wallet/kvstore"
	"github.com/btcsuite/btcvault/wallet/sqlstore"
)

const (
	appVersion = "0.1.0"

	defaultKVFileName     = "wallet.db"
	defaultSQLFileName    = "wallet.sqlite"
	defaultBackupFileName = "btcvault-backup.json"

	defaultDBTimeout = 10 * time.Second
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	DataDir string `long:"datadir" description:"Directory holding the wallet database and log files"`

	Backend string `long:"dbbackend" description:"Database backend the wallet state is stored in" choice:"kv" choice:"sqlite" default:"kv"`

	Testnet bool `long:"testnet" description:"Use the test network instead of mainnet"`

	DebugLevel string `long:"debuglevel" description:"Logging level (trace, debug, info, warn, error, critical)" default:"info"`
}

var globalOpts = &globalOptions{
	DataDir: btcutil.AppDataDir("btcvault", false),
}

// chainParams returns the chain parameters selected by the network
// flags.
func (o *globalOptions) chainParams() *chaincfg.Params {
	if o.Testnet {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}

// netDir returns the per-network data directory.
func (o *globalOptions) netDir() string {
	return filepath.Join(o.DataDir, o.chainParams().Name)
}

// openStores opens the configured database backend and returns the
// store surfaces plus a close function.
func openStores(o *globalOptions) (wallet.Stores, func() error, error) {
	var none wallet.Stores

	netDir := o.netDir()
	if err := os.MkdirAll(netDir, 0700); err != nil {
		return none, nil, fmt.Errorf("create data directory: %w", err)
	}

	bundle := func(s interface {
		wallet.WalletStore
		wallet.ContactStore
		wallet.TxMetaStore
		wallet.AttemptStore
	}) wallet.Stores {

		return wallet.Stores{
			Wallet:   s,
			Contacts: s,
			TxMeta:   s,
			Attempts: s,
		}
	}

	if o.Backend == "sqlite" {
		store, err := sqlstore.Open(
			filepath.Join(netDir, defaultSQLFileName),
		)
		if err != nil {
			return none, nil, err
		}
		return bundle(store), store.Close, nil
	}

	dbPath := filepath.Join(netDir, defaultKVFileName)

	var (
		db  walletdb.DB
		err error
	)
	if _, statErr := os.Stat(dbPath); os.IsNotExist(statErr) {
		db, err = walletdb.Create(
			"bdb", dbPath, true, defaultDBTimeout, false,
		)
	} else {
		db, err = walletdb.Open(
			"bdb", dbPath, true, defaultDBTimeout, false,
		)
	}
	if err != nil {
		return none, nil, fmt.Errorf("open wallet database: %w", err)
	}

	store, err := kvstore.NewStore(db)
	if err != nil {
		_ = db.Close()
		return none, nil, err
	}

	return bundle(store), db.Close, nil
}

// newEngine builds a backup engine over the given stores.
func newEngine(o *globalOptions, stores wallet.Stores) (*vault.Engine,
	error) {

	return vault.NewEngine(&vault.Config{
		ChainParams: o.chainParams(),
		Stores:      stores,
		AppVersion:  appVersion,
	})
}

// userError maps an engine error to its user-facing message so failure
// output never leaks which internal check tripped.
func userError(err error) error {
	var vErr vault.Error
	if errors.As(err, &vErr) {
		return errors.New(vErr.UserMessage())
	}
	return err
}

func main() {
	parser := flags.NewParser(globalOpts, flags.HelpFlag)

	// Logging is configured after the flags are parsed but before the
	// selected command runs.
	parser.CommandHandler = func(command flags.Commander,
		args []string) error {

		err := initLogging(globalOpts.netDir(), globalOpts.DebugLevel)
		if err != nil {
			return err
		}
		return command.Execute(args)
	}

	registerCommands := []func(*flags.Parser) error{
		newCreateCommand().Register,
		newExportCommand().Register,
		newImportCommand().Register,
	}
	for _, register := range registerCommands {
		if err := register(parser); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if _, err := parser.Parse(); err != nil {
		var fErr *flags.Error
		if errors.As(err, &fErr) && fErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}

		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
