// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/btcsuite/btcvault/vault"
)

type importCommand struct {
	RequireSeed bool `long:"requireseed" description:"Refuse backups that carry no seed material"`

	Args struct {
		BackupFile string `positional-arg-name:"backup-file" required:"yes"`
	} `positional-args:"yes"`
}

func newImportCommand() *importCommand {
	return &importCommand{}
}

func (x *importCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"import",
		"Restore a wallet from an encrypted backup",
		"Validate the given backup container and, if every check "+
			"passes, replace the wallet state with its "+
			"contents; the wallet database is only touched once "+
			"the whole container has checked out",
		x,
	)
	return err
}

func (x *importCommand) Execute(_ []string) error {
	ctx := context.Background()

	raw, err := os.ReadFile(x.Args.BackupFile)
	if err != nil {
		return fmt.Errorf("read backup file: %w", err)
	}

	container, err := vault.ParseContainer(raw)
	if err != nil {
		return userError(err)
	}

	stores, closeStores, err := openStores(globalOpts)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeStores()
	}()

	engine, err := vault.NewEngine(&vault.Config{
		ChainParams: globalOpts.chainParams(),
		Stores:      stores,
		RequireSeed: x.RequireSeed,
		AppVersion:  appVersion,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Backup created %s for %s\n",
		container.Header.CreatedAt.Format("2006-01-02 15:04 MST"),
		container.Header.Network)

	backupPassword, err := promptPassword("Backup password: ")
	if err != nil {
		return err
	}

	summary, err := engine.Import(ctx, container, backupPassword)
	if err != nil {
		return userError(err)
	}

	fmt.Printf("Restored %d accounts, %d contacts, %d annotations, "+
		"%d pending transactions\n", summary.Accounts,
		summary.Contacts, summary.Annotations, summary.PendingTxs)

	if summary.NonHD {
		fmt.Println("Note: this backup carries no seed material; " +
			"new accounts cannot be derived until a seed is " +
			"created")
	}
	if len(summary.Renamed) > 0 {
		fmt.Printf("Renamed duplicates: %s\n",
			strings.Join(summary.Renamed, ", "))
	}

	return nil
}
