// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

type exportCommand struct {
	Output string `long:"output" short:"o" description:"Path of the backup file to write"`
}

func newExportCommand() *exportCommand {
	return &exportCommand{
		Output: defaultBackupFileName,
	}
}

func (x *exportCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"export",
		"Export an encrypted wallet backup",
		"Collect the complete wallet state, encrypt it under a "+
			"dedicated backup password and write the resulting "+
			"container file; the backup password must be at "+
			"least 12 characters and must differ from the "+
			"unlock passphrase",
		x,
	)
	return err
}

func (x *exportCommand) Execute(_ []string) error {
	ctx := context.Background()

	stores, closeStores, err := openStores(globalOpts)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeStores()
	}()

	engine, err := newEngine(globalOpts, stores)
	if err != nil {
		return err
	}

	unlock, err := promptPassword("Unlock passphrase: ")
	if err != nil {
		return err
	}

	backupPassword, err := promptNewPassword("Backup password: ")
	if err != nil {
		return err
	}

	container, err := engine.Export(ctx, unlock, backupPassword)
	if err != nil {
		return userError(err)
	}

	raw, err := container.Serialize()
	if err != nil {
		return userError(err)
	}

	if err := os.WriteFile(x.Output, raw, 0600); err != nil {
		return fmt.Errorf("write backup file: %w", err)
	}

	fmt.Printf("Backup written to %s (%d bytes)\n", x.Output, len(raw))

	return nil
}
