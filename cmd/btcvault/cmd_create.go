// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jessevdk/go-flags"

	"github.com/btcsuite/btcvault/wallet"
)

type createCommand struct{}

func newCreateCommand() *createCommand {
	return &createCommand{}
}

func (x *createCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"create",
		"Create a new wallet",
		"Generate a fresh seed mnemonic, seal it under an unlock "+
			"passphrase and initialize the wallet database with "+
			"a default account; the mnemonic is printed exactly "+
			"once and must be written down",
		x,
	)
	return err
}

func (x *createCommand) Execute(_ []string) error {
	ctx := context.Background()
	params := globalOpts.chainParams()

	stores, closeStores, err := openStores(globalOpts)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeStores()
	}()

	state, err := stores.Wallet.ReadState(ctx)
	if err != nil {
		return err
	}
	if state.Core.HasSeed() || len(state.Accounts) > 0 {
		return errors.New("a wallet already exists in this data " +
			"directory")
	}

	mnemonic, err := wallet.NewMnemonic()
	if err != nil {
		return err
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, params)
	if err != nil {
		return err
	}

	unlock, err := promptNewPassword("Unlock passphrase: ")
	if err != nil {
		return err
	}

	core, err := wallet.NewWalletCore(seed, unlock)
	if err != nil {
		return err
	}

	state = &wallet.WalletState{
		Core: *core,
		Accounts: []wallet.Account{{
			AccountNumber: 0,
			Name:          "default",
			Type:          wallet.AccountHD,
			AddressType:   wallet.WitnessPubKey,
		}},
		Settings: wallet.Settings{
			FiatCurrency:        "USD",
			FeeLevel:            "medium",
			AddressReuseWarning: true,
		},
	}
	if err := stores.Wallet.ReplaceState(ctx, state); err != nil {
		return err
	}

	log.Infof("Created new wallet for %s in %s", params.Name,
		globalOpts.netDir())

	fmt.Println("Wallet created. Write down the recovery mnemonic " +
		"below, it will not be shown again:")
	fmt.Println()
	fmt.Println("    " + mnemonic)
	fmt.Println()

	return nil
}
