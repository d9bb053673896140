// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/btcsuite/btcvault/pwcrypt"
)

// ErrInvalidMnemonic is returned when a seed phrase fails BIP-39
// validation.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// NewMnemonic generates a fresh 24-word BIP-39 mnemonic from 256 bits of
// entropy.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}

	return mnemonic, nil
}

// SeedFromMnemonic validates a BIP-39 mnemonic and derives the wallet
// seed from it. The seed is additionally checked to produce a usable
// BIP-32 master key for the given network.
func SeedFromMnemonic(mnemonic string,
	params *chaincfg.Params) ([]byte, error) {

	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, "")

	// A vanishingly small number of seeds are unusable as BIP-32
	// masters; reject them here rather than at first derivation.
	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	master.Zero()

	return seed, nil
}

// NewWalletCore seals a seed under the unlock passphrase, producing the
// core secret block of a fresh HD wallet.
func NewWalletCore(seed, unlockPassphrase []byte) (*WalletCore, error) {
	blob, err := pwcrypt.Encrypt(seed, unlockPassphrase, nil)
	if err != nil {
		return nil, fmt.Errorf("seal seed: %w", err)
	}

	return &WalletCore{EncryptedSeed: blob}, nil
}
