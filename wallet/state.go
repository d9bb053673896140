// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/btcsuite/btcvault/pwcrypt"
)

var (
	// ErrInconsistentState is returned when the cross-structure
	// invariants of a wallet state do not hold, e.g. an imported
	// account without a key blob.
	ErrInconsistentState = errors.New("inconsistent wallet state")

	// ErrWrongPassphrase is returned when the unlock passphrase does
	// not decrypt the wallet's seed.
	ErrWrongPassphrase = errors.New("wrong unlock passphrase")
)

// WalletCore holds the wallet's root secret. For HD wallets the seed is
// stored encrypted under the unlock passphrase with its own salt and
// nonce; for wallets assembled purely from imported keys EncryptedSeed is
// nil.
type WalletCore struct {
	// EncryptedSeed is the seed sealed under the unlock passphrase, or
	// nil for a non-HD wallet.
	EncryptedSeed *pwcrypt.Blob `json:"encryptedSeed,omitempty"`
}

// HasSeed reports whether the wallet is seed-backed.
func (c *WalletCore) HasSeed() bool {
	return c.EncryptedSeed != nil && len(c.EncryptedSeed.Ciphertext) > 0
}

// UnlockSeed decrypts the master seed with the unlock passphrase. It
// returns ErrWrongPassphrase when the passphrase does not authenticate.
func (c *WalletCore) UnlockSeed(passphrase []byte) ([]byte, error) {
	if !c.HasSeed() {
		return nil, fmt.Errorf("%w: wallet has no seed",
			ErrInconsistentState)
	}

	seed, err := pwcrypt.Decrypt(c.EncryptedSeed, passphrase)
	if err != nil {
		if errors.Is(err, pwcrypt.ErrAuthFailure) {
			return nil, ErrWrongPassphrase
		}
		return nil, err
	}

	return seed, nil
}

// Settings holds the user preferences that travel with a backup.
type Settings struct {
	// FiatCurrency is the display currency code, e.g. "USD".
	FiatCurrency string `json:"fiatCurrency"`

	// FeeLevel is the preferred fee preset ("low", "medium", "high").
	FeeLevel string `json:"feeLevel"`

	// HideBalances hides amounts in the UI.
	HideBalances bool `json:"hideBalances"`

	// AddressReuseWarning enables warnings when sending to a
	// previously used address.
	AddressReuseWarning bool `json:"addressReuseWarning"`
}

// WalletState is the full fund-critical state owned by the wallet store:
// the encrypted seed, every account with its derivation counters, the
// imported key blobs, in-flight multisig transactions and settings. It is
// the unit read at export time and replaced wholesale at import time.
type WalletState struct {
	// Core is the wallet's root secret material.
	Core WalletCore `json:"core"`

	// Accounts is the full account list, ordered by account number.
	Accounts []Account `json:"accounts"`

	// ImportedKeys maps account numbers of imported accounts to their
	// key material, each sealed under the unlock passphrase.
	ImportedKeys map[uint32]*pwcrypt.Blob `json:"importedKeys,omitempty"`

	// PendingTxs are the in-flight multisig transactions.
	PendingTxs []PendingMultisigTx `json:"pendingTxs,omitempty"`

	// Settings are the wallet preferences.
	Settings Settings `json:"settings"`
}

// Validate checks the internal consistency of a wallet state: every
// account valid for its type, every imported account backed by a key
// blob, every key blob and pending transaction attached to a matching
// account.
func (s *WalletState) Validate(params *chaincfg.Params) error {
	accounts := make(map[uint32]*Account, len(s.Accounts))
	for i := range s.Accounts {
		acct := &s.Accounts[i]
		if err := acct.Validate(params); err != nil {
			return err
		}
		if _, ok := accounts[acct.AccountNumber]; ok {
			return fmt.Errorf("%w: duplicate account number %d",
				ErrInconsistentState, acct.AccountNumber)
		}
		accounts[acct.AccountNumber] = acct
	}

	for i := range s.Accounts {
		acct := &s.Accounts[i]
		if !acct.Type.imported() {
			continue
		}

		blob, ok := s.ImportedKeys[acct.AccountNumber]
		if !ok || blob == nil || len(blob.Ciphertext) == 0 {
			return fmt.Errorf("%w: account %q (%d) has no "+
				"imported key blob", ErrInconsistentState,
				acct.Name, acct.AccountNumber)
		}
	}

	for num := range s.ImportedKeys {
		acct, ok := accounts[num]
		if !ok {
			return fmt.Errorf("%w: imported key blob for "+
				"unknown account %d", ErrInconsistentState,
				num)
		}
		if !acct.Type.imported() {
			return fmt.Errorf("%w: key blob attached to %s "+
				"account %d", ErrInconsistentState,
				acct.Type, num)
		}
	}

	for i := range s.PendingTxs {
		ptx := &s.PendingTxs[i]
		acct, ok := accounts[ptx.AccountNumber]
		if !ok {
			return fmt.Errorf("%w: pending tx for unknown "+
				"account %d", ErrInconsistentState,
				ptx.AccountNumber)
		}
		if acct.Type != AccountMultisig {
			return fmt.Errorf("%w: pending tx attached to %s "+
				"account %d", ErrInconsistentState,
				acct.Type, ptx.AccountNumber)
		}
		if err := ptx.Validate(); err != nil {
			return err
		}
	}

	return nil
}
