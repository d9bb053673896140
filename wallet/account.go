// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	// ErrInvalidAccount is returned when an account fails its
	// per-variant validation.
	ErrInvalidAccount = errors.New("invalid account")

	// ErrInvalidCosigner is returned when a cosigner record fails
	// validation.
	ErrInvalidCosigner = errors.New("invalid cosigner")
)

// AccountType distinguishes how an account's keys come to exist. The
// type decides which other fields of an Account are meaningful, so
// Validate enforces the combination per type.
type AccountType uint8

const (
	// AccountHD is a standard account derived from the wallet seed.
	AccountHD AccountType = iota

	// AccountImportedKey is an account built from an imported private
	// key. Its key material lives in the wallet state's imported key
	// map, sealed under the unlock passphrase.
	AccountImportedKey

	// AccountImportedSeed is an account built from a foreign seed
	// imported next to the wallet's own. Key material handling matches
	// AccountImportedKey.
	AccountImportedSeed

	// AccountMultisig is an m-of-n account assembled from cosigner
	// extended public keys.
	AccountMultisig
)

// String returns the account type as a human-readable string.
func (t AccountType) String() string {
	switch t {
	case AccountHD:
		return "hd"
	case AccountImportedKey:
		return "imported-key"
	case AccountImportedSeed:
		return "imported-seed"
	case AccountMultisig:
		return "multisig"
	default:
		return fmt.Sprintf("unknown type %d", uint8(t))
	}
}

// imported reports whether the account type carries its own key blob in
// the wallet state.
func (t AccountType) imported() bool {
	return t == AccountImportedKey || t == AccountImportedSeed
}

// AddressType identifies the address derivation scheme of an account.
type AddressType uint8

const (
	// PubKeyHash is a legacy p2pkh address account.
	PubKeyHash AddressType = iota

	// ScriptHash is a p2sh address account, used by multisig accounts.
	ScriptHash

	// NestedWitnessPubKey is a p2sh-wrapped p2wpkh address account.
	NestedWitnessPubKey

	// WitnessPubKey is a native segwit v0 p2wpkh address account.
	WitnessPubKey

	// Taproot is a segwit v1 p2tr address account.
	Taproot
)

// Cosigner is one participant of a multisig account. Only public
// material is ever stored: the extended public key plus an optional
// master key fingerprint for hardware signer matching.
type Cosigner struct {
	// Name is the display label of the cosigner.
	Name string `json:"name"`

	// XPub is the cosigner's account-level extended public key.
	XPub string `json:"xpub"`

	// Fingerprint is the hex master key fingerprint, if known.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Validate checks that the cosigner carries a usable public key for the
// given network. Private extended keys are rejected outright: a backup
// must never become a vehicle for someone else's secrets.
func (c *Cosigner) Validate(params *chaincfg.Params) error {
	if c.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCosigner)
	}

	key, err := hdkeychain.NewKeyFromString(c.XPub)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCosigner, c.Name,
			err)
	}
	if key.IsPrivate() {
		return fmt.Errorf("%w: %q carries a private key",
			ErrInvalidCosigner, c.Name)
	}
	if !key.IsForNet(params) {
		return fmt.Errorf("%w: %q key is for a different network",
			ErrInvalidCosigner, c.Name)
	}

	return nil
}

// MultisigInfo describes the m-of-n configuration of a multisig
// account.
type MultisigInfo struct {
	// RequiredSigs is m, the signature threshold.
	RequiredSigs uint32 `json:"requiredSigs"`

	// TotalSigners is n, the number of cosigners.
	TotalSigners uint32 `json:"totalSigners"`

	// Cosigners lists every participant, the wallet's own key
	// included.
	Cosigners []Cosigner `json:"cosigners"`

	// SortedKeys indicates BIP 67 deterministic key ordering in the
	// redeem script.
	SortedKeys bool `json:"sortedKeys"`
}

// validate checks the threshold arithmetic and every cosigner.
func (m *MultisigInfo) validate(params *chaincfg.Params) error {
	switch {
	case m.RequiredSigs == 0:
		return fmt.Errorf("%w: multisig requires at least one "+
			"signature", ErrInvalidAccount)

	case m.RequiredSigs > m.TotalSigners:
		return fmt.Errorf("%w: %d-of-%d multisig is unsatisfiable",
			ErrInvalidAccount, m.RequiredSigs, m.TotalSigners)

	case uint32(len(m.Cosigners)) != m.TotalSigners:
		return fmt.Errorf("%w: %d cosigners listed for a %d-signer "+
			"account", ErrInvalidAccount, len(m.Cosigners),
			m.TotalSigners)
	}

	for i := range m.Cosigners {
		if err := m.Cosigners[i].Validate(params); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAccount, err)
		}
	}

	return nil
}

// Account is one wallet account. The Type field decides the variant:
// multisig accounts must carry a MultisigInfo and nothing else may,
// imported accounts must be backed by a key blob in the wallet state.
// The derivation counters record how far address derivation has
// progressed on each branch, so a restored wallet resumes at the right
// index instead of reusing addresses.
type Account struct {
	// AccountNumber is the unique account identifier.
	AccountNumber uint32 `json:"accountNumber"`

	// Name is the display name. Unique within a wallet; restores
	// resolve collisions by suffixing.
	Name string `json:"name"`

	// Type is the account variant.
	Type AccountType `json:"type"`

	// AddressType is the address scheme of the account.
	AddressType AddressType `json:"addressType"`

	// NextExternalIndex is the next unused index on the receive
	// branch.
	NextExternalIndex uint32 `json:"nextExternalIndex"`

	// NextInternalIndex is the next unused index on the change branch.
	NextInternalIndex uint32 `json:"nextInternalIndex"`

	// Multisig is the m-of-n configuration. Set exactly when Type is
	// AccountMultisig.
	Multisig *MultisigInfo `json:"multisig,omitempty"`
}

// Validate checks the account's fields against its variant.
func (a *Account) Validate(params *chaincfg.Params) error {
	if a.Name == "" {
		return fmt.Errorf("%w: account %d has no name",
			ErrInvalidAccount, a.AccountNumber)
	}

	switch a.Type {
	case AccountHD, AccountImportedKey, AccountImportedSeed:
		if a.Multisig != nil {
			return fmt.Errorf("%w: %s account %q carries a "+
				"multisig config", ErrInvalidAccount, a.Type,
				a.Name)
		}

	case AccountMultisig:
		if a.Multisig == nil {
			return fmt.Errorf("%w: multisig account %q has no "+
				"multisig config", ErrInvalidAccount, a.Name)
		}
		if err := a.Multisig.validate(params); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: account %q has unknown type %d",
			ErrInvalidAccount, a.Name, uint8(a.Type))
	}

	return nil
}

// ParseCosignerKey parses a hex-encoded compressed public key, the form
// used for cosigner identities in signature progress maps.
func ParseCosignerKey(pubHex string) (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCosigner, err)
	}

	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCosigner, err)
	}

	return pub, nil
}
