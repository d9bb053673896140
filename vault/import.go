// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/btcsuite/btcvault/pwcrypt"
	"github.com/btcsuite/btcvault/wallet"
)

// RestoreSummary reports what a successful import restored. It exists
// purely for user-facing confirmation; nothing in the engine makes
// correctness decisions based on it.
type RestoreSummary struct {
	// Accounts is the number of restored accounts.
	Accounts int

	// Contacts is the number of restored contacts.
	Contacts int

	// Annotations is the number of restored transaction annotations.
	Annotations int

	// PendingTxs is the number of restored in-flight multisig
	// transactions.
	PendingTxs int

	// HasImportedKeys reports whether imported key material was
	// restored.
	HasImportedKeys bool

	// HasMultisig reports whether multisig accounts were restored.
	HasMultisig bool

	// NonHD is an advisory: the backup carried no seed material, so
	// the restored wallet cannot derive new HD accounts until a seed
	// is created.
	NonHD bool

	// Renamed is an advisory listing the display names that were
	// suffixed to resolve duplicates.
	Renamed []string
}

// Import validates an encrypted container and, if every gate passes,
// replaces the contents of all stores with the backup's state. The
// gates run in a fixed order and each one fails closed: no store is
// mutated until all of them have passed.
//
//  1. Structural validation and size bound.
//  2. Network gate against the active wallet network.
//  3. Checksum verification, before any password is consumed.
//  4. Rate-limit check, before any KDF work.
//  5. Authenticated decryption; a failure costs one rate-limit attempt.
//  6. Payload version gate.
//  7. Semantic checks (header/payload network agreement, store-level
//     consistency, seed presence policy).
//  8. Deterministic duplicate-name resolution.
//  9. Atomic distribution into the stores.
func (e *Engine) Import(ctx context.Context, container *EncryptedContainer,
	backupPassword []byte) (*RestoreSummary, error) {

	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.done()

	// Gate 1: structure.
	if container == nil {
		return nil, newError(ErrMalformed, "nil container", nil)
	}
	if err := container.validate(); err != nil {
		return nil, err
	}

	// Gate 2: the container must target the active network before
	// anything else is considered, preventing cross-network key and
	// address confusion.
	if container.Header.Network != e.network() {
		return nil, newError(ErrNetworkMismatch, fmt.Sprintf(
			"container is for %s, wallet is on %s",
			container.Header.Network, e.network()), nil)
	}

	// Gate 3: checksum over the ciphertext. Runs before the password
	// is touched so a corrupted file cannot burn rate-limit attempts,
	// and a corrupted file is never misreported as a wrong password.
	if !container.verifyChecksum() {
		return nil, newError(ErrChecksumMismatch, "ciphertext "+
			"checksum failed", nil)
	}

	// Gate 4: rate limit, checked before spending a KDF pass.
	if err := e.limiter.checkLocked(ctx); err != nil {
		return nil, err
	}

	// Gate 5: decrypt. The iteration count comes from the container
	// but is floored so a tampered header cannot downgrade the work
	// factor.
	plaintext, err := e.decrypt(ctx, container, backupPassword)
	if err != nil {
		return nil, err
	}

	// The password checked out; clear the counters immediately, before
	// distribution, so a later store failure does not penalize the
	// user.
	if err := e.limiter.reset(ctx); err != nil {
		return nil, err
	}

	// Gate 6: payload decode and version gates.
	payload, err := parsePayload(plaintext)
	if err != nil {
		return nil, err
	}

	// Gate 7: semantic checks.
	summary, state, contacts, err := e.prepareRestore(payload)
	if err != nil {
		return nil, err
	}

	// Gate 9: distribution. The target state is fully buffered in
	// memory at this point; the writes run in sequence and each store
	// replaces its contents atomically. A failure part-way leaves
	// later stores untouched and is surfaced as a store failure naming
	// the stage.
	err = e.cfg.Stores.Wallet.ReplaceState(ctx, state)
	if err != nil {
		return nil, newError(ErrStoreFailure, "replace wallet state",
			err)
	}

	err = e.cfg.Stores.Contacts.ReplaceContacts(ctx, contacts)
	if err != nil {
		return nil, newError(ErrStoreFailure, "replace contacts "+
			"(wallet state already restored)", err)
	}

	err = e.cfg.Stores.TxMeta.ReplaceAnnotations(
		ctx, payload.TransactionMetadata,
	)
	if err != nil {
		return nil, newError(ErrStoreFailure, "replace annotations "+
			"(wallet state and contacts already restored)", err)
	}

	log.Infof("Imported wallet backup created %v: %d accounts, %d "+
		"contacts, %d annotations", container.Header.CreatedAt,
		summary.Accounts, summary.Contacts, summary.Annotations)
	log.Debugf("Restore summary: %v",
		spew.Sdump(summary))

	return summary, nil
}

// decrypt derives the key from the container's stored parameters and
// opens the ciphertext. An authentication failure is counted against
// the rate limiter and reported generically: the caller learns only
// that the password was wrong and how many attempts remain, never
// whether the file was otherwise valid.
func (e *Engine) decrypt(ctx context.Context,
	container *EncryptedContainer, backupPassword []byte) ([]byte, error) {

	blob := &pwcrypt.Blob{
		Ciphertext: container.EncryptedData,
		Salt:       container.Encryption.Salt,
		Nonce:      container.Encryption.IV,
		Iterations: container.Encryption.PBKDF2Iterations,
	}

	plaintext, err := pwcrypt.Decrypt(blob, backupPassword)
	switch {
	case err == nil:
		return plaintext, nil

	case errors.Is(err, pwcrypt.ErrInvalidParams):
		return nil, newError(ErrMalformed, "unusable encryption "+
			"parameters", err)
	}

	remaining, limErr := e.limiter.recordFailure(ctx)
	if limErr != nil {
		return nil, limErr
	}

	log.Debugf("Backup decryption failed, %d attempts remaining",
		remaining)

	return nil, Error{
		Code:              ErrAuthentication,
		Desc:              "backup password rejected",
		AttemptsRemaining: remaining,
	}
}

// prepareRestore applies the semantic checks and automatic resolutions
// to a decoded payload, producing the fully buffered target state for
// distribution plus the user-facing summary.
func (e *Engine) prepareRestore(payload *BackupPayload) (*RestoreSummary,
	*wallet.WalletState, []wallet.Contact, error) {

	// The network inside the payload must agree with the already
	// checked header. Since both were fixed at export time, a
	// disagreement means the cleartext header was edited.
	if payload.Network != e.network() {
		return nil, nil, nil, newError(ErrNetworkMismatch,
			"payload network disagrees with header", nil)
	}

	summary := &RestoreSummary{
		Accounts:        len(payload.Accounts),
		Contacts:        len(payload.Contacts),
		Annotations:     len(payload.TransactionMetadata),
		PendingTxs:      len(payload.PendingTxs),
		HasImportedKeys: len(payload.ImportedKeys) > 0,
	}

	// A payload without seed material is an advisory condition, not a
	// failure, unless the engine is configured to insist on one.
	if !payload.Core.HasSeed() {
		if e.cfg.RequireSeed {
			return nil, nil, nil, newError(ErrPartialData,
				"backup contains no seed material", nil)
		}
		summary.NonHD = true
	}

	for i := range payload.Accounts {
		if payload.Accounts[i].Type == wallet.AccountMultisig {
			summary.HasMultisig = true
			break
		}
	}

	// The metadata counts are a soft check only: a disagreement is
	// logged, never fatal, because the collections themselves are the
	// source of truth.
	if counts := payload.countsFrom(); counts != payload.Metadata {
		log.Warnf("Backup metadata counts disagree with contents: "+
			"recorded %+v, actual %+v", payload.Metadata, counts)
	}

	// Resolve duplicate display names deterministically so nothing is
	// silently dropped or overwritten.
	renamed := dedupeAccountNames(payload.Accounts)
	renamed = append(renamed, dedupeContactNames(payload.Contacts)...)
	summary.Renamed = renamed

	state := &wallet.WalletState{
		Core:         payload.Core,
		Accounts:     payload.Accounts,
		ImportedKeys: payload.ImportedKeys,
		PendingTxs:   payload.PendingTxs,
		Settings:     payload.Settings,
	}

	// Full consistency check of the buffered state before anything is
	// written: account variants, imported key blob matching, pending
	// transaction decoding, contact addresses.
	if err := state.Validate(e.cfg.ChainParams); err != nil {
		return nil, nil, nil, newError(ErrMalformed,
			"payload failed consistency check", err)
	}
	for i := range payload.Contacts {
		err := payload.Contacts[i].Validate(e.cfg.ChainParams)
		if err != nil {
			return nil, nil, nil, newError(ErrMalformed,
				"payload failed consistency check", err)
		}
	}
	for i := range payload.TransactionMetadata {
		err := payload.TransactionMetadata[i].Validate()
		if err != nil {
			return nil, nil, nil, newError(ErrMalformed,
				"payload failed consistency check", err)
		}
	}

	return summary, state, payload.Contacts, nil
}

// dedupeAccountNames suffixes duplicate account names in place,
// processing accounts in list order so the outcome is deterministic.
// It returns the new names that were assigned.
func dedupeAccountNames(accounts []wallet.Account) []string {
	seen := fn.NewSet[string]()
	var renamed []string

	for i := range accounts {
		name := uniqueName(seen, accounts[i].Name)
		if name != accounts[i].Name {
			accounts[i].Name = name
			renamed = append(renamed, name)
		}
	}

	return renamed
}

// dedupeContactNames suffixes duplicate contact display names in place.
func dedupeContactNames(contacts []wallet.Contact) []string {
	seen := fn.NewSet[string]()
	var renamed []string

	for i := range contacts {
		name := uniqueName(seen, contacts[i].Name)
		if name != contacts[i].Name {
			contacts[i].Name = name
			renamed = append(renamed, name)
		}
	}

	return renamed
}

// uniqueName returns name itself if unused, otherwise the first
// "name (n)" variant that is unused, counting up from 2. The chosen
// name is recorded in the seen set.
func uniqueName(seen fn.Set[string], name string) string {
	candidate := name
	for n := 2; seen.Contains(candidate); n++ {
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}

	seen.Add(candidate)
	return candidate
}
