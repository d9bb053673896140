// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsuite/btcvault/pwcrypt"
)

// Export serializes the complete wallet state into a single encrypted
// container protected by the backup password. The wallet must already be
// unlocked: for seed-backed wallets the unlock passphrase is verified
// against the sealed seed before anything is collected.
//
// The backup password is deliberately independent from the unlock
// passphrase. Reuse is rejected, as is anything shorter than
// MinBackupPasswordLen, because the resulting artifact is typically
// stored with weaker protections than the wallet database itself.
//
// No network I/O happens during export; the only suspension points are
// store reads and key derivation.
func (e *Engine) Export(ctx context.Context, unlockPassphrase,
	backupPassword []byte) (*EncryptedContainer, error) {

	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.done()

	// Gate 1: password policy, checked before any work is done.
	if len(backupPassword) < MinBackupPasswordLen {
		return nil, newError(ErrPolicyViolation, fmt.Sprintf(
			"backup password must be at least %d characters",
			MinBackupPasswordLen), nil)
	}
	if bytes.Equal(backupPassword, unlockPassphrase) {
		return nil, newError(ErrPolicyViolation, "backup password "+
			"must differ from the wallet unlock passphrase", nil)
	}

	// Collect the full state from every store. The counts in the
	// metadata block are taken from these collections, never from any
	// cached counter.
	state, err := e.cfg.Stores.Wallet.ReadState(ctx)
	if err != nil {
		return nil, newError(ErrStoreFailure, "read wallet state",
			err)
	}

	// A seed-backed wallet proves the unlock passphrase by opening the
	// sealed seed. Wallets without a seed have nothing to check it
	// against.
	if state.Core.HasSeed() {
		if _, err := state.Core.UnlockSeed(unlockPassphrase); err != nil {
			return nil, newError(ErrAuthentication,
				"unlock passphrase rejected", err)
		}
	}

	if err := state.Validate(e.cfg.ChainParams); err != nil {
		return nil, newError(ErrStoreFailure, "wallet state failed "+
			"consistency check", err)
	}

	contacts, err := e.cfg.Stores.Contacts.ListContacts(ctx)
	if err != nil {
		return nil, newError(ErrStoreFailure, "read contacts", err)
	}

	annotations, err := e.cfg.Stores.TxMeta.ListAnnotations(ctx)
	if err != nil {
		return nil, newError(ErrStoreFailure, "read annotations", err)
	}

	payload := &BackupPayload{
		Version:             PayloadVersion,
		Network:             e.network(),
		Core:                state.Core,
		Accounts:            state.Accounts,
		ImportedKeys:        state.ImportedKeys,
		PendingTxs:          state.PendingTxs,
		Contacts:            contacts,
		TransactionMetadata: annotations,
		Settings:            state.Settings,
	}
	payload.Metadata = payload.countsFrom()

	serialized, err := payload.serialize()
	if err != nil {
		return nil, err
	}

	// Fresh salt, fresh nonce, fixed high iteration count.
	blob, err := pwcrypt.Encrypt(
		serialized, backupPassword, e.cfg.KDFOptions,
	)
	if err != nil {
		return nil, newError(ErrStoreFailure, "encrypt payload", err)
	}

	container := &EncryptedContainer{
		Header: Header{
			Version:    ContainerVersion,
			Network:    e.network(),
			CreatedAt:  e.now().UTC(),
			MinVersion: MinCompatVersion,
			AppVersion: e.cfg.AppVersion,
		},
		Encryption: Encryption{
			Salt:             blob.Salt,
			IV:               blob.Nonce,
			PBKDF2Iterations: blob.Iterations,
			Cipher:           CipherAlgorithm,
			KDF:              KDFAlgorithm,
		},
		EncryptedData: blob.Ciphertext,
		Checksum: Checksum{
			Algorithm: ChecksumAlgorithm,
			Hash:      computeChecksum(blob.Ciphertext),
		},
	}

	log.Infof("Exported wallet backup: %d accounts, %d contacts, %d "+
		"annotations, %d pending txs, network=%s",
		payload.Metadata.AccountCount, payload.Metadata.ContactCount,
		payload.Metadata.AnnotationCount,
		payload.Metadata.PendingTxCount, e.network())

	return container, nil
}
