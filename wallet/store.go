// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet defines the data model of the wallet state that
// participates in encrypted backups, together with the store interfaces
// the backup engine reads from and restores into. Concrete persistence
// lives in the kvstore and sqlstore sub-packages; the engine itself only
// ever sees these interfaces.
package wallet

import (
	"context"
	"time"
)

// WalletStore owns the fund-critical wallet state: seed, accounts,
// imported keys, pending multisig transactions and settings.
type WalletStore interface {
	// ReadState returns the complete current wallet state.
	ReadState(ctx context.Context) (*WalletState, error)

	// ReplaceState atomically replaces the complete wallet state.
	ReplaceState(ctx context.Context, state *WalletState) error
}

// ContactStore owns the wallet's address book.
type ContactStore interface {
	// ListContacts returns every saved contact.
	ListContacts(ctx context.Context) ([]Contact, error)

	// ReplaceContacts atomically replaces the full contact list.
	ReplaceContacts(ctx context.Context, contacts []Contact) error
}

// TxMetaStore owns the per-transaction annotations (tags, categories,
// notes).
type TxMetaStore interface {
	// ListAnnotations returns every transaction annotation.
	ListAnnotations(ctx context.Context) ([]TxAnnotation, error)

	// ReplaceAnnotations atomically replaces all annotations.
	ReplaceAnnotations(ctx context.Context,
		annotations []TxAnnotation) error
}

// RestoreAttempts is the persisted failed-restore counter state. It must
// survive process suspension, so it lives in a store rather than in
// memory.
type RestoreAttempts struct {
	// Count is the number of failed attempts in the current window.
	Count uint32 `json:"count"`

	// FirstAttempt is when the current window opened.
	FirstAttempt time.Time `json:"firstAttempt"`
}

// AttemptStore persists the restore rate-limiter counters across process
// restarts and suspensions.
type AttemptStore interface {
	// RestoreAttempts returns the persisted counter state, or ok=false
	// when no failed attempt has been recorded.
	RestoreAttempts(ctx context.Context) (*RestoreAttempts, bool, error)

	// PutRestoreAttempts persists the counter state.
	PutRestoreAttempts(ctx context.Context,
		attempts *RestoreAttempts) error

	// ClearRestoreAttempts removes the counter state.
	ClearRestoreAttempts(ctx context.Context) error
}

// Stores bundles every store surface the backup engine depends on.
type Stores struct {
	Wallet   WalletStore
	Contacts ContactStore
	TxMeta   TxMetaStore
	Attempts AttemptStore
}
