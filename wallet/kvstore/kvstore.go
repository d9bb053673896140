// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package kvstore implements the wallet store interfaces on top of a
// walletdb key/value database. All structured rows are stored as JSON
// values inside namespaced top-level buckets, and every replace operation
// runs inside a single database transaction so a restore is all or
// nothing.
package kvstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcwallet/walletdb"

	"github.com/btcsuite/btcvault/pwcrypt"
	"github.com/btcsuite/btcvault/wallet"
)

var (
	// walletBucketKey holds the wallet core and settings rows.
	walletBucketKey = []byte("walletmeta")

	// accountsBucketKey holds one JSON row per account, keyed by the
	// big-endian account number so iteration follows account order.
	accountsBucketKey = []byte("accounts")

	// importedKeysBucketKey holds the sealed imported key blobs, keyed
	// by big-endian account number.
	importedKeysBucketKey = []byte("importedkeys")

	// pendingTxsBucketKey holds in-flight multisig transactions, keyed
	// by their big-endian position.
	pendingTxsBucketKey = []byte("pendingtxs")

	// contactsBucketKey holds one JSON row per contact, keyed by
	// contact id.
	contactsBucketKey = []byte("contacts")

	// txMetaBucketKey holds one JSON row per transaction annotation,
	// keyed by txid string.
	txMetaBucketKey = []byte("txmeta")

	// attemptsBucketKey holds the persisted restore rate-limiter
	// counters.
	attemptsBucketKey = []byte("restoreattempts")

	// coreKey, settingsKey and attemptsKey are the fixed row keys
	// inside their buckets.
	coreKey     = []byte("core")
	settingsKey = []byte("settings")
	attemptsKey = []byte("attempts")

	// topLevelBuckets lists every bucket the store owns.
	topLevelBuckets = [][]byte{
		walletBucketKey, accountsBucketKey, importedKeysBucketKey,
		pendingTxsBucketKey, contactsBucketKey, txMetaBucketKey,
		attemptsBucketKey,
	}

	// ErrBucketMissing is returned when an expected bucket does not
	// exist, which indicates the database was not created by this
	// store.
	ErrBucketMissing = errors.New("store bucket missing")
)

// Store is a walletdb-backed implementation of wallet.WalletStore,
// wallet.ContactStore, wallet.TxMetaStore and wallet.AttemptStore.
type Store struct {
	db walletdb.DB
}

// Compile-time checks that Store satisfies every store surface the
// backup engine consumes.
var (
	_ wallet.WalletStore  = (*Store)(nil)
	_ wallet.ContactStore = (*Store)(nil)
	_ wallet.TxMetaStore  = (*Store)(nil)
	_ wallet.AttemptStore = (*Store)(nil)
)

// NewStore wraps an open walletdb database, creating the store's buckets
// if they do not exist yet.
func NewStore(db walletdb.DB) (*Store, error) {
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		for _, key := range topLevelBuckets {
			_, err := tx.CreateTopLevelBucket(key)
			if err != nil {
				return fmt.Errorf("create bucket %s: %w",
					key, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// uint32Key encodes a bucket key for a numeric id.
func uint32Key(n uint32) []byte {
	var key [4]byte
	binary.BigEndian.PutUint32(key[:], n)
	return key[:]
}

// putJSON marshals a row and stores it under the given key.
func putJSON(bucket walletdb.ReadWriteBucket, key []byte, row any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}

	return bucket.Put(key, raw)
}

// clearBucket removes every row of a top-level bucket while keeping the
// bucket itself.
func clearBucket(bucket walletdb.ReadWriteBucket) error {
	var keys [][]byte
	err := bucket.ForEach(func(k, _ []byte) error {
		keys = append(keys, append([]byte(nil), k...))
		return nil
	})
	if err != nil {
		return err
	}

	for _, k := range keys {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}

	return nil
}

// ReadState returns the complete wallet state.
func (s *Store) ReadState(_ context.Context) (*wallet.WalletState, error) {
	state := &wallet.WalletState{}

	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		meta := tx.ReadBucket(walletBucketKey)
		accounts := tx.ReadBucket(accountsBucketKey)
		imported := tx.ReadBucket(importedKeysBucketKey)
		pending := tx.ReadBucket(pendingTxsBucketKey)
		if meta == nil || accounts == nil || imported == nil ||
			pending == nil {

			return ErrBucketMissing
		}

		if raw := meta.Get(coreKey); raw != nil {
			err := json.Unmarshal(raw, &state.Core)
			if err != nil {
				return fmt.Errorf("core row: %w", err)
			}
		}
		if raw := meta.Get(settingsKey); raw != nil {
			err := json.Unmarshal(raw, &state.Settings)
			if err != nil {
				return fmt.Errorf("settings row: %w", err)
			}
		}

		err := accounts.ForEach(func(_, v []byte) error {
			var acct wallet.Account
			if err := json.Unmarshal(v, &acct); err != nil {
				return fmt.Errorf("account row: %w", err)
			}
			state.Accounts = append(state.Accounts, acct)
			return nil
		})
		if err != nil {
			return err
		}

		err = imported.ForEach(func(k, v []byte) error {
			if len(k) != 4 {
				return fmt.Errorf("bad imported key id %x", k)
			}
			var blob pwcrypt.Blob
			if err := json.Unmarshal(v, &blob); err != nil {
				return fmt.Errorf("imported key row: %w", err)
			}
			if state.ImportedKeys == nil {
				state.ImportedKeys = make(
					map[uint32]*pwcrypt.Blob,
				)
			}
			num := binary.BigEndian.Uint32(k)
			state.ImportedKeys[num] = &blob
			return nil
		})
		if err != nil {
			return err
		}

		return pending.ForEach(func(_, v []byte) error {
			var ptx wallet.PendingMultisigTx
			if err := json.Unmarshal(v, &ptx); err != nil {
				return fmt.Errorf("pending tx row: %w", err)
			}
			state.PendingTxs = append(state.PendingTxs, ptx)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// ReplaceState atomically replaces the complete wallet state in a single
// database transaction.
func (s *Store) ReplaceState(_ context.Context,
	state *wallet.WalletState) error {

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		meta := tx.ReadWriteBucket(walletBucketKey)
		accounts := tx.ReadWriteBucket(accountsBucketKey)
		imported := tx.ReadWriteBucket(importedKeysBucketKey)
		pending := tx.ReadWriteBucket(pendingTxsBucketKey)
		if meta == nil || accounts == nil || imported == nil ||
			pending == nil {

			return ErrBucketMissing
		}

		for _, b := range []walletdb.ReadWriteBucket{
			meta, accounts, imported, pending,
		} {
			if err := clearBucket(b); err != nil {
				return err
			}
		}

		if err := putJSON(meta, coreKey, &state.Core); err != nil {
			return err
		}
		err := putJSON(meta, settingsKey, &state.Settings)
		if err != nil {
			return err
		}

		for i := range state.Accounts {
			acct := &state.Accounts[i]
			err := putJSON(
				accounts, uint32Key(acct.AccountNumber), acct,
			)
			if err != nil {
				return err
			}
		}

		for num, blob := range state.ImportedKeys {
			err := putJSON(imported, uint32Key(num), blob)
			if err != nil {
				return err
			}
		}

		for i := range state.PendingTxs {
			err := putJSON(
				pending, uint32Key(uint32(i)),
				&state.PendingTxs[i],
			)
			if err != nil {
				return err
			}
		}

		log.Debugf("Replaced wallet state: %d accounts, %d "+
			"imported keys, %d pending txs", len(state.Accounts),
			len(state.ImportedKeys), len(state.PendingTxs))

		return nil
	})
}

// ListContacts returns every saved contact.
func (s *Store) ListContacts(_ context.Context) ([]wallet.Contact, error) {
	var contacts []wallet.Contact

	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(contactsBucketKey)
		if bucket == nil {
			return ErrBucketMissing
		}

		return bucket.ForEach(func(_, v []byte) error {
			var c wallet.Contact
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("contact row: %w", err)
			}
			contacts = append(contacts, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

// ReplaceContacts atomically replaces the full contact list.
func (s *Store) ReplaceContacts(_ context.Context,
	contacts []wallet.Contact) error {

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(contactsBucketKey)
		if bucket == nil {
			return ErrBucketMissing
		}

		if err := clearBucket(bucket); err != nil {
			return err
		}

		for i := range contacts {
			c := &contacts[i]
			err := putJSON(bucket, []byte(c.ID), c)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// ListAnnotations returns every transaction annotation.
func (s *Store) ListAnnotations(
	_ context.Context) ([]wallet.TxAnnotation, error) {

	var annotations []wallet.TxAnnotation

	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(txMetaBucketKey)
		if bucket == nil {
			return ErrBucketMissing
		}

		return bucket.ForEach(func(_, v []byte) error {
			var a wallet.TxAnnotation
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("annotation row: %w", err)
			}
			annotations = append(annotations, a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return annotations, nil
}

// ReplaceAnnotations atomically replaces all transaction annotations.
func (s *Store) ReplaceAnnotations(_ context.Context,
	annotations []wallet.TxAnnotation) error {

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(txMetaBucketKey)
		if bucket == nil {
			return ErrBucketMissing
		}

		if err := clearBucket(bucket); err != nil {
			return err
		}

		for i := range annotations {
			a := &annotations[i]
			err := putJSON(bucket, []byte(a.TxID), a)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// RestoreAttempts returns the persisted rate-limiter counter state.
func (s *Store) RestoreAttempts(
	_ context.Context) (*wallet.RestoreAttempts, bool, error) {

	var (
		attempts wallet.RestoreAttempts
		found    bool
	)

	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(attemptsBucketKey)
		if bucket == nil {
			return ErrBucketMissing
		}

		raw := bucket.Get(attemptsKey)
		if raw == nil {
			return nil
		}

		found = true
		return json.Unmarshal(raw, &attempts)
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	return &attempts, true, nil
}

// PutRestoreAttempts persists the rate-limiter counter state.
func (s *Store) PutRestoreAttempts(_ context.Context,
	attempts *wallet.RestoreAttempts) error {

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(attemptsBucketKey)
		if bucket == nil {
			return ErrBucketMissing
		}

		return putJSON(bucket, attemptsKey, attempts)
	})
}

// ClearRestoreAttempts removes the rate-limiter counter state.
func (s *Store) ClearRestoreAttempts(_ context.Context) error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(attemptsBucketKey)
		if bucket == nil {
			return ErrBucketMissing
		}

		return bucket.Delete(attemptsKey)
	})
}
