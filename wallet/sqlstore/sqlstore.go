// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sqlstore implements the wallet store interfaces on top of a
// SQLite database. The schema keeps the fund-critical derivation
// counters in dedicated columns while opaque nested structures (sealed
// key blobs, tag maps, multisig configs) are stored as JSON.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Register the pure-Go sqlite driver.
	_ "modernc.org/sqlite"

	"github.com/btcsuite/btcvault/pwcrypt"
	"github.com/btcsuite/btcvault/wallet"
)

// Store is a SQLite-backed implementation of wallet.WalletStore,
// wallet.ContactStore, wallet.TxMetaStore and wallet.AttemptStore.
type Store struct {
	db *sql.DB
}

var (
	_ wallet.WalletStore  = (*Store)(nil)
	_ wallet.ContactStore = (*Store)(nil)
	_ wallet.TxMetaStore  = (*Store)(nil)
	_ wallet.AttemptStore = (*Store)(nil)
)

// Open opens (creating if necessary) a SQLite database at the given path
// and brings its schema up to date.
func Open(path string) (*Store, error) {
	// Foreign keys are needed for the imported_keys cascade; the busy
	// timeout makes SQLite retry lock acquisition instead of returning
	// SQLITE_BUSY; immediate transactions avoid upgrade deadlocks.
	dsn := path + "?_pragma=foreign_keys=on" +
		"&_pragma=journal_mode=WAL" +
		"&_pragma=busy_timeout=5000" +
		"&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	return NewStore(db)
}

// NewStore wraps an open database handle, applying any pending schema
// migrations.
func NewStore(db *sql.DB) (*Store, error) {
	if err := applyMigrations(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// execInTx executes fn within a database transaction, committing on
// success and rolling back on error.
func execInTx(ctx context.Context, db *sql.DB,
	fn func(tx *sql.Tx) error) error {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %w, rollback err: %v",
				err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// marshalJSON encodes an optional nested structure, mapping nil input to
// a NULL column.
func marshalJSON(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal column: %w", err)
	}

	return raw, nil
}

// ReadState returns the complete wallet state.
func (s *Store) ReadState(ctx context.Context) (*wallet.WalletState, error) {
	state := &wallet.WalletState{}

	err := execInTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT core, settings FROM wallet_meta WHERE id = 1`,
		)

		var coreRaw, settingsRaw []byte
		err := row.Scan(&coreRaw, &settingsRaw)
		switch {
		case err == sql.ErrNoRows:
			// Fresh database: empty state.

		case err != nil:
			return fmt.Errorf("read wallet meta: %w", err)

		default:
			err = json.Unmarshal(coreRaw, &state.Core)
			if err != nil {
				return fmt.Errorf("core column: %w", err)
			}
			err = json.Unmarshal(settingsRaw, &state.Settings)
			if err != nil {
				return fmt.Errorf("settings column: %w", err)
			}
		}

		if err := readAccounts(ctx, tx, state); err != nil {
			return err
		}
		if err := readImportedKeys(ctx, tx, state); err != nil {
			return err
		}

		return readPendingTxs(ctx, tx, state)
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// readAccounts loads the account list in account number order.
func readAccounts(ctx context.Context, tx *sql.Tx,
	state *wallet.WalletState) error {

	rows, err := tx.QueryContext(ctx,
		`SELECT account_number, name, account_type, address_type,
			next_external_index, next_internal_index, multisig
		 FROM accounts ORDER BY account_number`,
	)
	if err != nil {
		return fmt.Errorf("read accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			acct        wallet.Account
			acctType    uint8
			addrType    uint8
			multisigRaw []byte
		)
		err := rows.Scan(
			&acct.AccountNumber, &acct.Name, &acctType,
			&addrType, &acct.NextExternalIndex,
			&acct.NextInternalIndex, &multisigRaw,
		)
		if err != nil {
			return fmt.Errorf("scan account: %w", err)
		}

		acct.Type = wallet.AccountType(acctType)
		acct.AddressType = wallet.AddressType(addrType)

		if multisigRaw != nil {
			acct.Multisig = &wallet.MultisigInfo{}
			err := json.Unmarshal(multisigRaw, acct.Multisig)
			if err != nil {
				return fmt.Errorf("multisig column: %w", err)
			}
		}

		state.Accounts = append(state.Accounts, acct)
	}

	return rows.Err()
}

// readImportedKeys loads the sealed imported key blobs.
func readImportedKeys(ctx context.Context, tx *sql.Tx,
	state *wallet.WalletState) error {

	rows, err := tx.QueryContext(ctx,
		`SELECT account_number, key_blob FROM imported_keys`,
	)
	if err != nil {
		return fmt.Errorf("read imported keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			num uint32
			raw []byte
		)
		if err := rows.Scan(&num, &raw); err != nil {
			return fmt.Errorf("scan imported key: %w", err)
		}

		var blob pwcrypt.Blob
		if err := json.Unmarshal(raw, &blob); err != nil {
			return fmt.Errorf("key blob column: %w", err)
		}

		if state.ImportedKeys == nil {
			state.ImportedKeys = make(map[uint32]*pwcrypt.Blob)
		}
		state.ImportedKeys[num] = &blob
	}

	return rows.Err()
}

// readPendingTxs loads the in-flight multisig transactions in position
// order.
func readPendingTxs(ctx context.Context, tx *sql.Tx,
	state *wallet.WalletState) error {

	rows, err := tx.QueryContext(ctx,
		`SELECT account_number, psbt, signed_by, created_at_ns
		 FROM pending_txs ORDER BY position`,
	)
	if err != nil {
		return fmt.Errorf("read pending txs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ptx         wallet.PendingMultisigTx
			signedByRaw []byte
			createdNs   int64
		)
		err := rows.Scan(
			&ptx.AccountNumber, &ptx.Psbt, &signedByRaw,
			&createdNs,
		)
		if err != nil {
			return fmt.Errorf("scan pending tx: %w", err)
		}

		if signedByRaw != nil {
			err := json.Unmarshal(signedByRaw, &ptx.SignedBy)
			if err != nil {
				return fmt.Errorf("signed_by column: %w", err)
			}
		}
		ptx.CreatedAt = time.Unix(0, createdNs).UTC()

		state.PendingTxs = append(state.PendingTxs, ptx)
	}

	return rows.Err()
}

// ReplaceState atomically replaces the complete wallet state in a single
// transaction.
func (s *Store) ReplaceState(ctx context.Context,
	state *wallet.WalletState) error {

	return execInTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, table := range []string{
			"imported_keys", "pending_txs", "accounts",
			"wallet_meta",
		} {
			_, err := tx.ExecContext(
				ctx, "DELETE FROM "+table,
			)
			if err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		coreRaw, err := json.Marshal(&state.Core)
		if err != nil {
			return fmt.Errorf("marshal core: %w", err)
		}
		settingsRaw, err := json.Marshal(&state.Settings)
		if err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO wallet_meta (id, core, settings)
			 VALUES (1, ?, ?)`,
			coreRaw, settingsRaw,
		)
		if err != nil {
			return fmt.Errorf("write wallet meta: %w", err)
		}

		for i := range state.Accounts {
			acct := &state.Accounts[i]

			multisigCol, err := marshalJSON(
				acct.Multisig, acct.Multisig == nil,
			)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO accounts (account_number, name,
					account_type, address_type,
					next_external_index,
					next_internal_index, multisig)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				acct.AccountNumber, acct.Name,
				uint8(acct.Type), uint8(acct.AddressType),
				acct.NextExternalIndex,
				acct.NextInternalIndex, multisigCol,
			)
			if err != nil {
				return fmt.Errorf("write account %d: %w",
					acct.AccountNumber, err)
			}
		}

		for num, blob := range state.ImportedKeys {
			raw, err := json.Marshal(blob)
			if err != nil {
				return fmt.Errorf("marshal key blob: %w", err)
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO imported_keys (account_number,
					key_blob)
				 VALUES (?, ?)`,
				num, raw,
			)
			if err != nil {
				return fmt.Errorf("write imported key "+
					"%d: %w", num, err)
			}
		}

		for i := range state.PendingTxs {
			ptx := &state.PendingTxs[i]

			signedByCol, err := marshalJSON(
				ptx.SignedBy, len(ptx.SignedBy) == 0,
			)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO pending_txs (position,
					account_number, psbt, signed_by,
					created_at_ns)
				 VALUES (?, ?, ?, ?, ?)`,
				i, ptx.AccountNumber, ptx.Psbt, signedByCol,
				ptx.CreatedAt.UnixNano(),
			)
			if err != nil {
				return fmt.Errorf("write pending tx %d: %w",
					i, err)
			}
		}

		return nil
	})
}

// ListContacts returns every saved contact.
func (s *Store) ListContacts(ctx context.Context) ([]wallet.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT contact_id, name, address, tags, created_at_ns
		 FROM contacts ORDER BY contact_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("read contacts: %w", err)
	}
	defer rows.Close()

	var contacts []wallet.Contact
	for rows.Next() {
		var (
			c         wallet.Contact
			tagsRaw   []byte
			createdNs int64
		)
		err := rows.Scan(
			&c.ID, &c.Name, &c.Address, &tagsRaw, &createdNs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}

		if tagsRaw != nil {
			if err := json.Unmarshal(tagsRaw, &c.Tags); err != nil {
				return nil, fmt.Errorf("tags column: %w", err)
			}
		}
		c.CreatedAt = time.Unix(0, createdNs).UTC()

		contacts = append(contacts, c)
	}

	return contacts, rows.Err()
}

// ReplaceContacts atomically replaces the full contact list.
func (s *Store) ReplaceContacts(ctx context.Context,
	contacts []wallet.Contact) error {

	return execInTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM contacts`)
		if err != nil {
			return fmt.Errorf("clear contacts: %w", err)
		}

		for i := range contacts {
			c := &contacts[i]

			tagsCol, err := marshalJSON(
				c.Tags, len(c.Tags) == 0,
			)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO contacts (contact_id, name,
					address, tags, created_at_ns)
				 VALUES (?, ?, ?, ?, ?)`,
				c.ID, c.Name, c.Address, tagsCol,
				c.CreatedAt.UnixNano(),
			)
			if err != nil {
				return fmt.Errorf("write contact %q: %w",
					c.ID, err)
			}
		}

		return nil
	})
}

// ListAnnotations returns every transaction annotation.
func (s *Store) ListAnnotations(
	ctx context.Context) ([]wallet.TxAnnotation, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT txid, category, tags, note
		 FROM tx_annotations ORDER BY txid`,
	)
	if err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}
	defer rows.Close()

	var annotations []wallet.TxAnnotation
	for rows.Next() {
		var (
			a       wallet.TxAnnotation
			tagsRaw []byte
		)
		err := rows.Scan(&a.TxID, &a.Category, &tagsRaw, &a.Note)
		if err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}

		if tagsRaw != nil {
			if err := json.Unmarshal(tagsRaw, &a.Tags); err != nil {
				return nil, fmt.Errorf("tags column: %w", err)
			}
		}

		annotations = append(annotations, a)
	}

	return annotations, rows.Err()
}

// ReplaceAnnotations atomically replaces all transaction annotations.
func (s *Store) ReplaceAnnotations(ctx context.Context,
	annotations []wallet.TxAnnotation) error {

	return execInTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM tx_annotations`)
		if err != nil {
			return fmt.Errorf("clear annotations: %w", err)
		}

		for i := range annotations {
			a := &annotations[i]

			tagsCol, err := marshalJSON(
				a.Tags, len(a.Tags) == 0,
			)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO tx_annotations (txid, category,
					tags, note)
				 VALUES (?, ?, ?, ?)`,
				a.TxID, a.Category, tagsCol, a.Note,
			)
			if err != nil {
				return fmt.Errorf("write annotation %q: %w",
					a.TxID, err)
			}
		}

		return nil
	})
}

// RestoreAttempts returns the persisted rate-limiter counter state.
func (s *Store) RestoreAttempts(
	ctx context.Context) (*wallet.RestoreAttempts, bool, error) {

	row := s.db.QueryRowContext(ctx,
		`SELECT attempt_count, first_attempt_ns
		 FROM restore_attempts WHERE id = 1`,
	)

	var (
		count   uint32
		firstNs int64
	)
	err := row.Scan(&count, &firstNs)
	switch {
	case err == sql.ErrNoRows:
		return nil, false, nil

	case err != nil:
		return nil, false, fmt.Errorf("read attempts: %w", err)
	}

	return &wallet.RestoreAttempts{
		Count:        count,
		FirstAttempt: time.Unix(0, firstNs).UTC(),
	}, true, nil
}

// PutRestoreAttempts persists the rate-limiter counter state.
func (s *Store) PutRestoreAttempts(ctx context.Context,
	attempts *wallet.RestoreAttempts) error {

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO restore_attempts (id, attempt_count,
			first_attempt_ns)
		 VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			attempt_count = excluded.attempt_count,
			first_attempt_ns = excluded.first_attempt_ns`,
		attempts.Count, attempts.FirstAttempt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("write attempts: %w", err)
	}

	return nil
}

// ClearRestoreAttempts removes the rate-limiter counter state.
func (s *Store) ClearRestoreAttempts(ctx context.Context) error {
	_, err := s.db.ExecContext(
		ctx, `DELETE FROM restore_attempts WHERE id = 1`,
	)
	if err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}

	return nil
}
