package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btcsuite/btcvault/pwcrypt"
	"github.com/btcsuite/btcvault/wallet"
)

// setupTestStore creates a store backed by a temporary database file
// with migrations applied.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

// testBlob seals plaintext with a cheap iteration count.
func testBlob(t *testing.T, plaintext []byte) *pwcrypt.Blob {
	t.Helper()

	blob, err := pwcrypt.Encrypt(
		plaintext, []byte("unlock passphrase"),
		&pwcrypt.Options{Iterations: pwcrypt.MinIterations},
	)
	require.NoError(t, err)

	return blob
}

// TestWalletStateRoundTrip asserts that ReplaceState followed by
// ReadState reproduces every account field, including the derivation
// counters, and the nested multisig config.
func TestWalletStateRoundTrip(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	created := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	state := &wallet.WalletState{
		Core: wallet.WalletCore{
			EncryptedSeed: testBlob(t, []byte("seed bytes")),
		},
		Accounts: []wallet.Account{
			{
				AccountNumber:     0,
				Name:              "default",
				Type:              wallet.AccountHD,
				AddressType:       wallet.Taproot,
				NextExternalIndex: 42,
				NextInternalIndex: 13,
			},
			{
				AccountNumber: 1,
				Name:          "shared",
				Type:          wallet.AccountMultisig,
				AddressType:   wallet.ScriptHash,
				Multisig: &wallet.MultisigInfo{
					RequiredSigs: 2,
					TotalSigners: 3,
					Cosigners: []wallet.Cosigner{
						{Name: "us", XPub: "xpub-a"},
						{Name: "a", XPub: "xpub-b"},
						{Name: "b", XPub: "xpub-c"},
					},
					SortedKeys: true,
				},
			},
			{
				AccountNumber: 2,
				Name:          "cold",
				Type:          wallet.AccountImportedKey,
			},
		},
		ImportedKeys: map[uint32]*pwcrypt.Blob{
			2: testBlob(t, []byte("raw key")),
		},
		PendingTxs: []wallet.PendingMultisigTx{
			{
				AccountNumber: 1,
				Psbt:          "cHNidP8BAAAA",
				SignedBy:      map[string]uint32{"02ab": 1},
				CreatedAt:     created,
			},
		},
		Settings: wallet.Settings{
			FiatCurrency: "USD",
			FeeLevel:     "medium",
		},
	}

	require.NoError(t, store.ReplaceState(ctx, state))

	got, err := store.ReadState(ctx)
	require.NoError(t, err)
	require.Equal(t, state.Core, got.Core)
	require.Equal(t, state.Accounts, got.Accounts)
	require.Equal(t, state.ImportedKeys, got.ImportedKeys)
	require.Equal(t, state.Settings, got.Settings)

	require.Len(t, got.PendingTxs, 1)
	gotTx := got.PendingTxs[0]
	wantTx := state.PendingTxs[0]
	require.Equal(t, wantTx.AccountNumber, gotTx.AccountNumber)
	require.Equal(t, wantTx.Psbt, gotTx.Psbt)
	require.Equal(t, wantTx.SignedBy, gotTx.SignedBy)
	require.True(t, wantTx.CreatedAt.Equal(gotTx.CreatedAt))
}

// TestReplaceStateDropsOldRows asserts that a replace clears everything
// written before, as a restore requires.
func TestReplaceStateDropsOldRows(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	first := &wallet.WalletState{
		Accounts: []wallet.Account{
			{
				AccountNumber: 0,
				Name:          "old",
				Type:          wallet.AccountImportedKey,
			},
		},
		ImportedKeys: map[uint32]*pwcrypt.Blob{
			0: testBlob(t, []byte("old key")),
		},
	}
	require.NoError(t, store.ReplaceState(ctx, first))

	second := &wallet.WalletState{
		Accounts: []wallet.Account{
			{
				AccountNumber: 5,
				Name:          "new",
				Type:          wallet.AccountHD,
			},
		},
	}
	require.NoError(t, store.ReplaceState(ctx, second))

	got, err := store.ReadState(ctx)
	require.NoError(t, err)
	require.Len(t, got.Accounts, 1)
	require.Equal(t, "new", got.Accounts[0].Name)
	require.Empty(t, got.ImportedKeys)
}

// TestEmptyState asserts that a fresh database reads back as an empty
// state.
func TestEmptyState(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)

	state, err := store.ReadState(context.Background())
	require.NoError(t, err)
	require.Empty(t, state.Accounts)
	require.False(t, state.Core.HasSeed())
}

// TestContactsRoundTrip asserts contact persistence including tag maps
// and timestamps.
func TestContactsRoundTrip(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	created := time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC)
	contacts := []wallet.Contact{
		{
			ID:        "a",
			Name:      "Alice",
			Address:   "tb1qsomeaddress",
			Tags:      map[string]string{"group": "work"},
			CreatedAt: created,
		},
		{
			ID:        "b",
			Name:      "Bob",
			Address:   "tb1qotheraddress",
			CreatedAt: created,
		},
	}

	require.NoError(t, store.ReplaceContacts(ctx, contacts))

	got, err := store.ListContacts(ctx)
	require.NoError(t, err)
	require.Equal(t, contacts, got)
}

// TestAnnotationsRoundTrip asserts annotation persistence including
// non-ASCII notes.
func TestAnnotationsRoundTrip(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	annotations := []wallet.TxAnnotation{
		{
			TxID: "3e2a2434be776b5f6a340cbba8b8d31f3b5e85312bcc" +
				"45061fab28ebf5b6e29d",
			Category: "rent",
			Tags:     []string{"monthly"},
			Note:     "landlord \U0001F3E0 October",
		},
	}

	require.NoError(t, store.ReplaceAnnotations(ctx, annotations))

	got, err := store.ListAnnotations(ctx)
	require.NoError(t, err)
	require.Equal(t, annotations, got)
}

// TestRestoreAttemptsPersistence asserts the rate-limiter counters are
// durable and clearable.
func TestRestoreAttemptsPersistence(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	_, found, err := store.RestoreAttempts(ctx)
	require.NoError(t, err)
	require.False(t, found)

	first := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	attempts := &wallet.RestoreAttempts{Count: 2, FirstAttempt: first}
	require.NoError(t, store.PutRestoreAttempts(ctx, attempts))

	// Overwrite bumps the count in place.
	attempts.Count = 3
	require.NoError(t, store.PutRestoreAttempts(ctx, attempts))

	got, found, err := store.RestoreAttempts(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(3), got.Count)
	require.True(t, first.Equal(got.FirstAttempt))

	require.NoError(t, store.ClearRestoreAttempts(ctx))
	_, found, err = store.RestoreAttempts(ctx)
	require.NoError(t, err)
	require.False(t, found)
}
