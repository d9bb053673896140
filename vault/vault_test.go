// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/stretchr/testify/require"

	"github.com/btcsuite/btcvault/pwcrypt"
	"github.com/btcsuite/btcvault/wallet"
	"github.com/btcsuite/btcvault/wallet/kvstore"
)

var (
	testnetParams = &chaincfg.TestNet3Params

	// testKDF keeps key derivation cheap in tests.
	testKDF = &pwcrypt.Options{Iterations: pwcrypt.MinIterations}

	testUnlockPass = []byte("unlock passphrase")
	testBackupPass = []byte("backup password 123")
)

// testClock is an injectable clock for driving the rate-limit window.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// testHarness bundles an engine with its backing store and clock.
type testHarness struct {
	engine *Engine
	store  *kvstore.Store
	clock  *testClock
}

// setupTestStore creates a kvstore backed by a temporary database.
func setupTestStore(t *testing.T) *kvstore.Store {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "vault-test-*.db")
	require.NoError(t, err)

	dbPath := f.Name()
	require.NoError(t, f.Close())
	require.NoError(t, os.Remove(dbPath))

	db, err := walletdb.Create("bdb", dbPath, true, time.Second*10, false)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	store, err := kvstore.NewStore(db)
	require.NoError(t, err)

	return store
}

// newTestHarness creates an engine over a fresh store with an injected
// clock. The mutate hook can tweak the config before the engine is
// built.
func newTestHarness(t *testing.T,
	mutate func(cfg *Config)) *testHarness {

	t.Helper()

	store := setupTestStore(t)
	clock := &testClock{
		now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	cfg := &Config{
		ChainParams: testnetParams,
		Stores: wallet.Stores{
			Wallet:   store,
			Contacts: store,
			TxMeta:   store,
			Attempts: store,
		},
		KDFOptions: testKDF,
		AppVersion: "2.1.0",
		Clock:      clock.Now,
	}
	if mutate != nil {
		mutate(cfg)
	}

	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	return &testHarness{engine: engine, store: store, clock: clock}
}

// testBlob seals plaintext under the unlock passphrase with the cheap
// test KDF.
func testBlob(t *testing.T, plaintext []byte) *pwcrypt.Blob {
	t.Helper()

	blob, err := pwcrypt.Encrypt(plaintext, testUnlockPass, testKDF)
	require.NoError(t, err)

	return blob
}

// testXPub derives a deterministic account-level extended public key.
func testXPub(t *testing.T, seedByte byte) string {
	t.Helper()

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = seedByte
	}

	master, err := hdkeychain.NewMaster(seed, testnetParams)
	require.NoError(t, err)

	acct, err := master.Derive(hdkeychain.HardenedKeyStart)
	require.NoError(t, err)

	xpub, err := acct.Neuter()
	require.NoError(t, err)

	return xpub.String()
}

// testPubKeyHex returns a deterministic hex compressed public key.
func testPubKeyHex(t *testing.T, keyByte byte) string {
	t.Helper()

	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = keyByte
	}
	_, pub := btcec.PrivKeyFromBytes(raw)

	return fmt.Sprintf("%x", pub.SerializeCompressed())
}

// testAddress returns a valid P2WPKH address for the test network.
func testAddress(t *testing.T, fill byte) string {
	t.Helper()

	hash := make([]byte, 20)
	for i := range hash {
		hash[i] = fill
	}

	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		hash, testnetParams,
	)
	require.NoError(t, err)

	return addr.EncodeAddress()
}

// testPendingTx builds a pending multisig transaction with a fixed
// creation time.
func testPendingTx(t *testing.T, accountNumber uint32) wallet.PendingMultisigTx {
	t.Helper()

	prevHash, err := chainhash.NewHashFromStr(
		"1dea0d2bf49cc0ded7dd8d8c48e7b636a1eed5598c6dd25ce3e35bbf" +
			"15e7a0c3",
	)
	require.NoError(t, err)

	outPoint := wire.NewOutPoint(prevHash, 1)
	txOut := wire.NewTxOut(90_000, []byte{0x00, 0x14})

	packet, err := psbt.New(
		[]*wire.OutPoint{outPoint}, []*wire.TxOut{txOut}, 2, 0,
		[]uint32{wire.MaxTxInSequenceNum},
	)
	require.NoError(t, err)

	ptx, err := wallet.NewPendingMultisigTx(accountNumber, packet)
	require.NoError(t, err)

	ptx.SignedBy = map[string]uint32{testPubKeyHex(t, 5): 1}
	ptx.CreatedAt = time.Date(2025, 5, 20, 8, 30, 0, 0, time.UTC)

	return *ptx
}

// seedWallet populates the harness with a fully featured wallet: three
// HD accounts, a 2-of-3 multisig account with one in-flight transaction,
// two imported accounts, five contacts and ten annotations.
func seedWallet(t *testing.T, h *testHarness) {
	t.Helper()

	ctx := context.Background()
	seed := []byte("thirty two bytes of seed here!!!")

	state := &wallet.WalletState{
		Core: wallet.WalletCore{
			EncryptedSeed: testBlob(t, seed),
		},
		Accounts: []wallet.Account{
			{
				AccountNumber:     0,
				Name:              "default",
				Type:              wallet.AccountHD,
				AddressType:       wallet.WitnessPubKey,
				NextExternalIndex: 12,
				NextInternalIndex: 5,
			},
			{
				AccountNumber:     1,
				Name:              "savings",
				Type:              wallet.AccountHD,
				AddressType:       wallet.Taproot,
				NextExternalIndex: 3,
			},
			{
				AccountNumber: 2,
				Name:          "legacy",
				Type:          wallet.AccountHD,
				AddressType:   wallet.PubKeyHash,
			},
			{
				AccountNumber: 3,
				Name:          "shared",
				Type:          wallet.AccountMultisig,
				AddressType:   wallet.ScriptHash,
				Multisig: &wallet.MultisigInfo{
					RequiredSigs: 2,
					TotalSigners: 3,
					Cosigners: []wallet.Cosigner{
						{
							Name: "us",
							XPub: testXPub(t, 1),
						},
						{
							Name: "alice",
							XPub: testXPub(t, 2),
						},
						{
							Name: "bob",
							XPub: testXPub(t, 3),
						},
					},
					SortedKeys: true,
				},
			},
			{
				AccountNumber: 4,
				Name:          "cold key",
				Type:          wallet.AccountImportedKey,
				AddressType:   wallet.WitnessPubKey,
			},
			{
				AccountNumber: 5,
				Name:          "paper seed",
				Type:          wallet.AccountImportedSeed,
				AddressType:   wallet.PubKeyHash,
			},
		},
		ImportedKeys: map[uint32]*pwcrypt.Blob{
			4: testBlob(t, []byte("imported private key")),
			5: testBlob(t, []byte("imported foreign seed")),
		},
		PendingTxs: []wallet.PendingMultisigTx{
			testPendingTx(t, 3),
		},
		Settings: wallet.Settings{
			FiatCurrency:        "EUR",
			FeeLevel:            "medium",
			HideBalances:        true,
			AddressReuseWarning: true,
		},
	}
	require.NoError(t, state.Validate(testnetParams))
	require.NoError(t, h.store.ReplaceState(ctx, state))

	created := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	contacts := make([]wallet.Contact, 0, 5)
	for i := byte(1); i <= 5; i++ {
		contacts = append(contacts, wallet.Contact{
			ID:        fmt.Sprintf("c%d", i),
			Name:      fmt.Sprintf("contact %d", i),
			Address:   testAddress(t, i),
			Tags:      map[string]string{"group": "friends"},
			CreatedAt: created,
		})
	}
	require.NoError(t, h.store.ReplaceContacts(ctx, contacts))

	annotations := make([]wallet.TxAnnotation, 0, 10)
	for i := 1; i <= 10; i++ {
		annotations = append(annotations, wallet.TxAnnotation{
			TxID:     fmt.Sprintf("%064x", i),
			Category: "groceries",
			Tags:     []string{"food"},
			Note:     fmt.Sprintf("note %d ☕ émojis", i),
		})
	}
	require.NoError(t, h.store.ReplaceAnnotations(ctx, annotations))
}

// TestExportImportRoundTrip exports a fully featured wallet, moves the
// container through its wire form and imports it into a fresh wallet,
// asserting the restored state matches the original exactly.
func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	source := newTestHarness(t, nil)
	seedWallet(t, source)

	container, err := source.engine.Export(
		ctx, testUnlockPass, testBackupPass,
	)
	require.NoError(t, err)
	require.Equal(t, uint32(ContainerVersion), container.Header.Version)
	require.Equal(t, NetworkTestnet, container.Header.Network)
	require.Equal(t, "2.1.0", container.Header.AppVersion)

	// Through the wire form, as a real backup file would travel.
	raw, err := container.Serialize()
	require.NoError(t, err)

	parsed, err := ParseContainer(raw)
	require.NoError(t, err)

	target := newTestHarness(t, nil)
	summary, err := target.engine.Import(ctx, parsed, testBackupPass)
	require.NoError(t, err)

	require.Equal(t, 6, summary.Accounts)
	require.Equal(t, 5, summary.Contacts)
	require.Equal(t, 10, summary.Annotations)
	require.Equal(t, 1, summary.PendingTxs)
	require.True(t, summary.HasImportedKeys)
	require.True(t, summary.HasMultisig)
	require.False(t, summary.NonHD)
	require.Empty(t, summary.Renamed)

	wantState, err := source.store.ReadState(ctx)
	require.NoError(t, err)
	gotState, err := target.store.ReadState(ctx)
	require.NoError(t, err)
	require.Equal(t, wantState, gotState)

	// The restored seed still opens under the original unlock
	// passphrase.
	seed, err := gotState.Core.UnlockSeed(testUnlockPass)
	require.NoError(t, err)
	require.Equal(t, []byte("thirty two bytes of seed here!!!"), seed)

	wantContacts, err := source.store.ListContacts(ctx)
	require.NoError(t, err)
	gotContacts, err := target.store.ListContacts(ctx)
	require.NoError(t, err)
	require.Equal(t, wantContacts, gotContacts)

	wantNotes, err := source.store.ListAnnotations(ctx)
	require.NoError(t, err)
	gotNotes, err := target.store.ListAnnotations(ctx)
	require.NoError(t, err)
	require.Equal(t, wantNotes, gotNotes)
}

// TestExportDeterministicPayload asserts that two exports of the same
// state encrypt the same payload bytes even though salt and nonce are
// fresh each time.
func TestExportDeterministicPayload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	h := newTestHarness(t, nil)
	seedWallet(t, h)

	first, err := h.engine.Export(ctx, testUnlockPass, testBackupPass)
	require.NoError(t, err)

	second, err := h.engine.Export(ctx, testUnlockPass, testBackupPass)
	require.NoError(t, err)

	require.NotEqual(t, first.Encryption.Salt, second.Encryption.Salt)
	require.NotEqual(t, first.Encryption.IV, second.Encryption.IV)

	decrypt := func(c *EncryptedContainer) []byte {
		plain, err := pwcrypt.Decrypt(&pwcrypt.Blob{
			Ciphertext: c.EncryptedData,
			Salt:       c.Encryption.Salt,
			Nonce:      c.Encryption.IV,
			Iterations: c.Encryption.PBKDF2Iterations,
		}, testBackupPass)
		require.NoError(t, err)
		return plain
	}

	require.Equal(t, decrypt(first), decrypt(second))
}

// TestExportPasswordPolicy asserts the backup password gates: minimum
// length and independence from the unlock passphrase.
func TestExportPasswordPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	h := newTestHarness(t, nil)
	seedWallet(t, h)

	// One character short of the minimum.
	_, err := h.engine.Export(
		ctx, testUnlockPass, []byte("elevenchars"),
	)
	require.True(t, IsError(err, ErrPolicyViolation))

	// Exactly the minimum passes the gate.
	_, err = h.engine.Export(
		ctx, testUnlockPass, []byte("twelve chars"),
	)
	require.NoError(t, err)

	// Reusing the unlock passphrase is rejected regardless of length.
	_, err = h.engine.Export(ctx, testUnlockPass, testUnlockPass)
	require.True(t, IsError(err, ErrPolicyViolation))
}

// TestExportWrongUnlock asserts that a seed-backed wallet refuses to
// export under a wrong unlock passphrase.
func TestExportWrongUnlock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	h := newTestHarness(t, nil)
	seedWallet(t, h)

	_, err := h.engine.Export(
		ctx, []byte("not the passphrase"), testBackupPass,
	)
	require.True(t, IsError(err, ErrAuthentication))
}

// TestEngineBusy asserts that only one backup operation runs at a time.
func TestEngineBusy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	h := newTestHarness(t, nil)
	seedWallet(t, h)

	require.NoError(t, h.engine.begin())

	_, err := h.engine.Export(ctx, testUnlockPass, testBackupPass)
	require.True(t, IsError(err, ErrBusy))

	h.engine.done()

	_, err = h.engine.Export(ctx, testUnlockPass, testBackupPass)
	require.NoError(t, err)
}
