package pwcrypt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// testIterations keeps key derivation cheap enough for the unit tests
// while staying above the enforced floor.
const testIterations = MinIterations

// TestDeriveKeyDeterministic asserts that the same password, salt and
// iteration count always produce the same key, and that changing any one
// input changes the output.
func TestDeriveKeyDeterministic(t *testing.T) {
	t.Parallel()

	password := []byte("correct horse battery staple")
	salt := bytes.Repeat([]byte{0x42}, SaltSize)

	key1, err := DeriveKey(password, salt, testIterations)
	require.NoError(t, err)
	require.Len(t, key1, KeySize)

	key2, err := DeriveKey(password, salt, testIterations)
	require.NoError(t, err)
	require.Equal(t, key1, key2)

	otherSalt := bytes.Repeat([]byte{0x43}, SaltSize)
	key3, err := DeriveKey(password, otherSalt, testIterations)
	require.NoError(t, err)
	require.NotEqual(t, key1, key3)

	key4, err := DeriveKey([]byte("other password"), salt, testIterations)
	require.NoError(t, err)
	require.NotEqual(t, key1, key4)
}

// TestDeriveKeyRejectsBadParams asserts that unusable derivation inputs
// are rejected up front.
func TestDeriveKeyRejectsBadParams(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		salt       []byte
		iterations int
	}{
		{
			name:       "empty salt",
			salt:       nil,
			iterations: testIterations,
		},
		{
			name:       "downgraded iteration count",
			salt:       make([]byte, SaltSize),
			iterations: MinIterations - 1,
		},
		{
			name:       "zero iterations",
			salt:       make([]byte, SaltSize),
			iterations: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := DeriveKey(
				[]byte("pw"), tc.salt, tc.iterations,
			)
			require.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

// TestEncryptDecryptRoundTrip asserts that a sealed payload opens back to
// the original plaintext with the right key.
func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x07}, KeySize)
	plaintext := []byte("seed material \xf0\x9f\x94\x91 and more")

	blob, err := EncryptWithKey(plaintext, key)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, blob.Ciphertext)

	got, err := DecryptWithKey(blob, key)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

// TestEncryptFreshNonce asserts that sealing the same plaintext twice
// under the same key never reuses a nonce, and so never produces the same
// ciphertext.
func TestEncryptFreshNonce(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x07}, KeySize)
	plaintext := []byte("same plaintext")

	blob1, err := EncryptWithKey(plaintext, key)
	require.NoError(t, err)

	blob2, err := EncryptWithKey(plaintext, key)
	require.NoError(t, err)

	require.NotEqual(t, blob1.Nonce, blob2.Nonce)
	require.NotEqual(t, blob1.Ciphertext, blob2.Ciphertext)
}

// TestDecryptWrongKeyFails asserts that opening with the wrong key
// surfaces the authentication sentinel rather than garbage plaintext.
func TestDecryptWrongKeyFails(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x07}, KeySize)
	blob, err := EncryptWithKey([]byte("payload"), key)
	require.NoError(t, err)

	wrongKey := bytes.Repeat([]byte{0x08}, KeySize)
	_, err = DecryptWithKey(blob, wrongKey)
	require.ErrorIs(t, err, ErrAuthFailure)
}

// TestDecryptTamperedCiphertextFails asserts that flipping any bit of the
// ciphertext makes the open fail authentication.
func TestDecryptTamperedCiphertextFails(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x07}, KeySize)
	blob, err := EncryptWithKey([]byte("payload"), key)
	require.NoError(t, err)

	blob.Ciphertext[0] ^= 0x01

	_, err = DecryptWithKey(blob, key)
	require.ErrorIs(t, err, ErrAuthFailure)
}

// TestPasswordRoundTrip exercises the password-level API end to end,
// including the stored salt and iteration count.
func TestPasswordRoundTrip(t *testing.T) {
	t.Parallel()

	password := []byte("a sufficiently long password")
	plaintext := []byte("wallet backup payload")

	blob, err := Encrypt(
		plaintext, password, &Options{Iterations: testIterations},
	)
	require.NoError(t, err)
	require.Len(t, blob.Salt, SaltSize)
	require.Equal(t, testIterations, blob.Iterations)

	got, err := Decrypt(blob, password)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)

	_, err = Decrypt(blob, []byte("not the password"))
	require.ErrorIs(t, err, ErrAuthFailure)
}
