// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pwcrypt provides password-based authenticated encryption for
// wallet backup data. Keys are derived with PBKDF2-SHA256 using a caller
// supplied iteration count, and payloads are sealed with AES-256-GCM so any
// modification of the ciphertext is detected at open time.
package pwcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of the derived symmetric key in bytes. A
	// 32-byte key selects AES-256.
	KeySize = 32

	// SaltSize is the size in bytes of the random salt generated for
	// each key derivation.
	SaltSize = 32

	// NonceSize is the size in bytes of the GCM nonce generated for each
	// encryption.
	NonceSize = 12

	// DefaultIterations is the PBKDF2 iteration count used for new
	// encryptions. The count is stored alongside the ciphertext so it
	// can be raised in future releases without breaking old blobs.
	DefaultIterations = 600_000

	// MinIterations is the lowest iteration count accepted when
	// decrypting. Blobs claiming fewer rounds than this are rejected
	// rather than silently honoring a downgraded work factor.
	MinIterations = 100_000
)

var (
	// ErrAuthFailure is returned when the GCM authentication tag does
	// not verify. The password being wrong and the ciphertext having
	// been modified are indistinguishable here.
	ErrAuthFailure = errors.New("message authentication failed")

	// ErrInvalidParams is returned when derivation or decryption inputs
	// are structurally unusable (empty salt, short nonce, bad iteration
	// count).
	ErrInvalidParams = errors.New("invalid crypto parameters")
)

// Options tunes the key derivation cost. A nil *Options selects
// DefaultOptions.
type Options struct {
	// Iterations is the PBKDF2 iteration count.
	Iterations int
}

// DefaultOptions is the derivation cost used for new encryptions in
// production.
var DefaultOptions = Options{
	Iterations: DefaultIterations,
}

// Blob bundles a ciphertext with the non-secret parameters needed to
// decrypt it again: the KDF salt, the GCM nonce and the PBKDF2 iteration
// count that produced the key.
type Blob struct {
	// Ciphertext is the sealed payload, including the GCM tag.
	Ciphertext []byte `json:"ciphertext"`

	// Salt is the random salt the key was derived with. Empty when the
	// blob was sealed with EncryptWithKey.
	Salt []byte `json:"salt,omitempty"`

	// Nonce is the random GCM nonce used for this encryption.
	Nonce []byte `json:"nonce"`

	// Iterations is the PBKDF2 iteration count used to derive the key.
	// Zero when the blob was sealed with EncryptWithKey.
	Iterations int `json:"iterations,omitempty"`
}

// DeriveKey stretches a password into a 32-byte AES key using
// PBKDF2-SHA256. It is deterministic: the same password, salt and
// iteration count always yield the same key.
func DeriveKey(password, salt []byte, iterations int) ([]byte, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: empty salt", ErrInvalidParams)
	}
	if iterations < MinIterations {
		return nil, fmt.Errorf("%w: iteration count %d below "+
			"minimum %d", ErrInvalidParams, iterations,
			MinIterations)
	}

	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New), nil
}

// Encrypt derives a fresh key from the password with a newly generated
// salt and seals the plaintext with AES-256-GCM. The returned blob carries
// everything except the password needed to decrypt.
func Encrypt(plaintext, password []byte, opts *Options) (*Blob, error) {
	if opts == nil {
		opts = &DefaultOptions
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key, err := DeriveKey(password, salt, opts.Iterations)
	if err != nil {
		return nil, err
	}

	blob, err := EncryptWithKey(plaintext, key)
	if err != nil {
		return nil, err
	}

	blob.Salt = salt
	blob.Iterations = opts.Iterations

	return blob, nil
}

// EncryptWithKey seals the plaintext with AES-256-GCM under an already
// derived key, generating a fresh random nonce. A nonce is never reused
// for a given key because each call draws a new one from crypto/rand.
func EncryptWithKey(plaintext, key []byte) (*Blob, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return &Blob{
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
		Nonce:      nonce,
	}, nil
}

// Decrypt re-derives the key from the password and the blob's stored salt
// and iteration count, then opens the ciphertext. A wrong password and a
// tampered ciphertext both surface as ErrAuthFailure.
func Decrypt(blob *Blob, password []byte) ([]byte, error) {
	key, err := DeriveKey(password, blob.Salt, blob.Iterations)
	if err != nil {
		return nil, err
	}

	return DecryptWithKey(blob, key)
}

// DecryptWithKey opens a blob with an already derived key, verifying the
// GCM authentication tag before returning any plaintext.
func DecryptWithKey(blob *Blob, key []byte) ([]byte, error) {
	if len(blob.Nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes, want %d",
			ErrInvalidParams, len(blob.Nonce), NonceSize)
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		// cipher.AEAD reports all open failures with one opaque
		// error; map it to our sentinel so callers can branch on it.
		return nil, ErrAuthFailure
	}

	return plaintext, nil
}

// newAEAD constructs the AES-256-GCM primitive for a 32-byte key.
func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d",
			ErrInvalidParams, len(key), KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	return cipher.NewGCM(block)
}
