// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

const (
	// ContainerVersion is the format version written into new
	// containers.
	ContainerVersion = 2

	// MinCompatVersion is the oldest container format this build can
	// read.
	MinCompatVersion = 1

	// MaxContainerSize bounds the serialized container. Anything
	// larger is rejected before parsing to cap memory use on hostile
	// input.
	MaxContainerSize = 32 << 20 // 32 MiB

	// ChecksumAlgorithm identifies the checksum function in the
	// container.
	ChecksumAlgorithm = "sha256"

	// CipherAlgorithm identifies the AEAD in the container.
	CipherAlgorithm = "aes-256-gcm"

	// KDFAlgorithm identifies the key derivation function in the
	// container.
	KDFAlgorithm = "pbkdf2-sha256"

	// NetworkMainnet and NetworkTestnet are the network identifiers
	// written into headers and payloads.
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// networkName maps chain parameters to the network identifier used in
// backup containers. Every non-mainnet network (testnet3, regtest,
// signet, simnet) is grouped as testnet: none of them carry mainnet
// funds, and the gate exists to keep mainnet and not-mainnet key
// material apart.
func networkName(params *chaincfg.Params) string {
	if params.Net == chaincfg.MainNetParams.Net {
		return NetworkMainnet
	}
	return NetworkTestnet
}

// Header is the cleartext descriptive block of a container. Everything
// in it is verifiable or rejectable without the backup password.
type Header struct {
	// Version is the container format version.
	Version uint32 `json:"version"`

	// Network is the network the backup was created on.
	Network string `json:"network"`

	// CreatedAt is when the backup was exported.
	CreatedAt time.Time `json:"createdAt"`

	// MinVersion hints the oldest reader version able to restore this
	// container.
	MinVersion uint32 `json:"minVersion"`

	// AppVersion is an informational application version string. Never
	// used for gating.
	AppVersion string `json:"appVersion,omitempty"`
}

// Encryption carries the non-secret cryptographic parameters of the
// container.
type Encryption struct {
	// Salt is the KDF salt, freshly generated per export.
	Salt []byte `json:"salt"`

	// IV is the AEAD nonce.
	IV []byte `json:"iv"`

	// PBKDF2Iterations is the KDF iteration count. Stored so future
	// exports can raise the work factor without breaking old imports.
	PBKDF2Iterations int `json:"pbkdf2Iterations"`

	// Cipher identifies the AEAD algorithm.
	Cipher string `json:"cipher"`

	// KDF identifies the key derivation algorithm.
	KDF string `json:"kdf"`
}

// Checksum is a hash over the ciphertext, stored in the clear so
// corruption is detectable before a single KDF pass is spent.
type Checksum struct {
	// Algorithm identifies the hash function.
	Algorithm string `json:"algorithm"`

	// Hash is the hex-encoded digest of EncryptedData.
	Hash string `json:"hash"`
}

// EncryptedContainer is the single unit of exchange of the backup
// system: one JSON document holding a cleartext header, the encryption
// parameters, the ciphertext of the serialized payload and a ciphertext
// checksum. A container is created once per export and is immutable.
type EncryptedContainer struct {
	Header        Header     `json:"header"`
	Encryption    Encryption `json:"encryption"`
	EncryptedData []byte     `json:"encryptedData"`
	Checksum      Checksum   `json:"checksum"`
}

// Serialize encodes the container to its JSON wire form.
func (c *EncryptedContainer) Serialize() ([]byte, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, newError(ErrMalformed, "encode container", err)
	}
	return raw, nil
}

// ParseContainer decodes a container from its JSON wire form, enforcing
// the size bound and the structural invariants. It does not verify the
// checksum; that is the import pipeline's third gate.
func ParseContainer(raw []byte) (*EncryptedContainer, error) {
	if len(raw) > MaxContainerSize {
		return nil, newError(ErrMalformed, fmt.Sprintf(
			"container is %d bytes, limit is %d", len(raw),
			MaxContainerSize,
		), nil)
	}

	var c EncryptedContainer
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, newError(ErrMalformed, "decode container", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// validate checks the structural invariants of a container: every
// required field present and the algorithm identifiers recognized.
func (c *EncryptedContainer) validate() error {
	switch {
	case c.Header.Version == 0:
		return newError(ErrMalformed, "missing header version", nil)

	case c.Header.Network != NetworkMainnet &&
		c.Header.Network != NetworkTestnet:

		return newError(ErrMalformed, fmt.Sprintf(
			"unknown network %q", c.Header.Network), nil)

	case len(c.Encryption.Salt) == 0:
		return newError(ErrMalformed, "missing encryption salt", nil)

	case len(c.Encryption.IV) == 0:
		return newError(ErrMalformed, "missing encryption iv", nil)

	case c.Encryption.PBKDF2Iterations <= 0:
		return newError(ErrMalformed, "missing kdf iterations", nil)

	case c.Encryption.Cipher != CipherAlgorithm:
		return newError(ErrMalformed, fmt.Sprintf(
			"unknown cipher %q", c.Encryption.Cipher), nil)

	case c.Encryption.KDF != KDFAlgorithm:
		return newError(ErrMalformed, fmt.Sprintf(
			"unknown kdf %q", c.Encryption.KDF), nil)

	case len(c.EncryptedData) == 0:
		return newError(ErrMalformed, "missing encrypted data", nil)

	case c.Checksum.Algorithm != ChecksumAlgorithm:
		return newError(ErrMalformed, fmt.Sprintf(
			"unknown checksum algorithm %q",
			c.Checksum.Algorithm), nil)

	case c.Checksum.Hash == "":
		return newError(ErrMalformed, "missing checksum", nil)
	}

	if len(c.EncryptedData) > MaxContainerSize {
		return newError(ErrMalformed, "encrypted data exceeds size "+
			"limit", nil)
	}

	return nil
}

// computeChecksum hashes ciphertext bytes into the hex form stored in
// the container.
func computeChecksum(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// verifyChecksum recomputes the ciphertext digest and compares it to the
// stored value in constant time.
func (c *EncryptedContainer) verifyChecksum() bool {
	want, err := hex.DecodeString(c.Checksum.Hash)
	if err != nil || len(want) != sha256.Size {
		return false
	}

	got := sha256.Sum256(c.EncryptedData)
	return subtle.ConstantTimeCompare(got[:], want) == 1
}
