// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// ErrInvalidPendingTx is returned when a pending multisig transaction
// record fails validation.
var ErrInvalidPendingTx = errors.New("invalid pending transaction")

// PendingMultisigTx is an in-flight multisig transaction: a partially
// signed transaction waiting for more cosigner signatures. The PSBT is
// stored in its base64 form so the record survives JSON serialization
// unchanged.
type PendingMultisigTx struct {
	// AccountNumber is the multisig account the transaction spends
	// from.
	AccountNumber uint32 `json:"accountNumber"`

	// Psbt is the base64-encoded partially signed transaction.
	Psbt string `json:"psbt"`

	// SignedBy tracks signature progress: hex cosigner public key to
	// the number of inputs that cosigner has signed.
	SignedBy map[string]uint32 `json:"signedBy,omitempty"`

	// CreatedAt is when the transaction was drafted.
	CreatedAt time.Time `json:"createdAt"`
}

// NewPendingMultisigTx wraps a PSBT packet into a pending transaction
// record for the given account.
func NewPendingMultisigTx(accountNumber uint32,
	packet *psbt.Packet) (*PendingMultisigTx, error) {

	encoded, err := packet.B64Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPendingTx, err)
	}

	return &PendingMultisigTx{
		AccountNumber: accountNumber,
		Psbt:          encoded,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Packet decodes the stored PSBT back into a packet.
func (p *PendingMultisigTx) Packet() (*psbt.Packet, error) {
	packet, err := psbt.NewFromRawBytes(strings.NewReader(p.Psbt), true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPendingTx, err)
	}
	return packet, nil
}

// Validate checks that the stored PSBT decodes and that every key in
// the signature progress map is a well-formed public key.
func (p *PendingMultisigTx) Validate() error {
	if p.Psbt == "" {
		return fmt.Errorf("%w: empty psbt", ErrInvalidPendingTx)
	}
	if _, err := p.Packet(); err != nil {
		return err
	}

	for pubHex := range p.SignedBy {
		if _, err := ParseCosignerKey(pubHex); err != nil {
			return fmt.Errorf("%w: signer key %q: %v",
				ErrInvalidPendingTx, pubHex, err)
		}
	}

	return nil
}
