// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcvault/pwcrypt"
	"github.com/btcsuite/btcvault/wallet"
)

const (
	// PayloadVersion is the payload schema version written by this
	// build. Readers accept anything up to and including this value;
	// newer payloads are rejected rather than partially parsed.
	//
	// Version history:
	//  1: core, accounts, imported keys, contacts, settings.
	//  2: pending multisig transactions.
	//  3: transaction annotations.
	PayloadVersion = 3
)

// Metadata records the item counts of every payload substructure. The
// counts are populated from the actual collections at export time and
// serve restore-summary reporting plus a soft consistency check; they
// are never the source of truth.
type Metadata struct {
	AccountCount     int `json:"accountCount"`
	ImportedKeyCount int `json:"importedKeyCount"`
	PendingTxCount   int `json:"pendingTxCount"`
	ContactCount     int `json:"contactCount"`
	AnnotationCount  int `json:"annotationCount"`
}

// BackupPayload is the plaintext structure of a backup. It only ever
// exists in memory: on export it is serialized and immediately
// encrypted, on import it is materialized after a successful decrypt and
// discarded once distributed into the stores.
type BackupPayload struct {
	// Version is the payload schema version.
	Version uint32 `json:"version"`

	// Network is the network the state belongs to. Must agree with the
	// container header; a mismatch is treated as tampering.
	Network string `json:"network"`

	// Core is the wallet's encrypted seed block. An empty core marks a
	// non-HD wallet.
	Core wallet.WalletCore `json:"core"`

	// Accounts is the complete account list.
	Accounts []wallet.Account `json:"accounts"`

	// ImportedKeys maps imported account numbers to their sealed key
	// blobs.
	ImportedKeys map[uint32]*pwcrypt.Blob `json:"importedKeys,omitempty"`

	// PendingTxs are the in-flight multisig transactions.
	PendingTxs []wallet.PendingMultisigTx `json:"pendingTxs,omitempty"`

	// Contacts is the wallet's address book.
	Contacts []wallet.Contact `json:"contacts,omitempty"`

	// TransactionMetadata holds the per-transaction annotations. Absent
	// in payloads older than version 3; treated as empty then.
	TransactionMetadata []wallet.TxAnnotation `json:"transactionMetadata,omitempty"`

	// Settings are the wallet preferences.
	Settings wallet.Settings `json:"settings"`

	// Metadata records the substructure counts.
	Metadata Metadata `json:"metadata"`
}

// serialize encodes the payload into its canonical byte form. Go's JSON
// encoder emits struct fields in declaration order and sorts map keys,
// so equal payloads serialize to equal bytes.
func (p *BackupPayload) serialize() ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, newError(ErrMalformed, "encode payload", err)
	}
	return raw, nil
}

// parsePayload decodes a decrypted payload and applies the version
// gates: payloads newer than this build understands are rejected
// outright, older payloads get default values for fields their version
// did not have yet.
func parsePayload(raw []byte) (*BackupPayload, error) {
	var p BackupPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, newError(ErrMalformed, "decode payload", err)
	}

	if p.Version == 0 {
		return nil, newError(ErrMalformed, "missing payload version",
			nil)
	}

	if p.Version > PayloadVersion {
		return nil, Error{
			Code: ErrVersionIncompatible,
			Desc: fmt.Sprintf("payload version %d, this build "+
				"reads up to %d", p.Version, PayloadVersion),
			RequiredVersion: p.Version,
		}
	}

	// Backward compatibility: substructures introduced after the
	// payload's version simply stay at their zero values, which all
	// mean "empty". Nothing else is needed here, but the switch keeps
	// the version history explicit.
	switch {
	case p.Version < 2:
		p.PendingTxs = nil
		fallthrough

	case p.Version < 3:
		p.TransactionMetadata = nil
	}

	return &p, nil
}

// countsFrom fills the metadata block from the actual collections.
func (p *BackupPayload) countsFrom() Metadata {
	return Metadata{
		AccountCount:     len(p.Accounts),
		ImportedKeyCount: len(p.ImportedKeys),
		PendingTxCount:   len(p.PendingTxs),
		ContactCount:     len(p.Contacts),
		AnnotationCount:  len(p.TransactionMetadata),
	}
}
