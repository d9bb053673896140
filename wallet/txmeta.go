// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ErrInvalidAnnotation is returned when a transaction annotation fails
// validation.
var ErrInvalidAnnotation = errors.New("invalid transaction annotation")

// TxAnnotation is the user-assigned metadata of one transaction: a
// category, free-form tags and a note. Notes are arbitrary UTF-8 and
// pass through backups byte for byte.
type TxAnnotation struct {
	// TxID is the annotated transaction id in its usual reversed hex
	// form.
	TxID string `json:"txId"`

	// Category is the spending category, if assigned.
	Category string `json:"category,omitempty"`

	// Tags holds free-form labels.
	Tags []string `json:"tags,omitempty"`

	// Note is the user's free-form note.
	Note string `json:"note,omitempty"`
}

// Validate checks that the annotation points at a well-formed
// transaction id.
func (a *TxAnnotation) Validate() error {
	if _, err := chainhash.NewHashFromStr(a.TxID); err != nil {
		return fmt.Errorf("%w: txid %q: %v", ErrInvalidAnnotation,
			a.TxID, err)
	}
	return nil
}
