// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// ErrInvalidContact is returned when a contact record fails validation.
var ErrInvalidContact = errors.New("invalid contact")

// Contact is one address book entry. Contacts are convenience data, not
// fund-critical, but their addresses are still validated against the
// active network so a restore cannot plant cross-network addresses into
// the send flow.
type Contact struct {
	// ID is the stable contact identifier.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Address is the contact's address, encoded for the wallet's
	// network.
	Address string `json:"address"`

	// Tags holds free-form labels keyed by category.
	Tags map[string]string `json:"tags,omitempty"`

	// CreatedAt is when the contact was added.
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the contact's required fields and that its address
// decodes for the given network.
func (c *Contact) Validate(params *chaincfg.Params) error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidContact)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: contact %q has no name",
			ErrInvalidContact, c.ID)
	}

	addr, err := btcutil.DecodeAddress(c.Address, params)
	if err != nil {
		return fmt.Errorf("%w: contact %q address: %v",
			ErrInvalidContact, c.Name, err)
	}
	if !addr.IsForNet(params) {
		return fmt.Errorf("%w: contact %q address is for a "+
			"different network", ErrInvalidContact, c.Name)
	}

	return nil
}
