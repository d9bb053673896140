// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package vault implements the encrypted wallet backup and restore
// engine. Export collects the complete wallet state from the injected
// stores, serializes it, encrypts it under a dedicated backup password
// and wraps it into a checksummed container; import reverses the
// process behind a sequence of hard validation gates so that no store
// is ever mutated by a container that has not fully checked out.
package vault

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/btcsuite/btcvault/pwcrypt"
	"github.com/btcsuite/btcvault/wallet"
)

const (
	// MinBackupPasswordLen is the minimum backup password length.
	// Enforced at export time: the container may end up in cloud
	// storage or a mailbox, so it must not be protected by a weak or
	// shared secret.
	MinBackupPasswordLen = 12
)

var (
	// errNilConfig is returned when NewEngine is called without a
	// config.
	errNilConfig = errors.New("nil engine config")

	// errMissingStores is returned when a required store is absent
	// from the config.
	errMissingStores = errors.New("missing store in engine config")

	// errMissingParams is returned when the chain params are absent
	// from the config.
	errMissingParams = errors.New("missing chain params in engine config")
)

// Config holds the collaborators and policy knobs of a backup engine.
type Config struct {
	// ChainParams identifies the active network. Containers are gated
	// on it both ways.
	ChainParams *chaincfg.Params

	// Stores are the injected store surfaces the engine reads from and
	// restores into. All four must be set.
	Stores wallet.Stores

	// KDFOptions overrides the key derivation cost. Nil selects
	// pwcrypt.DefaultOptions; tests lower it to keep runs fast.
	KDFOptions *pwcrypt.Options

	// RequireSeed rejects backups without seed material instead of
	// importing them with every account treated as imported. Product
	// policy, off by default to match the shipped behavior.
	RequireSeed bool

	// AppVersion is the informational application version written into
	// container headers.
	AppVersion string

	// Clock returns the current time. Nil selects time.Now. Tests
	// inject a fake to drive the rate-limit window.
	Clock func() time.Time
}

// Engine is the backup and restore engine. All methods are safe for
// concurrent use, but only one export or import may run at a time: a
// second concurrent call fails fast with ErrBusy instead of queuing,
// because a backup is a deliberate user action where surprise
// reordering is more dangerous than rejection.
type Engine struct {
	cfg     *Config
	limiter *attemptLimiter

	// running guards against concurrent export/import operations.
	running atomic.Bool
}

// NewEngine validates the config and creates a backup engine.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	if cfg.ChainParams == nil {
		return nil, errMissingParams
	}

	s := cfg.Stores
	if s.Wallet == nil || s.Contacts == nil || s.TxMeta == nil ||
		s.Attempts == nil {

		return nil, errMissingStores
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		cfg: cfg,
		limiter: &attemptLimiter{
			store: s.Attempts,
			clock: clock,
		},
	}, nil
}

// network returns the engine's network identifier.
func (e *Engine) network() string {
	return networkName(e.cfg.ChainParams)
}

// now returns the engine's current time.
func (e *Engine) now() time.Time {
	if e.cfg.Clock != nil {
		return e.cfg.Clock()
	}
	return time.Now()
}

// begin acquires the single-operation guard.
func (e *Engine) begin() error {
	if !e.running.CompareAndSwap(false, true) {
		return newError(ErrBusy, "another backup operation is "+
			"running", nil)
	}
	return nil
}

// done releases the single-operation guard.
func (e *Engine) done() {
	e.running.Store(false)
}
