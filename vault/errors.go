// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies a kind of backup engine error. The set is closed:
// callers branch on the code, never on message text.
type ErrorCode int

const (
	// ErrPolicyViolation indicates the backup password failed the
	// export-time policy: shorter than the minimum length, or equal to
	// the wallet's unlock passphrase.
	ErrPolicyViolation ErrorCode = iota

	// ErrMalformed indicates the container failed structural
	// validation: missing fields, oversized, or an undecodable payload.
	ErrMalformed

	// ErrNetworkMismatch indicates the container's network does not
	// match the active wallet network, or the header and payload
	// disagree about the network.
	ErrNetworkMismatch

	// ErrChecksumMismatch indicates the ciphertext checksum did not
	// verify: the file is corrupted or tampered with.
	ErrChecksumMismatch

	// ErrAuthentication indicates the backup password did not decrypt
	// the container. Counted against the restore rate limiter.
	ErrAuthentication

	// ErrRateLimited indicates too many failed restore attempts; no
	// decryption was attempted.
	ErrRateLimited

	// ErrVersionIncompatible indicates the payload requires a newer
	// format than this build supports.
	ErrVersionIncompatible

	// ErrPartialData indicates a semantic anomaly that the caller's
	// policy chose to reject rather than resolve, e.g. a backup with
	// no seed when a seed is required.
	ErrPartialData

	// ErrBusy indicates another export or import is already running
	// against this wallet session.
	ErrBusy

	// ErrStoreFailure indicates a store write failed during restore
	// distribution. Earlier stores may already have been written; the
	// error text names the stage that failed.
	ErrStoreFailure
)

// String returns the error code as a human-readable string.
func (c ErrorCode) String() string {
	switch c {
	case ErrPolicyViolation:
		return "policy violation"
	case ErrMalformed:
		return "malformed container"
	case ErrNetworkMismatch:
		return "network mismatch"
	case ErrChecksumMismatch:
		return "checksum mismatch"
	case ErrAuthentication:
		return "authentication failure"
	case ErrRateLimited:
		return "rate limited"
	case ErrVersionIncompatible:
		return "version incompatible"
	case ErrPartialData:
		return "partial data"
	case ErrBusy:
		return "busy"
	case ErrStoreFailure:
		return "store failure"
	default:
		return fmt.Sprintf("unknown code %d", int(c))
	}
}

// Error identifies a backup engine error. It carries an error code plus
// the code-specific detail a caller needs to render the failure: the
// attempts remaining after a wrong password, the wait time of an active
// lockout, or the version a too-new backup requires.
type Error struct {
	// Code is the kind of error.
	Code ErrorCode

	// Desc is the internal description, for logs. Not shown to end
	// users; see UserMessage.
	Desc string

	// Err is the underlying error, if any.
	Err error

	// AttemptsRemaining is set for ErrAuthentication: the number of
	// password attempts left before lockout.
	AttemptsRemaining int

	// RetryAfter is set for ErrRateLimited: how long until attempts
	// are accepted again.
	RetryAfter time.Duration

	// RequiredVersion is set for ErrVersionIncompatible: the payload
	// version this build would need to understand.
	RequiredVersion uint32
}

// Error satisfies the error interface.
func (e Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Desc, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Desc)
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target is a vault Error with the same code,
// enabling errors.Is comparisons against sentinel-style values.
func (e Error) Is(target error) bool {
	var other Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// UserMessage returns the single user-facing message for the error's
// kind. The messages deliberately reveal nothing about why a check
// failed beyond its kind, so a restore dialog cannot be used as an
// oracle.
func (e Error) UserMessage() string {
	switch e.Code {
	case ErrPolicyViolation:
		return e.Desc

	case ErrMalformed, ErrChecksumMismatch:
		return "backup file is corrupted or invalid"

	case ErrNetworkMismatch:
		return "backup was created for a different network"

	case ErrAuthentication:
		return fmt.Sprintf("incorrect password (%d attempts "+
			"remaining)", e.AttemptsRemaining)

	case ErrRateLimited:
		return fmt.Sprintf("too many failed attempts, try again "+
			"in %v", e.RetryAfter.Round(time.Second))

	case ErrVersionIncompatible:
		return fmt.Sprintf("backup requires a newer wallet version "+
			"(format %d)", e.RequiredVersion)

	case ErrBusy:
		return "a backup operation is already in progress"

	default:
		return "backup operation failed"
	}
}

// newError creates an Error given a set of arguments.
func newError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// IsError reports whether err is a vault Error with the given code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.Code == code
}
