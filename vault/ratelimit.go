// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcvault/wallet"
)

const (
	// maxRestoreAttempts is the number of failed password attempts
	// allowed inside one rate-limit window.
	maxRestoreAttempts = 5

	// restoreAttemptWindow is the rolling window the attempts are
	// counted in. Once the window has elapsed since its first failure,
	// the counter resets.
	restoreAttemptWindow = 15 * time.Minute
)

// attemptLimiter enforces the restore password rate limit. The counter
// state lives in an AttemptStore rather than in memory because the
// hosting process may be suspended and resumed between attempts. The
// limiter is scoped to restore attempts only, so it can never lock a
// user out of normal wallet operations.
type attemptLimiter struct {
	store wallet.AttemptStore
	clock func() time.Time
}

// checkLocked returns a rate-limit error when the lockout is active, and
// nil when an attempt may proceed. An expired window is cleared as a
// side effect.
func (l *attemptLimiter) checkLocked(ctx context.Context) error {
	attempts, found, err := l.store.RestoreAttempts(ctx)
	if err != nil {
		return newError(ErrStoreFailure, "read attempt counters", err)
	}
	if !found {
		return nil
	}

	elapsed := l.clock().Sub(attempts.FirstAttempt)
	if elapsed >= restoreAttemptWindow {
		// Window expired: reset so the next failure opens a fresh
		// window.
		err := l.store.ClearRestoreAttempts(ctx)
		if err != nil {
			return newError(ErrStoreFailure,
				"clear attempt counters", err)
		}
		return nil
	}

	if attempts.Count >= maxRestoreAttempts {
		retryAfter := restoreAttemptWindow - elapsed
		return Error{
			Code: ErrRateLimited,
			Desc: fmt.Sprintf("%d failed attempts in window",
				attempts.Count),
			RetryAfter: retryAfter,
		}
	}

	return nil
}

// recordFailure counts one failed password attempt and returns how many
// attempts remain before lockout.
func (l *attemptLimiter) recordFailure(ctx context.Context) (int, error) {
	now := l.clock()

	attempts, found, err := l.store.RestoreAttempts(ctx)
	if err != nil {
		return 0, newError(ErrStoreFailure, "read attempt counters",
			err)
	}

	if !found || now.Sub(attempts.FirstAttempt) >= restoreAttemptWindow {
		attempts = &wallet.RestoreAttempts{
			Count:        0,
			FirstAttempt: now,
		}
	}

	attempts.Count++
	if err := l.store.PutRestoreAttempts(ctx, attempts); err != nil {
		return 0, newError(ErrStoreFailure, "write attempt counters",
			err)
	}

	remaining := maxRestoreAttempts - int(attempts.Count)
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// reset clears the counters after a successful decryption.
func (l *attemptLimiter) reset(ctx context.Context) error {
	if err := l.store.ClearRestoreAttempts(ctx); err != nil {
		return newError(ErrStoreFailure, "clear attempt counters", err)
	}
	return nil
}
