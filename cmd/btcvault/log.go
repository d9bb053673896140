// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/btcsuite/btcvault/vault"
	"github.com/btcsuite/btcvault/wallet/kvstore"
	"github.com/btcsuite/btcvault/wallet/sqlstore"
)

const defaultLogFileName = "btcvault.log"

// logWriter duplicates log output to stdout and, once initialized, the
// rotating log file.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	_, _ = os.Stdout.Write(p)
	if logRotator != nil {
		_, _ = logRotator.Write(p)
	}
	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})
	logRotator *rotator.Rotator

	log      = backendLog.Logger("BTCV")
	vaultLog = backendLog.Logger("VALT")
	storeLog = backendLog.Logger("STOR")
)

func init() {
	vault.UseLogger(vaultLog)
	kvstore.UseLogger(storeLog)
	sqlstore.UseLogger(storeLog)
}

// initLogging sets up the rotating log file in the given directory and
// applies the configured level to every subsystem logger.
func initLogging(logDir, level string) error {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	r, err := rotator.New(
		filepath.Join(logDir, defaultLogFileName), 10*1024, false, 3,
	)
	if err != nil {
		return fmt.Errorf("create log rotator: %w", err)
	}
	logRotator = r

	for _, logger := range []btclog.Logger{log, vaultLog, storeLog} {
		logger.SetLevel(lvl)
	}

	return nil
}
