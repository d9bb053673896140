// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptPassword reads a password from the terminal without echoing it.
// When stdin is not a terminal, one line is read instead so the commands
// stay scriptable.
func promptPassword(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}

	_, _ = fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}

	return password, nil
}

// promptNewPassword reads a password twice and requires both entries to
// match.
func promptNewPassword(prompt string) ([]byte, error) {
	first, err := promptPassword(prompt)
	if err != nil {
		return nil, err
	}

	again, err := promptPassword("Confirm: ")
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(first, again) {
		return nil, errors.New("passwords do not match")
	}

	return first, nil
}
