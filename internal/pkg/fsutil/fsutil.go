// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package fsutil provides small filesystem helpers shared by the installer packages.
package fsutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

const compareChunkSize = 64 * 1024

// RecreateDir creates an empty directory at path, removing whatever was there before.
func RecreateDir(path string, mode os.FileMode) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("error removing %q: %w", path, err)
	}

	if err := os.Mkdir(path, mode); err != nil {
		return fmt.Errorf("error creating %q: %w", path, err)
	}

	return nil
}

// PruneIfEmpty removes the directory at path if it exists and has no entries.
func PruneIfEmpty(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("error reading %q: %w", path, err)
	}

	if len(entries) > 0 {
		return nil
	}

	if err = os.Remove(path); err != nil {
		return fmt.Errorf("error removing %q: %w", path, err)
	}

	return nil
}

// SameContent compares two files byte-for-byte.
func SameContent(path1, path2 string) (bool, error) {
	st1, err := os.Stat(path1)
	if err != nil {
		return false, err
	}

	st2, err := os.Stat(path2)
	if err != nil {
		return false, err
	}

	if st1.Size() != st2.Size() {
		return false, nil
	}

	f1, err := os.Open(path1)
	if err != nil {
		return false, err
	}

	defer f1.Close() //nolint:errcheck

	f2, err := os.Open(path2)
	if err != nil {
		return false, err
	}

	defer f2.Close() //nolint:errcheck

	buf1 := make([]byte, compareChunkSize)
	buf2 := make([]byte, compareChunkSize)

	for {
		n1, err1 := io.ReadFull(f1, buf1)
		n2, err2 := io.ReadFull(f2, buf2)

		if n1 != n2 {
			return false, nil
		}

		if !bytes.Equal(buf1[:n1], buf2[:n2]) {
			return false, nil
		}

		switch {
		case err1 == nil && err2 == nil:
			continue
		case errors.Is(err1, io.EOF) && errors.Is(err2, io.EOF),
			errors.Is(err1, io.ErrUnexpectedEOF) && errors.Is(err2, io.ErrUnexpectedEOF):
			return true, nil
		case err1 != nil && !errors.Is(err1, io.EOF) && !errors.Is(err1, io.ErrUnexpectedEOF):
			return false, err1
		case err2 != nil && !errors.Is(err2, io.EOF) && !errors.Is(err2, io.ErrUnexpectedEOF):
			return false, err2
		default:
			return false, nil
		}
	}
}
