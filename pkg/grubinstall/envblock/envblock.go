// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package envblock implements the fixed-size GRUB environment block.
//
// The block is a single sector-aligned file (`grubenv`) the boot code can
// rewrite in place without growing it: a signature line, `name=value` records
// and `#` fill bytes up to the fixed size.
package envblock

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/siderolabs/gen/maps"
	"github.com/siderolabs/gen/optional"
)

// Size is the exact on-disk size of the environment block.
const Size = 1024

// Signature is the first line of a valid environment block.
const Signature = "# GRUB Environment Block\n"

const fillByte = '#'

// Block is a parsed environment block.
type Block struct {
	entries map[string]string
}

// New returns an empty environment block.
func New() *Block {
	return &Block{
		entries: map[string]string{},
	}
}

// Unmarshal parses an environment block, validating its size and signature.
func Unmarshal(data []byte) (*Block, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("environment block must be exactly %d bytes, got %d", Size, len(data))
	}

	if !bytes.HasPrefix(data, []byte(Signature)) {
		return nil, fmt.Errorf("environment block signature not found")
	}

	blk := New()

	rest := data[len(Signature):]

	for len(rest) > 0 {
		if rest[0] == fillByte {
			rest = rest[1:]

			continue
		}

		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			return nil, fmt.Errorf("unterminated record %q", rest)
		}

		name, value, found := strings.Cut(string(rest[:idx]), "=")
		if !found || name == "" {
			return nil, fmt.Errorf("malformed record %q", rest[:idx])
		}

		blk.entries[name] = value

		rest = rest[idx+1:]
	}

	return blk, nil
}

// Marshal encodes the block to its exact on-disk size.
//
// Records are written in sorted order so the encoding is deterministic; it is
// an error for the records not to fit.
func (blk *Block) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(Signature)

	for _, name := range blk.Names() {
		fmt.Fprintf(&buf, "%s=%s\n", name, blk.entries[name])
	}

	if buf.Len() > Size {
		return nil, fmt.Errorf("environment block overflow: %d bytes of records, %d available", buf.Len(), Size)
	}

	buf.Write(bytes.Repeat([]byte{fillByte}, Size-buf.Len()))

	return buf.Bytes(), nil
}

// Get returns the value recorded under name.
func (blk *Block) Get(name string) optional.Optional[string] {
	if value, ok := blk.entries[name]; ok {
		return optional.Some(value)
	}

	return optional.None[string]()
}

// Set records a value under name.
func (blk *Block) Set(name, value string) error {
	if name == "" {
		return fmt.Errorf("empty variable name")
	}

	if strings.ContainsAny(name, "=\n") {
		return fmt.Errorf("invalid variable name %q", name)
	}

	if strings.ContainsRune(value, '\n') {
		return fmt.Errorf("invalid value %q for variable %q", value, name)
	}

	blk.entries[name] = value

	return nil
}

// Delete removes the record under name, reporting whether it was present.
func (blk *Block) Delete(name string) bool {
	_, ok := blk.entries[name]

	delete(blk.entries, name)

	return ok
}

// Names returns the recorded variable names in sorted order.
func (blk *Block) Names() []string {
	names := maps.Keys(blk.entries)

	slices.Sort(names)

	return names
}
