// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"testing"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

func TestMemoryStreamRoundTrip(t *testing.T) {
	w := MemOpen(16)
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := w.Tell(); got != 5 {
		t.Fatalf("Tell() = %d, want 5", got)
	}

	r := MemConnect(w.Bytes())
	buf := make([]byte, 5)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("read back %q, want %q", buf, "hello")
	}
}

func TestMemoryStreamOverflow(t *testing.T) {
	w := MemOpen(4)
	_, err := w.Write([]byte("hello"))
	var ce *cryptoerr.Error
	if !errors.As(err, &ce) || ce.Code != cryptoerr.Overflow {
		t.Fatalf("Write() err = %v, want Overflow", err)
	}
}

func TestMemoryStreamUnderflow(t *testing.T) {
	r := MemConnect([]byte("ab"))
	buf := make([]byte, 4)
	_, err := r.Read(buf)
	var ce *cryptoerr.Error
	if !errors.As(err, &ce) || ce.Code != cryptoerr.Underflow {
		t.Fatalf("Read() err = %v, want Underflow", err)
	}
}

func TestMemoryStreamNullCountsOnly(t *testing.T) {
	n := MemNullOpen()
	if _, err := n.Write(make([]byte, 1000)); err != nil {
		t.Fatalf("null write: %v", err)
	}
	if got := n.Size(); got != 1000 {
		t.Fatalf("Size() = %d, want 1000", got)
	}
	if n.Bytes() != nil {
		t.Fatalf("Bytes() on a null stream should be nil")
	}
}

func TestMemoryStreamPeekTag(t *testing.T) {
	r := MemConnect([]byte{0x30, 0x03, 0x01, 0x02, 0x03})
	tag, err := r.PeekTag()
	if err != nil {
		t.Fatalf("PeekTag: %v", err)
	}
	if tag != 0x30 {
		t.Fatalf("PeekTag() = %#x, want 0x30", tag)
	}
	// Peeking must not consume.
	if r.Tell() != 0 {
		t.Fatalf("PeekTag advanced position to %d", r.Tell())
	}
}
