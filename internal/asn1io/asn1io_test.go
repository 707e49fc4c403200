// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package asn1io

import (
	"math/big"
	"testing"
	"time"

	"github.com/lowRISC/otcryptocore/internal/stream"
)

func TestIntegerRoundTrip(t *testing.T) {
	cases := []int64{0, 1, 127, 128, 255, 256, -1, -128, -129, 1 << 40}
	for _, c := range cases {
		n := big.NewInt(c)
		w := stream.MemOpen(64)
		if err := WriteInteger(w, n); err != nil {
			t.Fatalf("WriteInteger(%d): %v", c, err)
		}
		r := stream.MemConnect(w.Bytes())
		got, err := ReadInteger(r)
		if err != nil {
			t.Fatalf("ReadInteger(%d): %v", c, err)
		}
		if got.Cmp(n) != 0 {
			t.Fatalf("round trip %d got %v", c, got)
		}
	}
}

func TestOIDRoundTrip(t *testing.T) {
	w := stream.MemOpen(64)
	if err := WriteOID(w, OIDCMSSignedData); err != nil {
		t.Fatalf("WriteOID: %v", err)
	}
	r := stream.MemConnect(w.Bytes())
	got, err := ReadOID(r)
	if err != nil {
		t.Fatalf("ReadOID: %v", err)
	}
	if !got.Equal(OIDCMSSignedData) {
		t.Fatalf("got %v, want %v", got, OIDCMSSignedData)
	}
}

func TestIndefiniteLengthSequence(t *testing.T) {
	w := stream.MemOpen(64)
	if err := WriteTagHeaderIndefinite(w, TagSequenceOf); err != nil {
		t.Fatalf("WriteTagHeaderIndefinite: %v", err)
	}
	if err := WriteInteger(w, big.NewInt(7)); err != nil {
		t.Fatal(err)
	}
	if err := WriteEOC(w); err != nil {
		t.Fatal(err)
	}

	r := stream.MemConnect(w.Bytes())
	_, indefinite, err := ReadSequence(r)
	if err != nil {
		t.Fatalf("ReadSequence: %v", err)
	}
	if !indefinite {
		t.Fatalf("expected indefinite length")
	}
	n, err := ReadInteger(r)
	if err != nil || n.Int64() != 7 {
		t.Fatalf("ReadInteger: %v, %v", n, err)
	}
	atEOC, err := AtEOC(r)
	if err != nil || !atEOC {
		t.Fatalf("expected EOC next: %v, %v", atEOC, err)
	}
	if err := ReadEOC(r); err != nil {
		t.Fatalf("ReadEOC: %v", err)
	}
}

func TestUTCTimeRoundTrip(t *testing.T) {
	want := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	w := stream.MemOpen(32)
	if err := WriteUTCTime(w, want); err != nil {
		t.Fatal(err)
	}
	r := stream.MemConnect(w.Bytes())
	got, err := ReadUTCTime(r)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestOverflowOID(t *testing.T) {
	w := stream.MemOpen(256)
	longOID := OID{1, 2}
	for i := 0; i < 40; i++ {
		longOID = append(longOID, 100000+i)
	}
	if err := WriteOID(w, longOID); err != nil {
		t.Fatal(err)
	}
	r := stream.MemConnect(w.Bytes())
	if _, err := ReadOID(r); err == nil {
		t.Fatalf("expected BadData for oversize OID")
	}
}
