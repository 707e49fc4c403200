// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package attrstore

import (
	"testing"
	"time"
)

func TestMessageDigestReplacesExisting(t *testing.T) {
	s := New()
	if err := s.Add(Attribute{Type: TypeCMSMessageDigest, Kind: KindBytes, Bytes: []byte{1}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(Attribute{Type: TypeCMSMessageDigest, Kind: KindBytes, Bytes: []byte{2, 2}}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected single-valued replace, got %d attributes", s.Len())
	}
	got := s.Find(TypeCMSMessageDigest, 0)
	if string(got.Bytes) != "\x02\x02" {
		t.Fatalf("digest not replaced: %v", got.Bytes)
	}
}

func TestNeverValidPropagatesInvalidityDate(t *testing.T) {
	s := New()
	if err := s.Add(Attribute{Type: TypeCRLReason, Kind: KindInt, Int: int64(ReasonNeverValid)}); err != nil {
		t.Fatal(err)
	}
	revoked := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.PropagateInvalidityDate(revoked)
	inv := s.Find(TypeInvalidityDate, 0)
	if inv == nil || !inv.Time.Equal(revoked) {
		t.Fatalf("invalidity date not propagated: %+v", inv)
	}
}

func TestCursorTraversal(t *testing.T) {
	s := New()
	s.Add(Attribute{Type: TypeSubjectAltName, SubField: 1, Kind: KindBytes, Bytes: []byte("a")})
	s.Add(Attribute{Type: TypeSubjectAltName, SubField: 2, Kind: KindBytes, Bytes: []byte("b")})

	c := s.NewCursor()
	first := c.First()
	if first == nil || string(first.Bytes) != "a" {
		t.Fatalf("First() = %+v", first)
	}
	second := c.Next()
	if second == nil || string(second.Bytes) != "b" {
		t.Fatalf("Next() = %+v", second)
	}
	if c.Next() != nil {
		t.Fatalf("Next() past end should be nil")
	}
	back := c.Previous()
	if back == nil || string(back.Bytes) != "b" {
		t.Fatalf("Previous() = %+v", back)
	}
}

func TestDuplicateMultiValuedRejected(t *testing.T) {
	// SubjectAltName is multi-valued only across distinct SubField keys;
	// the same (type, subfield) pair twice is a duplicate.
	s := New()
	if err := s.Add(Attribute{Type: TypeSubjectAltName, SubField: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(Attribute{Type: TypeSubjectAltName, SubField: 1}); err == nil {
		t.Fatalf("expected Duplicate error")
	}
}
