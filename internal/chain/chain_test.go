// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"bytes"
	"testing"
)

// threeCertChain returns leaf, intermediate and root Info entries in a
// deliberately shuffled order, plus one unrelated cert that shares no
// issuer/subject relation with the chain and should be dropped.
func threeCertChain() []Info {
	root := Info{Handle: 0, SubjectDN: "root", IssuerDN: "root", SKID: []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA}, AKID: []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA}}
	intermediate := Info{Handle: 1, SubjectDN: "intermediate", IssuerDN: "root", SKID: []byte{0xBB, 0xBB, 0xBB, 0xBB, 0xBB}, AKID: []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA}}
	leaf := Info{Handle: 2, SubjectDN: "leaf", IssuerDN: "intermediate", SKID: []byte{0xCC, 0xCC, 0xCC, 0xCC, 0xCC}, AKID: []byte{0xBB, 0xBB, 0xBB, 0xBB, 0xBB}}
	unrelated := Info{Handle: 3, SubjectDN: "orphan", IssuerDN: "nobody"}
	return []Info{intermediate, unrelated, root, leaf}
}

func TestFindLeafWalksToDeepestCert(t *testing.T) {
	certs := threeCertChain()
	leafIdx := FindLeaf(certs)
	if certs[leafIdx].SubjectDN != "leaf" {
		t.Fatalf("expected leaf, got %v", certs[leafIdx].SubjectDN)
	}
}

func TestSortOrdersLeafFirstAndDropsUnrelated(t *testing.T) {
	certs := threeCertChain()
	result, err := Sort(certs, false, ComplianceReduced)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Order) != 3 {
		t.Fatalf("expected 3 chained certs, got %d: %+v", len(result.Order), result.Order)
	}
	if certs[result.Order[0]].SubjectDN != "leaf" {
		t.Fatalf("expected leaf first, got %v", certs[result.Order[0]].SubjectDN)
	}
	if certs[result.Order[len(result.Order)-1]].SubjectDN != "root" {
		t.Fatalf("expected root last, got %v", certs[result.Order[len(result.Order)-1]].SubjectDN)
	}
	if len(result.Dropped) != 1 || certs[result.Dropped[0]].SubjectDN != "orphan" {
		t.Fatalf("expected orphan dropped, got %+v", result.Dropped)
	}
}

func TestSortFallsBackFromStrictToLaxMatch(t *testing.T) {
	// The leaf's AKID deliberately doesn't match root's SKID, so a
	// strict (DN AND key-ID) match fails on that step; lax (DN OR
	// key-ID) should still succeed on the DN match alone.
	root := Info{Handle: 0, SubjectDN: "root", IssuerDN: "root", SKID: []byte{0x01, 0x02, 0x03, 0x04, 0x05}}
	leaf := Info{Handle: 1, SubjectDN: "leaf", IssuerDN: "root", AKID: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}}
	result, err := Sort([]Info{leaf, root}, true, ComplianceReduced)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Order) != 2 {
		t.Fatalf("expected strict-then-lax fallback to chain both certs, got %+v", result.Order)
	}
}

func TestSortDisambiguatesRolledOverCAByKeyID(t *testing.T) {
	// Two CA certs share a subject DN (a key rollover); only one carries
	// the SKID the leaf's AKID names. Both match levels must chain
	// through the right one and drop the stale one.
	caKeyID := []byte{0x10, 0x11, 0x12, 0x13, 0x14}
	staleKeyID := []byte{0x10, 0x11, 0x12, 0x13, 0x15}
	rootKeyID := []byte{0x20, 0x21, 0x22, 0x23, 0x24}
	leaf := Info{Handle: 0, SubjectDN: "leaf", IssuerDN: "ca", AKID: caKeyID}
	staleCA := Info{Handle: 1, SubjectDN: "ca", IssuerDN: "root", SKID: staleKeyID, AKID: rootKeyID}
	root := Info{Handle: 2, SubjectDN: "root", IssuerDN: "root", SKID: rootKeyID}
	ca := Info{Handle: 3, SubjectDN: "ca", IssuerDN: "root", SKID: caKeyID, AKID: rootKeyID}
	certs := []Info{leaf, staleCA, root, ca}

	for _, strict := range []bool{false, true} {
		result, err := Sort(certs, strict, ComplianceReduced)
		if err != nil {
			t.Fatalf("strict=%v: %v", strict, err)
		}
		var subjects []DNKey
		var handles []int
		for _, idx := range result.Order {
			subjects = append(subjects, certs[idx].SubjectDN)
			handles = append(handles, certs[idx].Handle)
		}
		if len(handles) != 3 || handles[0] != 0 || handles[1] != 3 || handles[2] != 2 {
			t.Fatalf("strict=%v: expected [leaf ca(rolled) root], got %v (handles %v)", strict, subjects, handles)
		}
	}
}

func TestSortPKIXFullKludgesSelfSignedMiddleCert(t *testing.T) {
	rootKeyID := []byte{0x09, 0x08, 0x07, 0x06, 0x05}
	root := Info{Handle: 0, SubjectDN: "root", IssuerDN: "root", SKID: rootKeyID}
	// middle's issuer DN equals its own subject DN (a renamed
	// cross-certifying CA), so DN alone makes it look self-signed; only
	// its AKID reveals it was actually issued by root.
	middle := Info{Handle: 1, SubjectDN: "cross", IssuerDN: "cross", AKID: rootKeyID}
	leaf := Info{Handle: 2, SubjectDN: "leaf", IssuerDN: "cross"}
	certs := []Info{leaf, middle, root}

	result, err := Sort(certs, false, CompliancePKIXFull)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, idx := range result.PathKludged {
		if certs[idx].SubjectDN == "cross" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected middle cert to be path-kludge re-tagged, got %+v", result.PathKludged)
	}
}

func TestSortOverflowsBeyondMaxChainLength(t *testing.T) {
	certs := make([]Info, MaxChainLength+1)
	for i := range certs {
		certs[i] = Info{Handle: i, SubjectDN: DNKey(rune('a' + i)), IssuerDN: DNKey(rune('a' + i))}
	}
	if _, err := Sort(certs, false, ComplianceReduced); err == nil {
		t.Fatal("expected overflow error past MaxChainLength")
	}
}

func fakeCert(tag byte) []byte {
	// A minimal well-formed SEQUENCE, standing in for a real Certificate
	// TLV; the collection writers/readers only need a valid outer tag
	// and length, never the X.509 content itself.
	return []byte{tag, 0x03, 0x01, 0x02, 0x03}
}

func TestCertSequenceWriterReaderRoundTrip(t *testing.T) {
	certs := [][]byte{fakeCert(0x30), fakeCert(0x30)}
	der, err := WriteCertSequence(certs)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadChainCollection(der)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(certs) {
		t.Fatalf("expected %d certs, got %d", len(certs), len(got))
	}
	for i := range certs {
		if !bytes.Equal(got[i], certs[i]) {
			t.Fatalf("cert %d mismatch: got %x want %x", i, got[i], certs[i])
		}
	}
}

func TestPKCS7CertChainWriterReaderRoundTrip(t *testing.T) {
	certs := [][]byte{fakeCert(0x30), fakeCert(0x30), fakeCert(0x30)}
	der, err := WritePKCS7CertChain(certs)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadChainCollection(der)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(certs) {
		t.Fatalf("expected %d certs, got %d", len(certs), len(got))
	}
	for i := range certs {
		if !bytes.Equal(got[i], certs[i]) {
			t.Fatalf("cert %d mismatch: got %x want %x", i, got[i], certs[i])
		}
	}
}

func TestSSLChainWriterReaderRoundTrip(t *testing.T) {
	certs := [][]byte{[]byte("first-cert-bytes"), []byte("second")}
	blob := WriteSSLChain(certs)
	got, err := ReadSSLChain(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(certs) {
		t.Fatalf("expected %d certs, got %d", len(certs), len(got))
	}
	for i := range certs {
		if !bytes.Equal(got[i], certs[i]) {
			t.Fatalf("cert %d mismatch: got %q want %q", i, got[i], certs[i])
		}
	}
}
