// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package rtcs

import (
	"crypto"
	"testing"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/keycodec"
	"github.com/lowRISC/otcryptocore/internal/spmkernel"
)

type fakeStore struct {
	revoked map[string]bool
}

func (f fakeStore) Status(certHash []byte) (bool, error) {
	return !f.revoked[string(certHash)], nil
}

func TestRequestResponseRoundTrip(t *testing.T) {
	dev := spmkernel.NewSoftwareDevice()
	key, err := dev.GenerateKey(keycodec.AlgRSA, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyID := []byte{0xAA, 0xBB, 0xCC, 0xDD}

	goodHash := []byte("good-certificate-hash-00000000000")[:20]
	badHash := []byte("revoked-certificate-hash000000000")[:20]

	wire, nonce, err := BuildRequest([][]byte{goodHash, badHash}, nil)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if len(nonce) != NonceLength {
		t.Fatalf("expected a generated %d-byte nonce, got %d bytes", NonceLength, len(nonce))
	}

	entries, gotNonce, err := ParseRequest(wire)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 request entries, got %d", len(entries))
	}
	if !bytesEqual(gotNonce, nonce) {
		t.Fatal("server-side parsed nonce does not match client-generated nonce")
	}

	store := fakeStore{revoked: map[string]bool{string(badHash): true}}
	sign := func(hash crypto.Hash, d []byte) ([]byte, error) { return dev.Sign(key, hash, d) }
	respWire, err := BuildResponse(entries, gotNonce, store, keyID, asn1io.OIDSHA256, asn1io.OIDSHA256WithRSA, []string{"AES"}, sign)
	if err != nil {
		t.Fatalf("BuildResponse: %v", err)
	}

	verify := func(hash crypto.Hash, d, sig []byte) error { return dev.Verify(key, hash, d, sig) }
	respEntries, err := ParseResponse(respWire, verify, nonce)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(respEntries) != 2 {
		t.Fatalf("expected 2 response entries, got %d", len(respEntries))
	}
	statusByHash := map[string]bool{}
	for _, e := range respEntries {
		statusByHash[string(e.CertHash)] = e.Valid
	}
	if !statusByHash[string(goodHash)] {
		t.Fatal("expected the good certificate hash to be reported valid")
	}
	if statusByHash[string(badHash)] {
		t.Fatal("expected the revoked certificate hash to be reported invalid")
	}
}

func TestParseResponseRejectsWrongNonce(t *testing.T) {
	dev := spmkernel.NewSoftwareDevice()
	key, err := dev.GenerateKey(keycodec.AlgRSA, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyID := []byte{0x01}
	hash := make([]byte, 20)
	wire, nonce, err := BuildRequest([][]byte{hash}, nil)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	entries, gotNonce, err := ParseRequest(wire)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	store := fakeStore{}
	sign := func(h crypto.Hash, d []byte) ([]byte, error) { return dev.Sign(key, h, d) }
	respWire, err := BuildResponse(entries, gotNonce, store, keyID, asn1io.OIDSHA256, asn1io.OIDSHA256WithRSA, nil, sign)
	if err != nil {
		t.Fatalf("BuildResponse: %v", err)
	}
	verify := func(h crypto.Hash, d, sig []byte) error { return dev.Verify(key, h, d, sig) }
	wrongNonce := append([]byte(nil), nonce...)
	wrongNonce[0] ^= 0xFF
	if _, err := ParseResponse(respWire, verify, wrongNonce); err == nil {
		t.Fatal("expected ParseResponse to reject a mismatched nonce")
	}
}
