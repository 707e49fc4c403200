// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package certwriter

import (
	"math/big"
	"testing"
	"time"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/internal/keycodec"
)

func bigFromBits(bits int) *big.Int {
	n := big.NewInt(1)
	n.Lsh(n, uint(bits))
	n.Sub(n, big.NewInt(1))
	return n
}

func testCertInfo() *CertInfo {
	return &CertInfo{
		Type:      TypeCertificate,
		Serial:    []byte{0x01},
		Subject:   DN{{Type: "C", Value: "US"}, {Type: "CN", Value: "leaf"}},
		Issuer:    DN{{Type: "C", Value: "US"}, {Type: "CN", Value: "ca"}},
		NotBefore: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Algorithm: keycodec.AlgRSA,
		RSAKey:    &keycodec.RSAPublic{N: bigFromBits(1024), E: big.NewInt(65537)},
	}
}

func TestPreEncodeCertificateAddsStandardExtensions(t *testing.T) {
	info := testCertInfo()
	if err := PreEncode(info); err != nil {
		t.Fatal(err)
	}
	if info.Attrs.Find(attrstore.TypeBasicConstraints, 0) == nil {
		t.Fatal("expected basicConstraints to be added")
	}
	if info.Attrs.Find(attrstore.TypeSubjectKeyIdentifier, 0) == nil {
		t.Fatal("expected subjectKeyIdentifier to be added")
	}
}

func TestPreEncodeCARequiresKeyCertSign(t *testing.T) {
	info := testCertInfo()
	info.IsCA = true
	if err := PreEncode(info); err != nil {
		t.Fatal(err)
	}
	ku := info.Attrs.Find(attrstore.TypeKeyUsage, 0)
	if ku == nil || ku.Int&KeyUsageKeyCertSign == 0 || ku.Int&KeyUsageCRLSign == 0 {
		t.Fatalf("expected keyCertSign|cRLSign on CA cert, got %+v", ku)
	}
}

func TestPreEncodeRejectsEmptySubject(t *testing.T) {
	info := testCertInfo()
	info.Subject = nil
	if err := PreEncode(info); err == nil {
		t.Fatal("expected error for empty subject DN")
	}
}

func TestWriteCertificateProducesWellFormedTLV(t *testing.T) {
	info := testCertInfo()
	if err := PreEncode(info); err != nil {
		t.Fatal(err)
	}
	der, err := WriteCertificate(info, asn1io.OIDSHA256WithRSA, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(der) < 2 || der[0] != asn1io.TagSequenceOf {
		t.Fatalf("expected top-level SEQUENCE, got %x", der[:min(4, len(der))])
	}
}

func TestWriteCertificationRequestRoundTripsSizes(t *testing.T) {
	info := testCertInfo()
	info.Type = TypeCertRequest
	if err := preEncodeCertRequest(info); err != nil {
		t.Fatal(err)
	}
	der, err := WriteCertificationRequest(info, asn1io.OIDSHA256WithRSA, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(der) == 0 {
		t.Fatal("expected non-empty CertificationRequestInfo encoding")
	}
}

func TestOCSPNoncePreEncodeClearsHighBit(t *testing.T) {
	info := &CertInfo{Type: TypeOCSPRequest}
	if err := PreEncode(info); err != nil {
		t.Fatal(err)
	}
	if info.Nonce[0]&0x80 != 0 {
		t.Fatalf("expected high bit cleared, got %x", info.Nonce[0])
	}
}

func TestPKIUserAuthenticatorRoundTrip(t *testing.T) {
	secret := []byte("0123456789ABCDEF0123456789ABCDEF")
	ciphertext, err := EncryptPKIUserAuthenticator(secret)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecryptPKIUserAuthenticator(ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(secret) {
		t.Fatalf("round trip mismatch: got %q want %q", got, secret)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
