// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package cmssigner

import (
	"crypto"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/keycodec"
	"github.com/lowRISC/otcryptocore/internal/spmkernel"
)

func TestBuildAndVerifySignerInfo(t *testing.T) {
	dev := spmkernel.NewSoftwareDevice()
	key, err := dev.GenerateKey(keycodec.AlgRSA, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyID := []byte{0x01, 0x02, 0x03, 0x04}

	content := []byte("timestamped payload")
	digest := sha256.Sum256(content)

	attrs, err := BuildSignedAttributes(asn1io.OIDCMSData, digest[:], time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), []string{"AES"})
	if err != nil {
		t.Fatalf("BuildSignedAttributes: %v", err)
	}

	sign := func(hash crypto.Hash, d []byte) ([]byte, error) { return dev.Sign(key, hash, d) }
	der, err := BuildSignerInfo(keyID, asn1io.OIDSHA256, asn1io.OIDSHA256WithRSA, attrs, nil, sign)
	if err != nil {
		t.Fatalf("BuildSignerInfo: %v", err)
	}

	info, err := ParseSignerInfo(der)
	if err != nil {
		t.Fatalf("ParseSignerInfo: %v", err)
	}
	if string(info.KeyID) != string(keyID) {
		t.Fatalf("KeyID round-trip mismatch: got %x want %x", info.KeyID, keyID)
	}

	verify := func(hash crypto.Hash, d, sig []byte) error { return dev.Verify(key, hash, d, sig) }
	if err := VerifySignerInfo(info, verify, digest[:]); err != nil {
		t.Fatalf("VerifySignerInfo: %v", err)
	}

	tamperedDigest := sha256.Sum256([]byte("different payload"))
	if err := VerifySignerInfo(info, verify, tamperedDigest[:]); err == nil {
		t.Fatal("VerifySignerInfo unexpectedly succeeded against a different content digest")
	}
}

func TestBuildSignerInfoRequiresMessageDigest(t *testing.T) {
	dev := spmkernel.NewSoftwareDevice()
	key, err := dev.GenerateKey(keycodec.AlgRSA, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sign := func(hash crypto.Hash, d []byte) ([]byte, error) { return dev.Sign(key, hash, d) }
	if _, err := BuildSignerInfo([]byte{0x01}, asn1io.OIDSHA256, asn1io.OIDSHA256WithRSA, nil, nil, sign); err == nil {
		t.Fatal("expected an error building a SignerInfo with no signed attributes")
	}
}
