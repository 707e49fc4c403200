// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package spmkernel

import (
	"crypto"
	"crypto/sha256"
	"testing"

	"github.com/lowRISC/otcryptocore/internal/keycodec"
)

func TestSoftwareDeviceSignVerify(t *testing.T) {
	d := NewSoftwareDevice()
	h, err := d.GenerateKey(keycodec.AlgRSA, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	digest := sha256.Sum256([]byte("message"))
	sig, err := d.Sign(h, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := d.Verify(h, crypto.SHA256, digest[:], sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	other := sha256.Sum256([]byte("tampered"))
	if err := d.Verify(h, crypto.SHA256, other[:], sig); err == nil {
		t.Fatal("Verify unexpectedly succeeded against a different digest")
	}
}

func TestSoftwareDeviceRejectsDLP(t *testing.T) {
	d := NewSoftwareDevice()
	if _, err := d.GenerateKey(keycodec.AlgDSA, 2048); err == nil {
		t.Fatal("expected DSA key generation to be rejected on the software device")
	}
}

func TestRegistryDefaultAndCiphers(t *testing.T) {
	r := NewRegistry()
	if r.Default() == nil {
		t.Fatal("expected a default software device")
	}
	ciphers := r.AvailableCiphers()
	if len(ciphers) == 0 {
		t.Fatal("expected at least one available cipher")
	}
}
