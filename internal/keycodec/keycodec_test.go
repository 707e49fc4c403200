// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package keycodec

import (
	"bytes"
	"crypto/sha1"
	"math/big"
	"testing"

	"github.com/lowRISC/otcryptocore/internal/stream"
)

func bigFromBits(bits int) *big.Int {
	n := big.NewInt(1)
	n.Lsh(n, uint(bits))
	n.Sub(n, big.NewInt(1))
	return n
}

func TestRSASPKIRoundTrip(t *testing.T) {
	pub := RSAPublic{N: bigFromBits(1024), E: big.NewInt(65537)}
	s := stream.MemOpen(512)
	if err := EncodeRSASPKI(s, pub); err != nil {
		t.Fatal(err)
	}
	reader := stream.MemConnect(s.Bytes())
	alg, rsaKey, dlpKey, err := DecodeSPKI(reader)
	if err != nil {
		t.Fatal(err)
	}
	if alg != AlgRSA || dlpKey != nil {
		t.Fatalf("expected RSA result, got alg=%v dlp=%v", alg, dlpKey)
	}
	if rsaKey.N.Cmp(pub.N) != 0 || rsaKey.E.Cmp(pub.E) != 0 {
		t.Fatalf("round trip mismatch: got n=%v e=%v", rsaKey.N, rsaKey.E)
	}
}

func TestComputeKeyIDMatchesSPKIDigest(t *testing.T) {
	pub := RSAPublic{N: bigFromBits(1024), E: big.NewInt(65537)}
	encode := func(s stream.Stream) error { return EncodeRSASPKI(s, pub) }

	keyID, err := ComputeKeyID(encode)
	if err != nil {
		t.Fatal(err)
	}
	if len(keyID) != KeyIDLength {
		t.Fatalf("expected a %d-byte key-ID, got %d", KeyIDLength, len(keyID))
	}

	s := stream.MemOpen(512)
	if err := EncodeRSASPKI(s, pub); err != nil {
		t.Fatal(err)
	}
	want := sha1.Sum(s.Bytes())
	if !bytes.Equal(keyID, want[:KeyIDLength]) {
		t.Fatalf("key-ID mismatch: got %x want %x", keyID, want[:KeyIDLength])
	}

	again, err := ComputeKeyID(encode)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(keyID, again) {
		t.Fatal("expected key-ID computation to be deterministic")
	}
}

func TestDSASPKIRoundTrip(t *testing.T) {
	pub := DLPPublic{P: bigFromBits(1024), Q: bigFromBits(160), G: big.NewInt(2), Y: bigFromBits(1023)}
	s := stream.MemOpen(1024)
	if err := EncodeDLPSPKI(s, AlgDSA, pub); err != nil {
		t.Fatal(err)
	}
	reader := stream.MemConnect(s.Bytes())
	alg, rsaKey, dlpKey, err := DecodeSPKI(reader)
	if err != nil {
		t.Fatal(err)
	}
	if alg != AlgDSA || rsaKey != nil {
		t.Fatalf("expected DSA result, got alg=%v rsa=%v", alg, rsaKey)
	}
	if dlpKey.P.Cmp(pub.P) != 0 || dlpKey.Q.Cmp(pub.Q) != 0 || dlpKey.G.Cmp(pub.G) != 0 || dlpKey.Y.Cmp(pub.Y) != 0 {
		t.Fatalf("round trip mismatch: got %+v want %+v", dlpKey, pub)
	}
}

func TestPKCS1PrivateKeyRoundTrip(t *testing.T) {
	priv := RSAPrivate{
		RSAPublic: RSAPublic{N: bigFromBits(1024), E: big.NewInt(65537)},
		D:         bigFromBits(1023),
		P:         bigFromBits(512),
		Q:         bigFromBits(512),
		E1:        bigFromBits(511),
		E2:        bigFromBits(511),
		U:         bigFromBits(512),
	}
	s := stream.MemOpen(2048)
	if err := EncodePKCS1PrivateKey(s, priv); err != nil {
		t.Fatal(err)
	}
	reader := stream.MemConnect(s.Bytes())
	got, err := DecodePKCS1PrivateKey(reader)
	if err != nil {
		t.Fatal(err)
	}
	fields := []*big.Int{got.N, got.E, got.D, got.P, got.Q, got.E1, got.E2, got.U}
	want := []*big.Int{priv.N, priv.E, priv.D, priv.P, priv.Q, priv.E1, priv.E2, priv.U}
	for i := range fields {
		if fields[i].Cmp(want[i]) != 0 {
			t.Fatalf("field %d mismatch: got %v want %v", i, fields[i], want[i])
		}
	}
}

func TestSSHv1RoundTrip(t *testing.T) {
	pub := RSAPublic{N: bigFromBits(1024), E: big.NewInt(65537)}
	blob := EncodeSSHv1RSAPublicKey(pub)
	got, err := DecodeSSHv1RSAPublicKey(blob)
	if err != nil {
		t.Fatal(err)
	}
	if got.N.Cmp(pub.N) != 0 || got.E.Cmp(pub.E) != 0 {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, pub)
	}
}

func TestSSHv2RoundTrip(t *testing.T) {
	pub := RSAPublic{N: bigFromBits(1024), E: big.NewInt(65537)}
	blob, err := EncodeSSHv2PublicKey(AlgRSA, pub)
	if err != nil {
		t.Fatal(err)
	}
	alg, rsaKey, _, err := DecodeSSHv2PublicKey(blob)
	if err != nil {
		t.Fatal(err)
	}
	if alg != AlgRSA || rsaKey.N.Cmp(pub.N) != 0 || rsaKey.E.Cmp(pub.E) != 0 {
		t.Fatalf("round trip mismatch: got alg=%v key=%+v", alg, rsaKey)
	}
}

func TestSSLDHParamsRoundTrip(t *testing.T) {
	pub := DLPPublic{P: bigFromBits(1024), G: big.NewInt(2)}
	blob := EncodeSSLDHParams(pub)
	got, err := DecodeSSLDHParams(blob)
	if err != nil {
		t.Fatal(err)
	}
	if got.P.Cmp(pub.P) != 0 || got.G.Cmp(pub.G) != 0 {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, pub)
	}
}

func TestPGPRSAPublicKeyRoundTrip(t *testing.T) {
	k := PGPPublicKey{
		Version: 4,
		CTime:   1700000000,
		Alg:     PGPAlgRSA,
		RSA:     &RSAPublic{N: bigFromBits(1024), E: big.NewInt(65537)},
	}
	blob, err := EncodePGPPublicKey(k)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodePGPPublicKey(blob)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != k.Version || got.CTime != k.CTime || got.Alg != k.Alg {
		t.Fatalf("header mismatch: got %+v", got)
	}
	if got.RSA.N.Cmp(k.RSA.N) != 0 || got.RSA.E.Cmp(k.RSA.E) != 0 {
		t.Fatalf("key mismatch: got %+v", got.RSA)
	}
}

func TestOpenPGPKeyIDFallsBackWithoutCreationTime(t *testing.T) {
	cryptlibID := make([]byte, KeyIDLength)
	for i := range cryptlibID {
		cryptlibID[i] = byte(i + 1)
	}
	got := ComputeOpenPGPKeyID([]byte("irrelevant"), 0, cryptlibID)
	want := uint64(0x0102030405060708)
	if got != want {
		t.Fatalf("fallback key-ID = %x, want %x", got, want)
	}
}

func TestCryptlibSignatureRoundTrip(t *testing.T) {
	r := bigFromBits(160)
	sVal := bigFromBits(159)
	s := stream.MemOpen(128)
	if err := EncodeCryptlibSignature(s, r, sVal); err != nil {
		t.Fatal(err)
	}
	reader := stream.MemConnect(s.Bytes())
	gotR, gotS, err := DecodeCryptlibSignature(reader)
	if err != nil {
		t.Fatal(err)
	}
	if gotR.Cmp(r) != 0 || gotS.Cmp(sVal) != 0 {
		t.Fatalf("round trip mismatch: got r=%v s=%v", gotR, gotS)
	}
}

func TestSSHSignatureZeroPadding(t *testing.T) {
	r := big.NewInt(1)
	sVal := bigFromBits(159)
	blob := EncodeSSHSignature(r, sVal)
	if len(blob) != 40 {
		t.Fatalf("expected 40-byte blob, got %d", len(blob))
	}
	gotR, gotS, err := DecodeSSHSignature(blob)
	if err != nil {
		t.Fatal(err)
	}
	if gotR.Cmp(r) != 0 || gotS.Cmp(sVal) != 0 {
		t.Fatalf("round trip mismatch: got r=%v s=%v", gotR, gotS)
	}
}
