// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package cms

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func flushAndRead(t *testing.T, e *Envelope) []byte {
	t.Helper()
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	out, err := e.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	return out
}

func TestPlainDataRoundTrip(t *testing.T) {
	want := []byte("provisioning payload, not secret")
	e := NewEnvelope(ContentData, UsagePlainData)
	if _, err := e.PushData(want); err != nil {
		t.Fatalf("PushData: %v", err)
	}
	der := flushAndRead(t, e)

	got, err := UnwrapData(der)
	if err != nil {
		t.Fatalf("UnwrapData: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestPlainDataIndefiniteEncoding(t *testing.T) {
	// No declared payload size: the wrappers come out BER
	// indefinite-length (tag then 0x80) and still round-trip.
	e := NewEnvelope(ContentData, UsagePlainData)
	want := []byte("hello")
	if _, err := e.PushData(want); err != nil {
		t.Fatalf("PushData: %v", err)
	}
	der := flushAndRead(t, e)

	if der[0] != 0x30 || der[1] != 0x80 {
		t.Fatalf("expected indefinite-length SEQUENCE header, got % x", der[:2])
	}
	if !bytes.Equal(der[len(der)-4:], []byte{0x00, 0x00, 0x00, 0x00}) {
		t.Fatalf("expected two trailing EOC pairs, got % x", der[len(der)-4:])
	}
	got, err := UnwrapData(der)
	if err != nil {
		t.Fatalf("UnwrapData: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestPlainDataDefiniteWithPayloadSize(t *testing.T) {
	want := []byte("sized payload")
	e := NewEnvelope(ContentData, UsagePlainData)
	if err := e.SetPayloadSize(int64(len(want))); err != nil {
		t.Fatalf("SetPayloadSize: %v", err)
	}
	if _, err := e.PushData(want); err != nil {
		t.Fatalf("PushData: %v", err)
	}
	der := flushAndRead(t, e)

	if der[1] == 0x80 {
		t.Fatal("expected definite-length encoding when the payload size was declared")
	}
	// Definite DER is byte-exact predictable: total = TL + body.
	if int(der[1]) != len(der)-2 {
		t.Fatalf("outer length octet %d does not cover the remaining %d bytes", der[1], len(der)-2)
	}
	got, err := UnwrapData(der)
	if err != nil {
		t.Fatalf("UnwrapData: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestSetPayloadSizeRejectedAfterPush(t *testing.T) {
	e := NewEnvelope(ContentData, UsagePlainData)
	if _, err := e.PushData([]byte("x")); err != nil {
		t.Fatalf("PushData: %v", err)
	}
	if err := e.SetPayloadSize(1); err == nil {
		t.Fatal("expected SetPayloadSize to be rejected once the header is out")
	}
}

func TestSignedDataIndefinitePrefix(t *testing.T) {
	// An undeclared-size SignedData envelope begins with the classic
	// BER indefinite PKCS#7 introducer: SEQUENCE 0x80, the signedData
	// OID, then [0] 0x80.
	wantPrefix := []byte{
		0x30, 0x80, 0x06, 0x09, 0x2A, 0x86, 0x48, 0x86,
		0xF7, 0x0D, 0x01, 0x07, 0x02, 0xA0, 0x80,
	}
	payload := []byte("hello")
	// A placeholder SignerInfo blob; the splice point only cares that
	// it is one complete definite-length TLV.
	signerInfo := []byte{0x30, 0x03, 0x02, 0x01, 0x01}

	e := NewEnvelope(ContentSignedData, UsageSign)
	if err := e.AddHashAction("sha256"); err != nil {
		t.Fatalf("AddHashAction: %v", err)
	}
	if err := e.AddSignAction("rsa"); err != nil {
		t.Fatalf("AddSignAction: %v", err)
	}
	if _, err := e.PushData(payload); err != nil {
		t.Fatalf("PushData: %v", err)
	}
	e.SetSignerInfos([][]byte{signerInfo})
	der := flushAndRead(t, e)

	if !bytes.HasPrefix(der, wantPrefix) {
		t.Fatalf("prefix mismatch:\n got % x\nwant % x", der[:len(wantPrefix)], wantPrefix)
	}
	eContent, signerInfos, err := UnwrapSignedData(der)
	if err != nil {
		t.Fatalf("UnwrapSignedData: %v", err)
	}
	if !bytes.Equal(eContent, payload) {
		t.Fatalf("eContent mismatch: got %q, want %q", eContent, payload)
	}
	if len(signerInfos) != 1 || !bytes.Equal(signerInfos[0], signerInfo) {
		t.Fatalf("SignerInfo splice mismatch: %x", signerInfos)
	}
}

func TestEnvelopedDataIndefiniteRoundTrip(t *testing.T) {
	want := []byte("indefinite-length enveloped payload")
	e := NewEnvelope(ContentEnvelopedData, UsageCrypt)
	if err := e.AddPasswordRecipient("pw"); err != nil {
		t.Fatalf("AddPasswordRecipient: %v", err)
	}
	if _, err := e.PushData(want); err != nil {
		t.Fatalf("PushData: %v", err)
	}
	der := flushAndRead(t, e)

	if der[0] != 0x30 || der[1] != 0x80 {
		t.Fatalf("expected indefinite-length SEQUENCE header, got % x", der[:2])
	}
	got, err := UnwrapEnvelopedDataWithPassword(der, "pw")
	if err != nil {
		t.Fatalf("UnwrapEnvelopedDataWithPassword: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestPlainDataRejectsActions(t *testing.T) {
	e := NewEnvelope(ContentData, UsagePlainData)
	e.actions.Main = append(e.actions.Main, Action{Kind: ActionHash, Algorithm: "sha256"})
	if _, err := e.PushData([]byte("x")); err == nil {
		t.Fatal("expected PushData to reject a populated action list under UsagePlainData")
	}
}

func TestEnvelopedDataPasswordRoundTrip(t *testing.T) {
	want := []byte("a secret manufacturing token, 37 bytes long")
	e := NewEnvelope(ContentEnvelopedData, UsageCrypt)
	if err := e.AddPasswordRecipient("correct horse battery staple"); err != nil {
		t.Fatalf("AddPasswordRecipient: %v", err)
	}
	if _, err := e.PushData(want); err != nil {
		t.Fatalf("PushData: %v", err)
	}
	der := flushAndRead(t, e)

	got, err := UnwrapEnvelopedDataWithPassword(der, "correct horse battery staple")
	if err != nil {
		t.Fatalf("UnwrapEnvelopedDataWithPassword: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}

	if _, err := UnwrapEnvelopedDataWithPassword(der, "wrong password"); err == nil {
		t.Fatal("expected wrong password to fail unwrap")
	}
}

func TestEnvelopedDataPasswordRoundTripEmptyPayload(t *testing.T) {
	e := NewEnvelope(ContentEnvelopedData, UsageCrypt)
	if err := e.AddPasswordRecipient("pw"); err != nil {
		t.Fatalf("AddPasswordRecipient: %v", err)
	}
	if _, err := e.PushData(nil); err != nil {
		t.Fatalf("PushData: %v", err)
	}
	der := flushAndRead(t, e)

	got, err := UnwrapEnvelopedDataWithPassword(der, "pw")
	if err != nil {
		t.Fatalf("UnwrapEnvelopedDataWithPassword: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty plaintext, got %q", got)
	}
}

func TestEnvelopedDataRSARoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyID := []byte{0x01, 0x02, 0x03, 0x04}
	want := []byte("a key-transport wrapped payload")

	e := NewEnvelope(ContentEnvelopedData, UsageCrypt)
	if err := e.AddRSARecipient(keyID, &priv.PublicKey); err != nil {
		t.Fatalf("AddRSARecipient: %v", err)
	}
	if _, err := e.PushData(want); err != nil {
		t.Fatalf("PushData: %v", err)
	}
	der := flushAndRead(t, e)

	got, err := UnwrapEnvelopedDataWithRSA(der, keyID, func(wrapped []byte) ([]byte, error) {
		return UnwrapCEKWithRSA(priv, wrapped)
	})
	if err != nil {
		t.Fatalf("UnwrapEnvelopedDataWithRSA: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestEnvelopedDataMultipleRecipients(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyID := []byte{0xAA, 0xBB}
	want := []byte("shared payload, two doors in")

	e := NewEnvelope(ContentEnvelopedData, UsageCrypt)
	if err := e.AddRSARecipient(keyID, &priv.PublicKey); err != nil {
		t.Fatalf("AddRSARecipient: %v", err)
	}
	if err := e.AddPasswordRecipient("door two"); err != nil {
		t.Fatalf("AddPasswordRecipient: %v", err)
	}
	if _, err := e.PushData(want); err != nil {
		t.Fatalf("PushData: %v", err)
	}
	der := flushAndRead(t, e)

	gotRSA, err := UnwrapEnvelopedDataWithRSA(der, keyID, func(wrapped []byte) ([]byte, error) {
		return UnwrapCEKWithRSA(priv, wrapped)
	})
	if err != nil {
		t.Fatalf("UnwrapEnvelopedDataWithRSA: %v", err)
	}
	gotPwd, err := UnwrapEnvelopedDataWithPassword(der, "door two")
	if err != nil {
		t.Fatalf("UnwrapEnvelopedDataWithPassword: %v", err)
	}
	if !bytes.Equal(gotRSA, want) || !bytes.Equal(gotPwd, want) {
		t.Fatal("both recipients should unwrap to the same plaintext")
	}
}

func TestActionListDuplicateKeyexPKCRejected(t *testing.T) {
	var l ActionList
	keyID := []byte{0x01}
	if err := l.Add(&l.Pre, Action{Kind: ActionKeyexPKC, KeyID: keyID}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := l.Add(&l.Pre, Action{Kind: ActionKeyexPKC, KeyID: keyID}); err == nil {
		t.Fatal("expected duplicate non-auto keyex-PKC to be rejected")
	}
}

func TestActionListAutoDuplicateAccepted(t *testing.T) {
	var l ActionList
	if err := l.Add(&l.Main, Action{Kind: ActionHash, Algorithm: "sha256", Auto: true}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := l.Add(&l.Main, Action{Kind: ActionHash, Algorithm: "sha256", Auto: true}); err != nil {
		t.Fatalf("auto-duplicate Add should be accepted silently: %v", err)
	}
	if len(l.Main) != 1 {
		t.Fatalf("expected duplicate to be absorbed, got %d entries", len(l.Main))
	}
}

func TestActionListSortsKeyexPKCBeforePassword(t *testing.T) {
	var l ActionList
	if err := l.Add(&l.Pre, Action{Kind: ActionKeyexPassword, Algorithm: "pbkdf2-aes256"}); err != nil {
		t.Fatalf("Add password: %v", err)
	}
	if err := l.Add(&l.Pre, Action{Kind: ActionKeyexPKC, KeyID: []byte{0x01}}); err != nil {
		t.Fatalf("Add PKC: %v", err)
	}
	if l.Pre[0].Kind != ActionKeyexPKC {
		t.Fatalf("expected keyex-PKC to sort before keyex-password, got order %+v", l.Pre)
	}
}

func TestValidateCryptRequiresPreActionAndSingleMain(t *testing.T) {
	var l ActionList
	if err := l.Validate(UsageCrypt); err == nil {
		t.Fatal("expected empty action list to fail UsageCrypt validation")
	}
	l.Pre = append(l.Pre, Action{Kind: ActionKeyexPassword, Algorithm: "pbkdf2-aes256"})
	l.Main = append(l.Main, Action{Kind: ActionEncrypt, Algorithm: "aes256-cbc"})
	if err := l.Validate(UsageCrypt); err != nil {
		t.Fatalf("expected valid crypt action list to pass: %v", err)
	}
	l.Post = append(l.Post, Action{Kind: ActionSign, Algorithm: "rsa"})
	if err := l.Validate(UsageCrypt); err == nil {
		t.Fatal("expected a post-action to be rejected under UsageCrypt")
	}
}

func TestValidateSignRequiresHashMainAndSignPost(t *testing.T) {
	var l ActionList
	l.Main = append(l.Main, Action{Kind: ActionHash, Algorithm: "sha256"})
	l.Post = append(l.Post, Action{Kind: ActionSign, Algorithm: "rsa"})
	if err := l.Validate(UsageSign); err != nil {
		t.Fatalf("expected valid sign action list to pass: %v", err)
	}
	l.Pre = append(l.Pre, Action{Kind: ActionKeyexPassword, Algorithm: "pbkdf2-aes256"})
	if err := l.Validate(UsageSign); err == nil {
		t.Fatal("expected a pre-action to be rejected under UsageSign")
	}
}
