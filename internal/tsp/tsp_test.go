// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package tsp

import (
	"crypto"
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/keycodec"
	"github.com/lowRISC/otcryptocore/internal/spmkernel"
)

func TestRequestResponseRoundTripUnframed(t *testing.T) {
	dev := spmkernel.NewSoftwareDevice()
	key, err := dev.GenerateKey(keycodec.AlgRSA, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sign := func(h crypto.Hash, d []byte) ([]byte, error) { return dev.Sign(key, h, d) }
	verify := func(h crypto.Hash, d, sig []byte) error { return dev.Verify(key, h, d, sig) }

	msgDigest := sha256.Sum256([]byte("stamp me"))
	req := Request{
		HashAlgorithm: asn1io.OIDSHA256,
		HashedMessage: msgDigest[:],
		Nonce:         big.NewInt(1234),
		CertReq:       true,
	}
	reqWire, err := BuildRequest(req)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	parsedReq, err := ParseRequest(reqWire)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if !parsedReq.HashAlgorithm.Equal(asn1io.OIDSHA256) {
		t.Fatal("parsed request lost its hash algorithm")
	}
	if parsedReq.Nonce == nil || parsedReq.Nonce.Cmp(big.NewInt(1234)) != 0 {
		t.Fatal("parsed request lost its nonce")
	}

	respWire, err := BuildResponse(parsedReq, asn1io.OIDTSPPolicy, []byte{0x01, 0x02}, []byte("certificate-hash-bytes"), asn1io.OIDSHA256, asn1io.OIDSHA256WithRSA, nil, sign, false)
	if err != nil {
		t.Fatalf("BuildResponse: %v", err)
	}
	resp, err := ParseResponse(respWire, false, verify, req.HashAlgorithm, req.HashedMessage)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if !resp.Policy.Equal(asn1io.OIDTSPPolicy) {
		t.Fatal("response policy does not match the fixed TSA policy")
	}
	if resp.Nonce == nil || resp.Nonce.Cmp(big.NewInt(1234)) != 0 {
		t.Fatal("response did not propagate the request nonce verbatim")
	}
}

func TestRequestResponseRoundTripFramed(t *testing.T) {
	dev := spmkernel.NewSoftwareDevice()
	key, err := dev.GenerateKey(keycodec.AlgRSA, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sign := func(h crypto.Hash, d []byte) ([]byte, error) { return dev.Sign(key, h, d) }
	verify := func(h crypto.Hash, d, sig []byte) error { return dev.Verify(key, h, d, sig) }

	msgDigest := sha256.Sum256([]byte("frame me"))
	req := Request{HashAlgorithm: asn1io.OIDSHA256, HashedMessage: msgDigest[:]}
	reqWire, err := BuildRequest(req)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	framedReq := WriteFrame(FrameRequest, reqWire)
	frameType, body, err := ReadFrame(framedReq)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frameType != FrameRequest {
		t.Fatalf("expected FrameRequest, got %d", frameType)
	}
	parsedReq, err := ParseRequest(body)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}

	respWire, err := BuildResponse(parsedReq, asn1io.OIDTSPPolicy, []byte{0x09}, nil, asn1io.OIDSHA256, asn1io.OIDSHA256WithRSA, nil, sign, true)
	if err != nil {
		t.Fatalf("BuildResponse: %v", err)
	}
	if _, err := ParseResponse(respWire, true, verify, req.HashAlgorithm, req.HashedMessage); err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
}

func TestParseResponseRejectsMismatchedImprint(t *testing.T) {
	dev := spmkernel.NewSoftwareDevice()
	key, err := dev.GenerateKey(keycodec.AlgRSA, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sign := func(h crypto.Hash, d []byte) ([]byte, error) { return dev.Sign(key, h, d) }
	verify := func(h crypto.Hash, d, sig []byte) error { return dev.Verify(key, h, d, sig) }

	digestA := sha256.Sum256([]byte("message A"))
	digestB := sha256.Sum256([]byte("message B"))
	req := Request{HashAlgorithm: asn1io.OIDSHA256, HashedMessage: digestA[:]}
	respWire, err := BuildResponse(req, asn1io.OIDTSPPolicy, []byte{0x01}, nil, asn1io.OIDSHA256, asn1io.OIDSHA256WithRSA, nil, sign, false)
	if err != nil {
		t.Fatalf("BuildResponse: %v", err)
	}
	if _, err := ParseResponse(respWire, false, verify, asn1io.OIDSHA256, digestB[:]); err == nil {
		t.Fatal("expected ParseResponse to reject a mismatched message imprint")
	}
}

func TestBuildResponseRejectsShortImprint(t *testing.T) {
	dev := spmkernel.NewSoftwareDevice()
	key, err := dev.GenerateKey(keycodec.AlgRSA, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sign := func(h crypto.Hash, d []byte) ([]byte, error) { return dev.Sign(key, h, d) }
	req := Request{HashAlgorithm: asn1io.OIDSHA256, HashedMessage: []byte("too-short")}
	wire, err := BuildResponse(req, asn1io.OIDTSPPolicy, []byte{0x01}, nil, asn1io.OIDSHA256, asn1io.OIDSHA256WithRSA, nil, sign, false)
	if err == nil {
		t.Fatal("expected BuildResponse to reject an out-of-range message imprint")
	}
	if string(wire) != string(RejectionResponse) {
		t.Fatal("expected the fixed rejection blob on a rejected request")
	}
}
