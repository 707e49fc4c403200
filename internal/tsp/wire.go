// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package tsp implements the RFC 3161 time-stamp protocol client and
// server sessions. Grounded on original_source/cryptlib/session/tsp.c
// for session semantics and on
// other_examples/04fc2b73_moby-moby__vendor-github.com-digitorus-timestamp-timestamp.go.go
// for the TimeStampReq/TimeStampResp/TSTInfo grammar (RFC 3161
// sections 2.4.1/2.4.2), reusing internal/cms for the SignedData
// TimeStampToken and internal/cmssigner for SignerInfo
// construction/verification rather than that package's pkcs7-backed
// signer, keeping one CMS implementation in this tree instead of two.
package tsp

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// Frame types for the 5-byte non-HTTP transport header
// (uint32 total, byte type). RTCS never frames; it runs over HTTP
// only.
const (
	FrameRequest    byte = 0
	FramePollRep    byte = 1
	FramePollReq    byte = 2
	FrameNegPollRep byte = 3
	FramePartialMsg byte = 4
	FrameResponse   byte = 5
	FrameError      byte = 6
)

// WriteFrame prepends the 5-byte header to body: a big-endian uint32
// total (the length of type+body) followed by the frame type byte.
func WriteFrame(frameType byte, body []byte) []byte {
	out := make([]byte, 5+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(body)+1))
	out[4] = frameType
	copy(out[5:], body)
	return out
}

// ReadFrame strips WriteFrame's header, confirming total matches the
// actual remaining length.
func ReadFrame(data []byte) (frameType byte, body []byte, err error) {
	if len(data) < 5 {
		return 0, nil, cryptoerr.New(cryptoerr.Underflow)
	}
	total := binary.BigEndian.Uint32(data[0:4])
	if int(total) != len(data)-4 {
		return 0, nil, cryptoerr.New(cryptoerr.BadData)
	}
	return data[4], data[5:], nil
}

// MinMessageImprintLength and MaxMessageImprintLength bound the
// hashedMessage TSP's server will accept, per the "outside
// [20 .. 32+maxHash]" rejection rule, maxHash being SHA-512's 64-byte
// digest.
const (
	MinMessageImprintLength = 20
	maxHash                 = 64
	MaxMessageImprintLength = 32 + maxHash
)

func sizeOfMessageImprint(hashAlgo asn1io.OID, hashedMessage []byte) int {
	algoBody := asn1io.SizeOfOID(hashAlgo) + 2 // + NULL params
	body := asn1io.SizeOfObject(algoBody) + asn1io.SizeOfOctetString(hashedMessage)
	return asn1io.SizeOfObject(body)
}

func writeMessageImprint(w stream.Stream, hashAlgo asn1io.OID, hashedMessage []byte) error {
	algoBody := asn1io.SizeOfOID(hashAlgo) + 2
	body := asn1io.SizeOfObject(algoBody) + asn1io.SizeOfOctetString(hashedMessage)
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return err
	}
	if err := asn1io.WriteSequenceHeader(w, algoBody); err != nil {
		return err
	}
	if err := asn1io.WriteOID(w, hashAlgo); err != nil {
		return err
	}
	if err := asn1io.WriteTagHeader(w, asn1io.TagNull, 0); err != nil {
		return err
	}
	return asn1io.WriteOctetString(w, hashedMessage)
}

func readMessageImprint(s stream.Stream) (hashAlgo asn1io.OID, hashedMessage []byte, err error) {
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, nil, err
	}
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, nil, err
	}
	hashAlgo, err = asn1io.ReadOID(s)
	if err != nil {
		return nil, nil, err
	}
	if tag, err := asn1io.PeekTag(s); err == nil && tag == asn1io.TagNull {
		if _, _, _, err := asn1io.ReadTagHeader(s); err != nil {
			return nil, nil, err
		}
	}
	hashedMessage, err = asn1io.ReadOctetString(s)
	if err != nil {
		return nil, nil, err
	}
	if len(hashedMessage) < MinMessageImprintLength || len(hashedMessage) > MaxMessageImprintLength {
		return nil, nil, cryptoerr.New(cryptoerr.BadData)
	}
	return hashAlgo, hashedMessage, nil
}

func messageImprintsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// freshSerialNumber returns a 16-byte random TSTInfo serial number,
// per the server's "generate a 16-byte random serial" rule.
func freshSerialNumber() (*big.Int, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	n := new(big.Int).SetBytes(buf)
	return n, nil
}
