// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package rtcs implements the real-time certificate status client and
// server sessions: a request carries one or more certificate hashes
// and a nonce, wrapped in a cryptlib-OID ContentInfo header; the
// response is a CMS SignedData the client verifies and whose nonce
// attribute it checks bytewise against the request. Grounded on
// original_source/cryptlib/session/rtcs.c, reusing internal/cms for
// the SignedData envelope and internal/cmssigner for SignerInfo
// construction/verification.
package rtcs

import (
	"crypto/rand"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// NonceLength is the nonce size this package generates when a caller
// doesn't supply one, per spec.md's transport-defaults table ("Fresh
// 16-byte nonce on write if not supplied").
const NonceLength = 16

// MinNonceLength is the shortest nonce ParseResponse's (client.go)
// nonce check will accept without failing closed, per the client's
// "length >= 4 required" rule.
const MinNonceLength = 4

// wrapContentInfo emits a plain ContentInfo{ contentType, [0] EXPLICIT
// OCTET STRING content } carrying an RTCS request under the cryptlib
// RTCS-request OID, the "cryptlib-OID enveloped-data header" spec.md's
// RTCS client calls for (no encryption: RTCS runs over an
// authenticated transport already, the wrapper exists only to self-
// describe the content).
func wrapContentInfo(oid asn1io.OID, payload []byte) ([]byte, error) {
	octetSize := asn1io.SizeOfOctetString(payload)
	contentBody := asn1io.SizeOfObject(octetSize)
	body := asn1io.SizeOfOID(oid) + asn1io.SizeOfObject(contentBody)

	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, oid); err != nil {
		return nil, err
	}
	if err := asn1io.WriteTagHeader(w, asn1io.ContextTag(0, true), contentBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOctetString(w, payload); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// unwrapContentInfo reverses wrapContentInfo, confirming the
// contentType OID matches want.
func unwrapContentInfo(data []byte, want asn1io.OID) ([]byte, error) {
	s := stream.MemConnect(data)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, err
	}
	oid, err := asn1io.ReadOID(s)
	if err != nil {
		return nil, err
	}
	if !oid.Equal(want) {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	if _, _, _, err := asn1io.ReadTagHeader(s); err != nil {
		return nil, err
	}
	return asn1io.ReadOctetString(s)
}

func freshNonce() ([]byte, error) {
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	return nonce, nil
}
