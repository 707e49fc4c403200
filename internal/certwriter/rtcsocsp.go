// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package certwriter

import (
	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
)

// RTCSEntry is one certificate status query/result pair in an RTCS
// request or response: a certificate hash (the cryptlib key-ID/
// cert-hash) and, for a response, a status flag.
type RTCSEntry struct {
	CertHash []byte
	Valid    bool
}

// WriteRTCSRequest emits a cryptlib RTCS request: SEQUENCE {
// SEQUENCE OF OCTET STRING certHash, OCTET STRING nonce }.
// PreEncode (preEncodeNonce) must run first so Nonce is populated.
func WriteRTCSRequest(entries []RTCSEntry, nonce []byte) ([]byte, error) {
	hashesBody := 0
	for _, e := range entries {
		hashesBody += asn1io.SizeOfOctetString(e.CertHash)
	}
	nonceSize := asn1io.SizeOfOctetString(nonce)
	body := asn1io.SizeOfObject(hashesBody) + nonceSize
	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, hashesBody); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := asn1io.WriteOctetString(w, e.CertHash); err != nil {
			return nil, err
		}
	}
	if err := asn1io.WriteOctetString(w, nonce); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// WriteRTCSResponse emits a cryptlib RTCS response: SEQUENCE {
// SEQUENCE OF SEQUENCE { BOOLEAN status, OCTET STRING certHash },
// OCTET STRING nonce }.
func WriteRTCSResponse(entries []RTCSEntry, nonce []byte) ([]byte, error) {
	entriesBody := 0
	for _, e := range entries {
		entriesBody += asn1io.SizeOfObject(sizeOfRTCSResult(e))
	}
	nonceSize := asn1io.SizeOfOctetString(nonce)
	body := asn1io.SizeOfObject(entriesBody) + nonceSize
	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, entriesBody); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := asn1io.WriteSequenceHeader(w, sizeOfRTCSResult(e)); err != nil {
			return nil, err
		}
		if err := asn1io.WriteBoolean(w, e.Valid); err != nil {
			return nil, err
		}
		if err := asn1io.WriteOctetString(w, e.CertHash); err != nil {
			return nil, err
		}
	}
	if err := asn1io.WriteOctetString(w, nonce); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func sizeOfRTCSResult(e RTCSEntry) int {
	return 3 + asn1io.SizeOfOctetString(e.CertHash) // BOOLEAN TLV is always 3 bytes
}

// ReadRTCSRequest parses the body WriteRTCSRequest produces.
func ReadRTCSRequest(der []byte) (entries []RTCSEntry, nonce []byte, err error) {
	s := stream.MemConnect(der)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, nil, err
	}
	hashesLen, _, err := asn1io.ReadSequence(s)
	if err != nil {
		return nil, nil, err
	}
	end := s.Tell() + int64(hashesLen)
	for s.Tell() < end {
		h, err := asn1io.ReadOctetString(s)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, RTCSEntry{CertHash: h})
	}
	nonce, err = asn1io.ReadOctetString(s)
	if err != nil {
		return nil, nil, err
	}
	return entries, nonce, nil
}

// ReadRTCSResponse parses the body WriteRTCSResponse produces.
func ReadRTCSResponse(der []byte) (entries []RTCSEntry, nonce []byte, err error) {
	s := stream.MemConnect(der)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, nil, err
	}
	entriesLen, _, err := asn1io.ReadSequence(s)
	if err != nil {
		return nil, nil, err
	}
	end := s.Tell() + int64(entriesLen)
	for s.Tell() < end {
		if _, _, err := asn1io.ReadSequence(s); err != nil {
			return nil, nil, err
		}
		valid, err := asn1io.ReadBoolean(s)
		if err != nil {
			return nil, nil, err
		}
		h, err := asn1io.ReadOctetString(s)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, RTCSEntry{CertHash: h, Valid: valid})
	}
	nonce, err = asn1io.ReadOctetString(s)
	if err != nil {
		return nil, nil, err
	}
	return entries, nonce, nil
}

// OCSPEntry is one certificate's status in an OCSP v1/v2 request or
// response.
type OCSPEntry struct {
	Serial                        []byte
	IssuerNameHash, IssuerKeyHash []byte
	Good                          bool
}

// WriteOCSPCertID emits one RFC 6960 CertID: SEQUENCE {
// AlgorithmIdentifier hashAlgorithm, OCTET STRING issuerNameHash,
// OCTET STRING issuerKeyHash, INTEGER serialNumber }. hashAlgo is
// SHA-1 for OCSP v1 requests and SHA-256 for v2.
func WriteOCSPCertID(e OCSPEntry, hashAlgo asn1io.OID) ([]byte, error) {
	algSize := sizeOfAlgorithmIdentifierNullParams(hashAlgo)
	nameHashSize := asn1io.SizeOfOctetString(e.IssuerNameHash)
	keyHashSize := asn1io.SizeOfOctetString(e.IssuerKeyHash)
	serialSize := sizeOfIntegerBytes(e.Serial)
	body := algSize + nameHashSize + keyHashSize + serialSize

	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if err := writeAlgorithmIdentifierNullParams(w, hashAlgo); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOctetString(w, e.IssuerNameHash); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOctetString(w, e.IssuerKeyHash); err != nil {
		return nil, err
	}
	if err := writeSerialNumber(w, e.Serial); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// WriteOCSPRequestList emits the OCSP TBSRequest's requestList:
// SEQUENCE OF Request, where each Request wraps one CertID with no
// singleRequestExtensions (cryptlib never emits per-request
// extensions; only the Nonce request extension, carried at the
// TBSRequest level, is used).
func WriteOCSPRequestList(entries []OCSPEntry, hashAlgo asn1io.OID) ([]byte, error) {
	var reqs [][]byte
	body := 0
	for _, e := range entries {
		certID, err := WriteOCSPCertID(e, hashAlgo)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, certID)
		body += asn1io.SizeOfObject(len(certID))
	}
	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	for _, certID := range reqs {
		if err := asn1io.WriteSequenceHeader(w, len(certID)); err != nil {
			return nil, err
		}
		if _, err := w.Write(certID); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// WriteOCSPNonceExtension emits the OCSP Nonce extension value body
// (an OCTET STRING wrapping the caller's nonce, itself wrapped in the
// INTEGER-typed oddity spec.md calls out: cryptlib encodes the nonce
// OCTET STRING's bytes directly as an INTEGER's content octets, which
// is why PreEncode clears the nonce's top bit before this is called).
func WriteOCSPNonceExtension(nonce []byte) ([]byte, error) {
	w := stream.MemOpen(asn1io.SizeOfObject(len(nonce)))
	if err := asn1io.WriteTagHeader(w, asn1io.TagInteger, len(nonce)); err != nil {
		return nil, err
	}
	if _, err := w.Write(nonce); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
