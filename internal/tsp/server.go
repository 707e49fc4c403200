// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package tsp

import (
	"math/big"
	"time"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/internal/cms"
	"github.com/lowRISC/otcryptocore/internal/cmssigner"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

var bigZero = big.NewInt(0)
var bigTwo = big.NewInt(2)

// RejectionResponse is the fixed blob a TSP responder writes instead
// of a differentiated error PKIStatusInfo, per spec.md's "Signer-side
// TSP... refuse to emit an error response that could aid scanning;
// they... write a fixed rejection blob" rule: every rejection reason
// (bad message-imprint length, unsupported extension, internal
// failure) produces this exact byte sequence, never a distinguishing
// failInfo.
var RejectionResponse = mustBuildRejection()

func mustBuildRejection() []byte {
	// PKIStatusInfo{ status: rejection(2) }, no timeStampToken.
	statusBody := asn1io.SizeOfInteger(bigTwo)
	w := stream.MemOpen(asn1io.SizeOfObject(asn1io.SizeOfObject(statusBody)))
	if err := asn1io.WriteSequenceHeader(w, asn1io.SizeOfObject(statusBody)); err != nil {
		panic(err)
	}
	if err := asn1io.WriteSequenceHeader(w, statusBody); err != nil {
		panic(err)
	}
	if err := asn1io.WriteInteger(w, bigTwo); err != nil {
		panic(err)
	}
	return w.Bytes()
}

// buildESSCertID encodes the minimal ESSCertID SEQUENCE{ certHash
// OCTET STRING } RFC 2634 defines, omitting the optional
// issuerSerial: enough to bind the token's signature to the signing
// certificate without re-deriving a full IssuerSerial from it.
func buildESSCertID(certHash []byte) ([]byte, error) {
	body := asn1io.SizeOfOctetString(certHash)
	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOctetString(w, certHash); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// hashActionName maps a TSP request's digestAlgorithm OID to the
// internal/cms hash-action name that will reproduce the same digest
// over the TSTInfo payload.
var hashActionName = map[string]string{
	asn1io.OIDSHA1.String():   "sha1",
	asn1io.OIDSHA256.String(): "sha256",
}

// BuildResponse checks req's message-imprint length, generates a
// random serial number and the current time, emits a TSTInfo under
// policy with req.Nonce propagated verbatim, signs it with sign
// (binding keyID and, when certHash is non-empty, an ESSCertID signed
// attribute naming the signing certificate), and wraps the result as
// a CMS SignedData TimeStampToken inside a granted TimeStampResp.
// framed additionally prepends the 5-byte FrameResponse header.
func BuildResponse(req Request, policy asn1io.OID, keyID []byte, certHash []byte, digestAlgo, sigAlgo asn1io.OID, smimeCiphers []string, sign cmssigner.Signer, framed bool) ([]byte, error) {
	if len(req.HashedMessage) < MinMessageImprintLength || len(req.HashedMessage) > MaxMessageImprintLength {
		return RejectionResponse, cryptoerr.New(cryptoerr.BadData)
	}

	serial, err := freshSerialNumber()
	if err != nil {
		return RejectionResponse, err
	}
	info := tstInfo{
		policy:        policy,
		hashAlgo:      req.HashAlgorithm,
		hashedMessage: req.HashedMessage,
		serialNumber:  serial,
		genTime:       time.Now(),
		nonce:         req.Nonce,
	}
	payload, err := buildTSTInfo(info)
	if err != nil {
		return RejectionResponse, err
	}

	hashName, ok := hashActionName[digestAlgo.String()]
	if !ok {
		return RejectionResponse, cryptoerr.New(cryptoerr.NotAvail)
	}
	digest, _, err := cmssigner.Hash(digestAlgo, payload)
	if err != nil {
		return RejectionResponse, err
	}
	attrs, err := cmssigner.BuildSignedAttributes(asn1io.OIDTSPTimestampToken, digest, time.Now(), smimeCiphers)
	if err != nil {
		return RejectionResponse, err
	}
	if len(certHash) > 0 {
		essCertID, err := buildESSCertID(certHash)
		if err != nil {
			return RejectionResponse, err
		}
		if err := attrs.Add(attrstore.Attribute{Type: attrstore.TypeESSCertID, Kind: attrstore.KindBytes, Bytes: essCertID}); err != nil {
			return RejectionResponse, err
		}
	}

	signerInfo, err := cmssigner.BuildSignerInfo(keyID, digestAlgo, sigAlgo, attrs, nil, sign)
	if err != nil {
		return RejectionResponse, err
	}

	env := cms.NewEnvelope(cms.ContentSignedData, cms.UsageSign)
	if err := env.AddHashAction(hashName); err != nil {
		return RejectionResponse, err
	}
	if err := env.AddSignAction("rsa"); err != nil {
		return RejectionResponse, err
	}
	if err := env.SetPayloadSize(int64(len(payload))); err != nil {
		return RejectionResponse, err
	}
	if _, err := env.PushData(payload); err != nil {
		return RejectionResponse, err
	}
	env.SetSignerInfos([][]byte{signerInfo})
	if err := env.Flush(); err != nil {
		return RejectionResponse, err
	}
	token, err := env.Bytes()
	if err != nil {
		return RejectionResponse, err
	}

	statusBody := asn1io.SizeOfInteger(bigZero)
	respBody := asn1io.SizeOfObject(statusBody) + len(token)
	w := stream.MemOpen(asn1io.SizeOfObject(respBody))
	if err := asn1io.WriteSequenceHeader(w, respBody); err != nil {
		return RejectionResponse, err
	}
	if err := asn1io.WriteSequenceHeader(w, statusBody); err != nil {
		return RejectionResponse, err
	}
	if err := asn1io.WriteInteger(w, bigZero); err != nil {
		return RejectionResponse, err
	}
	if _, err := w.Write(token); err != nil {
		return RejectionResponse, err
	}
	wire := w.Bytes()
	if framed {
		return WriteFrame(FrameResponse, wire), nil
	}
	return wire, nil
}
