// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package tsp

import (
	"math/big"
	"time"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/cms"
	"github.com/lowRISC/otcryptocore/internal/cmssigner"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// Request is a decoded TimeStampReq: version(1), MessageImprint,
// optional policyId, optional nonce, certReq, with [0] EXPLICIT
// Extensions left unsupported (an unrecognized extension on either
// side is rejected rather than silently ignored).
type Request struct {
	HashAlgorithm asn1io.OID
	HashedMessage []byte
	PolicyID      asn1io.OID // nil if omitted
	Nonce         *big.Int   // nil if omitted
	CertReq       bool
}

// BuildRequest encodes req as the DER TimeStampReq body, unframed. The
// caller frames it with WriteFrame(FrameRequest, ...) itself when the
// transport isn't HTTP.
func BuildRequest(req Request) ([]byte, error) {
	if len(req.HashedMessage) < MinMessageImprintLength || len(req.HashedMessage) > MaxMessageImprintLength {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	imprintSize := sizeOfMessageImprint(req.HashAlgorithm, req.HashedMessage)

	var policySize, nonceSize int
	if req.PolicyID != nil {
		policySize = asn1io.SizeOfOID(req.PolicyID)
	}
	if req.Nonce != nil {
		nonceSize = asn1io.SizeOfInteger(req.Nonce)
	}
	certReqSize := 0
	if req.CertReq {
		certReqSize = 3 // BOOLEAN TRUE TLV; omit entirely when false (DER default)
	}

	body := 3 /* version */ + imprintSize + policySize + nonceSize + certReqSize

	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if err := asn1io.WriteInteger(w, big.NewInt(1)); err != nil {
		return nil, err
	}
	if err := writeMessageImprint(w, req.HashAlgorithm, req.HashedMessage); err != nil {
		return nil, err
	}
	if req.PolicyID != nil {
		if err := asn1io.WriteOID(w, req.PolicyID); err != nil {
			return nil, err
		}
	}
	if req.Nonce != nil {
		if err := asn1io.WriteInteger(w, req.Nonce); err != nil {
			return nil, err
		}
	}
	if req.CertReq {
		if err := asn1io.WriteBoolean(w, true); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// ParseRequest decodes a DER TimeStampReq body (the unframed form
// BuildRequest produces).
func ParseRequest(der []byte) (Request, error) {
	s := stream.MemConnect(der)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return Request{}, err
	}
	version, err := asn1io.ReadInteger(s)
	if err != nil {
		return Request{}, err
	}
	if version.Cmp(big.NewInt(1)) != 0 {
		return Request{}, cryptoerr.New(cryptoerr.BadData)
	}
	hashAlgo, hashedMessage, err := readMessageImprint(s)
	if err != nil {
		return Request{}, err
	}
	req := Request{HashAlgorithm: hashAlgo, HashedMessage: hashedMessage}

	for {
		tag, err := asn1io.PeekTag(s)
		if err != nil {
			break // end of stream
		}
		switch tag {
		case asn1io.TagObjectID:
			req.PolicyID, err = asn1io.ReadOID(s)
			if err != nil {
				return Request{}, err
			}
		case asn1io.TagInteger:
			req.Nonce, err = asn1io.ReadInteger(s)
			if err != nil {
				return Request{}, err
			}
		case asn1io.TagBoolean:
			req.CertReq, err = asn1io.ReadBoolean(s)
			if err != nil {
				return Request{}, err
			}
		default:
			// [0] EXPLICIT Extensions or anything else this client
			// doesn't understand: reject rather than silently skip.
			return Request{}, cryptoerr.New(cryptoerr.BadData)
		}
	}
	return req, nil
}

// Response is a decoded, verified TimeStampResp: the embedded TSTInfo
// fields a caller typically needs plus the raw TimeStampToken DER (a
// full CMS SignedData ContentInfo) for archival.
type Response struct {
	Policy       asn1io.OID
	SerialNumber *big.Int
	GenTime      time.Time
	Nonce        *big.Int
	RawToken     []byte
}

// ParseResponse strips an optional FrameResponse header, rejects a
// non-granted PKIStatusInfo as INVALID, verifies the embedded
// SignedData's sole SignerInfo against verify, and checks the
// response's message imprint matches the request's (requestHashAlgo,
// requestHashedMessage) bytewise, failing SIGNATURE otherwise.
func ParseResponse(wire []byte, framed bool, verify cmssigner.Verifier, requestHashAlgo asn1io.OID, requestHashedMessage []byte) (Response, error) {
	body := wire
	if framed {
		frameType, b, err := ReadFrame(wire)
		if err != nil {
			return Response{}, err
		}
		if frameType == FrameError {
			return Response{}, cryptoerr.New(cryptoerr.Invalid)
		}
		if frameType != FrameResponse {
			return Response{}, cryptoerr.New(cryptoerr.BadData)
		}
		body = b
	}

	s := stream.MemConnect(body)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return Response{}, err
	}
	if _, _, err := asn1io.ReadSequence(s); err != nil { // PKIStatusInfo
		return Response{}, err
	}
	status, err := asn1io.ReadInteger(s)
	if err != nil {
		return Response{}, err
	}
	if status.Sign() != 0 {
		return Response{}, cryptoerr.New(cryptoerr.Invalid)
	}

	tag, err := asn1io.PeekTag(s)
	if err != nil || tag != asn1io.TagSequenceOf {
		return Response{}, cryptoerr.New(cryptoerr.BadData)
	}
	tokenStart := s.Tell()
	_, length, indefinite, err := asn1io.ReadTagHeader(s)
	if err != nil {
		return Response{}, err
	}
	if indefinite {
		return Response{}, cryptoerr.New(cryptoerr.BadData)
	}
	if err := s.Skip(length); err != nil {
		return Response{}, err
	}
	rawToken := body[tokenStart:s.Tell()]

	eContent, signerInfoDERs, err := cms.UnwrapSignedData(rawToken)
	if err != nil {
		return Response{}, err
	}
	if len(signerInfoDERs) == 0 {
		return Response{}, cryptoerr.New(cryptoerr.Signature)
	}
	info, err := cmssigner.ParseSignerInfo(signerInfoDERs[0])
	if err != nil {
		return Response{}, err
	}
	digest, _, err := cmssigner.Hash(info.DigestAlgorithm, eContent)
	if err != nil {
		return Response{}, err
	}
	if err := cmssigner.VerifySignerInfo(info, verify, digest); err != nil {
		return Response{}, err
	}

	tst, err := parseTSTInfo(eContent)
	if err != nil {
		return Response{}, err
	}
	if requestHashAlgo != nil &&
		(!tst.hashAlgo.Equal(requestHashAlgo) || !messageImprintsEqual(tst.hashedMessage, requestHashedMessage)) {
		return Response{}, cryptoerr.New(cryptoerr.Signature)
	}

	return Response{
		Policy:       tst.policy,
		SerialNumber: tst.serialNumber,
		GenTime:      tst.genTime,
		Nonce:        tst.nonce,
		RawToken:     rawToken,
	}, nil
}
