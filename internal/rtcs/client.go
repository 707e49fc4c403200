// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package rtcs

import (
	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/certwriter"
	"github.com/lowRISC/otcryptocore/internal/cms"
	"github.com/lowRISC/otcryptocore/internal/cmssigner"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// BuildRequest encodes an RTCS request for certHashes, generating a
// fresh NonceLength-byte nonce when nonce is empty, and wraps it in the
// cryptlib RTCS-request ContentInfo. It returns the wire bytes and the
// nonce actually used, so the caller can check it against the
// response.
func BuildRequest(certHashes [][]byte, nonce []byte) (wire []byte, usedNonce []byte, err error) {
	if len(nonce) == 0 {
		nonce, err = freshNonce()
		if err != nil {
			return nil, nil, err
		}
	}
	entries := make([]certwriter.RTCSEntry, len(certHashes))
	for i, h := range certHashes {
		entries[i] = certwriter.RTCSEntry{CertHash: h}
	}
	body, err := certwriter.WriteRTCSRequest(entries, nonce)
	if err != nil {
		return nil, nil, err
	}
	wire, err = wrapContentInfo(asn1io.OIDCryptlibRTCSRequest, body)
	if err != nil {
		return nil, nil, err
	}
	return wire, nonce, nil
}

// ParseResponse strips the CMS SignedData wrapper from wire, verifies
// the (sole) SignerInfo against verify, and checks that the response
// carries requestNonce bytewise. requestNonce must be at least
// MinNonceLength bytes, per the client's "length >= 4 required" rule.
func ParseResponse(wire []byte, verify cmssigner.Verifier, requestNonce []byte) ([]certwriter.RTCSEntry, error) {
	if len(requestNonce) < MinNonceLength {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	eContent, signerInfoDERs, err := cms.UnwrapSignedData(wire)
	if err != nil {
		return nil, err
	}
	if len(signerInfoDERs) == 0 {
		return nil, cryptoerr.New(cryptoerr.Signature)
	}
	entries, nonce, err := certwriter.ReadRTCSResponse(eContent)
	if err != nil {
		return nil, err
	}
	if !bytesEqual(nonce, requestNonce) {
		return nil, cryptoerr.New(cryptoerr.Signature)
	}

	info, err := cmssigner.ParseSignerInfo(signerInfoDERs[0])
	if err != nil {
		return nil, err
	}
	digest, _, err := cmssigner.Hash(info.DigestAlgorithm, eContent)
	if err != nil {
		return nil, err
	}
	if err := cmssigner.VerifySignerInfo(info, verify, digest); err != nil {
		return nil, err
	}
	return entries, nil
}

func bytesEqual(a, b []byte) bool {
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
