// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package rtcs

import (
	"time"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/internal/certwriter"
	"github.com/lowRISC/otcryptocore/internal/cms"
	"github.com/lowRISC/otcryptocore/internal/cmssigner"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// CertStore answers "is the certificate identified by this hash
// currently valid" for the responder's configured certificate store. A
// Status of false ("CRL_INVALID") is the normal, expected answer for a
// revoked or unknown certificate, not an error: only a lookup failure
// (the store itself is unavailable) should surface as err.
type CertStore interface {
	Status(certHash []byte) (valid bool, err error)
}

// ParseRequest unwraps an RTCS request wrapped by BuildRequest.
func ParseRequest(wire []byte) (entries []certwriter.RTCSEntry, nonce []byte, err error) {
	body, err := unwrapContentInfo(wire, asn1io.OIDCryptlibRTCSRequest)
	if err != nil {
		return nil, nil, err
	}
	return certwriter.ReadRTCSRequest(body)
}

var hashActionName = map[string]string{
	asn1io.OIDSHA1.String():   "sha1",
	asn1io.OIDSHA256.String(): "sha256",
}

// BuildResponse checks each request entry against store, signs the
// response with sign (binding the responder's key), embeds nonce in
// the signed attributes, and wraps the result as a CMS SignedData.
func BuildResponse(requestEntries []certwriter.RTCSEntry, nonce []byte, store CertStore, keyID []byte, digestAlgo, sigAlgo asn1io.OID, smimeCiphers []string, sign cmssigner.Signer) ([]byte, error) {
	hashName, ok := hashActionName[digestAlgo.String()]
	if !ok {
		return nil, cryptoerr.New(cryptoerr.NotAvail)
	}

	responseEntries := make([]certwriter.RTCSEntry, len(requestEntries))
	for i, e := range requestEntries {
		valid, err := store.Status(e.CertHash)
		if err != nil {
			return nil, err
		}
		responseEntries[i] = certwriter.RTCSEntry{CertHash: e.CertHash, Valid: valid}
	}

	payload, err := certwriter.WriteRTCSResponse(responseEntries, nonce)
	if err != nil {
		return nil, err
	}

	digest, _, err := cmssigner.Hash(digestAlgo, payload)
	if err != nil {
		return nil, err
	}
	attrs, err := cmssigner.BuildSignedAttributes(asn1io.OIDCMSData, digest, time.Now(), smimeCiphers)
	if err != nil {
		return nil, err
	}
	if err := attrs.Add(attrstore.Attribute{Type: attrstore.TypeCMSNonce, Kind: attrstore.KindBytes, Bytes: nonce}); err != nil {
		return nil, err
	}

	signerInfo, err := cmssigner.BuildSignerInfo(keyID, digestAlgo, sigAlgo, attrs, nil, sign)
	if err != nil {
		return nil, err
	}

	env := cms.NewEnvelope(cms.ContentSignedData, cms.UsageSign)
	if err := env.AddHashAction(hashName); err != nil {
		return nil, err
	}
	if err := env.AddSignAction("rsa"); err != nil {
		return nil, err
	}
	if err := env.SetPayloadSize(int64(len(payload))); err != nil {
		return nil, err
	}
	if _, err := env.PushData(payload); err != nil {
		return nil, err
	}
	env.SetSignerInfos([][]byte{signerInfo})
	if err := env.Flush(); err != nil {
		return nil, err
	}
	return env.Bytes()
}
