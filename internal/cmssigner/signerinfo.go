// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package cmssigner

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"math/big"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

var bigOne = big.NewInt(1)

// hashForDigestAlgo maps the digestAlgorithm OID a SignerInfo names to
// the crypto.Hash used both over the signed content and, when signed
// attributes are present, over the re-tagged attribute SET.
var hashForDigestAlgo = map[string]crypto.Hash{
	asn1io.OIDSHA1.String():   crypto.SHA1,
	asn1io.OIDSHA256.String(): crypto.SHA256,
}

// Signer produces a raw signature over digest, the hash already having
// been computed with the given algorithm. internal/spmkernel's
// Device.Sign satisfies this signature once bound to a key handle.
type Signer func(hash crypto.Hash, digest []byte) ([]byte, error)

// Verifier is the dual of Signer.
type Verifier func(hash crypto.Hash, digest, sig []byte) error

// Hash runs alg's hash function over data, per sign_cms.c's
// "hash the DER encoding of the attribute set, not the raw attribute
// values" discipline (spec.md section 4.9 step 4).
func Hash(digestAlgo asn1io.OID, data []byte) ([]byte, crypto.Hash, error) {
	hash, ok := hashForDigestAlgo[digestAlgo.String()]
	if !ok {
		return nil, 0, cryptoerr.New(cryptoerr.NotAvail)
	}
	switch hash {
	case crypto.SHA1:
		sum := sha1.Sum(data)
		return sum[:], hash, nil
	case crypto.SHA256:
		sum := sha256.Sum256(data)
		return sum[:], hash, nil
	default:
		return nil, 0, cryptoerr.New(cryptoerr.NotAvail)
	}
}

// BuildSignerInfo assembles one CMS SignerInfo. keyID identifies the
// signer the way internal/cms's RecipientInfo does, as a bare
// subjectKeyIdentifier rather than the full IssuerAndSerialNumber
// CHOICE. signedAttrs must already carry a TypeCMSMessageDigest entry
// (see BuildSignedAttributes); its DER is hashed under digestAlgo with
// the SET tag (0x31) per the CMS signing discipline, signed with sign,
// then re-emitted with the [0] IMPLICIT tag for the wire. unsignedAttrs
// may be nil.
func BuildSignerInfo(keyID []byte, digestAlgo, sigAlgo asn1io.OID, signedAttrs *attrstore.Store, unsignedAttrs *attrstore.Store, sign Signer) ([]byte, error) {
	if signedAttrs == nil || signedAttrs.Find(attrstore.TypeCMSMessageDigest, 0) == nil {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	hashSetForm, err := EncodeAttributes(signedAttrs, asn1io.TagSetOf)
	if err != nil {
		return nil, err
	}
	digest, hash, err := Hash(digestAlgo, hashSetForm)
	if err != nil {
		return nil, err
	}
	sig, err := sign(hash, digest)
	if err != nil {
		return nil, err
	}
	wireSignedAttrs, err := EncodeAttributes(signedAttrs, asn1io.ContextTag(0, true))
	if err != nil {
		return nil, err
	}

	var wireUnsignedAttrs []byte
	if unsignedAttrs != nil && unsignedAttrs.Len() > 0 {
		wireUnsignedAttrs, err = EncodeAttributes(unsignedAttrs, asn1io.ContextTag(1, true))
		if err != nil {
			return nil, err
		}
	}

	digestAlgoBody := asn1io.SizeOfOID(digestAlgo)
	sigAlgoBody := asn1io.SizeOfOID(sigAlgo) + 2 // + NULL params

	body := 3 /* version */ + asn1io.SizeOfObject(len(keyID)) +
		asn1io.SizeOfObject(digestAlgoBody) + len(wireSignedAttrs) +
		asn1io.SizeOfObject(sigAlgoBody) + asn1io.SizeOfOctetString(sig) +
		len(wireUnsignedAttrs)

	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if err := asn1io.WriteInteger(w, bigOne); err != nil {
		return nil, err
	}
	// sid: [0] IMPLICIT SubjectKeyIdentifier
	if err := asn1io.WriteTagHeader(w, asn1io.ContextTag(0, false), len(keyID)); err != nil {
		return nil, err
	}
	if _, err := w.Write(keyID); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, digestAlgoBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, digestAlgo); err != nil {
		return nil, err
	}
	if _, err := w.Write(wireSignedAttrs); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, sigAlgoBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, sigAlgo); err != nil {
		return nil, err
	}
	if err := asn1io.WriteTagHeader(w, asn1io.TagNull, 0); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOctetString(w, sig); err != nil {
		return nil, err
	}
	if _, err := w.Write(wireUnsignedAttrs); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
