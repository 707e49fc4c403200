// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package cmssigner constructs and verifies CMS SignerInfo values:
// signed attributes (content-type, signing-time, message-digest,
// S/MIME capabilities), the optional [1] unsigned-attribute
// timestamp slot, and the "hash the attributes re-tagged as a SET"
// signing discipline spec.md section 4.9 specifies. Grounded on
// original_source/cryptlib/mechs/sign_cms.c.
package cmssigner

import (
	"time"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// MinSigningTime is the earliest signingTime this package will emit
// automatically from the system clock; spec.md section 4.9 step 2 says
// the system time is used "only when >= a fixed minimum epoch" so a
// host with a reset or un-set clock doesn't sign a
// plausible-looking-but-wrong timestamp.
var MinSigningTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// attrOID maps the CMS-attribute attrstore.Types this package writes
// to their OIDs.
var attrOID = map[attrstore.Type]asn1io.OID{
	attrstore.TypeCMSContentType:        asn1io.OIDCMSContentType,
	attrstore.TypeCMSMessageDigest:      asn1io.OIDCMSMessageDigest,
	attrstore.TypeCMSSigningTime:        asn1io.OIDCMSSigningTime,
	attrstore.TypeCMSSMIMECapabilities:  asn1io.OIDCMSSMIMECapability,
	attrstore.TypeCMSNonce:              asn1io.OIDCMSNonce,
	attrstore.TypeESSCertID:             asn1io.OIDESSCertID,
}

// DefaultSMIMECiphers is the fallback cipher suite list spec.md section
// 4.9 step 3 specifies when the caller supplies none: "3DES, CAST-128,
// IDEA, AES, RC2, Skipjack — gated by algorithm availability". This
// package only ever emits the names it has an OID for (see
// encodeSMIMECapabilities), so CAST-128, IDEA and Skipjack are never
// advertised.
var DefaultSMIMECiphers = []string{"3DES", "CAST-128", "IDEA", "AES", "RC2", "Skipjack"}

var cipherOID = map[string]asn1io.OID{
	"3DES": {1, 2, 840, 113549, 3, 7},
	"AES":  asn1io.OIDAES256CBC,
	"RC2":  {1, 2, 840, 113549, 3, 2},
}

// BuildSignedAttributes assembles the standard signed-attribute set:
// content-type, message-digest (mandatory once any signed attribute is
// present, per RFC 5652), signing-time (from signingTime, or omitted
// if signingTime is before MinSigningTime) and, when smimeCiphers is
// non-empty, an sMIMECapabilities attribute built from the entries of
// smimeCiphers this package has an OID for.
func BuildSignedAttributes(contentType asn1io.OID, contentDigest []byte, signingTime time.Time, smimeCiphers []string) (*attrstore.Store, error) {
	s := attrstore.New()
	if err := s.Add(attrstore.Attribute{Type: attrstore.TypeCMSContentType, Kind: attrstore.KindOID, OID: contentType}); err != nil {
		return nil, err
	}
	if err := s.Add(attrstore.Attribute{Type: attrstore.TypeCMSMessageDigest, Kind: attrstore.KindBytes, Bytes: contentDigest}); err != nil {
		return nil, err
	}
	if !signingTime.Before(MinSigningTime) {
		if err := s.Add(attrstore.Attribute{Type: attrstore.TypeCMSSigningTime, Kind: attrstore.KindTime, Time: signingTime}); err != nil {
			return nil, err
		}
	}
	if len(smimeCiphers) > 0 {
		caps, err := encodeSMIMECapabilities(smimeCiphers)
		if err != nil {
			return nil, err
		}
		if err := s.Add(attrstore.Attribute{Type: attrstore.TypeCMSSMIMECapabilities, Kind: attrstore.KindBytes, Bytes: caps}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// encodeSMIMECapabilities emits SEQUENCE OF SEQUENCE { algorithm
// OBJECT IDENTIFIER }, one entry per recognised cipher name in ciphers,
// skipping names this package has no OID mapping for (a device
// reporting a cipher this module doesn't speak CMS for is not an
// error, just not advertised).
func encodeSMIMECapabilities(ciphers []string) ([]byte, error) {
	var entries [][]byte
	body := 0
	for _, c := range ciphers {
		oid, ok := cipherOID[c]
		if !ok {
			continue
		}
		inner := asn1io.SizeOfOID(oid)
		w := stream.MemOpen(asn1io.SizeOfObject(inner))
		if err := asn1io.WriteSequenceHeader(w, inner); err != nil {
			return nil, err
		}
		if err := asn1io.WriteOID(w, oid); err != nil {
			return nil, err
		}
		entries = append(entries, w.Bytes())
		body += len(w.Bytes())
	}
	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, err := w.Write(e); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// attrValueBody returns the DER of attr's single AttributeValue.
func attrValueBody(attr *attrstore.Attribute) ([]byte, error) {
	switch attr.Type {
	case attrstore.TypeCMSContentType:
		w := stream.MemOpen(asn1io.SizeOfOID(attr.OID))
		if err := asn1io.WriteOID(w, attr.OID); err != nil {
			return nil, err
		}
		return w.Bytes(), nil
	case attrstore.TypeCMSMessageDigest, attrstore.TypeCMSNonce:
		w := stream.MemOpen(asn1io.SizeOfOctetString(attr.Bytes))
		if err := asn1io.WriteOctetString(w, attr.Bytes); err != nil {
			return nil, err
		}
		return w.Bytes(), nil
	case attrstore.TypeCMSSigningTime:
		w := stream.MemOpen(20)
		if err := asn1io.WriteUTCTime(w, attr.Time); err != nil {
			return nil, err
		}
		return w.Bytes(), nil
	case attrstore.TypeCMSSMIMECapabilities, attrstore.TypeESSCertID:
		return attr.Bytes, nil
	default:
		return nil, cryptoerr.Errorf(cryptoerr.BadData, "no CMS attribute value encoding for type %v", attr.Type)
	}
}

// EncodeAttributes emits the attribute list as SET OF Attribute under
// outerTag: the universal SET tag (0x31) for the hash-as-SET discipline
// spec.md section 4.9 step 4 requires, or a context [0]/[1] IMPLICIT
// tag for wire transmission, per the same step's "restore the outer
// tag... for wire transmission".
func EncodeAttributes(s *attrstore.Store, outerTag byte) ([]byte, error) {
	var entries [][]byte
	body := 0
	for _, a := range s.All() {
		oid, ok := attrOID[a.Type]
		if !ok {
			continue
		}
		val, err := attrValueBody(a)
		if err != nil {
			return nil, err
		}
		// The SET OF AttributeValue TLV wraps one complete value TLV.
		valuesSetSize := asn1io.SizeOfObject(len(val))
		inner := asn1io.SizeOfOID(oid) + valuesSetSize
		w := stream.MemOpen(asn1io.SizeOfObject(inner))
		if err := asn1io.WriteSequenceHeader(w, inner); err != nil {
			return nil, err
		}
		if err := asn1io.WriteOID(w, oid); err != nil {
			return nil, err
		}
		if err := asn1io.WriteSetHeader(w, len(val)); err != nil {
			return nil, err
		}
		if _, err := w.Write(val); err != nil {
			return nil, err
		}
		entries = append(entries, w.Bytes())
		body += len(w.Bytes())
	}
	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteTagHeader(w, outerTag, body); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, err := w.Write(e); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}
