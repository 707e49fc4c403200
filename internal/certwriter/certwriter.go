// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package certwriter implements the two-pass writer family from
// spec.md section 4.6: a single pre-encode routine runs the checks and
// side effects appropriate to an object type, and a shared null-stream
// sizing pass precedes every real DER write, mirroring the way
// cryptlib's cert/write.c computes tbsCertificate length before
// emitting it.
package certwriter

import (
	"crypto/rand"
	"time"

	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/internal/keycodec"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// ObjectType selects which pre-encode rule table and wire layout
// applies.
type ObjectType int

const (
	TypeCertificate ObjectType = iota
	TypeAttributeCert
	TypeCertRequest
	TypeCRMFRequest
	TypeRevocationRequest
	TypeCRL
	TypeRTCSRequest
	TypeRTCSResponse
	TypeOCSPRequest
	TypeOCSPResponse
	TypePKIUser
)

// DN is an ordered list of relative distinguished name components,
// e.g. {"C", "US"}, {"O", "OpenTitan"}, {"CN", "device-ca"}.
type DN []RDN

// RDN is one attribute of a DN: a short type label (mapped to its OID
// in dn.go) and its string value.
type RDN struct {
	Type  string
	Value string
}

// Empty reports whether the DN carries no components.
func (d DN) Empty() bool { return len(d) == 0 }

// Equal reports whether two DNs have the same components in the same
// order, which is the comparison spec.md's issuer/subject rules use.
func (d DN) Equal(other DN) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}

// RevocationEntry is one CRL entry: a revoked certificate's serial
// number, its revocation time, and its attribute store (carrying, at
// minimum, a TypeCRLReason attribute).
type RevocationEntry struct {
	Serial []byte
	RevokedAt time.Time
	Attrs     *attrstore.Store
}

// CertInfo is the in-memory representation of a to-be-encoded
// certificate, attribute certificate, certificate request, CRMF
// request, revocation request or CRL; which fields are required and
// which are filled in by PreEncode depends on Type.
type CertInfo struct {
	Type ObjectType

	Version  int // not read by the TBS writer, which always emits the v3 layout
	Serial   []byte
	Subject  DN
	Issuer   DN
	NotBefore, NotAfter time.Time

	// IssuerNotBefore/IssuerNotAfter, when non-zero, bound the
	// validity period the issuer's own certificate carries; PreEncode
	// clamps NotBefore/NotAfter to their intersection.
	IssuerNotBefore, IssuerNotAfter time.Time
	SelfSigned                      bool

	Algorithm keycodec.Algorithm
	RSAKey    *keycodec.RSAPublic
	DLPKey    *keycodec.DLPPublic

	Attrs *attrstore.Store

	// IssuerAttrs, when set, supplies the issuer certificate's own
	// attribute store so PreEncode can copy the non-inherited subset
	// into Attrs (see copyIssuerAttributes).
	IssuerAttrs *attrstore.Store

	ThisUpdate time.Time
	NextUpdate time.Time
	Revoked    []RevocationEntry

	Nonce []byte

	IsCA bool

	// PKIXFull, when true together with a present and critical
	// subjectAltName extension on a non-CA, non-self-signed
	// certificate, relaxes the subject-DN-non-empty requirement
	// (spec.md section 4.6's Certificate row).
	PKIXFull bool
}

// nonInheritedAttrTypes lists the issuer attributes PreEncode must NOT
// copy down to the subject even though the general rule is "copy
// non-inherited issuer attributes to subject" — these five describe
// the issuer's own identity or extension set, not a property shared
// with the subject.
var nonInheritedAttrTypes = map[attrstore.Type]bool{
	attrstore.TypeSubjectKeyIdentifier:   true,
	attrstore.TypeAuthorityKeyIdentifier: true,
	attrstore.TypeBasicConstraints:       true,
	attrstore.TypeCRLReason:              true,
	attrstore.TypeInvalidityDate:         true,
}

// PreEncode runs the per-object-type checks and side effects from
// spec.md section 4.6's table. It must be called exactly once, after
// every field the caller intends to set has been set, and before the
// two-pass DER write.
func PreEncode(info *CertInfo) error {
	switch info.Type {
	case TypeCertificate:
		return preEncodeCertificate(info)
	case TypeAttributeCert:
		return preEncodeAttributeCert(info)
	case TypeCertRequest:
		return preEncodeCertRequest(info)
	case TypeCRMFRequest:
		return preEncodeCRMFRequest(info)
	case TypeRevocationRequest:
		return preEncodeRevocationRequest(info)
	case TypeCRL:
		return preEncodeCRL(info)
	case TypeRTCSRequest, TypeRTCSResponse:
		return preEncodeNonce(info)
	case TypeOCSPRequest, TypeOCSPResponse:
		return preEncodeOCSPNonce(info)
	case TypePKIUser:
		return preEncodePKIUser(info)
	default:
		return cryptoerr.New(cryptoerr.BadData)
	}
}

func preEncodeCertificate(info *CertInfo) error {
	if info.Subject.Empty() {
		relaxed := info.PKIXFull && !info.IsCA && !info.SelfSigned &&
			hasCriticalSAN(info.Attrs)
		if !relaxed {
			return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.subjectName",
				cryptoerr.ErrTypeAttrAbsent, nil)
		}
	}
	if info.Issuer.Empty() {
		info.Issuer = info.Subject
	}
	if !info.SelfSigned && info.Issuer.Equal(info.Subject) {
		return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.issuerName",
			cryptoerr.ErrTypeConstraint, nil)
	}
	clampValidity(info)
	if err := addStandardExtensions(info); err != nil {
		return err
	}
	copyIssuerAttributes(info)
	return nil
}

func preEncodeAttributeCert(info *CertInfo) error {
	if info.Subject.Empty() {
		return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.subjectName",
			cryptoerr.ErrTypeAttrAbsent, nil)
	}
	if info.Issuer.Empty() {
		return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.issuerName",
			cryptoerr.ErrTypeAttrAbsent, nil)
	}
	clampValidity(info)
	return nil
}

func preEncodeCertRequest(info *CertInfo) error {
	if info.RSAKey == nil && info.DLPKey == nil {
		return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.publicKey",
			cryptoerr.ErrTypeAttrAbsent, nil)
	}
	if info.Subject.Empty() {
		return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.subjectName",
			cryptoerr.ErrTypeAttrAbsent, nil)
	}
	return nil
}

func preEncodeCRMFRequest(info *CertInfo) error {
	if info.RSAKey == nil && info.DLPKey == nil {
		return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.publicKey",
			cryptoerr.ErrTypeAttrAbsent, nil)
	}
	// Subject DN is optional for CRMF, unlike PKCS#10.
	return nil
}

func preEncodeRevocationRequest(info *CertInfo) error {
	if len(info.Serial) == 0 {
		return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.serialNumber",
			cryptoerr.ErrTypeAttrAbsent, nil)
	}
	if info.Issuer.Empty() {
		return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.issuerName",
			cryptoerr.ErrTypeAttrAbsent, nil)
	}
	return nil
}

func preEncodeCRL(info *CertInfo) error {
	if !info.Issuer.Equal(info.Subject) && !info.Subject.Empty() {
		return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.issuerName",
			cryptoerr.ErrTypeConstraint, nil)
	}
	info.Subject = info.Issuer
	for i := range info.Revoked {
		entry := &info.Revoked[i]
		if entry.RevokedAt.IsZero() {
			entry.RevokedAt = info.ThisUpdate
		}
		if entry.Attrs != nil {
			entry.Attrs.PropagateInvalidityDate(entry.RevokedAt)
		}
	}
	return nil
}

func preEncodeNonce(info *CertInfo) error {
	if len(info.Nonce) == 0 {
		nonce := make([]byte, 16)
		if _, err := rand.Read(nonce); err != nil {
			return cryptoerr.Wrap(cryptoerr.Internal, err)
		}
		info.Nonce = nonce
	}
	return nil
}

// preEncodeOCSPNonce clears the nonce's high bit before it is wrapped
// in an OCTET STRING and then re-wrapped in an INTEGER, the OCSP wire
// oddity spec.md section 4.6 calls out: an INTEGER-typed nonce field
// whose content is itself an encoded OCTET STRING must never look
// negative once re-interpreted as a two's-complement INTEGER.
func preEncodeOCSPNonce(info *CertInfo) error {
	if err := preEncodeNonce(info); err != nil {
		return err
	}
	if len(info.Nonce) > 0 {
		info.Nonce[0] &^= 0x80
	}
	return nil
}

func preEncodePKIUser(info *CertInfo) error {
	if info.Subject.Empty() {
		return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.subjectName",
			cryptoerr.ErrTypeAttrAbsent, nil)
	}
	return nil
}

func clampValidity(info *CertInfo) {
	if !info.IssuerNotBefore.IsZero() && info.NotBefore.Before(info.IssuerNotBefore) {
		info.NotBefore = info.IssuerNotBefore
	}
	if !info.IssuerNotAfter.IsZero() && info.NotAfter.After(info.IssuerNotAfter) {
		info.NotAfter = info.IssuerNotAfter
	}
}

func hasCriticalSAN(attrs *attrstore.Store) bool {
	if attrs == nil {
		return false
	}
	for _, a := range attrs.FindAll(attrstore.TypeSubjectAltName) {
		if a.Critical {
			return true
		}
	}
	return false
}

func copyIssuerAttributes(info *CertInfo) {
	if info.IssuerAttrs == nil {
		return
	}
	if info.Attrs == nil {
		info.Attrs = attrstore.New()
	}
	for _, attr := range info.IssuerAttrs.All() {
		if !nonInheritedAttrTypes[attr.Type] {
			info.Attrs.Add(*attr)
		}
	}
}
