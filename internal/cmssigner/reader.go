// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package cmssigner

import (
	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// SignerInfo is a parsed CMS SignerInfo, with the signed-attribute set
// kept both as a Store (for attribute lookups) and as the raw DER body
// that was under the wire's [0] IMPLICIT tag (for hash recomputation).
type SignerInfo struct {
	KeyID              []byte
	DigestAlgorithm    asn1io.OID
	SignatureAlgorithm asn1io.OID
	Signature          []byte

	SignedAttrs     *attrstore.Store
	signedAttrsBody []byte // raw body bytes under the [0] tag, re-tagged as SET to verify

	UnsignedAttrs *attrstore.Store
}

// ParseSignerInfo decodes one SignerInfo DER blob as BuildSignerInfo
// produces it: a bare subjectKeyIdentifier sid, optional [0] signed and
// [1] unsigned attribute sets.
func ParseSignerInfo(der []byte) (*SignerInfo, error) {
	s := stream.MemConnect(der)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, err
	}
	if _, err := asn1io.ReadInteger(s); err != nil {
		return nil, err
	}
	sid, err := readImplicitOctetString(s, asn1io.ContextTag(0, false))
	if err != nil {
		return nil, err
	}
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, err
	}
	digestAlgo, err := asn1io.ReadOID(s)
	if err != nil {
		return nil, err
	}

	info := &SignerInfo{KeyID: sid, DigestAlgorithm: digestAlgo}

	tag, err := asn1io.PeekTag(s)
	if err != nil {
		return nil, err
	}
	if tag == asn1io.ContextTag(0, true) {
		body, err := readRawTLVBody(s)
		if err != nil {
			return nil, err
		}
		info.signedAttrsBody = body
		attrs, err := parseAttributeBody(body)
		if err != nil {
			return nil, err
		}
		info.SignedAttrs = attrs
	}

	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, err
	}
	sigAlgo, err := asn1io.ReadOID(s)
	if err != nil {
		return nil, err
	}
	// NULL parameters, if present.
	if t, err := asn1io.PeekTag(s); err == nil && t == asn1io.TagNull {
		if _, _, _, err := asn1io.ReadTagHeader(s); err != nil {
			return nil, err
		}
	}
	info.SignatureAlgorithm = sigAlgo

	sig, err := asn1io.ReadOctetString(s)
	if err != nil {
		return nil, err
	}
	info.Signature = sig

	if tag, err := asn1io.PeekTag(s); err == nil && tag == asn1io.ContextTag(1, true) {
		body, err := readRawTLVBody(s)
		if err != nil {
			return nil, err
		}
		attrs, err := parseAttributeBody(body)
		if err != nil {
			return nil, err
		}
		info.UnsignedAttrs = attrs
	}

	return info, nil
}

// VerifySignerInfo recomputes the hash over info's signed-attribute set
// (re-tagged as a universal SET, per the signing discipline) and the
// caller-supplied verify callback against info's embedded signature. It
// also requires the embedded message-digest attribute and checks it
// against contentDigest.
func VerifySignerInfo(info *SignerInfo, verify Verifier, contentDigest []byte) error {
	if info.SignedAttrs == nil {
		return cryptoerr.New(cryptoerr.BadData)
	}
	if md := info.SignedAttrs.Find(attrstore.TypeCMSMessageDigest, 0); md == nil || !bytesEqual(md.Bytes, contentDigest) {
		return cryptoerr.New(cryptoerr.Signature)
	}
	w := stream.MemOpen(asn1io.SizeOfObject(len(info.signedAttrsBody)))
	if err := asn1io.WriteSetHeader(w, len(info.signedAttrsBody)); err != nil {
		return err
	}
	if _, err := w.Write(info.signedAttrsBody); err != nil {
		return err
	}
	setForm := w.Bytes()

	digest, hash, err := Hash(info.DigestAlgorithm, setForm)
	if err != nil {
		return err
	}
	return verify(hash, digest, info.Signature)
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

// readImplicitOctetString reads a primitive value tagged wantTag whose
// body is an opaque OCTET STRING, used for the sid field's [0] IMPLICIT
// SubjectKeyIdentifier.
func readImplicitOctetString(s stream.Stream, wantTag byte) ([]byte, error) {
	tag, length, indefinite, err := asn1io.ReadTagHeader(s)
	if err != nil {
		return nil, err
	}
	if tag != wantTag || indefinite {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	buf := make([]byte, length)
	if length > 0 {
		if _, err := s.Read(buf); err != nil {
			return nil, cryptoerr.Wrap(cryptoerr.Underflow, err)
		}
	}
	return buf, nil
}

// readRawTLVBody reads a tag+length header and returns the raw body
// bytes that follow, leaving the stream positioned just after them.
func readRawTLVBody(s stream.Stream) ([]byte, error) {
	_, length, indefinite, err := asn1io.ReadTagHeader(s)
	if err != nil {
		return nil, err
	}
	if indefinite {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	buf := make([]byte, length)
	if length > 0 {
		if _, err := s.Read(buf); err != nil {
			return nil, cryptoerr.Wrap(cryptoerr.Underflow, err)
		}
	}
	return buf, nil
}

// parseAttributeBody decodes a SET/[n] IMPLICIT SET body of Attribute
// SEQUENCE{ type OBJECT IDENTIFIER, values SET OF AttributeValue }
// entries into a Store, recognising the attribute OIDs this package
// writes and skipping any other attribute's raw value unread.
func parseAttributeBody(body []byte) (*attrstore.Store, error) {
	s := stream.MemConnect(body)
	store := attrstore.New()
	for {
		tag, err := asn1io.PeekTag(s)
		if err != nil {
			break // end of body
		}
		if tag != asn1io.TagSequenceOf {
			return nil, cryptoerr.New(cryptoerr.BadData)
		}
		if _, _, err := asn1io.ReadSequence(s); err != nil {
			return nil, err
		}
		oid, err := asn1io.ReadOID(s)
		if err != nil {
			return nil, err
		}
		valuesLen, _, err := asn1io.ReadSet(s)
		if err != nil {
			return nil, err
		}
		attr, err := decodeAttributeValue(oid, s)
		if err != nil {
			return nil, err
		}
		if attr == nil {
			if err := s.Skip(valuesLen); err != nil {
				return nil, err
			}
		} else {
			if err := store.Add(*attr); err != nil {
				return nil, err
			}
		}
	}
	return store, nil
}

func decodeAttributeValue(oid asn1io.OID, s stream.Stream) (*attrstore.Attribute, error) {
	switch oid.String() {
	case asn1io.OIDCMSContentType.String():
		ct, err := asn1io.ReadOID(s)
		if err != nil {
			return nil, err
		}
		return &attrstore.Attribute{Type: attrstore.TypeCMSContentType, Kind: attrstore.KindOID, OID: ct}, nil
	case asn1io.OIDCMSMessageDigest.String():
		b, err := asn1io.ReadOctetString(s)
		if err != nil {
			return nil, err
		}
		return &attrstore.Attribute{Type: attrstore.TypeCMSMessageDigest, Kind: attrstore.KindBytes, Bytes: b}, nil
	case asn1io.OIDCMSNonce.String():
		b, err := asn1io.ReadOctetString(s)
		if err != nil {
			return nil, err
		}
		return &attrstore.Attribute{Type: attrstore.TypeCMSNonce, Kind: attrstore.KindBytes, Bytes: b}, nil
	case asn1io.OIDCMSSigningTime.String():
		t, err := asn1io.ReadUTCTime(s)
		if err != nil {
			return nil, err
		}
		return &attrstore.Attribute{Type: attrstore.TypeCMSSigningTime, Kind: attrstore.KindTime, Time: t}, nil
	case asn1io.OIDCMSSMIMECapability.String():
		b, err := readRawTLVBody(s)
		if err != nil {
			return nil, err
		}
		return &attrstore.Attribute{Type: attrstore.TypeCMSSMIMECapabilities, Kind: attrstore.KindBytes, Bytes: prependSequence(b)}, nil
	case asn1io.OIDESSCertID.String():
		b, err := readRawTLVBody(s)
		if err != nil {
			return nil, err
		}
		return &attrstore.Attribute{Type: attrstore.TypeESSCertID, Kind: attrstore.KindBytes, Bytes: prependSequence(b)}, nil
	default:
		return nil, nil
	}
}

// prependSequence restores the SEQUENCE tag+length header that
// readRawTLVBody strips, so round-tripped SMIMECapabilities/ESSCertID
// bytes match what EncodeAttributes expects in attr.Bytes.
func prependSequence(body []byte) []byte {
	w := stream.MemOpen(asn1io.SizeOfObject(len(body)))
	_ = asn1io.WriteSequenceHeader(w, len(body))
	_, _ = w.Write(body)
	return w.Bytes()
}
