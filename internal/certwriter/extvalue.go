// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package certwriter

import (
	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// extensionOID maps an attrstore.Type to its X.509/CRL extension OID.
// Types with no standard extension OID (the CMS-only ones) are not
// present here; sizeOfExtensions and writeExtensions skip anything not
// in this map.
var extensionOID = map[attrstore.Type]asn1io.OID{
	attrstore.TypeSubjectKeyIdentifier:   asn1io.OIDSubjectKeyIdentifier,
	attrstore.TypeAuthorityKeyIdentifier: asn1io.OIDAuthorityKeyIdentifier,
	attrstore.TypeKeyUsage:               asn1io.OIDKeyUsage,
	attrstore.TypeBasicConstraints:       asn1io.OIDBasicConstraints,
	attrstore.TypeExtKeyUsage:            asn1io.OIDExtKeyUsage,
	attrstore.TypeSubjectAltName:         asn1io.OIDSubjectAltName,
	attrstore.TypeCRLReason:              asn1io.OIDCRLReason,
	attrstore.TypeInvalidityDate:         asn1io.OIDInvalidityDate,
}

// encodeExtensionValue returns the DER encoding of an attribute's
// extnValue body (the bytes that then get wrapped in an OCTET STRING).
func encodeExtensionValue(a *attrstore.Attribute) ([]byte, error) {
	switch a.Type {
	case attrstore.TypeKeyUsage:
		return encodeKeyUsageBitString(int(a.Int)), nil
	case attrstore.TypeBasicConstraints:
		return encodeBasicConstraints(a.Int != 0), nil
	case attrstore.TypeSubjectKeyIdentifier, attrstore.TypeAuthorityKeyIdentifier:
		return encodeOctetStringBody(a.Bytes), nil
	case attrstore.TypeExtKeyUsage:
		return encodeOIDSequence(a.OID), nil
	case attrstore.TypeSubjectAltName:
		return encodeOctetStringBody(a.Bytes), nil
	case attrstore.TypeCRLReason:
		return encodeEnumerated(int(a.Int)), nil
	case attrstore.TypeInvalidityDate:
		return encodeGeneralizedTimeBody(a), nil
	default:
		return nil, cryptoerr.Errorf(cryptoerr.BadData, "no extension encoding for attribute type %v", a.Type)
	}
}

func encodeKeyUsageBitString(bits int) []byte {
	nbits := 9
	nbytes := (nbits + 7) / 8
	body := make([]byte, nbytes)
	for i := 0; i < nbits; i++ {
		if bits&(1<<i) != 0 {
			body[i/8] |= 1 << uint(7-i%8)
		}
	}
	unused := nbytes*8 - nbits
	w := stream.MemOpen(nbytes + 3)
	asn1io.WriteBitString(w, byte(unused), body)
	return w.Bytes()
}

func encodeBasicConstraints(isCA bool) []byte {
	if !isCA {
		w := stream.MemOpen(2)
		asn1io.WriteSequenceHeader(w, 0)
		return w.Bytes()
	}
	w := stream.MemOpen(8)
	asn1io.WriteSequenceHeader(w, 3)
	asn1io.WriteBoolean(w, true)
	return w.Bytes()
}

func encodeOctetStringBody(b []byte) []byte {
	w := stream.MemOpen(asn1io.SizeOfOctetString(b))
	asn1io.WriteOctetString(w, b)
	return w.Bytes()
}

func encodeOIDSequence(oid asn1io.OID) []byte {
	inner := asn1io.SizeOfOID(oid)
	w := stream.MemOpen(asn1io.SizeOfObject(inner))
	asn1io.WriteSequenceHeader(w, inner)
	asn1io.WriteOID(w, oid)
	return w.Bytes()
}

func encodeEnumerated(v int) []byte {
	w := stream.MemOpen(4)
	asn1io.WriteTagHeader(w, asn1io.TagEnumerated, 1)
	w.Write([]byte{byte(v)})
	return w.Bytes()
}

func encodeGeneralizedTimeBody(a *attrstore.Attribute) []byte {
	w := stream.MemOpen(20)
	asn1io.WriteGeneralizedTime(w, a.Time)
	return w.Bytes()
}

// sizeOfExtensions returns the TLV size of the "SEQUENCE { Extension… }"
// list wrapper body (not including the [3] EXPLICIT tag the caller
// adds around it).
func sizeOfExtensions(attrs *attrstore.Store) (int, error) {
	if attrs == nil {
		return 0, nil
	}
	body := 0
	for _, a := range attrs.All() {
		oid, ok := extensionOID[a.Type]
		if !ok {
			continue
		}
		val, err := encodeExtensionValue(a)
		if err != nil {
			return 0, err
		}
		inner := asn1io.SizeOfOID(oid)
		if a.Critical {
			inner += 3 // BOOLEAN TRUE TLV
		}
		inner += asn1io.SizeOfOctetString(val)
		body += asn1io.SizeOfObject(inner)
	}
	return body, nil
}

// writeExtensions writes the "SEQUENCE { Extension… }" body (without
// the outer [3] EXPLICIT wrapper) for every attribute with a known
// extension OID.
func writeExtensions(s stream.Stream, attrs *attrstore.Store) error {
	if attrs == nil {
		return nil
	}
	for _, a := range attrs.All() {
		oid, ok := extensionOID[a.Type]
		if !ok {
			continue
		}
		val, err := encodeExtensionValue(a)
		if err != nil {
			return err
		}
		inner := asn1io.SizeOfOID(oid)
		if a.Critical {
			inner += 3
		}
		inner += asn1io.SizeOfOctetString(val)
		if err := asn1io.WriteSequenceHeader(s, inner); err != nil {
			return err
		}
		if err := asn1io.WriteOID(s, oid); err != nil {
			return err
		}
		if a.Critical {
			if err := asn1io.WriteBoolean(s, true); err != nil {
				return err
			}
		}
		if err := asn1io.WriteOctetString(s, val); err != nil {
			return err
		}
	}
	return nil
}
