// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// ReadChainCollection accepts a PKCS#7/CMS SignedData certificate
// container (WritePKCS7CertChain's own output, a v1.5/v1.6 SignedData
// with populated signerInfos, or the S/MIME attribute-cert variant;
// its certificate set tagged either [0] IMPLICIT or, as
// WriteCertSequence emits it, SEQUENCE OF), a raw CMS certSet tagged
// [0] IMPLICIT, or a plain SEQUENCE OF
// Certificate, and returns the individual certificate DER blobs. It
// digs through whatever ContentInfo/SignedData wrapper precedes the
// certificate set.
func ReadChainCollection(data []byte) ([][]byte, error) {
	s := stream.MemConnect(data)
	tag, err := asn1io.PeekTag(s)
	if err != nil {
		return nil, err
	}

	switch tag {
	case asn1io.TagSequenceOf:
		// Either a bare SEQUENCE OF Certificate, or a ContentInfo
		// wrapping a SignedData. Disambiguate by checking whether the
		// first inner element is an OID (ContentInfo) or another
		// SEQUENCE (a Certificate).
		if looksLikeContentInfo(data) {
			return readSignedDataCertSet(s, data)
		}
		return readPlainCertSequence(s, data)
	case asn1io.ContextTag(0, true):
		return readImplicitCertSet(s, data)
	default:
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
}

func looksLikeContentInfo(data []byte) bool {
	s := stream.MemConnect(data)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return false
	}
	t, err := asn1io.PeekTag(s)
	return err == nil && t == asn1io.TagObjectID
}

func readPlainCertSequence(s stream.Stream, data []byte) ([][]byte, error) {
	length, indefinite, err := asn1io.ReadSequence(s)
	if err != nil {
		return nil, err
	}
	return readCertBody(s, data, length, indefinite)
}

// readSignedDataCertSet parses just enough of a ContentInfo{SignedData}
// wrapper to reach the certificates field, tolerating both the v1.5
// shape (digestAlgorithms/contentInfo/certificates/crls/signerInfos)
// and the v1.6 attribute-certificate variant, since neither crls nor
// signerInfos nor the attribute-cert set are read here.
func readSignedDataCertSet(s stream.Stream, data []byte) ([][]byte, error) {
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, err
	}
	if _, err := asn1io.ReadOID(s); err != nil {
		return nil, err
	}
	// [0] EXPLICIT SignedData
	if tag, _, indefinite, err := asn1io.ReadTagHeader(s); err != nil {
		return nil, err
	} else if tag != asn1io.ContextTag(0, true) || indefinite {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, err
	}
	if _, err := asn1io.ReadInteger(s); err != nil { // version
		return nil, err
	}
	digestLen, digestIndefinite, err := asn1io.ReadSet(s) // digestAlgorithms
	if err != nil {
		return nil, err
	}
	if !digestIndefinite && digestLen > 0 {
		if err := s.Skip(digestLen); err != nil {
			return nil, err
		}
	}
	// Inner EncapsulatedContentInfo: SEQUENCE { OID eContentType, [0]
	// EXPLICIT OCTET STRING eContent OPTIONAL }. This is the
	// "signed-content wrapper" that sits between the header and the
	// cert set; the explicit [0] here is a CHILD of this SEQUENCE, so it
	// is only consumed while still inside the SEQUENCE's own declared
	// length — otherwise a following certificates [0] IMPLICIT field
	// (same tag number, but a sibling of this SEQUENCE) would be
	// misread as eContent.
	eciLen, eciIndefinite, err := asn1io.ReadSequence(s)
	if err != nil {
		return nil, err
	}
	eciStart := s.Tell()
	if _, err := asn1io.ReadOID(s); err != nil {
		return nil, err
	}
	hasMore := func() (bool, error) {
		if eciIndefinite {
			atEOC, err := asn1io.AtEOC(s)
			return !atEOC, err
		}
		return s.Tell() < eciStart+int64(eciLen), nil
	}
	if more, err := hasMore(); err != nil {
		return nil, err
	} else if more {
		if tag, err := asn1io.PeekTag(s); err == nil && tag == asn1io.ContextTag(0, true) {
			if _, _, indefinite, err := asn1io.ReadTagHeader(s); err != nil {
				return nil, err
			} else if indefinite {
				return nil, cryptoerr.New(cryptoerr.BadData)
			}
			if _, err := asn1io.ReadOctetString(s); err != nil {
				return nil, err
			}
		}
	}
	if eciIndefinite {
		if err := asn1io.ReadEOC(s); err != nil {
			return nil, err
		}
	}

	tag, err := asn1io.PeekTag(s)
	if err != nil {
		return nil, err
	}
	if tag != asn1io.ContextTag(0, true) && tag != asn1io.TagSequenceOf {
		return nil, nil // no certificates present
	}
	return readImplicitCertSet(s, data)
}

func readImplicitCertSet(s stream.Stream, data []byte) ([][]byte, error) {
	_, length, indefinite, err := asn1io.ReadTagHeader(s)
	if err != nil {
		return nil, err
	}
	return readCertBody(s, data, length, indefinite)
}

func readCertBody(s stream.Stream, data []byte, length int, indefinite bool) ([][]byte, error) {
	if indefinite {
		return readCertsUntilEOC(s, data)
	}
	end := s.Tell() + int64(length)
	var certs [][]byte
	for s.Tell() < end {
		if len(certs) >= MaxChainLength {
			return nil, cryptoerr.New(cryptoerr.Overflow)
		}
		body, err := readOneCertificate(s, data)
		if err != nil {
			return nil, err
		}
		certs = append(certs, body)
	}
	return certs, nil
}

func readCertsUntilEOC(s stream.Stream, data []byte) ([][]byte, error) {
	var certs [][]byte
	for {
		atEOC, err := asn1io.AtEOC(s)
		if err != nil {
			return nil, err
		}
		if atEOC {
			return certs, asn1io.ReadEOC(s)
		}
		if len(certs) >= MaxChainLength {
			return nil, cryptoerr.New(cryptoerr.Overflow)
		}
		body, err := readOneCertificate(s, data)
		if err != nil {
			return nil, err
		}
		certs = append(certs, body)
	}
}

// readOneCertificate reads one Certificate TLV as an opaque hole,
// returning the full tag+length+value span unparsed and unre-encoded.
func readOneCertificate(s stream.Stream, data []byte) ([]byte, error) {
	start := s.Tell()
	_, length, indefinite, err := asn1io.ReadTagHeader(s)
	if err != nil {
		return nil, err
	}
	if indefinite {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	if err := s.Skip(length); err != nil {
		return nil, err
	}
	end := s.Tell()
	return data[start:end], nil
}
