// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package certwriter

import (
	"math/big"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/keycodec"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// SigAlgo names a signature algorithm by its AlgorithmIdentifier OID;
// no parameters are emitted beyond the mandatory NULL, matching every
// RSA/DSA signature algorithm in asn1io's OID table.
type SigAlgo = asn1io.OID

// WriteTBSCertificate emits the tbsCertificate SEQUENCE from spec.md
// section 4.6's layout: the two-pass null-then-real write happens
// inside, so callers get back the exact encoded bytes ready either to
// hash for external signing or to embed in a full Certificate.
func WriteTBSCertificate(info *CertInfo, sigAlgo SigAlgo) ([]byte, error) {
	size, err := sizeOfTBSCertificate(info, sigAlgo)
	if err != nil {
		return nil, err
	}
	w := stream.MemOpen(size)
	if err := writeTBSCertificateBody(w, info, sigAlgo); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func sizeOfTBSCertificate(info *CertInfo, sigAlgo SigAlgo) (int, error) {
	w := stream.MemNullOpen()
	if err := writeTBSCertificateBody(w, info, sigAlgo); err != nil {
		return 0, err
	}
	return int(w.Size()), nil
}

func writeTBSCertificateBody(s stream.Stream, info *CertInfo, sigAlgo SigAlgo) error {
	extBody, err := extensionsBlob(info)
	if err != nil {
		return err
	}

	versionSize := asn1io.SizeOfObject(3) // [0] EXPLICIT INTEGER(2)
	serialSize := sizeOfIntegerBytes(info.Serial)
	sigAlgSize := sizeOfAlgorithmIdentifierNullParams(sigAlgo)
	issuerSize := sizeOfDN(info.Issuer)
	validitySize := asn1io.SizeOfObject(2 * asn1io.SizeOfObject(13)) // two UTCTimes, "YYMMDDHHMMSSZ" bodies
	subjectSize := sizeOfDN(info.Subject)
	spkiSize, err := sizeOfSPKI(info)
	if err != nil {
		return err
	}
	var extSize int
	if len(extBody) > 0 {
		extSize = asn1io.SizeOfObject(asn1io.SizeOfObject(len(extBody)))
	}

	body := versionSize + serialSize + sigAlgSize + issuerSize + validitySize + subjectSize + spkiSize + extSize
	if err := asn1io.WriteSequenceHeader(s, body); err != nil {
		return err
	}
	if err := asn1io.WriteTagHeader(s, asn1io.ContextTag(0, true), 3); err != nil {
		return err
	}
	if err := asn1io.WriteInteger(s, big.NewInt(2)); err != nil {
		return err
	}
	if err := writeSerialNumber(s, info.Serial); err != nil {
		return err
	}
	if err := writeAlgorithmIdentifierNullParams(s, sigAlgo); err != nil {
		return err
	}
	if err := writeDN(s, info.Issuer); err != nil {
		return err
	}
	if err := asn1io.WriteSequenceHeader(s, 2*asn1io.SizeOfObject(13)); err != nil {
		return err
	}
	if err := asn1io.WriteUTCTime(s, info.NotBefore); err != nil {
		return err
	}
	if err := asn1io.WriteUTCTime(s, info.NotAfter); err != nil {
		return err
	}
	if err := writeDN(s, info.Subject); err != nil {
		return err
	}
	if err := writeSPKI(s, info); err != nil {
		return err
	}
	if len(extBody) > 0 {
		if err := asn1io.WriteTagHeader(s, asn1io.ContextTag(3, true), asn1io.SizeOfObject(len(extBody))); err != nil {
			return err
		}
		if err := asn1io.WriteSequenceHeader(s, len(extBody)); err != nil {
			return err
		}
		if _, err := s.Write(extBody); err != nil {
			return err
		}
	}
	return nil
}

func extensionsBlob(info *CertInfo) ([]byte, error) {
	size, err := sizeOfExtensions(info.Attrs)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	w := stream.MemOpen(size)
	if err := writeExtensions(w, info.Attrs); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func sizeOfSPKI(info *CertInfo) (int, error) {
	w := stream.MemNullOpen()
	if err := writeSPKI(w, info); err != nil {
		return 0, err
	}
	return int(w.Size()), nil
}

func writeSPKI(s stream.Stream, info *CertInfo) error {
	if info.RSAKey != nil {
		return keycodec.EncodeRSASPKI(s, *info.RSAKey)
	}
	if info.DLPKey != nil {
		return keycodec.EncodeDLPSPKI(s, info.Algorithm, *info.DLPKey)
	}
	return cryptoerr.WrapAttr(cryptoerr.BadData, "certInfo.publicKey", cryptoerr.ErrTypeAttrAbsent, nil)
}

// WriteCertificate emits the full Certificate SEQUENCE: tbsCertificate,
// the repeated signatureAlgorithm, and the BIT STRING signatureValue.
// Passing a nil signature produces "AlgorithmIdentifier only" output,
// used during the size-compute pass and when the tbsCertificate is
// being produced for external signing.
func WriteCertificate(info *CertInfo, sigAlgo SigAlgo, signature []byte) ([]byte, error) {
	tbs, err := WriteTBSCertificate(info, sigAlgo)
	if err != nil {
		return nil, err
	}
	if signature == nil {
		return tbs, nil
	}
	algSize := sizeOfAlgorithmIdentifierNullParams(sigAlgo)
	sigSize := asn1io.SizeOfObject(len(signature) + 1)
	body := len(tbs) + algSize + sigSize
	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if _, err := w.Write(tbs); err != nil {
		return nil, err
	}
	if err := writeAlgorithmIdentifierNullParams(w, sigAlgo); err != nil {
		return nil, err
	}
	if err := asn1io.WriteBitString(w, 0, signature); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func sizeOfAlgorithmIdentifierNullParams(oid asn1io.OID) int {
	inner := asn1io.SizeOfOID(oid) + 2
	return asn1io.SizeOfObject(inner)
}

func writeAlgorithmIdentifierNullParams(s stream.Stream, oid asn1io.OID) error {
	inner := asn1io.SizeOfOID(oid) + 2
	if err := asn1io.WriteSequenceHeader(s, inner); err != nil {
		return err
	}
	if err := asn1io.WriteOID(s, oid); err != nil {
		return err
	}
	_, err := s.Write([]byte{asn1io.TagNull, 0x00})
	return err
}

func writeSerialNumber(s stream.Stream, serial []byte) error {
	if err := asn1io.WriteTagHeader(s, asn1io.TagInteger, len(serial)); err != nil {
		return err
	}
	_, err := s.Write(serial)
	return err
}

func sizeOfIntegerBytes(b []byte) int { return asn1io.SizeOfObject(len(b)) }
