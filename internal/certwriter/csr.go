// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package certwriter

import (
	"math/big"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
)

// WriteCertificationRequestInfo emits the PKCS#10 CertificationRequestInfo
// body: SEQUENCE { INTEGER 0, Name subject, SubjectPublicKeyInfo,
// [0] IMPLICIT SET OF Attribute (empty unless extensions are present,
// in which case it carries one PKCS#9 extensionRequest attribute). The
// caller wraps the returned bytes plus signatureAlgorithm/signature to
// build the full CertificationRequest.
func WriteCertificationRequestInfo(info *CertInfo) ([]byte, error) {
	size, err := sizeOfCertReqInfo(info)
	if err != nil {
		return nil, err
	}
	w := stream.MemOpen(size)
	if err := writeCertReqInfoBody(w, info); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func sizeOfCertReqInfo(info *CertInfo) (int, error) {
	w := stream.MemNullOpen()
	if err := writeCertReqInfoBody(w, info); err != nil {
		return 0, err
	}
	return int(w.Size()), nil
}

func writeCertReqInfoBody(s stream.Stream, info *CertInfo) error {
	subjectSize := sizeOfDN(info.Subject)
	spkiSize, err := sizeOfSPKI(info)
	if err != nil {
		return err
	}
	extBody, err := extensionsBlob(info)
	if err != nil {
		return err
	}
	attrsSize := asn1io.SizeOfObject(extensionRequestAttrSize(extBody))

	versionSize := asn1io.SizeOfInteger(big.NewInt(0))
	body := versionSize + subjectSize + spkiSize + attrsSize
	if err := asn1io.WriteSequenceHeader(s, body); err != nil {
		return err
	}
	if err := asn1io.WriteInteger(s, big.NewInt(0)); err != nil {
		return err
	}
	if err := writeDN(s, info.Subject); err != nil {
		return err
	}
	if err := writeSPKI(s, info); err != nil {
		return err
	}
	return writeExtensionRequestAttr(s, extBody)
}

func extensionRequestAttrSize(extBody []byte) int {
	if len(extBody) == 0 {
		return 0
	}
	extSeqSize := asn1io.SizeOfObject(len(extBody))
	valSize := asn1io.SizeOfObject(extSeqSize)
	inner := asn1io.SizeOfOID(asn1io.OIDPKCS9ExtensionRequest) + valSize
	return asn1io.SizeOfObject(inner)
}

func writeExtensionRequestAttr(s stream.Stream, extBody []byte) error {
	attrsBody := extensionRequestAttrSize(extBody)
	if err := asn1io.WriteTagHeader(s, asn1io.ContextTag(0, true), attrsBody); err != nil {
		return err
	}
	if attrsBody == 0 {
		return nil
	}
	extSeqSize := asn1io.SizeOfObject(len(extBody))
	valSize := asn1io.SizeOfObject(extSeqSize)
	inner := asn1io.SizeOfOID(asn1io.OIDPKCS9ExtensionRequest) + valSize
	if err := asn1io.WriteSequenceHeader(s, inner); err != nil {
		return err
	}
	if err := asn1io.WriteOID(s, asn1io.OIDPKCS9ExtensionRequest); err != nil {
		return err
	}
	if err := asn1io.WriteSetHeader(s, extSeqSize); err != nil {
		return err
	}
	if err := asn1io.WriteSequenceHeader(s, len(extBody)); err != nil {
		return err
	}
	_, err := s.Write(extBody)
	return err
}

// WriteCertificationRequest wraps a CertificationRequestInfo with its
// signatureAlgorithm and signature to produce the full
// CertificationRequest SEQUENCE. A nil signature produces the
// info-only encoding used for the size-compute pass.
func WriteCertificationRequest(info *CertInfo, sigAlgo SigAlgo, signature []byte) ([]byte, error) {
	reqInfo, err := WriteCertificationRequestInfo(info)
	if err != nil {
		return nil, err
	}
	if signature == nil {
		return reqInfo, nil
	}
	algSize := sizeOfAlgorithmIdentifierNullParams(sigAlgo)
	sigSize := asn1io.SizeOfObject(len(signature) + 1)
	body := len(reqInfo) + algSize + sigSize
	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if _, err := w.Write(reqInfo); err != nil {
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

// WriteRevocationRequestInfo emits the CRMF revocation-request body
// this module uses for cert revocation requests: SEQUENCE { INTEGER
// serial, Name issuer, [0] SEQUENCE { Extension… } } } — a reduced
// CertTemplate carrying only the fields a revocation needs, per
// spec.md section 4.6's "Serial and issuer-DN required" rule.
func WriteRevocationRequestInfo(info *CertInfo) ([]byte, error) {
	size, err := sizeOfRevReqInfo(info)
	if err != nil {
		return nil, err
	}
	w := stream.MemOpen(size)
	if err := writeRevReqInfoBody(w, info); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func sizeOfRevReqInfo(info *CertInfo) (int, error) {
	w := stream.MemNullOpen()
	if err := writeRevReqInfoBody(w, info); err != nil {
		return 0, err
	}
	return int(w.Size()), nil
}

func writeRevReqInfoBody(s stream.Stream, info *CertInfo) error {
	serialSize := sizeOfIntegerBytes(info.Serial)
	issuerSize := sizeOfDN(info.Issuer)
	extBody, err := extensionsBlob(info)
	if err != nil {
		return err
	}
	var extSize int
	if len(extBody) > 0 {
		extSize = asn1io.SizeOfObject(asn1io.SizeOfObject(len(extBody)))
	}
	body := serialSize + issuerSize + extSize
	if err := asn1io.WriteSequenceHeader(s, body); err != nil {
		return err
	}
	if err := writeSerialNumber(s, info.Serial); err != nil {
		return err
	}
	if err := writeDN(s, info.Issuer); err != nil {
		return err
	}
	if len(extBody) == 0 {
		return nil
	}
	if err := asn1io.WriteTagHeader(s, asn1io.ContextTag(0, true), asn1io.SizeOfObject(len(extBody))); err != nil {
		return err
	}
	if err := asn1io.WriteSequenceHeader(s, len(extBody)); err != nil {
		return err
	}
	_, err = s.Write(extBody)
	return err
}
