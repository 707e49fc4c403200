// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package certwriter

import (
	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
)

// WriteCRMFCertTemplate emits the CertTemplate body of an RFC 4211
// CertReqMsg: SEQUENCE { [4] EXPLICIT Name subject (if present),
// [6] EXPLICIT SubjectPublicKeyInfo, [9] EXPLICIT Extensions (if
// present) }. The proof-of-possession and controls fields CRMF defines
// around the template are outside this module's scope; callers that
// need them wrap the returned bytes in their own POP structure.
func WriteCRMFCertTemplate(info *CertInfo) ([]byte, error) {
	size, err := sizeOfCRMFTemplate(info)
	if err != nil {
		return nil, err
	}
	w := stream.MemOpen(size)
	if err := writeCRMFTemplateBody(w, info); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func sizeOfCRMFTemplate(info *CertInfo) (int, error) {
	w := stream.MemNullOpen()
	if err := writeCRMFTemplateBody(w, info); err != nil {
		return 0, err
	}
	return int(w.Size()), nil
}

func writeCRMFTemplateBody(s stream.Stream, info *CertInfo) error {
	var subjectWrapperSize int
	if !info.Subject.Empty() {
		subjectSize := sizeOfDN(info.Subject)
		subjectWrapperSize = asn1io.SizeOfObject(subjectSize)
	}
	spkiSize, err := sizeOfSPKI(info)
	if err != nil {
		return err
	}
	spkiWrapperSize := asn1io.SizeOfObject(spkiSize)

	extBody, err := extensionsBlob(info)
	if err != nil {
		return err
	}
	var extWrapperSize int
	if len(extBody) > 0 {
		extWrapperSize = asn1io.SizeOfObject(asn1io.SizeOfObject(len(extBody)))
	}

	body := subjectWrapperSize + spkiWrapperSize + extWrapperSize
	if err := asn1io.WriteSequenceHeader(s, body); err != nil {
		return err
	}
	if !info.Subject.Empty() {
		subjectSize := sizeOfDN(info.Subject)
		if err := asn1io.WriteTagHeader(s, asn1io.ContextTag(4, true), subjectSize); err != nil {
			return err
		}
		if err := writeDN(s, info.Subject); err != nil {
			return err
		}
	}
	if err := asn1io.WriteTagHeader(s, asn1io.ContextTag(6, true), spkiSize); err != nil {
		return err
	}
	if err := writeSPKI(s, info); err != nil {
		return err
	}
	if len(extBody) == 0 {
		return nil
	}
	if err := asn1io.WriteTagHeader(s, asn1io.ContextTag(9, true), asn1io.SizeOfObject(len(extBody))); err != nil {
		return err
	}
	if err := asn1io.WriteSequenceHeader(s, len(extBody)); err != nil {
		return err
	}
	_, err = s.Write(extBody)
	return err
}
