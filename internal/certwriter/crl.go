// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package certwriter

import (
	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
)

// WriteTBSCertList emits the X.509 CRL's tbsCertList body: SEQUENCE {
// AlgorithmIdentifier signatureAlgo, Name issuer, UTCTime thisUpdate,
// [UTCTime nextUpdate], SEQUENCE OF revokedCertificates (if any),
// [0] EXPLICIT crlExtensions (if any) }. PreEncode must already have
// populated each RevocationEntry's RevokedAt and invalidity-date side
// effect before this is called.
func WriteTBSCertList(info *CertInfo, sigAlgo SigAlgo) ([]byte, error) {
	size, err := sizeOfTBSCertList(info, sigAlgo)
	if err != nil {
		return nil, err
	}
	w := stream.MemOpen(size)
	if err := writeTBSCertListBody(w, info, sigAlgo); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func sizeOfTBSCertList(info *CertInfo, sigAlgo SigAlgo) (int, error) {
	w := stream.MemNullOpen()
	if err := writeTBSCertListBody(w, info, sigAlgo); err != nil {
		return 0, err
	}
	return int(w.Size()), nil
}

func writeTBSCertListBody(s stream.Stream, info *CertInfo, sigAlgo SigAlgo) error {
	sigAlgSize := sizeOfAlgorithmIdentifierNullParams(sigAlgo)
	issuerSize := sizeOfDN(info.Issuer)
	thisUpdateSize := asn1io.SizeOfObject(13)
	var nextUpdateSize int
	if !info.NextUpdate.IsZero() {
		nextUpdateSize = asn1io.SizeOfObject(13)
	}

	entriesBody := 0
	for _, e := range info.Revoked {
		entriesBody += asn1io.SizeOfObject(sizeOfRevokedEntry(e))
	}
	var entriesSize int
	if len(info.Revoked) > 0 {
		entriesSize = asn1io.SizeOfObject(entriesBody)
	}

	extBody, err := extensionsBlob(info)
	if err != nil {
		return err
	}
	var extSize int
	if len(extBody) > 0 {
		extSize = asn1io.SizeOfObject(asn1io.SizeOfObject(len(extBody)))
	}

	body := sigAlgSize + issuerSize + thisUpdateSize + nextUpdateSize + entriesSize + extSize
	if err := asn1io.WriteSequenceHeader(s, body); err != nil {
		return err
	}
	if err := writeAlgorithmIdentifierNullParams(s, sigAlgo); err != nil {
		return err
	}
	if err := writeDN(s, info.Issuer); err != nil {
		return err
	}
	if err := asn1io.WriteUTCTime(s, info.ThisUpdate); err != nil {
		return err
	}
	if !info.NextUpdate.IsZero() {
		if err := asn1io.WriteUTCTime(s, info.NextUpdate); err != nil {
			return err
		}
	}
	if len(info.Revoked) > 0 {
		if err := asn1io.WriteSequenceHeader(s, entriesBody); err != nil {
			return err
		}
		for _, e := range info.Revoked {
			if err := writeRevokedEntry(s, e); err != nil {
				return err
			}
		}
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

func sizeOfRevokedEntry(e RevocationEntry) int {
	serialSize := sizeOfIntegerBytes(e.Serial)
	timeSize := asn1io.SizeOfObject(13)
	var extSize int
	if e.Attrs != nil {
		extBody, err := extensionsBlob(&CertInfo{Attrs: e.Attrs})
		if err == nil && len(extBody) > 0 {
			extSize = asn1io.SizeOfObject(len(extBody))
		}
	}
	return serialSize + timeSize + extSize
}

func writeRevokedEntry(s stream.Stream, e RevocationEntry) error {
	if err := asn1io.WriteSequenceHeader(s, sizeOfRevokedEntry(e)); err != nil {
		return err
	}
	if err := writeSerialNumber(s, e.Serial); err != nil {
		return err
	}
	if err := asn1io.WriteUTCTime(s, e.RevokedAt); err != nil {
		return err
	}
	if e.Attrs == nil {
		return nil
	}
	extBody, err := extensionsBlob(&CertInfo{Attrs: e.Attrs})
	if err != nil {
		return err
	}
	if len(extBody) == 0 {
		return nil
	}
	if err := asn1io.WriteSequenceHeader(s, len(extBody)); err != nil {
		return err
	}
	_, err = s.Write(extBody)
	return err
}
