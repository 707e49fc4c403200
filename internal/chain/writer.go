// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"math/big"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// WritePKCS7CertChain wraps certs (already-DER-encoded Certificate
// blobs, leaf first) in a PKCS#7 SignedData structure carrying no
// signerInfos: version 1, empty digestAlgorithms SET, an inner
// contentType=data ContentInfo with no content, a [0] IMPLICIT SET OF
// Certificate, and an empty signerInfos SET. This is the shape
// cryptlib uses purely as a certificate transport container.
func WritePKCS7CertChain(certs [][]byte) ([]byte, error) {
	return writeChainCollection(certs, asn1io.ContextTag(0, true))
}

// WriteCertSequence is the cert-sequence variant: the certificate
// collection is tagged as a plain universal SEQUENCE OF rather than
// the context-implicit [0] SET OF WritePKCS7CertChain uses.
func WriteCertSequence(certs [][]byte) ([]byte, error) {
	return writeChainCollection(certs, asn1io.TagSequenceOf)
}

func writeChainCollection(certs [][]byte, certsTag byte) ([]byte, error) {
	certsBody := 0
	for _, c := range certs {
		certsBody += len(c)
	}
	certsWrapperSize := asn1io.SizeOfObject(certsBody)

	innerContentInfoSize := asn1io.SizeOfObject(asn1io.SizeOfOID(asn1io.OIDCMSData))
	digestAlgosSize := asn1io.SizeOfObject(0) // empty SET
	signerInfosSize := asn1io.SizeOfObject(0) // empty SET
	versionSize := 3                          // INTEGER(1) TLV

	sdBody := versionSize + digestAlgosSize + innerContentInfoSize + certsWrapperSize + signerInfosSize
	contentInfoBody := asn1io.SizeOfOID(asn1io.OIDCMSSignedData) + asn1io.SizeOfObject(asn1io.SizeOfObject(sdBody))

	w := stream.MemOpen(asn1io.SizeOfObject(contentInfoBody))
	if err := asn1io.WriteSequenceHeader(w, contentInfoBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDCMSSignedData); err != nil {
		return nil, err
	}
	if err := asn1io.WriteTagHeader(w, asn1io.ContextTag(0, true), asn1io.SizeOfObject(sdBody)); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, sdBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteInteger(w, big.NewInt(1)); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSetHeader(w, 0); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, asn1io.SizeOfOID(asn1io.OIDCMSData)); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDCMSData); err != nil {
		return nil, err
	}
	if err := asn1io.WriteTagHeader(w, certsTag, certsBody); err != nil {
		return nil, err
	}
	for _, c := range certs {
		if _, err := w.Write(c); err != nil {
			return nil, err
		}
	}
	if err := asn1io.WriteSetHeader(w, 0); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// WriteSSLChain prefixes each certificate with a 24-bit network-order
// length and concatenates them with no outer wrapper; the caller's
// stream length is the chain's total length.
func WriteSSLChain(certs [][]byte) []byte {
	total := 0
	for _, c := range certs {
		total += 3 + len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range certs {
		var lenBuf [3]byte
		putUint24(lenBuf[:], len(c))
		out = append(out, lenBuf[:]...)
		out = append(out, c...)
	}
	return out
}

// ReadSSLChain reverses WriteSSLChain.
func ReadSSLChain(data []byte) ([][]byte, error) {
	var certs [][]byte
	for len(data) > 0 {
		if len(data) < 3 {
			return nil, cryptoerr.New(cryptoerr.Underflow)
		}
		n := getUint24(data)
		data = data[3:]
		if len(data) < n {
			return nil, cryptoerr.New(cryptoerr.Underflow)
		}
		certs = append(certs, data[:n])
		data = data[n:]
	}
	return certs, nil
}

func putUint24(b []byte, n int) {
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

func getUint24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}
