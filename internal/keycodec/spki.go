// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package keycodec

import (
	"math/big"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// EncodeRSASPKI writes the X.509 SubjectPublicKeyInfo encoding of an
// RSA public key: SEQUENCE { AlgorithmIdentifier, BIT STRING } where
// the bit string wraps SEQUENCE { n, e }.
func EncodeRSASPKI(s stream.Stream, pub RSAPublic) error {
	if err := checkMinSize(pub.N, "rsaPublicKey.n"); err != nil {
		return err
	}
	body := encodeRSAPublicBody(pub)
	return writeSPKI(s, asn1io.OIDRSAEncryption, nil, body)
}

func encodeRSAPublicBody(pub RSAPublic) []byte {
	w := stream.MemNullOpen()
	asn1io.WriteInteger(w, pub.N)
	asn1io.WriteInteger(w, pub.E)
	size := int(w.Size())
	real := stream.MemOpen(asn1io.SizeOfObject(size))
	asn1io.WriteSequenceHeader(real, size)
	asn1io.WriteInteger(real, pub.N)
	asn1io.WriteInteger(real, pub.E)
	return real.Bytes()
}

// EncodeDLPSPKI writes the SPKI encoding of a DSA/DH/Elgamal public
// key: algorithm parameters SEQUENCE carries (p,q,g) for DSA or
// (p,g,q) for DH/Elgamal (the X9.42 ordering inherited from PKIX), and
// the BIT STRING wraps a single INTEGER y.
func EncodeDLPSPKI(s stream.Stream, alg Algorithm, pub DLPPublic) error {
	if err := checkMinSize(pub.P, "dlpPublicKey.p"); err != nil {
		return err
	}
	oid := asn1io.OIDDSA
	if alg != AlgDSA {
		oid = asn1io.OIDDiffieHellman
	}
	params := encodeDLPParams(alg, pub)
	body := encodeDLPPublicBody(pub)
	return writeSPKI(s, oid, params, body)
}

func encodeDLPParams(alg Algorithm, pub DLPPublic) []byte {
	w := stream.MemNullOpen()
	if alg == AlgDSA {
		asn1io.WriteInteger(w, pub.P)
		asn1io.WriteInteger(w, pub.Q)
		asn1io.WriteInteger(w, pub.G)
	} else {
		asn1io.WriteInteger(w, pub.P)
		asn1io.WriteInteger(w, pub.G)
		asn1io.WriteInteger(w, pub.Q)
	}
	size := int(w.Size())
	real := stream.MemOpen(asn1io.SizeOfObject(size))
	asn1io.WriteSequenceHeader(real, size)
	if alg == AlgDSA {
		asn1io.WriteInteger(real, pub.P)
		asn1io.WriteInteger(real, pub.Q)
		asn1io.WriteInteger(real, pub.G)
	} else {
		asn1io.WriteInteger(real, pub.P)
		asn1io.WriteInteger(real, pub.G)
		asn1io.WriteInteger(real, pub.Q)
	}
	return real.Bytes()
}

func encodeDLPPublicBody(pub DLPPublic) []byte {
	w := stream.MemOpen(asn1io.SizeOfInteger(pub.Y))
	asn1io.WriteInteger(w, pub.Y)
	return w.Bytes()
}

// writeSPKI assembles the common SEQUENCE { AlgorithmIdentifier, BIT
// STRING } shape around an already-encoded algorithm parameter blob
// (nil for RSA, which carries a NULL parameters field) and an
// already-encoded key body that becomes the bit string payload.
func writeSPKI(s stream.Stream, oid asn1io.OID, params []byte, body []byte) error {
	algIDSize := algorithmIdentifierSize(oid, params)
	bitStringSize := asn1io.SizeOfObject(len(body) + 1)
	total := algIDSize + bitStringSize

	if err := asn1io.WriteSequenceHeader(s, total); err != nil {
		return err
	}
	if err := writeAlgorithmIdentifier(s, oid, params); err != nil {
		return err
	}
	return asn1io.WriteBitString(s, 0, body)
}

func algorithmIdentifierSize(oid asn1io.OID, params []byte) int {
	inner := asn1io.SizeOfOID(oid)
	if params != nil {
		inner += len(params)
	} else {
		inner += 2 // NULL tag + zero length
	}
	return asn1io.SizeOfObject(inner)
}

func writeAlgorithmIdentifier(s stream.Stream, oid asn1io.OID, params []byte) error {
	inner := asn1io.SizeOfOID(oid)
	if params != nil {
		inner += len(params)
	} else {
		inner += 2
	}
	if err := asn1io.WriteSequenceHeader(s, inner); err != nil {
		return err
	}
	if err := asn1io.WriteOID(s, oid); err != nil {
		return err
	}
	if params != nil {
		_, err := s.Write(params)
		return err
	}
	_, err := s.Write([]byte{asn1io.TagNull, 0x00})
	return err
}

// DecodeSPKI parses a SubjectPublicKeyInfo and dispatches on the
// algorithm OID to return either an RSAPublic or a (Algorithm,
// DLPPublic) pair.
func DecodeSPKI(s stream.Stream) (alg Algorithm, rsaKey *RSAPublic, dlpKey *DLPPublic, err error) {
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return 0, nil, nil, err
	}
	oid, params, err := readAlgorithmIdentifier(s)
	if err != nil {
		return 0, nil, nil, err
	}
	_, body, err := asn1io.ReadBitString(s)
	if err != nil {
		return 0, nil, nil, err
	}
	bodyStream := stream.MemConnect(body)

	switch {
	case oid.Equal(asn1io.OIDRSAEncryption):
		if _, _, err := asn1io.ReadSequence(bodyStream); err != nil {
			return 0, nil, nil, err
		}
		n, err := asn1io.ReadBigInteger(bodyStream)
		if err != nil {
			return 0, nil, nil, err
		}
		e, err := asn1io.ReadBigInteger(bodyStream)
		if err != nil {
			return 0, nil, nil, err
		}
		return AlgRSA, &RSAPublic{N: n, E: e}, nil, nil

	case oid.Equal(asn1io.OIDDSA), oid.Equal(asn1io.OIDDiffieHellman):
		paramStream := stream.MemConnect(params)
		if _, _, err := asn1io.ReadSequence(paramStream); err != nil {
			return 0, nil, nil, err
		}
		a := AlgDSA
		first, err := asn1io.ReadBigInteger(paramStream)
		if err != nil {
			return 0, nil, nil, err
		}
		second, err := asn1io.ReadBigInteger(paramStream)
		if err != nil {
			return 0, nil, nil, err
		}
		third, err := asn1io.ReadBigInteger(paramStream)
		if err != nil {
			return 0, nil, nil, err
		}
		var pub DLPPublic
		if oid.Equal(asn1io.OIDDSA) {
			pub.P, pub.Q, pub.G = first, second, third
		} else {
			a = AlgDH
			pub.P, pub.G, pub.Q = first, second, third
		}
		y, err := asn1io.ReadBigInteger(bodyStream)
		if err != nil {
			return 0, nil, nil, err
		}
		pub.Y = y
		return a, nil, &pub, nil

	default:
		return 0, nil, nil, cryptoerr.Errorf(cryptoerr.BadData, "unsupported SPKI algorithm OID %v", oid)
	}
}

func readAlgorithmIdentifier(s stream.Stream) (oid asn1io.OID, params []byte, err error) {
	length, _, err := asn1io.ReadSequence(s)
	if err != nil {
		return nil, nil, err
	}
	_ = length
	oid, err = asn1io.ReadOID(s)
	if err != nil {
		return nil, nil, err
	}
	tag, err := asn1io.PeekTag(s)
	if err != nil {
		return oid, nil, nil
	}
	if tag == asn1io.TagNull {
		var b [2]byte
		s.Read(b[:])
		return oid, nil, nil
	}
	paramsTag, paramsLen, indefinite, err := asn1io.ReadTagHeader(s)
	if err != nil {
		return oid, nil, err
	}
	if indefinite {
		return oid, nil, cryptoerr.New(cryptoerr.BadData)
	}
	body := make([]byte, paramsLen)
	if paramsLen > 0 {
		if _, err := s.Read(body); err != nil {
			return oid, nil, err
		}
	}
	full := append([]byte{paramsTag}, encodeLenPrefixed(paramsLen)...)
	full = append(full, body...)
	return oid, full, nil
}

func encodeLenPrefixed(n int) []byte {
	w := stream.MemOpen(16)
	// Re-derive the length octets via a throwaway TLV write, then strip
	// the single tag byte that WriteTagHeader prepends.
	asn1io.WriteTagHeader(w, 0x00, n)
	return w.Bytes()[1:]
}

func readBigIntOrNil(s stream.Stream) *big.Int {
	n, err := asn1io.ReadBigInteger(s)
	if err != nil {
		return nil
	}
	return n
}
