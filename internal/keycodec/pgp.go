// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package keycodec

import (
	"encoding/binary"
	"math/big"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// PGPAlgorithm is the one-byte OpenPGP public-key algorithm code, kept
// distinct from Algorithm because PGP distinguishes RSA's sign-only and
// encrypt-only variants where the X.509 world does not.
type PGPAlgorithm byte

const (
	PGPAlgRSA            PGPAlgorithm = 1
	PGPAlgRSAEncryptOnly PGPAlgorithm = 2
	PGPAlgRSASignOnly    PGPAlgorithm = 3
	PGPAlgElgamal        PGPAlgorithm = 16
	PGPAlgDSA            PGPAlgorithm = 17
)

// PGPPublicKey is the decoded form of an OpenPGP public-key packet
// body (the part after the packet header), versions 2 through 4.
type PGPPublicKey struct {
	Version  byte
	CTime    uint32
	Validity uint16 // only present, and only meaningful, for v2/v3
	Alg      PGPAlgorithm

	RSA *RSAPublic
	DLP *DLPPublic // DSA uses P,Q,G,Y; Elgamal uses P,G,Y
}

// EncodePGPPublicKey writes the public-key packet body: byte version,
// uint32 ctime, [uint16 validity if v2/v3], byte algorithm, then the
// algorithm's MPI sequence.
func EncodePGPPublicKey(k PGPPublicKey) ([]byte, error) {
	var out []byte
	out = append(out, k.Version)
	out = append(out, uint32Bytes(k.CTime)...)
	if k.Version == 2 || k.Version == 3 {
		out = append(out, uint16Bytes(int(k.Validity))...)
	}
	out = append(out, byte(k.Alg))
	switch k.Alg {
	case PGPAlgRSA, PGPAlgRSAEncryptOnly, PGPAlgRSASignOnly:
		if k.RSA == nil {
			return nil, cryptoerr.New(cryptoerr.BadData)
		}
		out = append(out, pgpMPInt(k.RSA.N)...)
		out = append(out, pgpMPInt(k.RSA.E)...)
	case PGPAlgDSA:
		if k.DLP == nil {
			return nil, cryptoerr.New(cryptoerr.BadData)
		}
		out = append(out, pgpMPInt(k.DLP.P)...)
		out = append(out, pgpMPInt(k.DLP.Q)...)
		out = append(out, pgpMPInt(k.DLP.G)...)
		out = append(out, pgpMPInt(k.DLP.Y)...)
	case PGPAlgElgamal:
		if k.DLP == nil {
			return nil, cryptoerr.New(cryptoerr.BadData)
		}
		out = append(out, pgpMPInt(k.DLP.P)...)
		out = append(out, pgpMPInt(k.DLP.G)...)
		out = append(out, pgpMPInt(k.DLP.Y)...)
	default:
		return nil, cryptoerr.Errorf(cryptoerr.BadData, "unsupported PGP algorithm code %d", k.Alg)
	}
	return out, nil
}

// DecodePGPPublicKey reverses EncodePGPPublicKey.
func DecodePGPPublicKey(b []byte) (PGPPublicKey, error) {
	var k PGPPublicKey
	if len(b) < 6 {
		return k, cryptoerr.New(cryptoerr.Underflow)
	}
	k.Version = b[0]
	k.CTime = binary.BigEndian.Uint32(b[1:5])
	rest := b[5:]
	if k.Version == 2 || k.Version == 3 {
		if len(rest) < 2 {
			return k, cryptoerr.New(cryptoerr.Underflow)
		}
		k.Validity = binary.BigEndian.Uint16(rest)
		rest = rest[2:]
	}
	if len(rest) < 1 {
		return k, cryptoerr.New(cryptoerr.Underflow)
	}
	k.Alg = PGPAlgorithm(rest[0])
	rest = rest[1:]

	var err error
	switch k.Alg {
	case PGPAlgRSA, PGPAlgRSAEncryptOnly, PGPAlgRSASignOnly:
		var n, e *big.Int
		if n, rest, err = readPGPMPInt(rest); err != nil {
			return k, err
		}
		if e, _, err = readPGPMPInt(rest); err != nil {
			return k, err
		}
		k.RSA = &RSAPublic{N: n, E: e}
	case PGPAlgDSA:
		var p, q, g, y *big.Int
		if p, rest, err = readPGPMPInt(rest); err != nil {
			return k, err
		}
		if q, rest, err = readPGPMPInt(rest); err != nil {
			return k, err
		}
		if g, rest, err = readPGPMPInt(rest); err != nil {
			return k, err
		}
		if y, _, err = readPGPMPInt(rest); err != nil {
			return k, err
		}
		k.DLP = &DLPPublic{P: p, Q: q, G: g, Y: y}
	case PGPAlgElgamal:
		var p, g, y *big.Int
		if p, rest, err = readPGPMPInt(rest); err != nil {
			return k, err
		}
		if g, rest, err = readPGPMPInt(rest); err != nil {
			return k, err
		}
		if y, _, err = readPGPMPInt(rest); err != nil {
			return k, err
		}
		k.DLP = &DLPPublic{P: p, G: g, Y: y}
	default:
		return k, cryptoerr.Errorf(cryptoerr.BadData, "unsupported PGP algorithm code %d", k.Alg)
	}
	return k, nil
}

// pgpMPInt encodes a big.Int as an OpenPGP MPI: a 16-bit bit-length
// prefix (same convention as the SSHv1 mpint) followed by the minimal
// big-endian magnitude.
func pgpMPInt(n *big.Int) []byte { return sshv1MPInt(n) }

func readPGPMPInt(b []byte) (*big.Int, []byte, error) { return readSSHv1MPInt(b) }

// EncodePGPSignature writes the PGP signature transport shape: two
// MPIs, r then s.
func EncodePGPSignature(r, s *big.Int) []byte {
	out := pgpMPInt(r)
	return append(out, pgpMPInt(s)...)
}

// DecodePGPSignature reverses EncodePGPSignature.
func DecodePGPSignature(b []byte) (r, s *big.Int, err error) {
	if r, b, err = readPGPMPInt(b); err != nil {
		return nil, nil, err
	}
	if s, _, err = readPGPMPInt(b); err != nil {
		return nil, nil, err
	}
	return r, s, nil
}
